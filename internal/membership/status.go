package membership

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of a membership.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

var (
	ErrInvalidStatus     = errors.New("invalid membership status")
	ErrInvalidTransition = errors.New("invalid membership status transition")
	ErrInvalidUnit       = errors.New("invalid duration unit")
)

// transitions lists every allowed edge. Anything missing is rejected,
// including moving a membership to the status it already has.
var transitions = map[Status][]Status{
	StatusPending:   {StatusActive},
	StatusActive:    {StatusCancelled, StatusExpired},
	StatusCancelled: {StatusExpired},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus normalizes user input ("Active", " cancelled ") into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a status change and returns a descriptive error when
// the edge is not in the table.
func Transition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// NextStatuses returns the statuses reachable from s.
func NextStatuses(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}
