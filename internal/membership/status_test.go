package membership

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusPending, StatusActive, StatusCancelled, StatusExpired}

func TestCanTransition_OnlyAllowedEdges(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusActive}:    true,
		{StatusActive, StatusCancelled}:  true,
		{StatusActive, StatusExpired}:    true,
		{StatusCancelled, StatusExpired}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr error
	}{
		{"activate pending", StatusPending, StatusActive, nil},
		{"cancel active", StatusActive, StatusCancelled, nil},
		{"expire cancelled", StatusCancelled, StatusExpired, nil},
		{"reactivate expired", StatusExpired, StatusActive, ErrInvalidTransition},
		{"uncancel", StatusCancelled, StatusActive, ErrInvalidTransition},
		{"same status", StatusActive, StatusActive, ErrInvalidTransition},
		{"cancel pending", StatusPending, StatusCancelled, ErrInvalidTransition},
		{"unknown target", StatusActive, Status("free"), ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Active ")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s)

	_, err = ParseStatus("free")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestNextStatuses_ReturnsCopy(t *testing.T) {
	next := NextStatuses(StatusActive)
	require.Len(t, next, 2)
	next[0] = StatusPending

	assert.Equal(t, []Status{StatusCancelled, StatusExpired}, NextStatuses(StatusActive))
	assert.Empty(t, NextStatuses(StatusExpired))
}
