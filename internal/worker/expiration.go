package worker

import (
	"context"
	"log/slog"
	"time"
)

// pageSize bounds the memberships expired per query.
const pageSize = 200

// Expirer is satisfied by services.MembershipService.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// ExpireOnce expires every overdue membership, a page at a time, and returns
// the total.
func ExpireOnce(ctx context.Context, e Expirer, now time.Time) (int, error) {
	total := 0
	for {
		n, err := e.ExpireDue(ctx, now, pageSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < pageSize {
			return total, nil
		}
	}
}

// StartExpiration runs ExpireOnce on every tick until done is closed.
func StartExpiration(e Expirer, interval time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := ExpireOnce(context.Background(), e, time.Now().UTC())
				if err != nil {
					slog.Error("membership expiration failed", "expired", n, "error", err)
				} else if n > 0 {
					slog.Info("memberships expired", "count", n)
				}
			case <-done:
				return
			}
		}
	}()
}
