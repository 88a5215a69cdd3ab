package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"gorm.io/gorm"
)

// StartCleanup runs a daily goroutine that deletes system_logs older than retentionDays.
func StartCleanup(db *gorm.DB, retentionDays int, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := PurgeOlderThan(db, time.Now().AddDate(0, 0, -retentionDays)); err != nil {
					slog.Error("log cleanup failed", "error", err)
				} else if n > 0 {
					slog.Info("log cleanup completed", "deleted", n)
				}
			case <-done:
				return
			}
		}
	}()
}

// PurgeOlderThan deletes system logs recorded before cutoff.
func PurgeOlderThan(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("timestamp < ?", cutoff.UTC()).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}
