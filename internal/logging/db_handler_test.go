package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/testutil"
)

func TestDBHandler_PersistsErrorsOnly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewDBHandler(db, time.Hour)
	logger := slog.New(h)

	logger.Info("routine", "action", "noop")
	logger.Error("renewal failed",
		"action", "renew",
		"membership_id", "m-1",
		"customer_id", "c-1",
		"error", errors.New("card declined"),
		"attempt", 2,
	)
	h.Stop()

	var logs []models.SystemLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "renewal failed", entry.Message)
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "renew", entry.Action)
	assert.Equal(t, "card declined", entry.Error)
	require.NotNil(t, entry.MembershipID)
	assert.Equal(t, "m-1", *entry.MembershipID)
	require.NotNil(t, entry.CustomerID)
	assert.Equal(t, "c-1", *entry.CustomerID)
	assert.JSONEq(t, `{"attempt":2}`, string(entry.Extra))
}

func TestDBHandler_WithAttrsSharesBuffer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewDBHandler(db, time.Hour)

	child := h.WithAttrs([]slog.Attr{slog.String("request_id", "req-42")})
	require.NoError(t, child.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)))
	h.Stop()

	var entry models.SystemLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "req-42", entry.TraceID)
}

func TestDBHandler_StopIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewDBHandler(db, time.Hour)
	h.Stop()
	h.Stop()
}

func TestPurgeOlderThan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.Create(&models.SystemLog{Timestamp: now.AddDate(0, 0, -40), Level: "ERROR", Message: "old"}).Error)
	require.NoError(t, db.Create(&models.SystemLog{Timestamp: now, Level: "ERROR", Message: "new"}).Error)

	n, err := PurgeOlderThan(db, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var remaining []models.SystemLog
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
