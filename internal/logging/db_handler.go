package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dbHandlerBatchSize = 50

// DBHandler is an slog.Handler that batches ERROR+ logs into the system_logs table.
type DBHandler struct {
	db     *gorm.DB
	attrs  []slog.Attr
	shared *dbBuffer
}

type dbBuffer struct {
	mu       sync.Mutex
	buffer   []models.SystemLog
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDBHandler(db *gorm.DB, flushEvery time.Duration) *DBHandler {
	h := &DBHandler{
		db: db,
		shared: &dbBuffer{
			buffer: make([]models.SystemLog, 0, dbHandlerBatchSize),
			ticker: time.NewTicker(flushEvery),
			done:   make(chan struct{}),
		},
	}
	h.shared.wg.Add(1)
	go h.flushLoop()
	return h
}

func (h *DBHandler) flushLoop() {
	defer h.shared.wg.Done()
	for {
		select {
		case <-h.shared.ticker.C:
			h.Flush()
		case <-h.shared.done:
			h.Flush()
			return
		}
	}
}

// Flush writes buffered records immediately.
func (h *DBHandler) Flush() {
	b := h.shared
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buffer
	b.buffer = make([]models.SystemLog, 0, dbHandlerBatchSize)
	b.mu.Unlock()

	// Logging through slog here would recurse into this handler.
	if err := h.db.CreateInBatches(batch, dbHandlerBatchSize).Error; err != nil {
		slog.Warn("failed to flush system logs to DB", "error", err.Error(), "count", len(batch))
	}
}

// Stop flushes pending records and stops the background loop.
func (h *DBHandler) Stop() {
	h.shared.stopOnce.Do(func() {
		h.shared.ticker.Stop()
		close(h.shared.done)
	})
	h.shared.wg.Wait()
}

// Enabled only handles ERROR and above.
func (h *DBHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *DBHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		Timestamp: record.Time.UTC(),
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		s := a.Value.String()
		switch a.Key {
		case "trace_id", "request_id":
			entry.TraceID = s
		case "user_id":
			entry.UserID = &s
		case "customer_id":
			entry.CustomerID = &s
		case "membership_id":
			entry.MembershipID = &s
		case "action":
			entry.Action = s
		case "error":
			entry.Error = s
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	b := h.shared
	b.mu.Lock()
	b.buffer = append(b.buffer, entry)
	needFlush := len(b.buffer) >= dbHandlerBatchSize
	b.mu.Unlock()

	if needFlush {
		go h.Flush()
	}
	return nil
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &DBHandler{db: h.db, attrs: merged, shared: h.shared}
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	return h
}
