package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent stores every gateway delivery so retries are processed once.
type WebhookEvent struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Gateway     string         `gorm:"size:50;not null;uniqueIndex:idx_webhook_events_gateway_event,priority:1" json:"gateway"`
	EventID     string         `gorm:"size:191;not null;uniqueIndex:idx_webhook_events_gateway_event,priority:2" json:"event_id"`
	EventType   string         `gorm:"size:100;not null" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
