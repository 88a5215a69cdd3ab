package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	BatchStatusIncomplete = "incomplete"
	BatchStatusComplete   = "complete"
	BatchStatusFailed     = "failed"
)

// BatchJob tracks a long-running admin task that is processed one page at a time.
type BatchJob struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string                      `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Description   string                      `gorm:"type:text" json:"description"`
	Callback      string                      `gorm:"size:100;not null" json:"callback"`
	Queue         string                      `gorm:"size:50;not null;default:'default';index" json:"queue"`
	Status        string                      `gorm:"size:20;not null;default:'incomplete';index" json:"status"`
	Step          int                         `gorm:"not null;default:0" json:"step"`
	StepSize      int                         `gorm:"not null;default:100" json:"step_size"`
	TotalCount    int                         `gorm:"not null;default:0" json:"total_count"`
	CurrentCount  int                         `gorm:"not null;default:0" json:"current_count"`
	FailedCount   int                         `gorm:"not null;default:0" json:"failed_count"`
	Data          datatypes.JSON              `gorm:"type:jsonb" json:"data"`
	Errors        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"errors"`
	LockedUntil   *time.Time                  `json:"-"`
	DateCompleted *time.Time                  `json:"date_completed,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (j *BatchJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// PercentComplete is the share of TotalCount processed so far.
func (j *BatchJob) PercentComplete() int {
	if j.Status == BatchStatusComplete {
		return 100
	}
	if j.TotalCount <= 0 {
		return 0
	}
	return j.CurrentCount * 100 / j.TotalCount
}
