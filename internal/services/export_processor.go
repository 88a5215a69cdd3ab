package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/batch"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/membership"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const ProcessorExportMemberships = "export_memberships"

var exportHeader = []string{
	"membership_id", "email", "level", "status", "created_date", "expiration_date",
	"auto_renew", "times_billed", "gateway", "gateway_customer_id", "gateway_subscription_id",
}

// ExportOptions filters the memberships written by an export job.
type ExportOptions struct {
	LevelID string `json:"level_id"`
	Status  string `json:"status"`
}

// ExportProcessor writes memberships to a CSV file named after the job.
type ExportProcessor struct {
	db  *gorm.DB
	dir string
}

func NewExportProcessor(db *gorm.DB, dir string) *ExportProcessor {
	return &ExportProcessor{db: db, dir: dir}
}

func (p *ExportProcessor) Name() string { return ProcessorExportMemberships }

// FilePath is where the job's CSV is written.
func (p *ExportProcessor) FilePath(job *models.BatchJob) string {
	return filepath.Join(p.dir, job.ID.String()+".csv")
}

func (p *ExportProcessor) Count(ctx context.Context, job *models.BatchJob) (int, error) {
	query, err := p.query(ctx, job)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

type exportRow struct {
	ID                    uuid.UUID
	Email                 string
	LevelName             string
	Status                string
	CreatedDate           time.Time
	ExpirationDate        *time.Time
	AutoRenew             bool
	TimesBilled           int
	Gateway               string
	GatewayCustomerID     string
	GatewaySubscriptionID string
}

func (p *ExportProcessor) Execute(ctx context.Context, job *models.BatchJob, offset, limit int) (batch.Result, error) {
	query, err := p.query(ctx, job)
	if err != nil {
		return batch.Result{}, err
	}

	var rows []exportRow
	if err := query.Select(
		"memberships.id, users.email, membership_levels.name AS level_name, memberships.status, " +
			"memberships.created_date, memberships.expiration_date, memberships.auto_renew, memberships.times_billed, " +
			"memberships.gateway, memberships.gateway_customer_id, memberships.gateway_subscription_id").
		Order("memberships.created_date ASC, memberships.id ASC").
		Offset(offset).Limit(limit).
		Scan(&rows).Error; err != nil {
		return batch.Result{}, fmt.Errorf("failed to load memberships: %w", err)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return batch.Result{}, fmt.Errorf("failed to create export dir: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if offset == 0 {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(p.FilePath(job), flags, 0o644)
	if err != nil {
		return batch.Result{}, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if offset == 0 {
		if err := w.Write(exportHeader); err != nil {
			return batch.Result{}, err
		}
	}
	for _, r := range rows {
		expiration := "none"
		if r.ExpirationDate != nil {
			expiration = r.ExpirationDate.UTC().Format(time.RFC3339)
		}
		if err := w.Write([]string{
			r.ID.String(),
			r.Email,
			r.LevelName,
			r.Status,
			r.CreatedDate.UTC().Format(time.RFC3339),
			expiration,
			strconv.FormatBool(r.AutoRenew),
			strconv.Itoa(r.TimesBilled),
			r.Gateway,
			r.GatewayCustomerID,
			r.GatewaySubscriptionID,
		}); err != nil {
			return batch.Result{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return batch.Result{}, fmt.Errorf("failed to write export file: %w", err)
	}

	return batch.Result{Processed: len(rows), Done: len(rows) < limit}, nil
}

func (p *ExportProcessor) query(ctx context.Context, job *models.BatchJob) (*gorm.DB, error) {
	var opts ExportOptions
	if err := batch.DecodeData(job, &opts); err != nil {
		return nil, fmt.Errorf("invalid export options: %w", err)
	}

	query := p.db.WithContext(ctx).Table("memberships").
		Joins("JOIN customers ON customers.id = memberships.customer_id").
		Joins("JOIN users ON users.id = customers.user_id").
		Joins("JOIN membership_levels ON membership_levels.id = memberships.level_id")
	if opts.LevelID != "" {
		levelID, err := uuid.Parse(opts.LevelID)
		if err != nil {
			return nil, fmt.Errorf("invalid level_id: %w", err)
		}
		query = query.Where("memberships.level_id = ?", levelID)
	}
	if opts.Status != "" {
		status, err := membership.ParseStatus(opts.Status)
		if err != nil {
			return nil, err
		}
		query = query.Where("memberships.status = ?", string(status))
	}
	return query, nil
}
