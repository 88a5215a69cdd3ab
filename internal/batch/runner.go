package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound      = errors.New("batch job not found")
	ErrJobExists        = errors.New("batch job with this name already exists")
	ErrJobLocked        = errors.New("batch job is being processed")
	ErrUnknownProcessor = errors.New("unknown batch processor")
	ErrInvalidStepSize  = errors.New("step size must be positive")
)

const (
	defaultLockTTL       = 5 * time.Minute
	maxRecordedJobErrors = 100
)

// Runner creates batch jobs and advances them one step at a time. A step is
// claimed through locked_until so two callers never process the same page.
type Runner struct {
	db       *gorm.DB
	registry *Registry
	stepSize func(ctx context.Context) int
	lockTTL  time.Duration
	now      func() time.Time
}

// NewRunner builds a runner. stepSize is resolved once per job, when it is
// created, and kept on the job so offsets stay stable.
func NewRunner(db *gorm.DB, registry *Registry, stepSize func(ctx context.Context) int) *Runner {
	return &Runner{
		db:       db,
		registry: registry,
		stepSize: stepSize,
		lockTTL:  defaultLockTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Runner) Registry() *Registry {
	return r.registry
}

// Create registers a job for callback and counts its items.
func (r *Runner) Create(ctx context.Context, name, callback, description string, data map[string]any) (*models.BatchJob, error) {
	p, ok := r.registry.Get(callback)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, callback)
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchJob{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrJobExists
	}

	stepSize := r.stepSize(ctx)
	if stepSize <= 0 {
		return nil, ErrInvalidStepSize
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job data: %w", err)
	}

	job := models.BatchJob{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Callback:    callback,
		Queue:       "default",
		Status:      models.BatchStatusIncomplete,
		StepSize:    stepSize,
		Data:        datatypes.JSON(raw),
		Errors:      datatypes.JSONSlice[string]{},
	}

	total, err := p.Count(ctx, &job)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s items: %w", callback, err)
	}
	job.TotalCount = total

	if err := r.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to create batch job: %w", err)
	}
	slog.Info("batch job created", "job_id", job.ID, "callback", callback, "total", total)
	return &job, nil
}

func (r *Runner) Get(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	var job models.BatchJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *Runner) List(ctx context.Context, status string) ([]models.BatchJob, error) {
	var jobs []models.BatchJob
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ProcessStep runs the next page of job id. A completed job is returned as
// is. When the processor fails the job keeps its step so the page is retried
// on the next call; items it reported done before failing still count.
func (r *Runner) ProcessStep(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	job, err := r.claim(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.BatchStatusIncomplete {
		return job, nil
	}

	p, ok := r.registry.Get(job.Callback)
	if !ok {
		job.Status = models.BatchStatusFailed
		r.recordErrors(job, []string{fmt.Sprintf("unknown processor %q", job.Callback)})
		if err := r.release(ctx, job); err != nil {
			return nil, err
		}
		return job, fmt.Errorf("%w: %s", ErrUnknownProcessor, job.Callback)
	}

	offset := job.Step * job.StepSize
	res, execErr := p.Execute(ctx, job, offset, job.StepSize)
	if execErr != nil {
		job.CurrentCount = min(job.CurrentCount+res.Processed, job.TotalCount)
		job.FailedCount += res.Failed
		r.recordErrors(job, res.Errors)
		r.recordErrors(job, []string{fmt.Sprintf("step %d: %v", job.Step, execErr)})
		if err := r.release(ctx, job); err != nil {
			return nil, err
		}
		slog.Error("batch step failed", "job_id", job.ID, "step", job.Step, "error", execErr)
		return job, execErr
	}

	r.applyResult(job, res)
	if err := r.release(ctx, job); err != nil {
		return nil, err
	}
	if job.Status == models.BatchStatusComplete {
		slog.Info("batch job completed", "job_id", job.ID, "processed", job.CurrentCount, "failed", job.FailedCount)
	}
	return job, nil
}

func (r *Runner) applyResult(job *models.BatchJob, res Result) {
	job.Step++
	job.CurrentCount = min(job.CurrentCount+res.Processed, job.TotalCount)
	job.FailedCount += res.Failed
	r.recordErrors(job, res.Errors)

	if res.Done || (res.Processed == 0 && res.Failed == 0) {
		now := r.now()
		job.Status = models.BatchStatusComplete
		job.DateCompleted = &now
	}
}

func (r *Runner) recordErrors(job *models.BatchJob, errs []string) {
	for _, e := range errs {
		if len(job.Errors) >= maxRecordedJobErrors {
			return
		}
		job.Errors = append(job.Errors, e)
	}
}

// claim takes the job's lock with a conditional update so only one caller
// wins, then reloads the row so the step it runs is the one stored after
// any step that finished in between. A job that is no longer incomplete
// comes back unlocked.
func (r *Runner) claim(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	now := r.now()
	until := now.Add(r.lockTTL)
	result := r.db.WithContext(ctx).Model(&models.BatchJob{}).
		Where("id = ? AND status = ? AND (locked_until IS NULL OR locked_until < ?)", id, models.BatchStatusIncomplete, now).
		Update("locked_until", until)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to lock batch job: %w", result.Error)
	}

	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 && job.Status == models.BatchStatusIncomplete {
		return nil, ErrJobLocked
	}
	return job, nil
}

func (r *Runner) release(ctx context.Context, job *models.BatchJob) error {
	job.LockedUntil = nil
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("failed to save batch job: %w", err)
	}
	return nil
}

// Reset rewinds a job to its first step and recounts its items.
func (r *Runner) Reset(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	job, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.LockedUntil != nil && job.LockedUntil.After(r.now()) {
		return nil, ErrJobLocked
	}

	if p, ok := r.registry.Get(job.Callback); ok {
		total, err := p.Count(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s items: %w", job.Callback, err)
		}
		job.TotalCount = total
	}

	job.Status = models.BatchStatusIncomplete
	job.Step = 0
	job.CurrentCount = 0
	job.FailedCount = 0
	job.Errors = datatypes.JSONSlice[string]{}
	job.DateCompleted = nil
	job.LockedUntil = nil
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return nil, fmt.Errorf("failed to reset batch job: %w", err)
	}
	return job, nil
}

func (r *Runner) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.BatchJob{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// RunPending advances every incomplete job by one step.
func (r *Runner) RunPending(ctx context.Context) {
	jobs, err := r.List(ctx, models.BatchStatusIncomplete)
	if err != nil {
		slog.Error("failed to list batch jobs", "error", err)
		return
	}
	for _, job := range jobs {
		if _, err := r.ProcessStep(ctx, job.ID); err != nil && !errors.Is(err, ErrJobLocked) {
			slog.Warn("batch step returned error", "job_id", job.ID, "error", err)
		}
	}
}

// Start drains incomplete jobs in the background until done is closed.
func (r *Runner) Start(interval time.Duration, done chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.RunPending(context.Background())
			case <-done:
				return
			}
		}
	}()
}
