package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/batch"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type BatchHandler struct {
	runner    *batch.Runner
	exporter  *services.ExportProcessor
	importDir string
}

func NewBatchHandler(runner *batch.Runner, exporter *services.ExportProcessor, importDir string) *BatchHandler {
	return &BatchHandler{runner: runner, exporter: exporter, importDir: importDir}
}

func (h *BatchHandler) List(c *fiber.Ctx) error {
	jobs, err := h.runner.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return serviceError(c, err, "list batch jobs")
	}
	return c.JSON(fiber.Map{
		"data":       lo.Map(jobs, func(j models.BatchJob, _ int) dto.BatchJobResponse { return jobResponse(&j) }),
		"processors": h.runner.Registry().Names(),
	})
}

func (h *BatchHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateBatchJobRequest
	if err := parseBody(c, &req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	job, err := h.runner.Create(c.UserContext(), req.Name, req.Callback, req.Description, req.Data)
	if err != nil {
		return serviceError(c, err, "create batch job")
	}
	return c.Status(fiber.StatusCreated).JSON(jobResponse(job))
}

// Import stores an uploaded CSV and creates an import job for it. Optional
// form fields: mapping (JSON object), level_id, status and name.
func (h *BatchHandler) Import(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "CSV file is required")
	}
	if filepath.Ext(file.Filename) != ".csv" {
		return errorJSON(c, fiber.StatusBadRequest, "Only .csv files can be imported")
	}

	opts := services.ImportOptions{
		LevelID: c.FormValue("level_id"),
		Status:  c.FormValue("status"),
	}
	if raw := c.FormValue("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Mapping); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid mapping")
		}
	}

	if err := os.MkdirAll(h.importDir, 0o750); err != nil {
		return serviceError(c, fmt.Errorf("create import dir: %w", err), "import")
	}
	opts.File = filepath.Join(h.importDir, uuid.NewString()+".csv")
	if err := c.SaveFile(file, opts.File); err != nil {
		return serviceError(c, fmt.Errorf("save import file: %w", err), "import")
	}

	name := c.FormValue("name")
	if name == "" {
		name = fmt.Sprintf("import-%s", time.Now().UTC().Format("20060102-150405"))
	}
	data := map[string]any{
		"file":     opts.File,
		"mapping":  opts.Mapping,
		"level_id": opts.LevelID,
		"status":   opts.Status,
	}
	job, err := h.runner.Create(c.UserContext(), name, services.ProcessorImportMemberships, "Import of "+file.Filename, data)
	if err != nil {
		_ = os.Remove(opts.File)
		return serviceError(c, err, "create import job")
	}
	return c.Status(fiber.StatusCreated).JSON(jobResponse(job))
}

func (h *BatchHandler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	job, err := h.runner.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "get batch job")
	}
	return c.JSON(jobResponse(job))
}

// Step processes the next page of a job. A failed page is reported on the
// job and retried on the next call.
func (h *BatchHandler) Step(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	job, err := h.runner.ProcessStep(c.UserContext(), id)
	if err != nil && (job == nil || errors.Is(err, batch.ErrJobLocked)) {
		return serviceError(c, err, "process batch step")
	}
	return c.JSON(jobResponse(job))
}

func (h *BatchHandler) Reset(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	job, err := h.runner.Reset(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "reset batch job")
	}
	return c.JSON(jobResponse(job))
}

func (h *BatchHandler) Delete(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	job, err := h.runner.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "delete batch job")
	}
	if err := h.runner.Delete(c.UserContext(), id); err != nil {
		return serviceError(c, err, "delete batch job")
	}
	if job.Callback == services.ProcessorExportMemberships {
		if err := os.Remove(h.exporter.FilePath(job)); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove export file", "job_id", job.ID, "error", err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Download serves the CSV of a completed export job.
func (h *BatchHandler) Download(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	job, err := h.runner.Get(c.UserContext(), id)
	if err != nil {
		return serviceError(c, err, "download export")
	}
	if job.Callback != services.ProcessorExportMemberships {
		return errorJSON(c, fiber.StatusBadRequest, "Job is not an export")
	}
	if job.Status != models.BatchStatusComplete {
		return errorJSON(c, fiber.StatusConflict, "Export is not complete")
	}

	path := h.exporter.FilePath(job)
	if _, err := os.Stat(path); err != nil {
		return errorJSON(c, fiber.StatusNotFound, "Export file not found")
	}
	return c.Download(path, job.Name+".csv")
}

func jobResponse(job *models.BatchJob) dto.BatchJobResponse {
	errs := []string(job.Errors)
	if errs == nil {
		errs = []string{}
	}
	return dto.BatchJobResponse{
		ID:              job.ID,
		Name:            job.Name,
		Callback:        job.Callback,
		Status:          job.Status,
		Step:            job.Step,
		TotalCount:      job.TotalCount,
		CurrentCount:    job.CurrentCount,
		FailedCount:     job.FailedCount,
		PercentComplete: job.PercentComplete(),
		Errors:          errs,
	}
}
