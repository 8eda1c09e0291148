package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smxlab/dmkit/internal/repository"
	"github.com/smxlab/dmkit/internal/storage"
	"github.com/smxlab/dmkit/pkg/models"
)

// RunHandler handles simulation run HTTP requests
type RunHandler struct {
	repo      repository.RunRepository
	s3Service storage.S3Service
}

// NewRunHandler creates a new run handler
func NewRunHandler(repo repository.RunRepository, s3Service storage.S3Service) *RunHandler {
	return &RunHandler{
		repo:      repo,
		s3Service: s3Service,
	}
}

// CreateRun registers a new simulation run
func (h *RunHandler) CreateRun(ctx context.Context, req *models.CreateRunRequest) (*models.CreateRunResponse, error) {
	log.Info().
		Str("dut", req.Body.DutName).
		Str("sweep", req.Body.SweepName).
		Str("simulator", req.Body.Simulator).
		Msg("Registering new run")

	runID := uuid.New()
	now := time.Now()
	run := &models.Run{
		ID:        runID.String(),
		DutName:   req.Body.DutName,
		DutHash:   req.Body.DutHash,
		SweepName: req.Body.SweepName,
		SweepHash: req.Body.SweepHash,
		Simulator: req.Body.Simulator,
		Status:    models.StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.Create(ctx, run); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create run", err)
	}

	return &models.CreateRunResponse{
		Body: models.CreateRunResponseBody{
			ID:     run.ID,
			Status: run.Status,
		},
	}, nil
}

// GetRunStatus returns the current status of a run
func (h *RunHandler) GetRunStatus(ctx context.Context, req *models.GetRunStatusRequest) (*models.GetRunStatusResponse, error) {
	runID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid run ID", err)
	}

	run, err := h.repo.GetByID(ctx, runID)
	if err != nil {
		return nil, huma.Error404NotFound("Run not found", err)
	}

	return &models.GetRunStatusResponse{
		Body: models.GetRunStatusResponseBody{
			ID:       run.ID,
			Status:   run.Status,
			Progress: run.Progress,
			Message:  statusMessage(run),
		},
	}, nil
}

// GetRunResults returns the archive location of a completed run
func (h *RunHandler) GetRunResults(ctx context.Context, req *models.GetRunResultsRequest) (*models.GetRunResultsResponse, error) {
	runID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid run ID", err)
	}

	run, err := h.repo.GetByID(ctx, runID)
	if err != nil {
		return nil, huma.Error404NotFound("Run not found", err)
	}

	if run.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Run not yet completed",
			fmt.Errorf("run status is %s", run.Status))
	}

	body := models.GetRunResultsResponseBody{
		ID:        run.ID,
		DutName:   run.DutName,
		SweepName: run.SweepName,
		Simulator: run.Simulator,
		CreatedAt: run.CreatedAt,
	}

	if run.ArchiveKey != nil {
		downloadURL, err := h.s3Service.GenerateDownloadURL(ctx, *run.ArchiveKey)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to generate download URL", err)
		}
		body.DownloadURL = downloadURL
		body.ExpiresIn = int((24 * time.Hour).Seconds())
	}

	return &models.GetRunResultsResponse{Body: body}, nil
}

// ListRuns lists the runs of a device, newest first
func (h *RunHandler) ListRuns(ctx context.Context, req *models.ListRunsRequest) (*models.ListRunsResponse, error) {
	if req.DutName == "" {
		return nil, huma.Error400BadRequest("dut_name is required", nil)
	}

	runs, err := h.repo.ListByDut(ctx, req.DutName)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list runs", err)
	}
	if runs == nil {
		runs = []*models.Run{}
	}

	return &models.ListRunsResponse{
		Body: models.ListRunsResponseBody{Runs: runs},
	}, nil
}

func statusMessage(run *models.Run) string {
	switch run.Status {
	case models.StatusPending:
		return "Run queued, waiting for a worker"
	case models.StatusRunning:
		return fmt.Sprintf("Simulation running (%d%%)", run.Progress)
	case models.StatusCompleted:
		return "Simulation completed"
	case models.StatusFailed:
		if run.ErrorMsg != nil {
			return *run.ErrorMsg
		}
		return "Simulation failed"
	}
	return ""
}
