package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/smxlab/dmkit/pkg/models"
)

// RunRepository defines the interface for simulation run ledger operations
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListByDut(ctx context.Context, dutName string) ([]*models.Run, error)
	LatestCompleted(ctx context.Context, dutHash, sweepHash string) (*models.Run, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error
	SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error
}
