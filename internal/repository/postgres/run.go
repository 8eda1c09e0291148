package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/smxlab/dmkit/internal/repository"
	"github.com/smxlab/dmkit/pkg/models"
)

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgreSQL run repository
func NewPostgresRunRepository(db *sql.DB) repository.RunRepository {
	return &PostgresRunRepository{db: db}
}

// Create inserts a new run record
func (r *PostgresRunRepository) Create(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO runs (id, dut_name, dut_hash, sweep_name, sweep_hash, simulator, status, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.DutName,
		run.DutHash,
		run.SweepName,
		run.SweepHash,
		run.Simulator,
		run.Status,
		run.Progress,
		run.CreatedAt,
		run.UpdatedAt)

	return err
}

const runColumns = `id, dut_name, dut_hash, sweep_name, sweep_hash, simulator, status, progress, error_message, archive_key, created_at, updated_at, completed_at`

func scanRun(scan func(dest ...any) error) (*models.Run, error) {
	var run models.Run
	var errorMsg, archiveKey sql.NullString
	var completedAt sql.NullTime

	err := scan(
		&run.ID,
		&run.DutName,
		&run.DutHash,
		&run.SweepName,
		&run.SweepHash,
		&run.Simulator,
		&run.Status,
		&run.Progress,
		&errorMsg,
		&archiveKey,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt)

	if err != nil {
		return nil, err
	}

	if errorMsg.Valid {
		run.ErrorMsg = &errorMsg.String
	}
	if archiveKey.Valid {
		run.ArchiveKey = &archiveKey.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

// GetByID retrieves a run by ID
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)
	return scanRun(row.Scan)
}

// ListByDut retrieves the runs of a device, newest first
func (r *PostgresRunRepository) ListByDut(ctx context.Context, dutName string) ([]*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE dut_name = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, dutName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestCompleted retrieves the most recent completed run for a device/sweep
// fingerprint pair. sql.ErrNoRows means no run finished yet.
func (r *PostgresRunRepository) LatestCompleted(ctx context.Context, dutHash, sweepHash string) (*models.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM runs
		WHERE dut_hash = $1 AND sweep_hash = $2 AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, dutHash, sweepHash)
	return scanRun(row.Scan)
}

// UpdateStatus updates the status and progress of a run
func (r *PostgresRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE runs
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	_, err := r.db.ExecContext(ctx, query, status, progress, id)
	return err
}

// UpdateError marks a run failed with an error message
func (r *PostgresRunRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE runs
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, errorMsg, id)
	return err
}

// SetArchiveKey stores the object key of the archived simulation folder
func (r *PostgresRunRepository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `
		UPDATE runs
		SET archive_key = $1, updated_at = NOW()
		WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, key, id)
	return err
}
