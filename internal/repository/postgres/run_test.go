package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/smxlab/dmkit/pkg/models"
)

const runsSchema = `
	CREATE TABLE runs (
		id UUID PRIMARY KEY,
		dut_name TEXT NOT NULL,
		dut_hash CHAR(32) NOT NULL,
		sweep_name TEXT NOT NULL,
		sweep_hash CHAR(32) NOT NULL,
		simulator TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INT NOT NULL DEFAULT 0,
		error_message TEXT,
		archive_key TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`

// setupRunRepo starts a PostgreSQL container with the runs table applied
func setupRunRepo(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	container, err := pgContainer.Run(ctx,
		"postgres:15-alpine",
		pgContainer.WithDatabase("dmkit_test"),
		pgContainer.WithUsername("testuser"),
		pgContainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(context.Background())) })

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, runsSchema)
	require.NoError(t, err)

	return db
}

func newRun(dutName, sweepName string) *models.Run {
	now := time.Now().UTC()
	return &models.Run{
		ID:        uuid.New().String(),
		DutName:   dutName,
		DutHash:   "0123456789abcdef0123456789abcdef",
		SweepName: sweepName,
		SweepHash: "fedcba9876543210fedcba9876543210",
		Simulator: "ngspice",
		Status:    models.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRunRepository_Lifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupRunRepo(t)
	repo := NewPostgresRunRepository(db)
	ctx := context.Background()

	run := newRun("npn1", "fgummel")
	require.NoError(t, repo.Create(ctx, run))

	id, err := uuid.Parse(run.ID)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run.DutName, got.DutName)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusRunning, 70))

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)
	assert.Equal(t, 70, got.Progress)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, repo.UpdateStatus(ctx, id, models.StatusCompleted, 100))

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	key := "archives/npn1_" + got.DutHash + "/fgummel_" + got.SweepHash + ".zip"
	require.NoError(t, repo.SetArchiveKey(ctx, id, key))

	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.ArchiveKey)
	assert.Equal(t, key, *got.ArchiveKey)
}

func TestRunRepository_UpdateError_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupRunRepo(t)
	repo := NewPostgresRunRepository(db)
	ctx := context.Background()

	run := newRun("npn1", "output")
	require.NoError(t, repo.Create(ctx, run))

	id, err := uuid.Parse(run.ID)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateError(ctx, id, "simulation log reports errors"))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMsg)
	assert.Equal(t, "simulation log reports errors", *got.ErrorMsg)
}

func TestRunRepository_ListAndLatest_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := setupRunRepo(t)
	repo := NewPostgresRunRepository(db)
	ctx := context.Background()

	first := newRun("npn1", "fgummel")
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	first.UpdatedAt = first.CreatedAt
	second := newRun("npn1", "fgummel")
	other := newRun("pnp2", "output")

	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, other))

	runs, err := repo.ListByDut(ctx, "npn1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	// No completed run yet
	_, err = repo.LatestCompleted(ctx, first.DutHash, first.SweepHash)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	firstID, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, firstID, models.StatusCompleted, 100))

	secondID, err := uuid.Parse(second.ID)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, secondID, models.StatusCompleted, 100))

	latest, err := repo.LatestCompleted(ctx, first.DutHash, first.SweepHash)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}
