package handlers

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smxlab/dmkit/pkg/models"
)

// MockRunRepository implements repository.RunRepository for testing
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *models.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Run), args.Error(1)
}

func (m *MockRunRepository) ListByDut(ctx context.Context, dutName string) ([]*models.Run, error) {
	args := m.Called(ctx, dutName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Run), args.Error(1)
}

func (m *MockRunRepository) LatestCompleted(ctx context.Context, dutHash, sweepHash string) (*models.Run, error) {
	args := m.Called(ctx, dutHash, sweepHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Run), args.Error(1)
}

func (m *MockRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

func (m *MockRunRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockRunRepository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

// MockS3Service implements storage.S3Service for testing
type MockS3Service struct {
	mock.Mock
}

func (m *MockS3Service) Upload(ctx context.Context, key string, body io.Reader) error {
	args := m.Called(ctx, key, body)
	return args.Error(0)
}

func (m *MockS3Service) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockS3Service) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockS3Service) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

const testHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestCreateRun(t *testing.T) {
	mockRepo := new(MockRunRepository)
	mockS3 := new(MockS3Service)
	handler := NewRunHandler(mockRepo, mockS3)

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(run *models.Run) bool {
		return run.DutName == "npn1" && run.Status == models.StatusPending
	})).Return(nil)

	req := &models.CreateRunRequest{}
	req.Body.DutName = "npn1"
	req.Body.DutHash = testHash
	req.Body.SweepName = "fgummel"
	req.Body.SweepHash = testHash
	req.Body.Simulator = "ngspice"

	resp, err := handler.CreateRun(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Body.ID)
	assert.Equal(t, models.StatusPending, resp.Body.Status)
	mockRepo.AssertExpectations(t)
}

func TestGetRunStatus(t *testing.T) {
	mockRepo := new(MockRunRepository)
	mockS3 := new(MockS3Service)
	handler := NewRunHandler(mockRepo, mockS3)

	runID := uuid.New()
	mockRepo.On("GetByID", mock.Anything, runID).Return(&models.Run{
		ID:       runID.String(),
		Status:   models.StatusRunning,
		Progress: 70,
	}, nil)

	resp, err := handler.GetRunStatus(context.Background(), &models.GetRunStatusRequest{ID: runID.String()})
	require.NoError(t, err)

	assert.Equal(t, models.StatusRunning, resp.Body.Status)
	assert.Equal(t, 70, resp.Body.Progress)
	assert.Contains(t, resp.Body.Message, "70%")
}

func TestGetRunStatusInvalidID(t *testing.T) {
	handler := NewRunHandler(new(MockRunRepository), new(MockS3Service))

	_, err := handler.GetRunStatus(context.Background(), &models.GetRunStatusRequest{ID: "not-a-uuid"})
	assert.Error(t, err)
}

func TestGetRunResults(t *testing.T) {
	mockRepo := new(MockRunRepository)
	mockS3 := new(MockS3Service)
	handler := NewRunHandler(mockRepo, mockS3)

	runID := uuid.New()
	archiveKey := "archives/npn1_" + testHash + "/fgummel_" + testHash + ".zip"
	mockRepo.On("GetByID", mock.Anything, runID).Return(&models.Run{
		ID:         runID.String(),
		DutName:    "npn1",
		SweepName:  "fgummel",
		Simulator:  "ngspice",
		Status:     models.StatusCompleted,
		Progress:   100,
		ArchiveKey: &archiveKey,
		CreatedAt:  time.Now(),
	}, nil)
	mockS3.On("GenerateDownloadURL", mock.Anything, archiveKey).
		Return("https://minio.local/presigned", nil)

	resp, err := handler.GetRunResults(context.Background(), &models.GetRunResultsRequest{ID: runID.String()})
	require.NoError(t, err)

	assert.Equal(t, "https://minio.local/presigned", resp.Body.DownloadURL)
	assert.Equal(t, "npn1", resp.Body.DutName)
	mockS3.AssertExpectations(t)
}

func TestGetRunResultsNotCompleted(t *testing.T) {
	mockRepo := new(MockRunRepository)
	handler := NewRunHandler(mockRepo, new(MockS3Service))

	runID := uuid.New()
	mockRepo.On("GetByID", mock.Anything, runID).Return(&models.Run{
		ID:     runID.String(),
		Status: models.StatusRunning,
	}, nil)

	_, err := handler.GetRunResults(context.Background(), &models.GetRunResultsRequest{ID: runID.String()})
	assert.Error(t, err)
}

func TestListRuns(t *testing.T) {
	mockRepo := new(MockRunRepository)
	handler := NewRunHandler(mockRepo, new(MockS3Service))

	mockRepo.On("ListByDut", mock.Anything, "npn1").Return([]*models.Run{
		{ID: uuid.New().String(), DutName: "npn1", Status: models.StatusCompleted},
	}, nil)

	resp, err := handler.ListRuns(context.Background(), &models.ListRunsRequest{DutName: "npn1"})
	require.NoError(t, err)
	assert.Len(t, resp.Body.Runs, 1)

	_, err = handler.ListRuns(context.Background(), &models.ListRunsRequest{})
	assert.Error(t, err)
}
