package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/smxlab/dmkit/internal/api/handlers"
	"github.com/smxlab/dmkit/internal/repository"
	"github.com/smxlab/dmkit/internal/storage"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(router *chi.Mux, api huma.API, runRepo repository.RunRepository, s3Service storage.S3Service) {
	// Initialize handlers
	runHandler := handlers.NewRunHandler(runRepo, s3Service)

	// Register run routes
	huma.Register(api, huma.Operation{
		OperationID: "createRun",
		Method:      http.MethodPost,
		Path:        "/api/runs",
		Summary:     "Register a new run",
		Description: "Creates a new simulation run record",
		Tags:        []string{"Runs"},
	}, runHandler.CreateRun)

	huma.Register(api, huma.Operation{
		OperationID: "getRunStatus",
		Method:      http.MethodGet,
		Path:        "/api/runs/{id}/status",
		Summary:     "Get run status",
		Description: "Returns the current status and progress of a run",
		Tags:        []string{"Runs"},
	}, runHandler.GetRunStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getRunResults",
		Method:      http.MethodGet,
		Path:        "/api/runs/{id}/results",
		Summary:     "Get run results",
		Description: "Returns the archived result location of a completed run",
		Tags:        []string{"Runs"},
	}, runHandler.GetRunResults)

	huma.Register(api, huma.Operation{
		OperationID: "listRuns",
		Method:      http.MethodGet,
		Path:        "/api/runs",
		Summary:     "List runs",
		Description: "Lists the runs of a device, newest first",
		Tags:        []string{"Runs"},
	}, runHandler.ListRuns)
}
