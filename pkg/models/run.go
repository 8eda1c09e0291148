package models

import (
	"time"
)

// Run statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run represents one simulation run of a device/sweep pair
type Run struct {
	ID          string     `json:"id"`
	DutName     string     `json:"dut_name"`
	DutHash     string     `json:"dut_hash"`
	SweepName   string     `json:"sweep_name"`
	SweepHash   string     `json:"sweep_hash"`
	Simulator   string     `json:"simulator"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	ErrorMsg    *string    `json:"error_message,omitempty"`
	ArchiveKey  *string    `json:"archive_key,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateRunRequest represents a request to register a new simulation run
type CreateRunRequest struct {
	Body struct {
		DutName   string `json:"dut_name" minLength:"1" maxLength:"100" required:"true" doc:"Device under test name"`
		DutHash   string `json:"dut_hash" minLength:"32" maxLength:"32" required:"true" doc:"Device input fingerprint"`
		SweepName string `json:"sweep_name" minLength:"1" maxLength:"100" required:"true" doc:"Sweep name"`
		SweepHash string `json:"sweep_hash" minLength:"32" maxLength:"32" required:"true" doc:"Sweep definition fingerprint"`
		Simulator string `json:"simulator" enum:"ngspice,xyce,hdev" required:"true" doc:"Simulator backend"`
	}
}

// CreateRunResponseBody is the body of the create run response
type CreateRunResponseBody struct {
	ID     string `json:"id" doc:"Run unique identifier"`
	Status string `json:"status" doc:"Initial run status"`
}

// CreateRunResponse represents the response from registering a run
type CreateRunResponse struct {
	Body CreateRunResponseBody
}

// GetRunStatusRequest represents a request to get run status
type GetRunStatusRequest struct {
	ID string `path:"id" doc:"Run ID"`
}

// GetRunStatusResponseBody is the body of the status response
type GetRunStatusResponseBody struct {
	ID       string `json:"id" doc:"Run ID"`
	Status   string `json:"status" enum:"pending,running,completed,failed" doc:"Run status"`
	Progress int    `json:"progress" minimum:"0" maximum:"100" doc:"Run progress percentage"`
	Message  string `json:"message,omitempty" doc:"Human-readable status message"`
}

// GetRunStatusResponse represents the current status of a run
type GetRunStatusResponse struct {
	Body GetRunStatusResponseBody
}

// GetRunResultsRequest represents a request to get run results
type GetRunResultsRequest struct {
	ID string `path:"id" doc:"Run ID"`
}

// GetRunResultsResponseBody is the body of the results response
type GetRunResultsResponseBody struct {
	ID          string    `json:"id" doc:"Run ID"`
	DutName     string    `json:"dut_name" doc:"Device under test name"`
	SweepName   string    `json:"sweep_name" doc:"Sweep name"`
	Simulator   string    `json:"simulator" doc:"Simulator backend"`
	DownloadURL string    `json:"download_url,omitempty" doc:"Pre-signed URL for the archived simulation folder"`
	ExpiresIn   int       `json:"expires_in,omitempty" doc:"URL expiration time in seconds"`
	CreatedAt   time.Time `json:"created_at" doc:"Run creation timestamp"`
}

// GetRunResultsResponse represents the results of a completed run
type GetRunResultsResponse struct {
	Body GetRunResultsResponseBody
}

// ListRunsRequest represents a request to list runs of a device
type ListRunsRequest struct {
	DutName string `query:"dut_name" doc:"Filter by device name"`
}

// ListRunsResponseBody is the body of the list response
type ListRunsResponseBody struct {
	Runs []*Run `json:"runs" doc:"Runs, newest first"`
}

// ListRunsResponse represents a list of runs
type ListRunsResponse struct {
	Body ListRunsResponseBody
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}
