// models/api_models.go
package models

import "time"

// RunRequest is the optional JSON body for POST /api/admin/run.
type RunRequest struct {
	Sources []string `json:"sources"` // brand names; empty means all
}

// RunAccepted is returned when a background run has been started.
type RunAccepted struct {
	Message string   `json:"message"`
	Sources []string `json:"sources,omitempty"`
}

type HealthResponse struct {
	Status     string     `json:"status"`
	Running    bool       `json:"running"`
	Sources    int        `json:"sources"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	LastRunEnd *time.Time `json:"last_run_finished_at,omitempty"`
}

type SourcesResponse struct {
	Sources []string `json:"sources"`
}
