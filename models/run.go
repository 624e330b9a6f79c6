// models/run.go
package models

import "time"

// FetchStatus is the terminal state of one source in a run.
type FetchStatus string

const (
	StatusSucceeded FetchStatus = "Succeeded"
	StatusEmpty     FetchStatus = "Empty"
	StatusFailed    FetchStatus = "Failed"
)

// FetchResult is the outcome of one source.
type FetchResult struct {
	Source      string      `db:"source" json:"source"`
	Status      FetchStatus `db:"status" json:"status"`
	Count       int         `db:"record_count" json:"count"`
	Error       string      `db:"error" json:"error,omitempty"`
	Locations   int         `db:"locations" json:"locations"`
	ItemsFailed int         `db:"items_failed" json:"items_failed"`
	DurationMS  int64       `db:"duration_ms" json:"duration_ms"`
}

// RunSummary is built once per orchestrator run and handed to the caller.
type RunSummary struct {
	RunID        string        `db:"run_id" json:"run_id"`
	StartedAt    time.Time     `db:"started_at" json:"started_at"`
	FinishedAt   time.Time     `db:"finished_at" json:"finished_at"`
	Attempted    int           `db:"attempted" json:"attempted"`
	Succeeded    int           `db:"succeeded" json:"succeeded"`
	Failed       int           `db:"failed" json:"failed"`
	Empty        int           `db:"empty" json:"empty"`
	TotalRecords int           `db:"total_records" json:"total_records"`
	Results      []FetchResult `json:"results"`
}

// Add records one source result and updates the counters.
func (s *RunSummary) Add(r FetchResult) {
	s.Attempted++
	switch r.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusEmpty:
		s.Empty++
	case StatusFailed:
		s.Failed++
	}
	s.TotalRecords += r.Count
	s.Results = append(s.Results, r)
}

// Result returns the result for source, if present.
func (s RunSummary) Result(source string) (FetchResult, bool) {
	for _, r := range s.Results {
		if r.Source == source {
			return r, true
		}
	}
	return FetchResult{}, false
}
