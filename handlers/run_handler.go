// handlers/run_handler.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gewnthar/pharmascrape/models"
)

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w, http.MethodGet)
		return
	}
	resp := models.HealthResponse{
		Status:  "ok",
		Running: a.runs.Running(),
		Sources: len(a.runs.SourceNames()),
	}
	if last, ok := a.runs.Latest(); ok {
		resp.LastRunID = last.RunID
		resp.LastRunEnd = &last.FinishedAt
	}
	a.respondWithJSON(w, http.StatusOK, resp)
}

func (a *API) Sources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w, http.MethodGet)
		return
	}
	a.respondWithJSON(w, http.StatusOK, models.SourcesResponse{Sources: a.runs.SourceNames()})
}

// LatestRun returns the last finished run of this process, 404 before any.
func (a *API) LatestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w, http.MethodGet)
		return
	}
	last, ok := a.runs.Latest()
	if !ok {
		a.respondWithError(w, http.StatusNotFound, "No run has finished yet")
		return
	}
	a.respondWithJSON(w, http.StatusOK, last)
}

// ListRuns handles GET /api/runs?limit=N, newest first.
func (a *API) ListRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.methodNotAllowed(w, http.MethodGet)
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.respondWithError(w, http.StatusBadRequest, "Invalid 'limit': must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := a.runs.History(r.Context(), limit)
	if err != nil {
		a.respondWithError(w, http.StatusInternalServerError, "Failed to load run history: "+err.Error())
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	a.respondWithJSON(w, http.StatusOK, runs)
}
