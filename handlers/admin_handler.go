// handlers/admin_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/services"
)

// RunController is the part of services.Runner the API drives.
type RunController interface {
	Start(ctx context.Context, selected []string) error
	Running() bool
	SourceNames() []string
	Latest() (models.RunSummary, bool)
	History(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// API serves the admin and run-status endpoints.
type API struct {
	runs    RunController
	metrics http.Handler
	baseCtx context.Context // background runs outlive the request
	log     *slog.Logger
}

func NewAPI(baseCtx context.Context, runs RunController, metrics http.Handler, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	return &API{runs: runs, metrics: metrics, baseCtx: baseCtx, log: log.With("component", "api")}
}

// Routes registers every endpoint on a fresh mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", a.Health)
	mux.HandleFunc("/api/sources", a.Sources)
	mux.HandleFunc("/api/admin/run", a.StartRun)
	mux.HandleFunc("/api/runs/latest", a.LatestRun)
	mux.HandleFunc("/api/runs", a.ListRuns)
	mux.Handle("/metrics", a.metrics)
	return mux
}

func (a *API) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		a.log.Error("marshalling JSON response", "err", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (a *API) respondWithError(w http.ResponseWriter, code int, message string) {
	a.log.Warn("api error", "status", code, "message", message)
	a.respondWithJSON(w, code, map[string]string{"error": message})
}

// StartRun handles POST /api/admin/run with an optional body
// {"sources": ["brand", ...]}. The run continues in the background.
func (a *API) StartRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req models.RunRequest
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		a.respondWithError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	err := a.runs.Start(a.baseCtx, req.Sources)
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		a.respondWithError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, services.ErrNoSources):
		a.respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		a.respondWithError(w, http.StatusInternalServerError, "Failed to start run: "+err.Error())
		return
	}

	a.log.Info("run started via api", "sources", req.Sources)
	a.respondWithJSON(w, http.StatusAccepted, models.RunAccepted{Message: "Run started.", Sources: req.Sources})
}

func (a *API) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	a.respondWithError(w, http.StatusMethodNotAllowed, "Only "+allowed+" method is allowed")
}
