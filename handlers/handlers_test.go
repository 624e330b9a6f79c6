package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gewnthar/pharmascrape/metrics"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/services"
)

type fakeRuns struct {
	startErr   error
	started    [][]string
	startCtx   context.Context
	running    bool
	names      []string
	latest     *models.RunSummary
	history    []models.RunSummary
	historyErr error
	limit      int
}

func (f *fakeRuns) Start(ctx context.Context, selected []string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.startCtx = ctx
	f.started = append(f.started, selected)
	return nil
}

func (f *fakeRuns) Running() bool         { return f.running }
func (f *fakeRuns) SourceNames() []string { return f.names }

func (f *fakeRuns) Latest() (models.RunSummary, bool) {
	if f.latest == nil {
		return models.RunSummary{}, false
	}
	return *f.latest, true
}

func (f *fakeRuns) History(_ context.Context, limit int) ([]models.RunSummary, error) {
	f.limit = limit
	return f.history, f.historyErr
}

func newTestAPI(runs *fakeRuns) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAPI(context.Background(), runs, metrics.New().Handler(), log).Routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, rd))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestStartRun(t *testing.T) {
	runs := &fakeRuns{}
	h := newTestAPI(runs)

	rec := do(t, h, http.MethodPost, "/api/admin/run", `{"sources":["acme","zed"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if len(runs.started) != 1 || strings.Join(runs.started[0], ",") != "acme,zed" {
		t.Errorf("started = %v", runs.started)
	}
	if runs.startCtx != context.Background() {
		t.Error("background run should not use the request context")
	}

	rec = do(t, h, http.MethodPost, "/api/admin/run", "")
	if rec.Code != http.StatusAccepted || len(runs.started) != 2 || runs.started[1] != nil {
		t.Errorf("empty body: status = %d, started = %v", rec.Code, runs.started)
	}
}

func TestStartRunErrors(t *testing.T) {
	cases := []struct {
		name   string
		method string
		body   string
		err    error
		want   int
	}{
		{"wrong method", http.MethodGet, "", nil, http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, `{"sources":`, nil, http.StatusBadRequest},
		{"in progress", http.MethodPost, "", services.ErrRunInProgress, http.StatusConflict},
		{"no sources", http.MethodPost, "", services.ErrNoSources, http.StatusServiceUnavailable},
		{"other", http.MethodPost, "", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestAPI(&fakeRuns{startErr: tc.err}), tc.method, "/api/admin/run", tc.body)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] == "" {
				t.Errorf("missing error message: %v", body)
			}
		})
	}
}

func TestHealthAndSources(t *testing.T) {
	finished := time.Date(2026, 5, 1, 2, 3, 4, 0, time.UTC)
	runs := &fakeRuns{
		running: true,
		names:   []string{"acme", "zed"},
		latest:  &models.RunSummary{RunID: "r1", FinishedAt: finished},
	}
	h := newTestAPI(runs)

	var health models.HealthResponse
	decode(t, do(t, h, http.MethodGet, "/api/health", ""), &health)
	if health.Status != "ok" || !health.Running || health.Sources != 2 || health.LastRunID != "r1" ||
		health.LastRunEnd == nil || !health.LastRunEnd.Equal(finished) {
		t.Errorf("health = %+v", health)
	}

	var sources models.SourcesResponse
	decode(t, do(t, h, http.MethodGet, "/api/sources", ""), &sources)
	if strings.Join(sources.Sources, ",") != "acme,zed" {
		t.Errorf("sources = %v", sources.Sources)
	}
}

func TestLatestRun(t *testing.T) {
	runs := &fakeRuns{}
	h := newTestAPI(runs)
	if rec := do(t, h, http.MethodGet, "/api/runs/latest", ""); rec.Code != http.StatusNotFound {
		t.Errorf("before any run: status = %d", rec.Code)
	}

	runs.latest = &models.RunSummary{RunID: "r2", Attempted: 3, Results: []models.FetchResult{
		{Source: "acme", Status: models.StatusSucceeded, Count: 4},
	}}
	var got models.RunSummary
	rec := do(t, h, http.MethodGet, "/api/runs/latest", "")
	decode(t, rec, &got)
	if rec.Code != http.StatusOK || got.RunID != "r2" || len(got.Results) != 1 || got.Results[0].Status != models.StatusSucceeded {
		t.Errorf("latest = %+v", got)
	}
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{}
	h := newTestAPI(runs)

	rec := do(t, h, http.MethodGet, "/api/runs", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" || runs.limit != 20 {
		t.Errorf("empty history: status = %d body = %s limit = %d", rec.Code, rec.Body, runs.limit)
	}

	runs.history = []models.RunSummary{{RunID: "b"}, {RunID: "a"}}
	var got []models.RunSummary
	decode(t, do(t, h, http.MethodGet, "/api/runs?limit=5", ""), &got)
	if len(got) != 2 || got[0].RunID != "b" || runs.limit != 5 {
		t.Errorf("history = %+v, limit = %d", got, runs.limit)
	}

	if rec := do(t, h, http.MethodGet, "/api/runs?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d", rec.Code)
	}
	runs.historyErr = errors.New("db down")
	if rec := do(t, h, http.MethodGet, "/api/runs", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("store error: status = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestAPI(&fakeRuns{}), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
