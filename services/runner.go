// services/runner.go
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gewnthar/pharmascrape/database"
	"github.com/gewnthar/pharmascrape/metrics"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/scraper"
)

var (
	ErrRunInProgress = errors.New("a run is already in progress")
	ErrNoSources     = errors.New("no sources configured")
)

// Sink persists a list of records under a name.
type Sink interface {
	Save(records []models.PharmacyRecord, name string) error
}

type RunnerOptions struct {
	Sources      []scraper.Source
	Orchestrator *Orchestrator
	Sink         Sink   // nil disables export
	CombinedName string // file name for the all-brands export
	Store        database.RunStore
	Metrics      *metrics.Collector
	Logger       *slog.Logger
	HistorySize  int // summaries kept in memory when Store is nil
}

// Runner is the entry point for a full run: it picks sources, runs the
// orchestrator, exports and records the outcome. One run at a time.
type Runner struct {
	opts    RunnerOptions
	sources []scraper.Source
	log     *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.RWMutex
	history []models.RunSummary // newest last
}

func NewRunner(opts RunnerOptions) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Orchestrator == nil {
		opts.Orchestrator = NewOrchestrator(Options{Metrics: opts.Metrics, Logger: opts.Logger})
	}
	if opts.CombinedName == "" {
		opts.CombinedName = "all_pharmacies"
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 20
	}
	return &Runner{
		opts:    opts,
		sources: opts.Sources,
		log:     opts.Logger.With("component", "runner"),
	}
}

// SourceNames lists the registered sources in registration order.
func (r *Runner) SourceNames() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, sourceName(s))
	}
	return names
}

func (r *Runner) Running() bool { return r.running.Load() }

// RunAll runs the selected sources, or all of them when selected is empty,
// and blocks until the run is exported and recorded.
func (r *Runner) RunAll(ctx context.Context, selected []string) (models.RunSummary, error) {
	if len(r.sources) == 0 {
		return models.RunSummary{}, ErrNoSources
	}
	if !r.running.CompareAndSwap(false, true) {
		return models.RunSummary{}, ErrRunInProgress
	}
	defer r.running.Store(false)
	return r.run(ctx, selected), nil
}

// Start is RunAll in the background. It returns once the run is claimed.
func (r *Runner) Start(ctx context.Context, selected []string) error {
	if len(r.sources) == 0 {
		return ErrNoSources
	}
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		r.run(ctx, selected)
	}()
	return nil
}

// Wait blocks until a background run started with Start has finished.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) run(ctx context.Context, selected []string) models.RunSummary {
	done := r.opts.Metrics.RunStarted()
	defer done()

	sources, unknown := r.pick(selected)
	records, summary := r.opts.Orchestrator.Run(ctx, sources)

	for _, name := range unknown {
		cerr := &scraper.ConfigError{Source: name, Reason: "no such source"}
		r.log.Error("unknown source requested", "source", name)
		res := models.FetchResult{Source: name, Status: models.StatusFailed, Error: cerr.Error()}
		summary.Add(res)
		r.opts.Metrics.ObserveSource(res)
	}

	r.export(records, summary)
	r.record(ctx, summary)
	return summary
}

// pick keeps registration order; unknown names are returned separately.
func (r *Runner) pick(selected []string) ([]scraper.Source, []string) {
	if len(selected) == 0 {
		return r.sources, nil
	}
	want := make(map[string]bool, len(selected))
	var order []string
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" || want[strings.ToLower(s)] {
			continue
		}
		want[strings.ToLower(s)] = true
		order = append(order, s)
	}

	var picked []scraper.Source
	found := map[string]bool{}
	for _, src := range r.sources {
		key := strings.ToLower(sourceName(src))
		if want[key] {
			picked = append(picked, src)
			found[key] = true
		}
	}
	var unknown []string
	for _, s := range order {
		if !found[strings.ToLower(s)] {
			unknown = append(unknown, s)
		}
	}
	return picked, unknown
}

// fileNamer is implemented by sinks that map names onto files.
type fileNamer interface {
	FileName(name string) string
}

// sameTarget reports whether saving a and b would write the same place.
func sameTarget(sink Sink, a, b string) bool {
	if n, ok := sink.(fileNamer); ok {
		return n.FileName(a) == n.FileName(b)
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// export writes one file per brand with records, plus the combined file.
// Failures are logged; the run result stands regardless.
func (r *Runner) export(records []models.PharmacyRecord, summary models.RunSummary) {
	if r.opts.Sink == nil {
		return
	}
	byBrand := make(map[string][]models.PharmacyRecord)
	for _, rec := range records {
		byBrand[rec.Brand] = append(byBrand[rec.Brand], rec)
	}
	for _, res := range summary.Results {
		recs := byBrand[res.Source]
		if len(recs) == 0 {
			continue
		}
		name := res.Source
		if sameTarget(r.opts.Sink, name, r.opts.CombinedName) {
			name += "_brand"
			r.log.Warn("brand export would overwrite the combined file, renaming",
				"source", res.Source, "name", name)
		}
		if err := r.opts.Sink.Save(recs, name); err != nil {
			r.log.Error("export failed", "source", res.Source, "err", err)
		}
	}
	if err := r.opts.Sink.Save(records, r.opts.CombinedName); err != nil {
		r.log.Error("combined export failed", "err", err)
	}
}

func (r *Runner) record(ctx context.Context, summary models.RunSummary) {
	if r.opts.Store != nil {
		// A cancelled run is still worth keeping.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.opts.Store.SaveRun(sctx, summary); err != nil {
			r.log.Error("saving run history failed", "run_id", summary.RunID, "err", err)
		}
	}

	r.mu.Lock()
	r.history = append(r.history, summary)
	if n := len(r.history) - r.opts.HistorySize; n > 0 {
		r.history = append([]models.RunSummary(nil), r.history[n:]...)
	}
	r.mu.Unlock()
}

// Latest returns the most recent summary of this process.
func (r *Runner) Latest() (models.RunSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return models.RunSummary{}, false
	}
	return r.history[len(r.history)-1], true
}

// History returns up to limit summaries, newest first. It reads the store
// when one is configured and falls back to memory otherwise.
func (r *Runner) History(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if r.opts.Store != nil {
		return r.opts.Store.RecentRuns(ctx, limit)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.history) {
		limit = len(r.history)
	}
	out := make([]models.RunSummary, 0, limit)
	for i := len(r.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.history[i])
	}
	return out, nil
}
