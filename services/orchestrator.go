// services/orchestrator.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gewnthar/pharmascrape/metrics"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/scraper"
)

// Options configures an Orchestrator. Zero values get defaults.
type Options struct {
	BatchSize         int           // concurrent detail fetches per source
	BatchPause        time.Duration // pause between detail batches
	ItemTimeout       time.Duration // bound on one detail fetch
	SourceConcurrency int           // sources running at once, 0 = all

	Standardizer *Standardizer
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// Orchestrator runs sources concurrently and isolates their failures.
type Orchestrator struct {
	opts Options
	std  *Standardizer
	log  *slog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 30 * time.Second
	}
	if opts.BatchPause < 0 {
		opts.BatchPause = 0
	}
	std := opts.Standardizer
	if std == nil {
		std = NewStandardizer(opts.Logger)
	}
	return &Orchestrator{opts: opts, std: std, log: opts.Logger.With("component", "orchestrator")}
}

type sourceOutput struct {
	records []models.PharmacyRecord
	result  models.FetchResult
}

// Run fetches every source and returns all records plus the run summary.
// A failing source never affects the others; the summary says what
// happened to each.
func (o *Orchestrator) Run(ctx context.Context, sources []scraper.Source) ([]models.PharmacyRecord, models.RunSummary) {
	summary := models.RunSummary{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	o.log.Info("run started", "run_id", summary.RunID, "sources", len(sources))

	outs := make([]sourceOutput, len(sources))
	var g errgroup.Group
	if o.opts.SourceConcurrency > 0 {
		g.SetLimit(o.opts.SourceConcurrency)
	}
	for i, src := range sources {
		g.Go(func() error {
			outs[i] = o.runSource(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var records []models.PharmacyRecord
	for _, out := range outs {
		records = append(records, out.records...)
		summary.Add(out.result)
		o.opts.Metrics.ObserveSource(out.result)
	}
	summary.FinishedAt = time.Now().UTC()

	o.log.Info("run finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded,
		"empty", summary.Empty,
		"failed", summary.Failed,
		"records", summary.TotalRecords,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond),
	)
	return records, summary
}

func (o *Orchestrator) runSource(ctx context.Context, src scraper.Source) (out sourceOutput) {
	start := time.Now()
	name := sourceName(src)
	log := o.log.With("source", name)
	out.result = models.FetchResult{Source: name}

	defer func() {
		if r := recover(); r != nil {
			log.Error("source panicked", "panic", r, "stack", string(debug.Stack()))
			out.records = nil
			out.result.Status = models.StatusFailed
			out.result.Count = 0
			out.result.Error = fmt.Sprintf("panic: %v", r)
		}
		out.result.DurationMS = time.Since(start).Milliseconds()
	}()

	locs, err := src.FetchLocations(ctx)
	if err != nil {
		log.Error("fetching locations failed", "err", err)
		out.result.Status = models.StatusFailed
		out.result.Error = err.Error()
		return out
	}
	out.result.Locations = len(locs)
	if len(locs) == 0 {
		log.Info("source returned no locations")
		out.result.Status = models.StatusEmpty
		return out
	}

	records, failed := o.fetchItems(ctx, src, locs, log)
	out.result.ItemsFailed = failed
	if len(records) == 0 {
		log.Warn("every location failed", "locations", len(locs))
	}

	out.records = records
	out.result.Status = models.StatusSucceeded
	out.result.Count = len(records)
	log.Info("source finished", "records", len(records), "items_failed", failed,
		"duration", time.Since(start).Round(time.Millisecond))
	return out
}

// fetchItems processes locations in bounded batches. Failed items are
// logged and dropped; the order of the surviving records follows locs.
func (o *Orchestrator) fetchItems(ctx context.Context, src scraper.Source, locs []scraper.RawLocation, log *slog.Logger) ([]models.PharmacyRecord, int) {
	df, hasDetails := src.(scraper.DetailFetcher)
	results := make([]*models.PharmacyRecord, len(locs))

	for lo := 0; lo < len(locs); lo += o.opts.BatchSize {
		if lo > 0 && hasDetails {
			if err := sleepCtx(ctx, o.opts.BatchPause); err != nil {
				log.Warn("run cancelled between batches", "done", lo, "locations", len(locs))
				break
			}
		}
		hi := min(lo+o.opts.BatchSize, len(locs))

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				rec, err := o.processItem(ctx, src, df, locs[i])
				if err != nil {
					log.Warn("location dropped", "id", locs[i].ID, "err", err)
					return nil
				}
				results[i] = &rec
				return nil
			})
		}
		_ = g.Wait()
	}

	records := make([]models.PharmacyRecord, 0, len(locs))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records, len(locs) - len(records)
}

var errNoName = errors.New("record has no name")

func (o *Orchestrator) processItem(ctx context.Context, src scraper.Source, df scraper.DetailFetcher, loc scraper.RawLocation) (rec models.PharmacyRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	raw := scraper.RawDetail{Location: loc, Data: loc.Data}
	if df != nil {
		if raw, err = o.fetchDetails(ctx, df, loc); err != nil {
			return rec, err
		}
	}
	partial, err := src.Extract(raw)
	if err != nil {
		return rec, fmt.Errorf("extract: %w", err)
	}
	rec = o.std.Standardize(partial, src.Name())
	if rec.Name == "" {
		return rec, errNoName
	}
	return rec, nil
}

type detailResult struct {
	raw scraper.RawDetail
	err error
}

// fetchDetails bounds one detail fetch by the item timeout even when the
// adapter ignores its context.
func (o *Orchestrator) fetchDetails(ctx context.Context, df scraper.DetailFetcher, loc scraper.RawLocation) (scraper.RawDetail, error) {
	ictx, cancel := context.WithTimeout(ctx, o.opts.ItemTimeout)
	defer cancel()

	ch := make(chan detailResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- detailResult{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		raw, err := df.FetchDetails(ictx, loc)
		ch <- detailResult{raw: raw, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return res.raw, fmt.Errorf("fetch details: %w", res.err)
		}
		return res.raw, nil
	case <-ictx.Done():
		return scraper.RawDetail{}, fmt.Errorf("fetch details: %w", ictx.Err())
	}
}

func sourceName(src scraper.Source) (name string) {
	defer func() {
		if recover() != nil {
			name = fmt.Sprintf("%T", src)
		}
	}()
	return src.Name()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
