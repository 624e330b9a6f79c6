package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gewnthar/pharmascrape/hours"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/scraper"
)

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testOrchestrator(batch int) *Orchestrator {
	return NewOrchestrator(Options{
		BatchSize:   batch,
		BatchPause:  time.Millisecond,
		ItemTimeout: 200 * time.Millisecond,
		Logger:      quietLog(),
	})
}

// listSource returns n locations and extracts them directly.
type listSource struct {
	name    string
	n       int
	listErr error
	panics  bool
}

func (s *listSource) Name() string { return s.name }

func (s *listSource) FetchLocations(context.Context) ([]scraper.RawLocation, error) {
	if s.panics {
		panic("adapter bug")
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	locs := make([]scraper.RawLocation, s.n)
	for i := range locs {
		locs[i] = scraper.RawLocation{ID: fmt.Sprint(i + 1), Data: i + 1}
	}
	return locs, nil
}

func (s *listSource) Extract(raw scraper.RawDetail) (models.PartialRecord, error) {
	return models.PartialRecord{
		Name:  fmt.Sprintf("%s store %v", s.name, raw.Data),
		Hours: hours.Text("Mon-Fri 9am-5pm"),
	}, nil
}

// detailSource fetches details per location. Items in fail return an
// error, items in panicAt panic and items in hang block until the context
// is done.
type detailSource struct {
	listSource
	fail    map[int]bool
	panicAt map[int]bool
	hang    map[int]bool

	inFlight, maxInFlight atomic.Int32
	mu                    sync.Mutex
	fetched               []string
}

func (s *detailSource) FetchDetails(ctx context.Context, loc scraper.RawLocation) (scraper.RawDetail, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxInFlight.Load()
		if cur <= m || s.maxInFlight.CompareAndSwap(m, cur) {
			break
		}
	}
	s.mu.Lock()
	s.fetched = append(s.fetched, loc.ID)
	s.mu.Unlock()

	i := loc.Data.(int)
	switch {
	case s.fail[i]:
		return scraper.RawDetail{}, &scraper.NetworkError{URL: "http://example/" + loc.ID, Status: 500}
	case s.panicAt[i]:
		panic("nil map in detail parser")
	case s.hang[i]:
		<-ctx.Done()
		return scraper.RawDetail{}, ctx.Err()
	}
	time.Sleep(2 * time.Millisecond)
	return scraper.RawDetail{Location: loc, Data: i}, nil
}

func TestRunIsolatesFailingSource(t *testing.T) {
	sources := []scraper.Source{
		&listSource{name: "one", n: 3},
		&listSource{name: "two", n: 2},
		&listSource{name: "three", panics: true},
		&listSource{name: "four", n: 4},
		&listSource{name: "five", n: 1},
	}
	records, summary := testOrchestrator(5).Run(context.Background(), sources)

	if len(records) != 10 || summary.TotalRecords != 10 {
		t.Fatalf("records = %d, total = %d, want 10", len(records), summary.TotalRecords)
	}
	if summary.Attempted != 5 || summary.Succeeded != 4 || summary.Failed != 1 || summary.Empty != 0 {
		t.Errorf("summary counts = %+v", summary)
	}
	r, ok := summary.Result("three")
	if !ok || r.Status != models.StatusFailed || r.Error == "" || r.Count != 0 {
		t.Errorf("source three = %+v", r)
	}
	for _, rec := range records {
		if rec.Brand == "three" {
			t.Errorf("record from failed source: %+v", rec)
		}
		if len(rec.TradingHours) != 7 {
			t.Errorf("record %s has %d schedule days", rec.Name, len(rec.TradingHours))
		}
	}
	if summary.RunID == "" || summary.FinishedAt.Before(summary.StartedAt) {
		t.Errorf("run id / timestamps not set: %+v", summary)
	}
}

func TestRunListErrorIsFailed(t *testing.T) {
	_, summary := testOrchestrator(5).Run(context.Background(), []scraper.Source{
		&listSource{name: "down", listErr: &scraper.NetworkError{URL: "http://x", Status: 503}},
		scraper.Broken{Brand: "miswired", Err: &scraper.ConfigError{Source: "miswired", Reason: "unknown type"}},
	})
	for _, name := range []string{"down", "miswired"} {
		r, _ := summary.Result(name)
		if r.Status != models.StatusFailed || r.Error == "" {
			t.Errorf("%s = %+v", name, r)
		}
	}
}

func TestBatchedDetailsDropFailedItems(t *testing.T) {
	src := &detailSource{
		listSource: listSource{name: "batched", n: 10},
		fail:       map[int]bool{2: true},
		panicAt:    map[int]bool{7: true},
	}
	records, summary := testOrchestrator(3).Run(context.Background(), []scraper.Source{src})

	if len(records) != 8 {
		t.Fatalf("records = %d, want 8", len(records))
	}
	r, _ := summary.Result("batched")
	if r.Status != models.StatusSucceeded || r.Count != 8 || r.ItemsFailed != 2 || r.Locations != 10 {
		t.Errorf("result = %+v", r)
	}
	if len(src.fetched) != 10 {
		t.Errorf("fetched %d details, want 10", len(src.fetched))
	}
	if m := src.maxInFlight.Load(); m > 3 {
		t.Errorf("max in-flight detail fetches = %d, batch size is 3", m)
	}
	for _, rec := range records {
		if rec.Name == "batched store 2" || rec.Name == "batched store 7" {
			t.Errorf("failed item survived: %s", rec.Name)
		}
	}
	if records[0].Name != "batched store 1" || records[7].Name != "batched store 10" {
		t.Errorf("records out of location order: first=%s last=%s", records[0].Name, records[7].Name)
	}
}

func TestItemTimeoutDropsOnlyThatItem(t *testing.T) {
	src := &detailSource{
		listSource: listSource{name: "slow", n: 4},
		hang:       map[int]bool{3: true},
	}
	start := time.Now()
	records, summary := testOrchestrator(5).Run(context.Background(), []scraper.Source{src})
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if r, _ := summary.Result("slow"); r.Status != models.StatusSucceeded || r.ItemsFailed != 1 {
		t.Errorf("result = %+v", r)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("run took %s, item timeout not applied", time.Since(start))
	}
}

func TestAllItemsFailedStaysSucceeded(t *testing.T) {
	src := &detailSource{
		listSource: listSource{name: "broken", n: 2},
		fail:       map[int]bool{1: true, 2: true},
	}
	records, summary := testOrchestrator(5).Run(context.Background(), []scraper.Source{src})
	r, _ := summary.Result("broken")
	if len(records) != 0 || r.Status != models.StatusSucceeded || r.Count != 0 || r.ItemsFailed != 2 || r.Error != "" {
		t.Errorf("records=%d result=%+v", len(records), r)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestEmptySource(t *testing.T) {
	_, summary := testOrchestrator(5).Run(context.Background(), []scraper.Source{&listSource{name: "none"}})
	r, _ := summary.Result("none")
	if r.Status != models.StatusEmpty || r.Error != "" || summary.Empty != 1 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestNamelessRecordsAreDropped(t *testing.T) {
	src := &namelessSource{listSource{name: "blank", n: 3}}
	records, summary := testOrchestrator(5).Run(context.Background(), []scraper.Source{src})
	r, _ := summary.Result("blank")
	if len(records) != 2 || r.ItemsFailed != 1 {
		t.Errorf("records=%d result=%+v", len(records), r)
	}
}

type namelessSource struct{ listSource }

func (s *namelessSource) Extract(raw scraper.RawDetail) (models.PartialRecord, error) {
	if raw.Data.(int) == 2 {
		return models.PartialRecord{Name: "   "}, nil
	}
	return s.listSource.Extract(raw)
}

func TestSourceConcurrencyLimit(t *testing.T) {
	var cur, peak atomic.Int32
	gate := func() {
		n := cur.Add(1)
		defer cur.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	var sources []scraper.Source
	for i := 0; i < 6; i++ {
		sources = append(sources, &gatedSource{listSource{name: fmt.Sprint("s", i), n: 1}, gate})
	}
	o := NewOrchestrator(Options{SourceConcurrency: 2, Logger: quietLog()})
	_, summary := o.Run(context.Background(), sources)
	if summary.Succeeded != 6 {
		t.Errorf("succeeded = %d", summary.Succeeded)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrent sources = %d, want <= 2", p)
	}
}

type gatedSource struct {
	listSource
	gate func()
}

func (s *gatedSource) FetchLocations(ctx context.Context) ([]scraper.RawLocation, error) {
	s.gate()
	return s.listSource.FetchLocations(ctx)
}

func TestCancelledRunStillSummarizes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &detailSource{listSource: listSource{name: "late", n: 6}}
	_, summary := NewOrchestrator(Options{BatchSize: 2, BatchPause: time.Second, Logger: quietLog()}).
		Run(ctx, []scraper.Source{src, &listSource{name: "err", listErr: errors.New("boom")}})
	if summary.Attempted != 2 {
		t.Fatalf("attempted = %d", summary.Attempted)
	}
	r, _ := summary.Result("late")
	if r.ItemsFailed == 0 {
		t.Errorf("cancelled run should drop items: %+v", r)
	}
}
