package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/gewnthar/pharmascrape/export"
	"github.com/gewnthar/pharmascrape/metrics"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/scraper"
)

type recordingSink struct {
	mu    sync.Mutex
	saved map[string]int
	fail  string
}

func (s *recordingSink) Save(records []models.PharmacyRecord, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string]int{}
	}
	if name == s.fail {
		return errors.New("disk full")
	}
	s.saved[name] = len(records)
	return nil
}

type memStore struct {
	mu   sync.Mutex
	runs []models.RunSummary
	err  error
}

func (m *memStore) SaveRun(ctx context.Context, s models.RunSummary) error {
	if m.err != nil {
		return m.err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	m.runs = append(m.runs, s)
	m.mu.Unlock()
	return nil
}

func (m *memStore) RecentRuns(_ context.Context, limit int) ([]models.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RunSummary
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Close() {}

func testRunner(sources []scraper.Source, sink Sink, store *memStore) *Runner {
	opts := RunnerOptions{
		Sources:      sources,
		Orchestrator: testOrchestrator(5),
		Sink:         sink,
		CombinedName: "everything",
		Logger:       quietLog(),
	}
	if store != nil {
		opts.Store = store
	}
	return NewRunner(opts)
}

func TestRunAllExportsPerBrandAndCombined(t *testing.T) {
	sink := &recordingSink{}
	store := &memStore{}
	r := testRunner([]scraper.Source{
		&listSource{name: "acme", n: 3},
		&listSource{name: "empty", n: 0},
		&listSource{name: "broken", listErr: errors.New("503")},
		&listSource{name: "zed", n: 2},
	}, sink, store)

	summary, err := r.RunAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if summary.Attempted != 4 || summary.Succeeded != 2 || summary.Empty != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	want := map[string]int{"acme": 3, "zed": 2, "everything": 5}
	if len(sink.saved) != len(want) {
		t.Errorf("saved = %v, want %v", sink.saved, want)
	}
	for name, n := range want {
		if sink.saved[name] != n {
			t.Errorf("saved[%s] = %d, want %d", name, sink.saved[name], n)
		}
	}
	if len(store.runs) != 1 || store.runs[0].RunID != summary.RunID {
		t.Errorf("store runs = %+v", store.runs)
	}
	latest, ok := r.Latest()
	if !ok || latest.RunID != summary.RunID {
		t.Errorf("Latest = %+v, %v", latest, ok)
	}
}

func TestRunAllSelectedAndUnknown(t *testing.T) {
	reg := metrics.New()
	r := NewRunner(RunnerOptions{
		Sources: []scraper.Source{
			&listSource{name: "Acme", n: 1},
			&listSource{name: "other", n: 1},
		},
		Orchestrator: testOrchestrator(5),
		Metrics:      reg,
		Logger:       quietLog(),
	})

	summary, err := r.RunAll(context.Background(), []string{"acme", " ghost ", "ACME"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Attempted != 2 || summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, ok := summary.Result("other"); ok {
		t.Error("unselected source ran")
	}
	ghost, ok := summary.Result("ghost")
	if !ok || ghost.Status != models.StatusFailed || ghost.Error == "" {
		t.Errorf("ghost = %+v", ghost)
	}
}

func TestRunAllWithoutSources(t *testing.T) {
	r := testRunner(nil, nil, nil)
	if _, err := r.RunAll(context.Background(), nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("err = %v, want ErrNoSources", err)
	}
	if err := r.Start(context.Background(), nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("Start err = %v, want ErrNoSources", err)
	}
}

func TestSecondRunIsRejected(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	gate := func() {
		entered <- struct{}{}
		<-release
	}
	r := testRunner([]scraper.Source{&gatedSource{listSource{name: "slow", n: 1}, gate}}, nil, nil)

	if err := r.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered
	if !r.Running() {
		t.Error("Running() = false during a run")
	}
	if _, err := r.RunAll(context.Background(), nil); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("RunAll err = %v, want ErrRunInProgress", err)
	}
	if err := r.Start(context.Background(), nil); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Start err = %v, want ErrRunInProgress", err)
	}

	close(release)
	r.Wait()
	if r.Running() {
		t.Error("Running() = true after Wait")
	}
	if _, ok := r.Latest(); !ok {
		t.Error("background run left no summary")
	}
}

func TestExportAndStoreFailuresDoNotFailRun(t *testing.T) {
	sink := &recordingSink{fail: "acme"}
	store := &memStore{err: errors.New("connection refused")}
	r := testRunner([]scraper.Source{&listSource{name: "acme", n: 2}}, sink, store)

	summary, err := r.RunAll(context.Background(), nil)
	if err != nil || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v, err = %v", summary, err)
	}
	if sink.saved["everything"] != 2 {
		t.Errorf("combined export missing: %v", sink.saved)
	}
	if _, ok := r.Latest(); !ok {
		t.Error("summary not kept after store failure")
	}
}

func TestCancelledRunIsStillStored(t *testing.T) {
	store := &memStore{}
	r := testRunner([]scraper.Source{&listSource{name: "acme", n: 1}}, nil, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RunAll(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if len(store.runs) != 1 {
		t.Errorf("stored %d runs, want 1", len(store.runs))
	}
}

func TestHistoryInMemory(t *testing.T) {
	r := NewRunner(RunnerOptions{
		Sources:      []scraper.Source{&listSource{name: "a", n: 1}},
		Orchestrator: testOrchestrator(5),
		Logger:       quietLog(),
		HistorySize:  2,
	})
	var ids []string
	for i := 0; i < 3; i++ {
		s, err := r.RunAll(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.RunID)
	}
	hist, err := r.History(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[0].RunID != ids[2] || hist[1].RunID != ids[1] {
		t.Errorf("history = %v", hist)
	}
	if one, _ := r.History(context.Background(), 1); len(one) != 1 || one[0].RunID != ids[2] {
		t.Errorf("limited history = %v", one)
	}
}

func TestRunAllWritesCSVFiles(t *testing.T) {
	dir := t.TempDir()
	r := testRunner([]scraper.Source{&listSource{name: "Acme Chemists", n: 2}},
		export.NewCSVSink(dir, quietLog()), nil)
	if _, err := r.RunAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	sink := export.NewCSVSink(dir, nil)
	for _, name := range []string{"Acme Chemists", "everything"} {
		if _, err := os.Stat(sink.FileName(name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestBrandNamedLikeCombinedFileIsRenamed(t *testing.T) {
	sink := &recordingSink{}
	r := testRunner([]scraper.Source{
		&listSource{name: "Everything", n: 2},
		&listSource{name: "acme", n: 1},
	}, sink, nil)
	if _, err := r.RunAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if sink.saved["everything"] != 3 || sink.saved["Everything_brand"] != 2 || sink.saved["acme"] != 1 {
		t.Errorf("saved = %v", sink.saved)
	}
	if _, ok := sink.saved["Everything"]; ok {
		t.Error("brand saved under the combined name")
	}

	dir := t.TempDir()
	csvSink := export.NewCSVSink(dir, quietLog())
	r = testRunner([]scraper.Source{&listSource{name: "everything!", n: 2}}, csvSink, nil)
	if _, err := r.RunAll(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"everything", "everything!_brand"} {
		if _, err := os.Stat(csvSink.FileName(name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}
