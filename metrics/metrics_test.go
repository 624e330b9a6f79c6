package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gewnthar/pharmascrape/models"
)

func TestObserveSource(t *testing.T) {
	c := New()
	c.ObserveSource(models.FetchResult{Source: "acme", Status: models.StatusSucceeded, Count: 8, ItemsFailed: 2, DurationMS: 1500})
	c.ObserveSource(models.FetchResult{Source: "acme", Status: models.StatusFailed, Error: "boom"})
	c.ObserveSource(models.FetchResult{Source: "other", Status: models.StatusEmpty})

	if got := testutil.ToFloat64(c.sourceRuns.WithLabelValues("acme", "Succeeded")); got != 1 {
		t.Errorf("acme succeeded runs = %v", got)
	}
	if got := testutil.ToFloat64(c.sourceRuns.WithLabelValues("acme", "Failed")); got != 1 {
		t.Errorf("acme failed runs = %v", got)
	}
	if got := testutil.ToFloat64(c.records.WithLabelValues("acme")); got != 8 {
		t.Errorf("acme records = %v", got)
	}
	if got := testutil.ToFloat64(c.itemsFailed.WithLabelValues("acme")); got != 2 {
		t.Errorf("acme items failed = %v", got)
	}
	if got := testutil.ToFloat64(c.lastRecords.WithLabelValues("acme")); got != 0 {
		t.Errorf("acme last records = %v, want 0 after failed run", got)
	}
	if n := testutil.CollectAndCount(c.sourceRuns); n != 3 {
		t.Errorf("source_runs_total series = %d, want 3", n)
	}
}

func TestRunStarted(t *testing.T) {
	c := New()
	done := c.RunStarted()
	if got := testutil.ToFloat64(c.runsInProgress); got != 1 {
		t.Errorf("in progress = %v", got)
	}
	done()
	if got := testutil.ToFloat64(c.runsInProgress); got != 0 {
		t.Errorf("in progress after done = %v", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.ObserveSource(models.FetchResult{Source: "x"})
	c.RunStarted()()
}

func TestHandler(t *testing.T) {
	c := New()
	c.ObserveSource(models.FetchResult{Source: "acme", Status: models.StatusSucceeded, Count: 3})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `pharmascrape_records_total{source="acme"} 3`) {
		t.Errorf("metrics output missing records line:\n%s", body)
	}
}
