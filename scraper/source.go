// scraper/source.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/models"
)

// RawLocation is one entry from a source's store list. Data holds whatever
// the list gave for it: a decoded JSON object, an HTML selection or a CSV row.
type RawLocation struct {
	ID   string
	URL  string
	Data any
}

// RawDetail is the full payload for one location.
type RawDetail struct {
	Location RawLocation
	Data     any
}

// Source is one brand's connector.
type Source interface {
	Name() string
	FetchLocations(ctx context.Context) ([]RawLocation, error)
	Extract(raw RawDetail) (models.PartialRecord, error)
}

// DetailFetcher is implemented by sources that need a second request per
// location. Sources without it extract straight from the list entry.
type DetailFetcher interface {
	FetchDetails(ctx context.Context, loc RawLocation) (RawDetail, error)
}

// NewFromConfig builds the adapter named by cfg.Type.
func NewFromConfig(cfg config.SourceConfig, fetch *Fetcher, log *slog.Logger) (Source, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "source", "source", cfg.Name)

	if cfg.ListURL == "" {
		return nil, &ConfigError{Source: cfg.Name, Reason: "list_url is required"}
	}
	switch cfg.Type {
	case "json":
		return newJSONSource(cfg, fetch, log)
	case "html":
		return newHTMLSource(cfg, fetch, log)
	case "csv":
		return newCSVSource(cfg, fetch, log)
	default:
		return nil, &ConfigError{Source: cfg.Name, Reason: fmt.Sprintf("unknown type %q", cfg.Type)}
	}
}

// Broken stands in for a source whose wiring failed so that the failure
// shows up in that source's run result.
type Broken struct {
	Brand string
	Err   error
}

func (b Broken) Name() string { return b.Brand }

func (b Broken) FetchLocations(context.Context) ([]RawLocation, error) { return nil, b.Err }

func (b Broken) Extract(RawDetail) (models.PartialRecord, error) { return models.PartialRecord{}, b.Err }

// BuildSources turns every config entry into a Source. Entries that fail to
// build become Broken.
func BuildSources(cfgs []config.SourceConfig, fetch *Fetcher, log *slog.Logger) []Source {
	if log == nil {
		log = slog.Default()
	}
	out := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		s, err := NewFromConfig(c, fetch, log)
		if err != nil {
			log.Error("source wiring failed", "source", c.Name, "err", err)
			s = Broken{Brand: c.Name, Err: err}
		}
		out = append(out, s)
	}
	return out
}
