// scraper/json_source.go
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/hours"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/utils"
)

// JSONSource reads a store-locator API that returns a JSON list of stores.
type JSONSource struct {
	cfg    config.SourceConfig
	fields config.FieldMap
	fetch  *Fetcher
	log    *slog.Logger
}

// jsonDetailSource is a JSONSource with a per-store detail endpoint.
type jsonDetailSource struct {
	*JSONSource
}

func newJSONSource(cfg config.SourceConfig, fetch *Fetcher, log *slog.Logger) (Source, error) {
	if cfg.DetailURL != "" && !strings.Contains(cfg.DetailURL, "{id}") {
		return nil, &ConfigError{Source: cfg.Name, Reason: "detail_url must contain {id}"}
	}
	s := &JSONSource{cfg: cfg, fields: withDefaults(cfg.Fields), fetch: fetch, log: log}
	if cfg.DetailURL != "" {
		return &jsonDetailSource{s}, nil
	}
	return s, nil
}

func withDefaults(f config.FieldMap) config.FieldMap {
	def := func(v *string, name string) {
		if *v == "" {
			*v = name
		}
	}
	def(&f.ID, "id")
	def(&f.Name, "name")
	def(&f.Address, "address")
	def(&f.Street, "street")
	def(&f.Suburb, "suburb")
	def(&f.State, "state")
	def(&f.Postcode, "postcode")
	def(&f.Phone, "phone")
	def(&f.Fax, "fax")
	def(&f.Email, "email")
	def(&f.Website, "website")
	def(&f.Latitude, "latitude")
	def(&f.Longitude, "longitude")
	def(&f.Hours, "hours")
	return f
}

func (s *JSONSource) Name() string { return s.cfg.Name }

func (s *JSONSource) FetchLocations(ctx context.Context) ([]RawLocation, error) {
	var body any
	if err := s.fetch.GetJSON(ctx, s.cfg.ListURL, s.cfg.Headers, &body); err != nil {
		return nil, err
	}

	list := body
	if s.cfg.ItemsPath != "" {
		v, ok := lookup(body, s.cfg.ItemsPath)
		if !ok {
			return nil, fmt.Errorf("items_path %q not found in response", s.cfg.ItemsPath)
		}
		list = v
	}
	items, ok := list.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array of stores, got %T", list)
	}

	locs := make([]RawLocation, 0, len(items))
	for _, it := range items {
		id := lookupString(it, s.fields.ID)
		loc := RawLocation{ID: id, Data: it}
		if s.cfg.DetailURL != "" {
			if id == "" {
				s.log.Debug("skipping store without id")
				continue
			}
			loc.URL = strings.ReplaceAll(s.cfg.DetailURL, "{id}", url.PathEscape(id))
		}
		locs = append(locs, loc)
	}

	if s.cfg.Dedupe {
		before := len(locs)
		locs = utils.DedupeByProximity(locs, s.place, utils.DefaultProximity)
		s.log.Debug("deduplicated store list", "before", before, "after", len(locs))
	}
	return locs, nil
}

func (s *JSONSource) place(loc RawLocation) utils.Place {
	return utils.Place{
		Lat:     lookupFloat(loc.Data, s.fields.Latitude),
		Lon:     lookupFloat(loc.Data, s.fields.Longitude),
		Address: lookupString(loc.Data, s.fields.Address),
	}
}

func (s *jsonDetailSource) FetchDetails(ctx context.Context, loc RawLocation) (RawDetail, error) {
	var body any
	if err := s.fetch.GetJSON(ctx, loc.URL, s.cfg.Headers, &body); err != nil {
		return RawDetail{}, err
	}
	// Some detail endpoints wrap the store in a one-element list.
	if arr, ok := body.([]any); ok {
		if len(arr) == 0 {
			return RawDetail{}, fmt.Errorf("empty detail response for %s", loc.ID)
		}
		body = arr[0]
	}
	return RawDetail{Location: loc, Data: body}, nil
}

func (s *JSONSource) Extract(raw RawDetail) (models.PartialRecord, error) {
	d := raw.Data
	if d == nil {
		d = raw.Location.Data
	}
	if _, ok := d.(map[string]any); !ok {
		return models.PartialRecord{}, fmt.Errorf("store %q: expected a JSON object, got %T", raw.Location.ID, d)
	}

	f := s.fields
	p := models.PartialRecord{
		Name:          lookupString(d, f.Name),
		Address:       lookupString(d, f.Address),
		StreetAddress: lookupString(d, f.Street),
		Suburb:        lookupString(d, f.Suburb),
		State:         lookupString(d, f.State),
		Postcode:      lookupString(d, f.Postcode),
		Phone:         lookupString(d, f.Phone),
		Fax:           lookupString(d, f.Fax),
		Email:         lookupString(d, f.Email),
		Website:       lookupString(d, f.Website),
		Latitude:      lookupFloat(d, f.Latitude),
		Longitude:     lookupFloat(d, f.Longitude),
	}

	if v, ok := lookup(d, f.Hours); ok {
		var err error
		if str, isStr := v.(string); isStr {
			p.Hours, err = hoursFromString(str)
		} else {
			p.Hours, err = hours.FromValue(v)
		}
		if err != nil {
			s.log.Warn("unusable trading hours", "store", p.Name, "err", err)
			p.Hours = nil
		}
	}
	return p, nil
}
