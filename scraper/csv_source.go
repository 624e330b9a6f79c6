// scraper/csv_source.go
package scraper

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gewnthar/pharmascrape/config"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/utils"
	"github.com/jszwec/csvutil"
)

// csvStore is one row of a published store list after its header has been
// mapped onto these column names.
type csvStore struct {
	ID        string `csv:"id"`
	Name      string `csv:"name"`
	Address   string `csv:"address"`
	Street    string `csv:"street"`
	Suburb    string `csv:"suburb"`
	State     string `csv:"state"`
	Postcode  string `csv:"postcode"`
	Phone     string `csv:"phone"`
	Fax       string `csv:"fax"`
	Email     string `csv:"email"`
	Website   string `csv:"website"`
	Latitude  string `csv:"latitude"`
	Longitude string `csv:"longitude"`
	Hours     string `csv:"hours"`
}

// CSVSource reads a brand's downloadable store list.
type CSVSource struct {
	cfg   config.SourceConfig
	fetch *Fetcher
	log   *slog.Logger
}

func newCSVSource(cfg config.SourceConfig, fetch *Fetcher, log *slog.Logger) (Source, error) {
	if cfg.DetailURL != "" {
		return nil, &ConfigError{Source: cfg.Name, Reason: "csv sources have no detail_url"}
	}
	return &CSVSource{cfg: cfg, fetch: fetch, log: log}, nil
}

func (s *CSVSource) Name() string { return s.cfg.Name }

func (s *CSVSource) FetchLocations(ctx context.Context) ([]RawLocation, error) {
	body, err := s.fetch.GetBody(ctx, s.cfg.ListURL, s.cfg.Headers)
	if err != nil {
		return nil, err
	}
	rows, err := parseStoreCSV(bytes.NewReader(body), s.cfg.Fields)
	if err != nil {
		return nil, err
	}
	s.log.Debug("parsed store csv", "rows", len(rows))

	locs := make([]RawLocation, 0, len(rows))
	for i, r := range rows {
		id := r.ID
		if id == "" {
			id = fmt.Sprint(i + 1)
		}
		locs = append(locs, RawLocation{ID: id, Data: r})
	}
	if s.cfg.Dedupe {
		locs = utils.DedupeByProximity(locs, func(l RawLocation) utils.Place {
			r := l.Data.(csvStore)
			return utils.Place{Lat: parseFloat(r.Latitude), Lon: parseFloat(r.Longitude), Address: r.Address}
		}, utils.DefaultProximity)
	}
	return locs, nil
}

func (s *CSVSource) Extract(raw RawDetail) (models.PartialRecord, error) {
	d := raw.Data
	if d == nil {
		d = raw.Location.Data
	}
	r, ok := d.(csvStore)
	if !ok {
		return models.PartialRecord{}, fmt.Errorf("row %s: unexpected payload %T", raw.Location.ID, d)
	}
	p := models.PartialRecord{
		Name:          r.Name,
		Address:       r.Address,
		StreetAddress: r.Street,
		Suburb:        r.Suburb,
		State:         r.State,
		Postcode:      r.Postcode,
		Phone:         r.Phone,
		Fax:           r.Fax,
		Email:         r.Email,
		Website:       r.Website,
		Latitude:      parseFloat(r.Latitude),
		Longitude:     parseFloat(r.Longitude),
	}
	if strings.TrimSpace(r.Hours) != "" {
		h, err := hoursFromString(r.Hours)
		if err != nil {
			s.log.Warn("unusable trading hours", "store", r.Name, "err", err)
		} else {
			p.Hours = h
		}
	}
	return p, nil
}

// parseStoreCSV decodes a store list. Columns are matched to fields by the
// names in fm, or by the field's own name when fm leaves it empty; other
// columns are ignored.
func parseStoreCSV(r io.Reader, fm config.FieldMap) ([]csvStore, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dec, err := csvutil.NewDecoder(cr, mapHeader(header, fm)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV decoder: %w", err)
	}

	var rows []csvStore
	for {
		var row csvStore
		if err := dec.Decode(&row); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode CSV row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func mapHeader(header []string, fm config.FieldMap) []string {
	fields := []struct{ tag, name string }{
		{"id", fm.ID}, {"name", fm.Name}, {"address", fm.Address}, {"street", fm.Street},
		{"suburb", fm.Suburb}, {"state", fm.State}, {"postcode", fm.Postcode},
		{"phone", fm.Phone}, {"fax", fm.Fax}, {"email", fm.Email}, {"website", fm.Website},
		{"latitude", fm.Latitude}, {"longitude", fm.Longitude}, {"hours", fm.Hours},
	}
	out := make([]string, len(header))
	for i, col := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		out[i] = fmt.Sprintf("_col%d", i)
	}
	assign := func(tag, name string) {
		for i, col := range header {
			if strings.HasPrefix(out[i], "_col") && strings.EqualFold(col, name) {
				out[i] = tag
				return
			}
		}
	}
	// configured names win over columns that merely share a field's name
	for _, f := range fields {
		if f.name != "" {
			assign(f.tag, f.name)
		}
	}
	for _, f := range fields {
		if f.name == "" {
			assign(f.tag, f.tag)
		}
	}
	return out
}
