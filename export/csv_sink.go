// export/csv_sink.go
package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/gewnthar/pharmascrape/models"
)

// row fixes the column order of exported files.
type row struct {
	Name         string `csv:"name"`
	Address      string `csv:"address"`
	Phone        string `csv:"phone"`
	Fax          string `csv:"fax"`
	Email        string `csv:"email"`
	TradingHours string `csv:"trading_hours"`
	Latitude     string `csv:"latitude"`
	Longitude    string `csv:"longitude"`
}

// CSVSink writes record lists as CSV files under Dir.
type CSVSink struct {
	Dir string
	log *slog.Logger
}

func NewCSVSink(dir string, log *slog.Logger) *CSVSink {
	if log == nil {
		log = slog.Default()
	}
	return &CSVSink{Dir: dir, log: log.With("component", "export")}
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// FileName is the path Save writes name to.
func (s *CSVSink) FileName(name string) string {
	base := strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(name), "_"), "._")
	if base == "" {
		base = "records"
	}
	return filepath.Join(s.Dir, strings.ToLower(base)+".csv")
}

// Save writes records to <Dir>/<name>.csv, replacing any previous file.
// The file is written to a temp file first so a failed save leaves the
// old one in place.
func (s *CSVSink) Save(records []models.PharmacyRecord, name string) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", s.Dir, err)
	}
	path := s.FileName(name)

	tmp, err := os.CreateTemp(s.Dir, ".export-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", s.Dir, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(row{}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range records {
		if err := enc.Encode(toRow(r)); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to encode %q: %w", r.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// CreateTemp makes the file 0600.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export into %s: %w", path, err)
	}

	s.log.Info("saved records", "file", path, "records", len(records))
	return nil
}

func toRow(r models.PharmacyRecord) row {
	return row{
		Name:         r.Name,
		Address:      r.Address(),
		Phone:        str(r.Phone),
		Fax:          str(r.Fax),
		Email:        str(r.Email),
		TradingHours: r.TradingHours.JSON(),
		Latitude:     coord(r.Latitude),
		Longitude:    coord(r.Longitude),
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func coord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
