package export

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/gewnthar/pharmascrape/hours"
	"github.com/gewnthar/pharmascrape/models"
)

func sp(s string) *string { return &s }

func fp(f float64) *float64 { return &f }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestSaveColumnOrder(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sched := hours.NewWeeklySchedule()
	sched[hours.Monday] = hours.OpenBetween(hours.NewClock(9, 0), hours.NewClock(17, 30))
	records := []models.PharmacyRecord{
		{
			Name:          "Kew Pharmacy",
			StreetAddress: sp("12 High St"),
			Suburb:        sp("Kew"),
			State:         sp("VIC"),
			Postcode:      sp("3101"),
			Phone:         sp("(03) 9853 1234"),
			Latitude:      fp(-37.8),
			Longitude:     fp(145.03),
			Brand:         "acme",
			TradingHours:  sched,
		},
		{Name: "Bare", Brand: "acme", TradingHours: hours.NewWeeklySchedule()},
	}
	if err := sink.Save(records, "Acme Chemists"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, "acme_chemists.csv")
	rows := readCSV(t, path)
	want := []string{"name", "address", "phone", "fax", "email", "trading_hours", "latitude", "longitude"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("header = %v", rows[0])
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	first := rows[1]
	if first[0] != "Kew Pharmacy" || first[1] != "12 High St, Kew VIC 3101" || first[2] != "(03) 9853 1234" || first[3] != "" {
		t.Errorf("row 1 = %v", first)
	}
	if first[5] != sched.JSON() {
		t.Errorf("trading_hours = %s", first[5])
	}
	if first[6] != "-37.8" || first[7] != "145.03" {
		t.Errorf("coordinates = %s, %s", first[6], first[7])
	}
	if bare := rows[2]; bare[1] != "" || bare[6] != "" {
		t.Errorf("missing fields should be empty cells: %v", bare)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestSaveEmptyWritesHeader(t *testing.T) {
	sink := NewCSVSink(t.TempDir(), nil)
	if err := sink.Save(nil, "empty"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rows := readCSV(t, sink.FileName("empty"))
	if len(rows) != 1 || rows[0][0] != "name" {
		t.Errorf("rows = %v", rows)
	}
}

func TestSavedFileIsWorldReadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	sink := NewCSVSink(t.TempDir(), nil)
	if err := sink.Save(nil, "perm"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(sink.FileName("perm"))
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0644 {
		t.Errorf("mode = %v, want 0644", got)
	}
}

func TestFileName(t *testing.T) {
	sink := &CSVSink{Dir: "out"}
	for in, want := range map[string]string{
		"Priceline":      "out/priceline.csv",
		"../etc/passwd":  "out/etc_passwd.csv",
		"   ":            "out/records.csv",
		"amcal+ (vic)":   "out/amcal_vic.csv",
	} {
		if got := sink.FileName(in); got != filepath.FromSlash(want) {
			t.Errorf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}
