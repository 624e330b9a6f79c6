// services/standardizer.go
package services

import (
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gewnthar/pharmascrape/hours"
	"github.com/gewnthar/pharmascrape/models"
	"github.com/gewnthar/pharmascrape/utils"
)

// Standardizer maps an adapter's partial fields onto a PharmacyRecord.
type Standardizer struct {
	hours *hours.Normalizer
	now   func() time.Time
}

func NewStandardizer(log *slog.Logger) *Standardizer {
	return &Standardizer{hours: hours.NewNormalizer(log), now: time.Now}
}

// Standardize never fails. Anything it cannot determine is left nil.
func (s *Standardizer) Standardize(p models.PartialRecord, brand string) models.PharmacyRecord {
	rec := models.PharmacyRecord{
		Name:         strings.Join(strings.Fields(p.Name), " "),
		Brand:        brand,
		TradingHours: s.hours.Normalize(p.Hours),
		LastUpdated:  s.now().UTC(),
	}

	addr := reconcileAddress(p)
	rec.StreetAddress = optional(addr.Street)
	rec.Suburb = optional(addr.Suburb)
	rec.State = optional(addr.State)
	rec.Postcode = optional(addr.Postcode)

	rec.Phone = optional(utils.FormatPhone(p.Phone))
	rec.Fax = optional(utils.FormatPhone(p.Fax))
	rec.Email = optional(utils.CleanEmail(p.Email))
	rec.Website = optional(utils.CleanWebsite(p.Website))

	if utils.ValidCoordinates(p.Latitude, p.Longitude) {
		lat, lon := *p.Latitude, *p.Longitude
		rec.Latitude, rec.Longitude = &lat, &lon
	}
	return rec
}

// reconcileAddress prefers the explicit fields and fills the gaps from the
// one-line address.
func reconcileAddress(p models.PartialRecord) utils.AddressParts {
	out := utils.AddressParts{
		Street:   clean(p.StreetAddress),
		Suburb:   titleSuburb(p.Suburb),
		State:    utils.NormalizeState(p.State),
		Postcode: utils.NormalizePostcode(p.Postcode),
	}
	if strings.TrimSpace(p.Address) != "" {
		split := utils.SplitAddress(p.Address)
		if out.Street == "" {
			out.Street = split.Street
		}
		if out.Suburb == "" {
			out.Suburb = titleSuburb(split.Suburb)
		}
		if out.State == "" {
			out.State = split.State
		}
		if out.Postcode == "" {
			out.Postcode = split.Postcode
		}
	}
	if out.State == "" {
		out.State = utils.StateForPostcode(out.Postcode)
	}
	return out
}

func clean(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), ", ")
}

// titleSuburb turns "BONDI BEACH" into "Bondi Beach"; mixed case is kept.
func titleSuburb(s string) string {
	s = clean(s)
	if s != strings.ToUpper(s) {
		return s
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
