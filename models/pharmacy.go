// models/pharmacy.go
package models

import (
	"strings"
	"time"

	"github.com/gewnthar/pharmascrape/hours"
)

// PharmacyRecord is one normalized store. Name and Brand are always set;
// every other field is nil when the source did not provide it.
type PharmacyRecord struct {
	Name          string               `json:"name"`
	StreetAddress *string              `json:"street_address,omitempty"`
	Suburb        *string              `json:"suburb,omitempty"`
	State         *string              `json:"state,omitempty"`
	Postcode      *string              `json:"postcode,omitempty"`
	Phone         *string              `json:"phone,omitempty"`
	Fax           *string              `json:"fax,omitempty"`
	Email         *string              `json:"email,omitempty"`
	Website       *string              `json:"website,omitempty"`
	Latitude      *float64             `json:"latitude,omitempty"`
	Longitude     *float64             `json:"longitude,omitempty"`
	Brand         string               `json:"brand"`
	TradingHours  hours.WeeklySchedule `json:"trading_hours"`
	LastUpdated   time.Time            `json:"last_updated"`
}

// Address joins the address parts as "12 High St, Kew VIC 3101",
// leaving out whatever is missing.
func (r PharmacyRecord) Address() string {
	var locality []string
	for _, p := range []*string{r.Suburb, r.State, r.Postcode} {
		if p != nil && *p != "" {
			locality = append(locality, *p)
		}
	}
	var parts []string
	if r.StreetAddress != nil && *r.StreetAddress != "" {
		parts = append(parts, *r.StreetAddress)
	}
	if len(locality) > 0 {
		parts = append(parts, strings.Join(locality, " "))
	}
	return strings.Join(parts, ", ")
}

// PartialRecord is what an adapter extracts from one raw location before
// standardization. Empty strings mean "not provided". Address may hold a
// whole one-line address when the source has no separate parts.
type PartialRecord struct {
	Name          string
	Address       string
	StreetAddress string
	Suburb        string
	State         string
	Postcode      string
	Phone         string
	Fax           string
	Email         string
	Website       string
	Latitude      *float64
	Longitude     *float64
	Hours         hours.Raw
}
