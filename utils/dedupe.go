// utils/dedupe.go
package utils

import (
	"math"
	"strings"
)

// DefaultProximity is roughly 10 m in degrees of latitude.
const DefaultProximity = 0.0001

// Place is the identity of a candidate location for de-duplication.
type Place struct {
	Lat, Lon *float64
	Address  string
}

// DedupeByProximity drops later items that sit within eps degrees of an
// earlier one, or that share its normalized address. The first occurrence
// wins and order is preserved. Adapters call this on their own lists; it is
// not applied across sources.
func DedupeByProximity[T any](items []T, place func(T) Place, eps float64) []T {
	if eps <= 0 {
		eps = DefaultProximity
	}
	out := make([]T, 0, len(items))
	kept := make([]Place, 0, len(items))
	for _, it := range items {
		p := place(it)
		p.Address = normalizeAddressKey(p.Address)
		dup := false
		for _, k := range kept {
			if samePlace(p, k, eps) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, p)
		out = append(out, it)
	}
	return out
}

func samePlace(a, b Place, eps float64) bool {
	if ValidCoordinates(a.Lat, a.Lon) && ValidCoordinates(b.Lat, b.Lon) {
		if math.Abs(*a.Lat-*b.Lat) <= eps && math.Abs(*a.Lon-*b.Lon) <= eps {
			return true
		}
	}
	return a.Address != "" && a.Address == b.Address
}

func normalizeAddressKey(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer(",", " ", ".", " ", "street", "st", "road", "rd").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
