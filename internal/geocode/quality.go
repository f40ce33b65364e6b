// Package geocode holds the geocoding quality policy, the provider contract
// and the routines that write geocoding results onto rows.
package geocode

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality is the ordinal confidence of a position stored in geo_qual.
// Lower is better for 1..4; Unknown carries no information.
type Quality int

const (
	Unknown  Quality = -1
	Good     Quality = 1
	Medium   Quality = 2
	Low      Quality = 3
	Centroid Quality = 4 // reference centroid fallback
)

func (q Quality) String() string {
	switch q {
	case Good:
		return "good"
	case Medium:
		return "medium"
	case Low:
		return "low"
	case Centroid:
		return "centroid"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// Valid reports whether q is one of the five defined codes.
func (q Quality) Valid() bool {
	return q == Unknown || (q >= Good && q <= Centroid)
}

// ParseQuality reads a geo_qual cell.
func ParseQuality(s string) (Quality, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Unknown, fmt.Errorf("parse geo_qual %q: %w", s, err)
	}
	q := Quality(n)
	if !q.Valid() {
		return Unknown, fmt.Errorf("geo_qual %d out of range", n)
	}
	return q, nil
}

// IsAuthoritative is true iff q is Good.
func IsAuthoritative(q Quality) bool { return q == Good }

// rank orders qualities from best to worst with Unknown after Centroid.
func rank(q Quality) int {
	if q == Unknown {
		return int(Centroid) + 1
	}
	return int(q)
}

// ShouldImprove reports whether a candidate should replace a stored
// position: the stored one must not be authoritative and the candidate must
// rank strictly better. An Unknown candidate never improves anything.
func ShouldImprove(existing, candidate Quality) bool {
	if IsAuthoritative(existing) || candidate == Unknown {
		return false
	}
	return rank(candidate) < rank(existing)
}

// Policy decides which stored positions are worth geocoding again.
//
// The zero value skips Good and Unknown positions alike: Unknown marks a row
// a provider has already failed on. Set RetryUnknown to treat Unknown as
// "never geocoded" instead.
type Policy struct {
	RetryUnknown bool
}

// Skip reports whether a row with the existing quality is left alone.
func (p Policy) Skip(existing Quality) bool {
	if IsAuthoritative(existing) {
		return true
	}
	return existing == Unknown && !p.RetryUnknown
}
