package geocode

import (
	"context"
	"strings"

	"github.com/JonMunkholm/facility-etl/internal/country"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

// Address is the structured input of a geocoding request.
type Address struct {
	HouseNumber string
	Street      string
	City        string
	CountryCode string
	CountryName string
	Postcode    string // empty when the caller leaves postcodes out
}

// AddressFromRow builds the address of a facility row. The postcode is only
// included when usePostcode is set; some national postcodes mislead
// providers more than they help.
func AddressFromRow(r table.Row, usePostcode bool) Address {
	a := Address{
		HouseNumber: strings.TrimSpace(r["house_number"]),
		Street:      strings.TrimSpace(r["street"]),
		City:        strings.TrimSpace(r["city"]),
		CountryCode: r["cc"],
		CountryName: country.NameOrCode(r["cc"]),
	}
	if usePostcode {
		a.Postcode = strings.TrimSpace(r["postcode"])
	}
	return a
}

// Key identifies an address for caching.
func (a Address) Key() string {
	return strings.ToLower(strings.Join([]string{
		a.HouseNumber, a.Street, a.Postcode, a.City, a.CountryCode,
	}, "|"))
}

// StreetLine joins house number and street the way most providers expect.
func (a Address) StreetLine() string {
	return strings.TrimSpace(a.HouseNumber + " " + a.Street)
}

// Result is a provider's best guess for an address.
type Result struct {
	Lon, Lat   float64
	Quality    Quality
	Matching   string  // provider-specific description of the match
	Confidence float64 // provider score, higher is better
}

// Failed reports the degenerate (0,0) position providers return when nothing
// matched.
func (r Result) Failed() bool { return r.Lon == 0 && r.Lat == 0 }

// Geocoder resolves addresses to positions. Implementations are
// interchangeable; a miss is a zero Result, not an error.
type Geocoder interface {
	Geocode(ctx context.Context, a Address, verbose bool) (Result, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, a Address, verbose bool) (Result, error)

func (f GeocoderFunc) Geocode(ctx context.Context, a Address, verbose bool) (Result, error) {
	return f(ctx, a, verbose)
}
