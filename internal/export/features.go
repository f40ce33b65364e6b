// Package export writes facility tables as vector datasets: GeoJSON for the
// web and GeoPackage for desktop GIS, both in WGS84. It also provides the
// equal-area projection used by the map extract.
package export

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

// Feature is a row with a point geometry and typed attributes.
type Feature struct {
	Point      orb.Point // lon, lat
	Properties map[string]any
}

// Coerce converts a row into typed attributes: integer columns become int64,
// double columns float64 and text stays string. Empty or unparseable typed
// values become nil, never zero. Columns outside the schema are dropped.
func Coerce(r table.Row, spec schema.Spec) map[string]any {
	out := make(map[string]any, len(spec.Fields))
	for _, f := range spec.Fields {
		v := strings.TrimSpace(r[f.Name])
		switch f.Type {
		case schema.FieldInt:
			out[f.Name] = parseInt(v)
		case schema.FieldDouble:
			out[f.Name] = parseFloat(v)
		default:
			out[f.Name] = r[f.Name]
		}
	}
	return out
}

func parseInt(v string) any {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return n
}

func parseFloat(v string) any {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return f
}

// Features builds point features from the lon and lat columns. Rows without
// a parseable position are skipped and counted.
func Features(t *table.Table, spec schema.Spec) ([]Feature, int) {
	out := make([]Feature, 0, t.Len())
	skipped := 0
	for _, r := range t.Rows() {
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(r["lon"]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(r["lat"]), 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		out = append(out, Feature{Point: orb.Point{lon, lat}, Properties: Coerce(r, spec)})
	}
	return out, skipped
}

// Bound returns the bounding box of the features.
func Bound(features []Feature) orb.Bound {
	if len(features) == 0 {
		return orb.Bound{}
	}
	b := features[0].Point.Bound()
	for _, f := range features[1:] {
		b = b.Extend(f.Point)
	}
	return b
}
