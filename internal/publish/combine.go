package publish

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/JonMunkholm/facility-etl/internal/export"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

// NamespaceIDs makes identifiers unique across countries by prefixing them
// with "<cc>_", except when they already start with the row's cc or the row
// has no cc. Rows without an identifier are left alone and counted.
func NamespaceIDs(t *table.Table) int {
	missing := 0
	for _, r := range t.Rows() {
		id, cc := r["id"], r["cc"]
		if id == "" {
			missing++
			slog.Debug("no identifier", "country", cc)
			continue
		}
		if cc == "" || strings.HasPrefix(id, cc) {
			continue
		}
		r["id"] = cc + "_" + id
	}
	return missing
}

// webDropped are left out of the web extract.
var webDropped = map[string]bool{"lon": true, "lat": true, "id": true, "cc": true, "geo_qual": true}

// WebColumns returns x, y and the declared columns kept in the web extract.
func WebColumns(spec schema.Spec) []string {
	out := []string{"x", "y"}
	for _, c := range spec.Columns() {
		if !webDropped[c] {
			out = append(out, c)
		}
	}
	return out
}

// WebExtract projects every row to ETRS89-LAEA, rounds to whole metres and
// keeps only WebColumns. Rows without a parseable position are skipped and
// counted. The input table is not modified.
func WebExtract(t *table.Table, spec schema.Spec) (*table.Table, int) {
	columns := WebColumns(spec)
	out := table.New(columns...)
	skipped := 0
	for _, r := range t.Rows() {
		lon, err1 := strconv.ParseFloat(strings.TrimSpace(r["lon"]), 64)
		lat, err2 := strconv.ParseFloat(strings.TrimSpace(r["lat"]), 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}
		x, y := export.ProjectLAEA(lon, lat)

		w := make(table.Row, len(columns))
		for _, c := range columns[2:] {
			w[c] = r[c]
		}
		w["x"] = strconv.FormatInt(int64(math.Round(x)), 10)
		w["y"] = strconv.FormatInt(int64(math.Round(y)), 10)
		out.Append(w)
	}
	return out, skipped
}
