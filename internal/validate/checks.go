package validate

// checks.go holds the individual checks. Each one is independent: it reads
// the rows, never modifies them, and reports instead of failing.

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/facility-etl/internal/table"
)

// DateLayout is DD/MM/YYYY; one-digit days and months are accepted.
const DateLayout = "2/1/2006"

// CheckNoUnexpectedColumn returns the columns found on any row that are not
// in columns, each once, in order of first appearance.
func CheckNoUnexpectedColumn(rows []table.Row, columns []string) []string {
	declared := make(map[string]bool, len(columns))
	for _, c := range columns {
		declared[c] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			if !declared[k] && !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// CheckValuesNotEmpty reports whether every row has a non-empty value in
// column.
func CheckValuesNotEmpty(rows []table.Row, column string) bool {
	for _, r := range rows {
		if v, ok := r[column]; !ok || v == "" {
			return false
		}
	}
	return true
}

// CheckIDUnicity returns the values of column seen more than once, each
// reported once, in order of first duplication.
func CheckIDUnicity(rows []table.Row, column string) []string {
	seen := make(map[string]bool, len(rows))
	reported := make(map[string]bool)
	var dup []string
	for _, r := range rows {
		id := r[column]
		if seen[id] {
			if !reported[id] {
				reported[id] = true
				dup = append(dup, id)
			}
			continue
		}
		seen[id] = true
	}
	return dup
}

// CheckValuesAmong reports whether every value of column is in allowed. The
// empty string is always allowed. With a non-empty delim the value is split
// and each non-empty token is checked. The first offending value is returned
// for diagnostics.
func CheckValuesAmong(rows []table.Row, column, delim string, allowed ...string) (bool, string) {
	set := make(map[string]bool, len(allowed)+1)
	set[""] = true
	for _, a := range allowed {
		set[a] = true
	}

	for _, r := range rows {
		v := r[column]
		if delim == "" {
			if !set[v] {
				return false, v
			}
			continue
		}
		for _, tok := range strings.Split(v, delim) {
			if !set[tok] {
				return false, tok
			}
		}
	}
	return true, ""
}

// ValidDate reports whether v is empty or a real calendar date in DD/MM/YYYY.
func ValidDate(v string) bool {
	if v == "" {
		return true
	}
	parts := strings.Split(v, "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return false
	}
	_, err := time.Parse(DateLayout, v)
	return err == nil
}

// CheckDateFormat reports whether every non-empty value of column is a valid
// date. The first offending value is returned.
func CheckDateFormat(rows []table.Row, column string) (bool, string) {
	for _, r := range rows {
		if v := r[column]; !ValidDate(v) {
			return false, v
		}
	}
	return true, ""
}

// CheckIntValues reports whether every value of column is empty or an
// integer. A row without the column fails.
func CheckIntValues(rows []table.Row, column string) (bool, string) {
	for _, r := range rows {
		v, ok := r[column]
		if !ok {
			return false, ""
		}
		if v == "" {
			continue
		}
		if _, err := strconv.Atoi(v); err != nil {
			return false, v
		}
	}
	return true, ""
}

var errNotFinite = errors.New("not a finite number")

// parseCoord parses a coordinate. NaN and infinities are rejected because
// no range comparison can catch them.
func parseCoord(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

// CheckGeoExtent returns one violation per row whose position cannot be
// decoded or lies outside [-180,180] x [-90,90].
func CheckGeoExtent(rows []table.Row, lonCol, latCol string) []Violation {
	var out []Violation
	for i, r := range rows {
		lonS, latS := r[lonCol], r[latCol]

		lon, err := parseCoord(lonS)
		if err != nil {
			out = append(out, Violation{
				Check:   CheckGeoDecode,
				Column:  lonCol,
				Row:     i + 1,
				Values:  []string{lonS},
				Message: fmt.Sprintf("cannot decode longitude value %q", lonS),
			})
			continue
		}
		lat, err := parseCoord(latS)
		if err != nil {
			out = append(out, Violation{
				Check:   CheckGeoDecode,
				Column:  latCol,
				Row:     i + 1,
				Values:  []string{latS},
				Message: fmt.Sprintf("cannot decode latitude value %q", latS),
			})
			continue
		}

		var bad []string
		if lat < -90 || lat > 90 {
			bad = append(bad, "latitude "+latS)
		}
		if lon < -180 || lon > 180 {
			bad = append(bad, "longitude "+lonS)
		}
		if len(bad) > 0 {
			out = append(out, Violation{
				Check:   CheckGeoExtentName,
				Column:  lonCol + "," + latCol,
				Row:     i + 1,
				Values:  []string{lonS, latS},
				Message: "invalid " + strings.Join(bad, " and "),
			})
		}
	}
	return out
}
