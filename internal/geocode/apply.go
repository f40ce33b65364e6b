package geocode

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/JonMunkholm/facility-etl/internal/table"
)

// Options controls how results are requested and written.
type Options struct {
	UsePostcode bool
	Verbose     bool
	LonColumn   string // default "lon"
	LatColumn   string // default "lat"
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.LonColumn == "" {
		o.LonColumn = "lon"
	}
	if o.LatColumn == "" {
		o.LatColumn = "lat"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Tally counts the outcome of a batch. Failures are degenerate (0,0)
// positions and provider errors; neither is retried.
type Tally struct {
	Total    int
	Failures int
	Improved int
	Skipped  int
}

// ErrNoPosition is returned by Improve when the provider answers with a
// degenerate (0,0) position.
var ErrNoPosition = errors.New("geocoder returned no position")

// Set writes a result onto a row: position and geo_qual.
func Set(r table.Row, res Result, lonCol, latCol string) {
	r[latCol] = formatCoord(res.Lat)
	r[lonCol] = formatCoord(res.Lon)
	r["geo_qual"] = strconv.Itoa(int(res.Quality))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// request geocodes one row. Provider errors turn into a failed Unknown result
// so the row still records a (0,0) position.
func request(ctx context.Context, gc Geocoder, r table.Row, o Options) (Result, bool) {
	res, err := gc.Geocode(ctx, AddressFromRow(r, o.UsePostcode), o.Verbose)
	if err != nil {
		o.Logger.Warn("geocode failed", "id", r["id"], "error", err)
		return Result{Quality: Unknown, Matching: "error"}, false
	}
	if o.Verbose {
		o.Logger.Info("geocoded",
			"id", r["id"],
			"lon", res.Lon,
			"lat", res.Lat,
			"quality", res.Quality.String(),
			"matching", res.Matching,
			"confidence", res.Confidence,
		)
	}
	return res, !res.Failed()
}

// SetAll geocodes every row and overwrites its position. It returns early
// with ctx.Err() when the context is cancelled between rows.
func SetAll(ctx context.Context, gc Geocoder, rows []table.Row, opts Options) (Tally, error) {
	o := opts.withDefaults()
	var t Tally
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		t.Total++
		res, ok := request(ctx, gc, r, o)
		if !ok {
			t.Failures++
		}
		Set(r, res, o.LonColumn, o.LatColumn)
	}
	o.Logger.Info("geocoding done", "failures", t.Failures, "total", t.Total)
	return t, nil
}

// Improve geocodes a row again unless the policy skips its current quality,
// and stores the candidate only when ShouldImprove says so. A missing or
// unreadable geo_qual counts as Unknown. A (0,0) candidate leaves the row
// untouched and returns ErrNoPosition.
func Improve(ctx context.Context, gc Geocoder, r table.Row, p Policy, opts Options) (bool, error) {
	o := opts.withDefaults()

	existing, err := ParseQuality(r["geo_qual"])
	if err != nil {
		existing = Unknown
	}
	if p.Skip(existing) {
		return false, nil
	}

	res, err := gc.Geocode(ctx, AddressFromRow(r, o.UsePostcode), o.Verbose)
	if err != nil {
		return false, err
	}
	if res.Failed() {
		return false, ErrNoPosition
	}
	if !ShouldImprove(existing, res.Quality) {
		if o.Verbose {
			o.Logger.Info("no positioning improvement", "id", r["id"], "quality", existing.String())
		}
		return false, nil
	}

	attrs := []any{"id", r["id"], "from", existing.String(), "to", res.Quality.String()}
	if lon, lat, ok := position(r, o); ok {
		attrs = append(attrs, "moved_km", DistanceKM(lat, lon, res.Lat, res.Lon))
	}
	o.Logger.Debug("positioning improvement", attrs...)

	Set(r, res, o.LonColumn, o.LatColumn)
	return true, nil
}

// ImproveAll runs Improve over rows. Provider errors are counted as failures
// and do not stop the batch.
func ImproveAll(ctx context.Context, gc Geocoder, rows []table.Row, p Policy, opts Options) (Tally, error) {
	o := opts.withDefaults()
	var t Tally
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		t.Total++
		improved, err := Improve(ctx, gc, r, p, o)
		switch {
		case err != nil:
			o.Logger.Warn("geocode failed", "id", r["id"], "error", err)
			t.Failures++
		case improved:
			t.Improved++
		default:
			t.Skipped++
		}
	}
	o.Logger.Info("geocoding improvement done",
		"improved", t.Improved, "skipped", t.Skipped, "failures", t.Failures, "total", t.Total)
	return t, nil
}

// HasPosition reports whether the row carries a parseable, non-degenerate
// position.
func HasPosition(r table.Row, opts Options) bool {
	_, _, ok := position(r, opts.withDefaults())
	return ok
}

func position(r table.Row, o Options) (lon, lat float64, ok bool) {
	lon, err1 := strconv.ParseFloat(r[o.LonColumn], 64)
	lat, err2 := strconv.ParseFloat(r[o.LatColumn], 64)
	if err1 != nil || err2 != nil || (lon == 0 && lat == 0) {
		return 0, 0, false
	}
	return lon, lat, true
}
