// Package publish turns normalized country tables into the published
// per-country and combined datasets, and drives country transforms.
//
// A publication run walks the configured countries one after the other.
// Each country moves through Compare, Load, Stamp and Export and ends up
// SKIPPED, UPDATED or FAILED. When at least one country was updated the
// combined table and the web extract are regenerated from the published
// country files.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/facility-etl/internal/country"
	"github.com/JonMunkholm/facility-etl/internal/export"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
	"github.com/JonMunkholm/facility-etl/internal/validate"
)

// PubDateLayout formats pub_date as DD/MM/YYYY.
const PubDateLayout = "02/01/2006"

// Status is the outcome of one country in a run.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusUpdated Status = "updated"
	StatusFailed  Status = "failed"
)

// CountryResult describes what happened to one country.
type CountryResult struct {
	Country    string           `json:"country"`
	Status     Status           `json:"status"`
	Rows       int              `json:"rows"`
	NoPosition int              `json:"no_position"` // rows left out of vector exports
	Error      string           `json:"error,omitempty"`
	Report     *validate.Report `json:"report,omitempty"`
}

// Result summarizes a publication run.
type Result struct {
	RunID        uuid.UUID       `json:"run_id"`
	Service      schema.Service  `json:"service"`
	Trigger      string          `json:"trigger"`
	StartedAt    time.Time       `json:"started_at"`
	Duration     time.Duration   `json:"duration"`
	Countries    []CountryResult `json:"countries"`
	Changed      bool            `json:"changed"`
	CombinedRows int             `json:"combined_rows"`
	WebRows      int             `json:"web_rows"`
	Error        string          `json:"error,omitempty"`
}

// Count returns the number of countries with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, c := range r.Countries {
		if c.Status == s {
			n++
		}
	}
	return n
}

// Options configures a Pipeline.
type Options struct {
	Countries []string // default spec.DefaultCountries
	// Force republishes every country regardless of file times.
	Force bool
	// Validate runs the validation battery on each updated country.
	Validate bool
	Now      func() time.Time
	Logger   *slog.Logger
	Recorder Recorder
}

// Pipeline publishes one service.
type Pipeline struct {
	layout   Layout
	opts     Options
	engine   validate.Engine
	logger   *slog.Logger
	recorder Recorder
}

// New creates a pipeline over layout.
func New(layout Layout, opts Options) *Pipeline {
	if len(opts.Countries) == 0 {
		opts.Countries = layout.Spec.DefaultCountries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Pipeline{
		layout:   layout,
		opts:     opts,
		engine:   validate.Engine{ShowValues: true},
		logger:   logger.With("service", layout.Spec.Service),
		recorder: rec,
	}
}

// Layout returns the directory layout of the pipeline.
func (p *Pipeline) Layout() Layout { return p.layout }

// Countries returns the countries the pipeline publishes, in order.
func (p *Pipeline) Countries() []string {
	return append([]string(nil), p.opts.Countries...)
}

// Run publishes every configured country, then the combined outputs if
// anything changed. Country failures are recorded in the result and never
// abort the batch. Cancellation is honored between countries; the partial
// result is returned with ctx.Err().
func (p *Pipeline) Run(ctx context.Context, trigger string) (*Result, error) {
	res := &Result{
		RunID:     uuid.New(),
		Service:   p.layout.Spec.Service,
		Trigger:   trigger,
		StartedAt: p.opts.Now(),
	}
	logger := p.logger.With("run_id", res.RunID.String())
	logger.Info("publication started", "countries", len(p.opts.Countries), "trigger", trigger)
	start := time.Now()

	pubDate := res.StartedAt.Format(PubDateLayout)
	runErr := func() error {
		for _, cc := range p.opts.Countries {
			if err := ctx.Err(); err != nil {
				return err
			}
			cr := p.publishCountry(ctx, cc, pubDate, logger.With("country", cc))
			res.Countries = append(res.Countries, cr)
			if cr.Status == StatusUpdated {
				res.Changed = true
			}
		}

		if !res.Changed {
			logger.Info("no change found, combined outputs kept")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return p.publishCombined(ctx, res, logger)
	}()

	res.Duration = time.Since(start)
	if runErr != nil {
		res.Error = runErr.Error()
		logger.Error("publication failed", "error", runErr)
	} else {
		logger.Info("publication completed",
			"updated", res.Count(StatusUpdated),
			"skipped", res.Count(StatusSkipped),
			"failed", res.Count(StatusFailed),
			"combined_rows", res.CombinedRows,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	if err := p.recorder.RecordRun(context.WithoutCancel(ctx), res); err != nil {
		logger.Warn("record run failed", "error", err)
	}
	return res, runErr
}

func (p *Pipeline) publishCountry(ctx context.Context, cc, pubDate string, logger *slog.Logger) CountryResult {
	cr := CountryResult{Country: cc}
	src := p.layout.SourceCSV(cc)
	dst := p.layout.CSV(cc)

	if !p.opts.Force && p.upToDate(src, dst, logger) {
		logger.Debug("no change found")
		cr.Status = StatusSkipped
		return cr
	}

	fail := func(err error) CountryResult {
		logger.Error("country publication failed", "error", err, "code", table.MapError(err).Code)
		cr.Status = StatusFailed
		cr.Error = err.Error()
		return cr
	}

	t, err := table.LoadFile(src, table.DefaultLoadOptions())
	if err != nil {
		return fail(err)
	}
	cr.Rows = t.Len()

	if p.opts.Validate {
		rep := p.engine.Validate(t, cc, p.layout.Spec)
		rep.Log(logger)
		cr.Report = &rep
	}

	// cc is left as loaded: overseas territories keep their own code.
	name, ok := country.Name(cc)
	if !ok {
		logger.Warn("unknown country code, name set to code")
		name = cc
	}
	t.SetValue("country", name)
	t.SetValue("pub_date", pubDate)

	noPos, err := p.exportAll(ctx, t, cc)
	if err != nil {
		return fail(err)
	}
	cr.NoPosition = noPos
	cr.Status = StatusUpdated
	logger.Info("country updated", "rows", cr.Rows, "no_position", noPos)
	return cr
}

// upToDate reports whether the published CSV is at least as recent as the
// source. Any stat failure other than a missing destination is logged and
// treated as changed.
func (p *Pipeline) upToDate(src, dst string, logger *slog.Logger) bool {
	dstInfo, err := os.Stat(dst)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("cannot read destination time, assuming changed", "path", dst, "error", err)
		}
		return false
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		logger.Warn("cannot read source time, assuming changed", "path", src, "error", err)
		return false
	}
	return !dstInfo.ModTime().Before(srcInfo.ModTime())
}

// exportAll writes the three published formats of name and returns the
// number of rows without a position. The CSV is written last: upToDate
// compares against it, so a failed vector write leaves the country changed.
func (p *Pipeline) exportAll(ctx context.Context, t *table.Table, name string) (int, error) {
	spec := p.layout.Spec
	features, skipped := export.Features(t, spec)
	if err := export.WriteGeoJSON(p.layout.GeoJSON(name), features); err != nil {
		return skipped, &table.IOError{Op: "write geojson", Path: p.layout.GeoJSON(name), Err: err}
	}
	if err := export.WriteGeoPackage(ctx, p.layout.GeoPackage(name), name, spec, features); err != nil {
		return skipped, &table.IOError{Op: "write gpkg", Path: p.layout.GeoPackage(name), Err: err}
	}
	if err := t.SaveFile(p.layout.CSV(name), spec.Columns(), ','); err != nil {
		return skipped, err
	}
	return skipped, nil
}

func (p *Pipeline) publishCombined(ctx context.Context, res *Result, logger *slog.Logger) error {
	var parts []*table.Table
	for _, cc := range p.opts.Countries {
		t, err := table.LoadFile(p.layout.CSV(cc), table.DefaultLoadOptions())
		if err != nil {
			logger.Warn("country left out of combined table", "country", cc, "error", err)
			continue
		}
		parts = append(parts, t)
	}

	all := table.Concat(parts...)
	if missing := NamespaceIDs(all); missing > 0 {
		logger.Warn("rows without identifier in combined table", "rows", missing)
	}
	res.CombinedRows = all.Len()

	noPos, err := p.exportAll(ctx, all, CombinedName)
	if err != nil {
		return fmt.Errorf("combined outputs: %w", err)
	}

	web, skipped := WebExtract(all, p.layout.Spec)
	if err := web.SaveFile(p.layout.WebExtract(), web.Columns(), ','); err != nil {
		return fmt.Errorf("web extract: %w", err)
	}
	res.WebRows = web.Len()
	logger.Info("combined outputs written",
		"rows", all.Len(), "no_position", noPos, "web_rows", web.Len(), "web_skipped", skipped)
	return nil
}
