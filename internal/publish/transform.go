package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/facility-etl/internal/country"
	"github.com/JonMunkholm/facility-etl/internal/geocode"
	"github.com/JonMunkholm/facility-etl/internal/table"
	"github.com/JonMunkholm/facility-etl/internal/validate"
)

// Transformer runs a country adapter: raw extract in, normalized source
// table out.
type Transformer struct {
	Layout   Layout
	Geocoder geocode.Geocoder // nil disables geocoding
	Policy   geocode.Policy
	Geocode  geocode.Options
	Logger   *slog.Logger
}

// TransformResult describes a country transform.
type TransformResult struct {
	Country    string
	Rows       int
	Output     string
	Geocoded   geocode.Tally
	Improved   geocode.Tally
	Validation validate.Report
}

// Run loads the raw extract at inPath (the adapter's source file in the
// country folder when empty), applies the adapter, completes the schema
// columns, geocodes when a geocoder is set, validates and writes
// Layout.SourceCSV in schema order.
func (tr *Transformer) Run(ctx context.Context, a country.Adapter, inPath string) (*TransformResult, error) {
	logger := tr.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", a.Service, "country", a.Code)
	spec := tr.Layout.Spec
	if a.Service != spec.Service {
		return nil, fmt.Errorf("adapter %s does not belong to %s", a.Key(), spec.Service)
	}

	if inPath == "" {
		inPath = tr.Layout.RawFile(a.Code, a.Source)
	}
	raw, err := table.LoadFile(inPath, table.LoadOptions{Delimiter: a.Delimiter, HasHeader: true})
	if err != nil {
		return nil, err
	}
	logger.Info("raw extract loaded", "path", inPath, "rows", raw.Len())

	t, err := a.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("transform %s: %w", a.Key(), err)
	}
	t.EnsureColumns(spec.Columns(), "")
	t.Replace("cc", "", a.Code)

	res := &TransformResult{Country: a.Code, Rows: t.Len()}

	switch {
	case tr.Geocoder != nil:
		opts := tr.Geocode
		opts.Logger = logger
		var missing, located []table.Row
		for _, r := range t.Rows() {
			if a.Geocode || !geocode.HasPosition(r, opts) {
				missing = append(missing, r)
			} else {
				located = append(located, r)
			}
		}
		if res.Geocoded, err = geocode.SetAll(ctx, tr.Geocoder, missing, opts); err != nil {
			return nil, err
		}
		if res.Improved, err = geocode.ImproveAll(ctx, tr.Geocoder, located, tr.Policy, opts); err != nil {
			return nil, err
		}
	case a.Geocode:
		logger.Warn("adapter expects geocoding but no geocoder is configured")
	}

	res.Validation = validate.Engine{ShowValues: true}.Validate(t, a.Code, spec)
	res.Validation.Log(logger)

	res.Output = tr.Layout.SourceCSV(a.Code)
	if err := t.SaveFile(res.Output, spec.Columns(), ','); err != nil {
		return nil, err
	}
	logger.Info("country table written", "path", res.Output, "rows", t.Len())
	return res, nil
}
