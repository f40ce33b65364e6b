// Package validate runs the column-level checks of a country dataset and
// reports every violation as a structured record. Validation is advisory:
// nothing in this package stops a publication.
package validate

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

// Check names used in violations.
const (
	CheckUnexpectedColumns = "unexpected_columns"
	CheckNotEmpty          = "not_empty"
	CheckIDUnique          = "id_unique"
	CheckValuesAmongName   = "values_among"
	CheckDateFormatName    = "date_format"
	CheckIntValuesName     = "int_values"
	CheckGeoExtentName     = "geo_extent"
	CheckGeoDecode         = "geo_decode"
)

// Violation is one failed check. Row is 1-based and 0 for checks that are
// not tied to a single row.
type Violation struct {
	Check   string   `json:"check"`
	Country string   `json:"country"`
	Column  string   `json:"column,omitempty"`
	Values  []string `json:"values,omitempty"`
	Row     int      `json:"row,omitempty"`
	Message string   `json:"message"`
}

func (v Violation) String() string {
	if v.Row > 0 {
		return fmt.Sprintf("%s: %s (row %d)", v.Country, v.Message, v.Row)
	}
	return fmt.Sprintf("%s: %s", v.Country, v.Message)
}

// Report collects the violations of one country dataset.
type Report struct {
	Service    schema.Service `json:"service"`
	Country    string         `json:"country"`
	Rows       int            `json:"rows"`
	Violations []Violation    `json:"violations"`
}

// OK reports whether no check failed.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// ByCheck returns the violations of one check.
func (r Report) ByCheck(check string) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Check == check {
			out = append(out, v)
		}
	}
	return out
}

// Log writes every violation as a warning, or a single info line when the
// dataset is clean.
func (r Report) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if r.OK() {
		logger.Info("validation passed", "service", r.Service, "country", r.Country, "rows", r.Rows)
		return
	}
	for _, v := range r.Violations {
		attrs := []any{"service", r.Service, "country", r.Country, "check", v.Check}
		if v.Column != "" {
			attrs = append(attrs, "column", v.Column)
		}
		if v.Row > 0 {
			attrs = append(attrs, "row", v.Row)
		}
		if len(v.Values) > 0 {
			attrs = append(attrs, "values", strings.Join(v.Values, ", "))
		}
		logger.Warn(v.Message, attrs...)
	}
	logger.Warn("validation finished with violations", "service", r.Service, "country", r.Country, "violations", len(r.Violations))
}

// Engine runs the check battery.
type Engine struct {
	// ShowValues adds the offending value to enum and type check messages.
	ShowValues bool
}

// Validate runs every check over t, each independently of the others. The
// battery is derived from spec: required columns must be non-empty, enum
// columns hold allowed values, date columns parse, integer columns parse.
// On top of that the id column must be unique, cc must equal the country
// code and positions must lie on the globe.
func (e Engine) Validate(t *table.Table, cc string, spec schema.Spec) Report {
	rows := t.Rows()
	rep := Report{Service: spec.Service, Country: cc, Rows: len(rows)}
	add := func(v Violation) {
		v.Country = cc
		rep.Violations = append(rep.Violations, v)
	}

	if extra := CheckNoUnexpectedColumn(rows, spec.Columns()); len(extra) > 0 {
		add(Violation{
			Check:   CheckUnexpectedColumns,
			Values:  extra,
			Message: "unexpected columns: " + strings.Join(extra, ", "),
		})
	}

	if !CheckValuesNotEmpty(rows, "id") {
		add(Violation{Check: CheckNotEmpty, Column: "id", Message: "identifier not provided"})
	}
	if dup := CheckIDUnicity(rows, "id"); len(dup) > 0 {
		add(Violation{
			Check:   CheckIDUnique,
			Column:  "id",
			Values:  dup,
			Message: fmt.Sprintf("%d non unique identifiers", len(dup)),
		})
	}

	if ok, bad := CheckValuesAmong(rows, "cc", "", cc); !ok {
		add(e.among("cc", bad))
	}

	for _, f := range spec.Fields {
		switch f.Type {
		case schema.FieldEnum:
			if ok, bad := CheckValuesAmong(rows, f.Name, f.Delimiter, f.EnumValues...); !ok {
				add(e.among(f.Name, bad))
			}
		case schema.FieldDate:
			if ok, bad := CheckDateFormat(rows, f.Name); !ok {
				add(e.typed(CheckDateFormatName, f.Name, bad, "format"))
			}
		case schema.FieldInt:
			if ok, bad := CheckIntValues(rows, f.Name); !ok {
				add(e.typed(CheckIntValuesName, f.Name, bad, "non-integer values"))
			}
		}
	}

	for _, c := range spec.RequiredColumns() {
		if c == "id" {
			continue
		}
		if !CheckValuesNotEmpty(rows, c) {
			add(Violation{Check: CheckNotEmpty, Column: c, Message: "missing values for " + c})
		}
	}

	for _, v := range CheckGeoExtent(rows, "lon", "lat") {
		add(v)
	}
	return rep
}

func (e Engine) among(column, bad string) Violation {
	v := Violation{Check: CheckValuesAmongName, Column: column, Message: "problem with " + column + " values"}
	if e.ShowValues {
		v.Values = []string{bad}
		v.Message = fmt.Sprintf("unexpected value %q for column %s", bad, column)
	}
	return v
}

func (e Engine) typed(check, column, bad, what string) Violation {
	v := Violation{Check: check, Column: column, Message: fmt.Sprintf("problem with %s %s", column, what)}
	if e.ShowValues && bad != "" {
		v.Values = []string{bad}
		v.Message += fmt.Sprintf(": %q", bad)
	}
	return v
}
