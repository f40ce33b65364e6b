// Package schema declares the shared column schemas every country dataset is
// normalized into, one per service type.
package schema

import "fmt"

// Service identifies a facility dataset family.
type Service string

const (
	Healthcare Service = "healthcare"
	Education  Service = "education"
)

// ParseService maps a name such as "healthcare" to a Service.
func ParseService(s string) (Service, error) {
	switch Service(s) {
	case Healthcare, Education:
		return Service(s), nil
	}
	return "", fmt.Errorf("unknown service %q (want healthcare or education)", s)
}

// FieldType represents the expected data type for a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldInt
	FieldDouble
)

func (t FieldType) String() string {
	switch t {
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldInt:
		return "int"
	case FieldDouble:
		return "double"
	default:
		return "text"
	}
}

// FieldSpec defines the rules for a single column.
type FieldSpec struct {
	Name       string    // Column header name
	Type       FieldType // Expected data type
	Required   bool      // Every row must carry a non-empty value
	EnumValues []string  // Valid values for FieldEnum type; "" is always allowed
	Delimiter  string    // Splits multi-value enum cells, "" for single-valued
}

// Spec is the declared schema of one service.
type Spec struct {
	Service Service
	Label   string
	Fields  []FieldSpec

	// Folder is the source directory name under the configured source root.
	Folder string
	// WebExtractFile is the file name of the projected extract under map/<service>/.
	WebExtractFile string
	// DefaultCountries lists the country codes published when none are configured.
	DefaultCountries []string
}

// Columns returns the column names in declared output order.
func (s Spec) Columns() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Field returns the spec of a column.
func (s Spec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ColumnsOfType returns the names of every column of type t, in order.
func (s Spec) ColumnsOfType(t FieldType) []string {
	var out []string
	for _, f := range s.Fields {
		if f.Type == t {
			out = append(out, f.Name)
		}
	}
	return out
}

// IntColumns are the columns coerced to integers for vector exports.
func (s Spec) IntColumns() []string { return s.ColumnsOfType(FieldInt) }

// DoubleColumns are the columns coerced to floats for vector exports.
func (s Spec) DoubleColumns() []string { return s.ColumnsOfType(FieldDouble) }

// DateColumns hold DD/MM/YYYY dates.
func (s Spec) DateColumns() []string { return s.ColumnsOfType(FieldDate) }

// RequiredColumns must be non-empty on every row.
func (s Spec) RequiredColumns() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}
