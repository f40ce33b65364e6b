package country

import (
	"fmt"
	"sort"

	"github.com/JonMunkholm/facility-etl/internal/table"
)

// Rename maps a raw column onto a schema column.
type Rename struct {
	From, To string
}

// ValueMap replaces raw code values of a column, e.g. "J" -> "yes".
type ValueMap struct {
	Column string
	Values map[string]string
}

// Mapping is a declarative transform covering what most national extracts
// need: drop noise columns, rename the rest, recode values and stamp
// constants. Steps run in that order.
type Mapping struct {
	Drop      []string
	Renames   []Rename
	Recode    []ValueMap
	Constants map[string]string
	// Keep, when set, filters rows after the other steps.
	Keep func(table.Row) bool
}

// Transform returns the mapping as a TransformFunc.
func (m Mapping) Transform() TransformFunc {
	return func(raw *table.Table) (*table.Table, error) {
		raw.RemoveColumn(m.Drop...)
		for _, r := range m.Renames {
			if err := raw.RenameColumn(r.From, r.To); err != nil {
				return nil, fmt.Errorf("mapping %s -> %s: %w", r.From, r.To, err)
			}
		}
		for _, vm := range m.Recode {
			for _, r := range raw.Rows() {
				if to, ok := vm.Values[r[vm.Column]]; ok {
					r[vm.Column] = to
				}
			}
		}
		for _, c := range sortedConstantKeys(m.Constants) {
			raw.AddColumn(c, m.Constants[c])
		}
		if m.Keep != nil {
			raw = raw.Filter(m.Keep)
		}
		return raw, nil
	}
}

func sortedConstantKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
