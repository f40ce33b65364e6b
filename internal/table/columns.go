package table

// columns.go holds the column algebra used by country transforms.
//
// Removal is best-effort by default because country scripts routinely remove
// columns an earlier branch already removed. Rename is strict by default
// because overwriting a populated column silently loses data. Both have an
// explicit counterpart (RemoveColumnStrict, RenameColumnOverwrite) so the
// strictness is visible at the call site.

import "sort"

// AddColumn sets column to value on every row and declares it.
// Rows already holding exactly value are left untouched.
func (t *Table) AddColumn(column, value string) {
	t.addColumnName(column)
	for _, r := range t.rows {
		if v, ok := r[column]; ok && v == value {
			continue
		}
		r[column] = value
	}
}

// EnsureColumns declares every column and fills it with def on rows where it
// is absent. Existing values are kept.
func (t *Table) EnsureColumns(columns []string, def string) {
	for _, c := range columns {
		t.addColumnName(c)
		for _, r := range t.rows {
			if _, ok := r[c]; !ok {
				r[c] = def
			}
		}
	}
}

// RemoveColumn deletes the given columns from every row. Absent columns are
// ignored.
func (t *Table) RemoveColumn(columns ...string) {
	for _, c := range columns {
		t.dropColumnName(c)
		for _, r := range t.rows {
			delete(r, c)
		}
	}
}

// RemoveColumnStrict deletes the given columns and fails with a SchemaError
// naming the first column that neither the column list nor any row carries.
// Nothing is removed when it fails.
func (t *Table) RemoveColumnStrict(columns ...string) error {
	for _, c := range columns {
		if !t.present(c) {
			return &SchemaError{Op: "remove", Column: c, Reason: "column not found"}
		}
	}
	t.RemoveColumn(columns...)
	return nil
}

// RenameColumn renames from to to on every row, keeping the position of
// from in the column list. It fails with a SchemaError when to already holds
// a non-empty value on any row. Rows without from are left alone.
func (t *Table) RenameColumn(from, to string) error {
	if from == to {
		return nil
	}
	for i, r := range t.rows {
		if v, ok := r[to]; ok && v != "" {
			return &SchemaError{Op: "rename", Column: to, Row: i + 1, Reason: "destination column is not empty"}
		}
	}
	t.rename(from, to)
	return nil
}

// RenameColumnOverwrite renames from to to, replacing any value to held.
func (t *Table) RenameColumnOverwrite(from, to string) {
	if from == to {
		return
	}
	t.rename(from, to)
}

func (t *Table) rename(from, to string) {
	moved := false
	for _, r := range t.rows {
		v, ok := r[from]
		if !ok {
			continue
		}
		delete(r, from)
		r[to] = v
		moved = true
	}
	fi := t.columnIndex(from)
	ti := t.columnIndex(to)
	switch {
	case fi >= 0 && ti >= 0:
		t.dropColumnName(from)
	case fi >= 0:
		t.columns[fi] = to
	case moved:
		t.addColumnName(to)
	}
}

// SetValue overwrites column with value on every row.
func (t *Table) SetValue(column, value string) {
	t.addColumnName(column)
	for _, r := range t.rows {
		r[column] = value
	}
}

// Replace sets column to to on every row where it currently equals from.
// Absent values count as "" when from is "".
func (t *Table) Replace(column, from, to string) int {
	n := 0
	for _, r := range t.rows {
		if r[column] == from {
			r[column] = to
			n++
		}
	}
	return n
}

// Filter returns a new table with the rows matching pred, in order.
// Rows are shared with the receiver.
func (t *Table) Filter(pred func(Row) bool) *Table {
	out := New(t.columns...)
	for _, r := range t.rows {
		if pred(r) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

func (t *Table) present(column string) bool {
	if t.HasColumn(column) {
		return true
	}
	for _, r := range t.rows {
		if _, ok := r[column]; ok {
			return true
		}
	}
	return false
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
