// Package table provides the column-oriented record model shared by every
// country transform: rows are maps from column name to string value, and a
// Table keeps them in insertion order together with a declared column list.
//
// A Table has a single owner. None of its methods are safe for concurrent use.
//
// # Absent vs empty
//
// A column missing from a row's map is "absent"; a column present with ""
// is "empty". Most loaders produce the full column set on every row, but
// the column algebra (Add/Remove/Rename/Join) can leave rows uneven, and the
// validation engine reports columns outside the declared schema rather than
// dropping them.
package table

// Row maps column names to values.
type Row map[string]string

// Get returns the value of column and whether the column is present.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Table is an insertion-ordered sequence of rows sharing a column list.
type Table struct {
	columns []string
	rows    []Row
}

// New creates an empty table declaring the given columns.
func New(columns ...string) *Table {
	t := &Table{}
	for _, c := range columns {
		t.addColumnName(c)
	}
	return t
}

// FromRows creates a table from existing rows. The column list is built from
// the given columns followed by any other column found in the rows, in order
// of first appearance.
func FromRows(columns []string, rows []Row) *Table {
	t := New(columns...)
	t.Append(rows...)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the rows. The slice is shared with the table.
func (t *Table) Rows() []Row { return t.rows }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Columns returns a copy of the column list.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether column is part of the column list.
func (t *Table) HasColumn(column string) bool {
	return t.columnIndex(column) >= 0
}

// Values returns the value of column for every row, "" when absent.
func (t *Table) Values(column string) []string {
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[column]
	}
	return out
}

// Append adds rows to the end of the table, extending the column list with
// columns it does not know yet.
func (t *Table) Append(rows ...Row) {
	for _, r := range rows {
		for _, c := range sortedKeys(r) {
			t.addColumnName(c)
		}
		t.rows = append(t.rows, r)
	}
}

// Concat returns a new table holding the rows of every table in order.
// Rows are shared, not copied.
func Concat(tables ...*Table) *Table {
	out := New()
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.columns {
			out.addColumnName(c)
		}
		out.rows = append(out.rows, t.rows...)
	}
	return out
}

func (t *Table) columnIndex(column string) int {
	for i, c := range t.columns {
		if c == column {
			return i
		}
	}
	return -1
}

func (t *Table) addColumnName(column string) {
	if t.columnIndex(column) < 0 {
		t.columns = append(t.columns, column)
	}
}

func (t *Table) dropColumnName(column string) {
	if i := t.columnIndex(column); i >= 0 {
		t.columns = append(t.columns[:i], t.columns[i+1:]...)
	}
}
