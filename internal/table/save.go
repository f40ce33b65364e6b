package table

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
)

// Save writes the header and rows as delimited text using exactly the given
// column order. Columns outside the list are dropped, absent values written
// as "". A nil column list means the table's own columns.
func (t *Table) Save(w io.Writer, columns []string, delimiter rune) error {
	if columns == nil {
		columns = t.columns
	}
	cw := csv.NewWriter(w)
	if delimiter != 0 {
		cw.Comma = delimiter
	}
	if err := cw.Write(columns); err != nil {
		return err
	}
	rec := make([]string, len(columns))
	for _, r := range t.rows {
		for i, c := range columns {
			rec[i] = r[c]
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveFile writes the table to path, creating parent directories. Any
// failure is returned as an *IOError.
func (t *Table) SaveFile(path string, columns []string, delimiter rune) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	if err := t.Save(f, columns, delimiter); err != nil {
		f.Close()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}
