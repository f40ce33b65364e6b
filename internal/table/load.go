package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// utf8BOM is prepended by some Windows exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LoadOptions controls how delimited text is parsed.
type LoadOptions struct {
	Delimiter rune // default ','
	HasHeader bool
	Source    string // used in error messages only
}

// DefaultLoadOptions reads comma-separated text with a header row.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Delimiter: ',', HasHeader: true}
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string, opts LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	if opts.Source == "" {
		opts.Source = path
	}
	return Load(f, opts)
}

// Load parses delimited text into a Table. Either every row loads or an error
// is returned: a missing header or a row whose field count differs from the
// header yields a *FormatError. Without a header, columns are named
// col_1..col_n after the first record.
func Load(r io.Reader, opts LoadOptions) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &IOError{Op: "read", Path: opts.Source, Err: err}
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	data = bytes.ToValidUTF8(data, []byte("�"))

	reader := csv.NewReader(bytes.NewReader(data))
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	// FieldsPerRecord 0: every record must match the first one.
	reader.FieldsPerRecord = 0

	records, err := reader.ReadAll()
	if err != nil {
		return nil, formatErrorFrom(opts.Source, err)
	}
	if len(records) == 0 {
		return nil, &FormatError{Source: opts.Source, Reason: "missing header"}
	}

	var header []string
	body := records
	if opts.HasHeader {
		header = records[0]
		body = records[1:]
		if err := checkHeader(header); err != nil {
			return nil, &FormatError{Source: opts.Source, Line: 1, Reason: err.Error()}
		}
	} else {
		header = make([]string, len(records[0]))
		for i := range header {
			header[i] = fmt.Sprintf("col_%d", i+1)
		}
	}

	t := &Table{columns: header, rows: make([]Row, 0, len(body))}
	for _, rec := range body {
		row := make(Row, len(header))
		for i, h := range header {
			row[h] = rec[i]
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// checkHeader rejects blank and repeated column names, which would make rows
// silently lose values.
func checkHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return fmt.Errorf("empty column name at position %d", i+1)
		}
		if seen[h] {
			return fmt.Errorf("duplicate column name %q", h)
		}
		seen[h] = true
		header[i] = h
	}
	return nil
}

func formatErrorFrom(source string, err error) *FormatError {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		reason := "parse error"
		if errors.Is(pe.Err, csv.ErrFieldCount) {
			reason = "field count does not match header"
		}
		return &FormatError{Source: source, Line: pe.Line, Reason: reason, Err: pe.Err}
	}
	return &FormatError{Source: source, Reason: "parse error", Err: err}
}
