package table

import (
	"bytes"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// ============================================================================
// Load Tests
// ============================================================================

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    LoadOptions
		columns []string
		rows    int
	}{
		{
			name:    "comma with header",
			input:   "id,name\n1,a\n2,b\n",
			opts:    DefaultLoadOptions(),
			columns: []string{"id", "name"},
			rows:    2,
		},
		{
			name:    "semicolon with header",
			input:   "id;name\n1;a\n",
			opts:    LoadOptions{Delimiter: ';', HasHeader: true},
			columns: []string{"id", "name"},
			rows:    1,
		},
		{
			name:    "no header",
			input:   "1,a,x\n2,b,y\n",
			opts:    LoadOptions{Delimiter: ',', HasHeader: false},
			columns: []string{"col_1", "col_2", "col_3"},
			rows:    2,
		},
		{
			name:    "header only",
			input:   "id,name\n",
			opts:    DefaultLoadOptions(),
			columns: []string{"id", "name"},
			rows:    0,
		},
		{
			name:    "BOM is stripped",
			input:   "\xEF\xBB\xBFid,name\n1,a\n",
			opts:    DefaultLoadOptions(),
			columns: []string{"id", "name"},
			rows:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Load(strings.NewReader(tt.input), tt.opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(tbl.Columns(), tt.columns) {
				t.Errorf("columns = %v, want %v", tbl.Columns(), tt.columns)
			}
			if tbl.Len() != tt.rows {
				t.Errorf("rows = %d, want %d", tbl.Len(), tt.rows)
			}
		})
	}
}

func TestLoad_FormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "field count mismatch", input: "id,name\n1,a\n2\n"},
		{name: "duplicate header", input: "id,id\n1,2\n"},
		{name: "blank header", input: "id,\n1,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Load(strings.NewReader(tt.input), DefaultLoadOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			if tbl != nil {
				t.Error("expected no partial table")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %T", err)
			}
			if MapError(err).Code != "FMT001" {
				t.Errorf("code = %s, want FMT001", MapError(err).Code)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"), DefaultLoadOptions())
	var ie *IOError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *IOError, got %v", err)
	}
}

// ============================================================================
// Save Tests
// ============================================================================

func TestSaveLoad_RoundTrip(t *testing.T) {
	src := FromRows([]string{"id", "name", "city"}, []Row{
		{"id": "1", "name": "Clinic \"North\"", "city": "Oslo"},
		{"id": "2", "name": "", "city": "Bergen", "extra": "dropped"},
	})
	columns := []string{"id", "name", "city"}
	path := filepath.Join(t.TempDir(), "out", "NO.csv")

	if err := src.SaveFile(path, columns, ','); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadFile(path, DefaultLoadOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Columns(), columns) {
		t.Fatalf("columns = %v, want %v", got.Columns(), columns)
	}
	for i, r := range src.Rows() {
		for _, c := range columns {
			if got.Row(i)[c] != r[c] {
				t.Errorf("row %d column %s = %q, want %q", i, c, got.Row(i)[c], r[c])
			}
		}
	}
	if got.HasColumn("extra") {
		t.Error("column outside the list should be dropped")
	}
}

func TestSave_ColumnOrder(t *testing.T) {
	tbl := FromRows(nil, []Row{{"a": "1", "b": "2"}})
	var buf bytes.Buffer
	if err := tbl.Save(&buf, []string{"b", "a", "c"}, ';'); err != nil {
		t.Fatal(err)
	}
	want := "b;a;c\n2;1;\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestSaveFile_Unwritable(t *testing.T) {
	dir := t.TempDir()
	tbl := New("id")
	// The destination is an existing directory.
	err := tbl.SaveFile(dir, nil, ',')
	var ie *IOError
	if !errors.As(err, &ie) {
		t.Fatalf("expected *IOError, got %v", err)
	}
}

// ============================================================================
// Column Algebra Tests
// ============================================================================

func TestAddColumn(t *testing.T) {
	tbl := FromRows([]string{"id"}, []Row{{"id": "1"}, {"id": "2", "cc": "FR"}})
	tbl.AddColumn("cc", "NO")

	for i, v := range tbl.Values("cc") {
		if v != "NO" {
			t.Errorf("row %d cc = %q, want NO", i, v)
		}
	}
	if !tbl.HasColumn("cc") {
		t.Error("cc should be declared")
	}
}

func TestRemoveColumn_Idempotent(t *testing.T) {
	tbl := FromRows([]string{"id", "tmp"}, []Row{{"id": "1", "tmp": "x"}})
	tbl.RemoveColumn("tmp")
	tbl.RemoveColumn("tmp", "never_there")

	if tbl.HasColumn("tmp") {
		t.Error("tmp still declared")
	}
	if _, ok := tbl.Row(0)["tmp"]; ok {
		t.Error("tmp still on row")
	}
}

func TestRemoveColumnStrict(t *testing.T) {
	tbl := FromRows([]string{"id", "tmp"}, []Row{{"id": "1", "tmp": "x"}})

	err := tbl.RemoveColumnStrict("tmp", "missing")
	var se *SchemaError
	if !errors.As(err, &se) || se.Column != "missing" {
		t.Fatalf("expected SchemaError on missing, got %v", err)
	}
	if !tbl.HasColumn("tmp") {
		t.Error("nothing should be removed on failure")
	}
	if err := tbl.RemoveColumnStrict("tmp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRenameColumn(t *testing.T) {
	t.Run("renames in place", func(t *testing.T) {
		tbl := FromRows([]string{"a", "navn", "b"}, []Row{{"a": "1", "navn": "x", "b": "2"}})
		if err := tbl.RenameColumn("navn", "name"); err != nil {
			t.Fatal(err)
		}
		want := []string{"a", "name", "b"}
		if !reflect.DeepEqual(tbl.Columns(), want) {
			t.Errorf("columns = %v, want %v", tbl.Columns(), want)
		}
		if tbl.Row(0)["name"] != "x" {
			t.Errorf("name = %q", tbl.Row(0)["name"])
		}
	})

	t.Run("empty destination is replaced", func(t *testing.T) {
		tbl := FromRows([]string{"navn", "name"}, []Row{{"navn": "x", "name": ""}})
		if err := tbl.RenameColumn("navn", "name"); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(tbl.Columns(), []string{"name"}) {
			t.Errorf("columns = %v", tbl.Columns())
		}
	})

	t.Run("populated destination is refused", func(t *testing.T) {
		tbl := FromRows([]string{"navn", "name"}, []Row{{"navn": "x", "name": "y"}})
		err := tbl.RenameColumn("navn", "name")
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Fatalf("expected SchemaError, got %v", err)
		}
		if se.Row != 1 {
			t.Errorf("row = %d, want 1", se.Row)
		}
		if tbl.Row(0)["name"] != "y" || tbl.Row(0)["navn"] != "x" {
			t.Error("table modified on failure")
		}
	})

	t.Run("overwrite variant", func(t *testing.T) {
		tbl := FromRows([]string{"navn", "name"}, []Row{{"navn": "x", "name": "y"}})
		tbl.RenameColumnOverwrite("navn", "name")
		if tbl.Row(0)["name"] != "x" {
			t.Errorf("name = %q, want x", tbl.Row(0)["name"])
		}
	})
}

func TestSetValueAndReplace(t *testing.T) {
	tbl := FromRows([]string{"emergency"}, []Row{{"emergency": "ja"}, {"emergency": "nei"}, {"emergency": "ja"}})
	if n := tbl.Replace("emergency", "ja", "yes"); n != 2 {
		t.Errorf("replaced %d, want 2", n)
	}
	tbl.SetValue("ref_date", "01/01/2024")
	for _, r := range tbl.Rows() {
		if r["ref_date"] != "01/01/2024" {
			t.Errorf("ref_date = %q", r["ref_date"])
		}
	}
}

func TestFilter(t *testing.T) {
	tbl := FromRows([]string{"id", "type"}, []Row{
		{"id": "1", "type": "hospital"},
		{"id": "2", "type": "clinic"},
		{"id": "3", "type": "hospital"},
	})
	got := tbl.Filter(func(r Row) bool { return r["type"] == "hospital" })

	if !reflect.DeepEqual(got.Values("id"), []string{"1", "3"}) {
		t.Errorf("ids = %v", got.Values("id"))
	}
	if tbl.Len() != 3 {
		t.Error("source table modified")
	}
}

func TestConcat(t *testing.T) {
	a := FromRows([]string{"id"}, []Row{{"id": "1"}})
	b := FromRows([]string{"id", "cc"}, []Row{{"id": "2", "cc": "DE"}})
	got := Concat(a, nil, b)

	if got.Len() != 2 {
		t.Fatalf("len = %d", got.Len())
	}
	if !reflect.DeepEqual(got.Columns(), []string{"id", "cc"}) {
		t.Errorf("columns = %v", got.Columns())
	}
}

// ============================================================================
// Join Tests
// ============================================================================

func TestJoin(t *testing.T) {
	left := FromRows([]string{"id", "city_code"}, []Row{
		{"id": "1", "city_code": "0301"},
		{"id": "2", "city_code": "9999"},
	})
	right := FromRows([]string{"code", "city", "id"}, []Row{
		{"code": "0301", "city": "Oslo", "id": "right"},
	})

	res, err := left.Join("city_code", right, "code", JoinOptions{WarnOnMiss: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 1 {
		t.Errorf("matched = %d, want 1", res.Matched)
	}
	if !reflect.DeepEqual(res.Missed, []string{"9999"}) {
		t.Errorf("missed = %v", res.Missed)
	}
	if left.Row(0)["city"] != "Oslo" {
		t.Errorf("city = %q", left.Row(0)["city"])
	}
	if left.Row(0)["id"] != "1" {
		t.Error("left value should win on collision")
	}
	if _, ok := left.Row(1)["city"]; ok {
		t.Error("unmatched row should be unmodified")
	}
}

func TestJoin_DuplicateKeys(t *testing.T) {
	right := FromRows([]string{"code", "city"}, []Row{
		{"code": "1", "city": "first"},
		{"code": "1", "city": "last"},
	})

	t.Run("last write wins", func(t *testing.T) {
		left := FromRows([]string{"k"}, []Row{{"k": "1"}})
		if _, err := left.Join("k", right, "code", JoinOptions{}); err != nil {
			t.Fatal(err)
		}
		if left.Row(0)["city"] != "last" {
			t.Errorf("city = %q, want last", left.Row(0)["city"])
		}
	})

	t.Run("strict", func(t *testing.T) {
		left := FromRows([]string{"k"}, []Row{{"k": "1"}})
		_, err := left.Join("k", right, "code", JoinOptions{Strict: true})
		var ae *AmbiguousKeyError
		if !errors.As(err, &ae) {
			t.Fatalf("expected AmbiguousKeyError, got %v", err)
		}
		if ae.Count != 2 {
			t.Errorf("count = %d", ae.Count)
		}
		if _, ok := left.Row(0)["city"]; ok {
			t.Error("strict failure should leave the table unmodified")
		}
	})
}

func TestMapError_Unknown(t *testing.T) {
	if got := MapError(errors.New("boom")).Code; got != "ERR000" {
		t.Errorf("code = %s", got)
	}
}
