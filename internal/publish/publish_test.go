package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/facility-etl/internal/country"
	"github.com/JonMunkholm/facility-etl/internal/geocode"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC) }

func testLayout(t *testing.T) Layout {
	t.Helper()
	root := t.TempDir()
	return Layout{
		SourceDir: filepath.Join(root, "src"),
		OutputDir: filepath.Join(root, "out"),
		Spec:      schema.HealthcareSpec,
	}
}

// writeSource writes a normalized country table.
func writeSource(t *testing.T, l Layout, cc string, rows ...table.Row) {
	t.Helper()
	tbl := table.FromRows(l.Spec.Columns(), rows)
	if err := tbl.SaveFile(l.SourceCSV(cc), nil, ','); err != nil {
		t.Fatalf("write source %s: %v", cc, err)
	}
}

func hospital(id, cc string, lon, lat string) table.Row {
	return table.Row{
		"id":            id,
		"hospital_name": "Hospital " + id,
		"lon":           lon,
		"lat":           lat,
		"geo_qual":      "1",
		"cc":            cc,
		"cap_beds":      "120",
		"ref_date":      "01/01/2023",
	}
}

func loadCSV(t *testing.T, path string) *table.Table {
	t.Helper()
	tbl, err := table.LoadFile(path, table.DefaultLoadOptions())
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	return tbl
}

func assertExists(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
}

// ============================================================================
// Pipeline Tests
// ============================================================================

func TestRunPublishesCountriesAndCombined(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))
	writeSource(t, l, "DE", hospital("1", "DE", "10", "52"), hospital("DE_2", "DE", "13.4", "52.5"))

	p := New(l, Options{Countries: []string{"FR", "DE"}, Now: fixedNow, Validate: true})
	res, err := p.Run(context.Background(), "manual")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Count(StatusUpdated) != 2 || !res.Changed {
		t.Fatalf("updated = %d, changed = %v, want 2, true", res.Count(StatusUpdated), res.Changed)
	}
	if res.CombinedRows != 3 || res.WebRows != 3 {
		t.Errorf("combined = %d, web = %d, want 3, 3", res.CombinedRows, res.WebRows)
	}
	for _, name := range []string{"FR", "DE", CombinedName} {
		assertExists(t, l.CSV(name), l.GeoJSON(name), l.GeoPackage(name))
	}

	fr := loadCSV(t, l.CSV("FR"))
	if got := fr.Row(0)["country"]; got != "France" {
		t.Errorf("country = %q, want France", got)
	}
	if got := fr.Row(0)["pub_date"]; got != "07/03/2024" {
		t.Errorf("pub_date = %q, want 07/03/2024", got)
	}
	if got := fr.Row(0)["id"]; got != "1" {
		t.Errorf("country file id = %q, want unprefixed 1", got)
	}

	all := loadCSV(t, l.CSV(CombinedName))
	ids := strings.Join(all.Values("id"), ",")
	if ids != "FR_1,DE_1,DE_2" {
		t.Errorf("combined ids = %s, want FR_1,DE_1,DE_2", ids)
	}
	if strings.Join(all.Columns(), ",") != strings.Join(l.Spec.Columns(), ",") {
		t.Errorf("combined columns = %v", all.Columns())
	}

	web := loadCSV(t, l.WebExtract())
	if strings.Join(web.Columns(), ",") != strings.Join(WebColumns(l.Spec), ",") {
		t.Errorf("web columns = %v", web.Columns())
	}
	if x, y := web.Row(1)["x"], web.Row(1)["y"]; x != "4321000" || y != "3210000" {
		t.Errorf("DE_1 projected to (%s, %s), want (4321000, 3210000)", x, y)
	}
}

func TestRunSkipsUnchangedCountries(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))
	writeSource(t, l, "DE", hospital("1", "DE", "10", "52"))

	ctx := context.Background()
	p := New(l, Options{Countries: []string{"FR", "DE"}, Now: fixedNow})
	if _, err := p.Run(ctx, "manual"); err != nil {
		t.Fatalf("first run: %v", err)
	}

	res, err := p.Run(ctx, "manual")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Count(StatusSkipped) != 2 || res.Changed {
		t.Fatalf("skipped = %d, changed = %v, want 2, false", res.Count(StatusSkipped), res.Changed)
	}
	if res.CombinedRows != 0 {
		t.Errorf("combined rows = %d, want 0 when nothing changed", res.CombinedRows)
	}

	// Touch the French source after its publication.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(l.SourceCSV("FR"), future, future); err != nil {
		t.Fatal(err)
	}
	res, err = p.Run(ctx, "manual")
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if res.Countries[0].Status != StatusUpdated || res.Countries[1].Status != StatusSkipped {
		t.Errorf("statuses = %s, %s, want updated, skipped", res.Countries[0].Status, res.Countries[1].Status)
	}
	if res.CombinedRows != 2 {
		t.Errorf("combined rows = %d, want 2", res.CombinedRows)
	}
}

func TestRunForceRepublishes(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))

	ctx := context.Background()
	if _, err := New(l, Options{Countries: []string{"FR"}}).Run(ctx, "manual"); err != nil {
		t.Fatal(err)
	}
	res, err := New(l, Options{Countries: []string{"FR"}, Force: true}).Run(ctx, "manual")
	if err != nil {
		t.Fatal(err)
	}
	if res.Count(StatusUpdated) != 1 {
		t.Errorf("updated = %d, want 1 with force", res.Count(StatusUpdated))
	}
}

func TestRunFailedCountryDoesNotAbort(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))

	// Ragged row: the loader refuses the whole file.
	bad := l.SourceCSV("DE")
	if err := os.MkdirAll(filepath.Dir(bad), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("id,lat,lon\n1,52\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := NewMemoryRecorder(10)
	p := New(l, Options{Countries: []string{"DE", "IT", "FR"}, Recorder: rec})
	res, err := p.Run(context.Background(), "manual")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Count(StatusFailed) != 2 || res.Count(StatusUpdated) != 1 {
		t.Fatalf("failed = %d, updated = %d, want 2, 1", res.Count(StatusFailed), res.Count(StatusUpdated))
	}
	if res.Countries[0].Error == "" {
		t.Error("failed country has no error message")
	}
	if res.CombinedRows != 1 {
		t.Errorf("combined rows = %d, want 1", res.CombinedRows)
	}

	runs := rec.Runs(0)
	if len(runs) != 1 || runs[0].RunID != res.RunID {
		t.Errorf("recorded runs = %d, want the run just made", len(runs))
	}
}

func TestRunFailedVectorExportRetriesNextRun(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))

	// A directory in place of the GeoJSON file makes the vector write fail.
	blocker := l.GeoJSON("FR")
	if err := os.MkdirAll(blocker, 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	p := New(l, Options{Countries: []string{"FR"}})
	res, err := p.Run(ctx, "manual")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if res.Countries[0].Status != StatusFailed {
		t.Fatalf("first run status = %s, want failed", res.Countries[0].Status)
	}
	if _, err := os.Stat(l.CSV("FR")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("csv written after a failed vector export: %v", err)
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	res, err = p.Run(ctx, "manual")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Countries[0].Status != StatusUpdated {
		t.Fatalf("second run status = %s, want updated", res.Countries[0].Status)
	}
	assertExists(t, l.CSV("FR"), l.GeoJSON("FR"), l.GeoPackage("FR"))
}

func TestRunRowsWithoutPosition(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"), hospital("2", "FR", "", ""))

	res, err := New(l, Options{Countries: []string{"FR"}}).Run(context.Background(), "manual")
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Countries[0].NoPosition; got != 1 {
		t.Errorf("no_position = %d, want 1", got)
	}
	if res.WebRows != 1 {
		t.Errorf("web rows = %d, want 1", res.WebRows)
	}
	// The CSV keeps every row.
	if n := loadCSV(t, l.CSV("FR")).Len(); n != 2 {
		t.Errorf("csv rows = %d, want 2", n)
	}
}

func TestRunCancelled(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := NewMemoryRecorder(1)
	res, err := New(l, Options{Countries: []string{"FR"}, Recorder: rec}).Run(ctx, "manual")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(res.Countries) != 0 || res.Error == "" {
		t.Errorf("countries = %d, error = %q", len(res.Countries), res.Error)
	}
	if len(rec.Runs(0)) != 1 {
		t.Error("cancelled run was not recorded")
	}
}

// ============================================================================
// Combine Tests
// ============================================================================

func TestNamespaceIDs(t *testing.T) {
	tbl := table.FromRows([]string{"id", "cc"}, []table.Row{
		{"id": "1", "cc": "FR"},
		{"id": "FR123", "cc": "FR"},
		{"id": "7", "cc": ""},
		{"id": "", "cc": "DE"},
	})
	if missing := NamespaceIDs(tbl); missing != 1 {
		t.Errorf("missing = %d, want 1", missing)
	}
	want := []string{"FR_1", "FR123", "7", ""}
	for i, w := range want {
		if got := tbl.Row(i)["id"]; got != w {
			t.Errorf("row %d id = %q, want %q", i, got, w)
		}
	}
}

func TestWebColumns(t *testing.T) {
	cols := WebColumns(schema.EducationSpec)
	if cols[0] != "x" || cols[1] != "y" || cols[2] != "name" {
		t.Errorf("leading columns = %v", cols[:3])
	}
	for _, c := range cols {
		if webDropped[c] {
			t.Errorf("web extract keeps dropped column %s", c)
		}
	}
}

func TestWebExtractLeavesInputUntouched(t *testing.T) {
	tbl := table.FromRows(schema.HealthcareSpec.Columns(), []table.Row{
		hospital("1", "FR", "5", "50"),
		hospital("2", "FR", "n/a", "50"),
	})
	web, skipped := WebExtract(tbl, schema.HealthcareSpec)
	if skipped != 1 || web.Len() != 1 {
		t.Fatalf("skipped = %d, rows = %d, want 1, 1", skipped, web.Len())
	}
	if x, y := web.Row(0)["x"], web.Row(0)["y"]; x != "3962799" || y != "2999719" {
		t.Errorf("projected (%s, %s), want (3962799, 2999719)", x, y)
	}
	if tbl.Row(0)["lon"] != "5" || tbl.HasColumn("x") {
		t.Error("input table modified")
	}
}

// ============================================================================
// Transformer Tests
// ============================================================================

func TestTransformerRun(t *testing.T) {
	l := testLayout(t)
	raw := l.RawFile("NO", "raw.csv")
	if err := os.MkdirAll(filepath.Dir(raw), 0o755); err != nil {
		t.Fatal(err)
	}
	data := "nr,navn,gate,by\n10,Ullevål,Kirkeveien 166,Oslo\n11,Haukeland,,Bergen\n"
	if err := os.WriteFile(raw, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	adapter := country.Adapter{
		Code:      "NO",
		Service:   schema.Healthcare,
		Source:    "raw.csv",
		Delimiter: ',',
		Geocode:   true,
		Transform: country.Mapping{
			Renames:   []country.Rename{{From: "nr", To: "id"}, {From: "navn", To: "hospital_name"}, {From: "gate", To: "street"}, {From: "by", To: "city"}},
			Constants: map[string]string{"ref_date": "01/01/2020"},
		}.Transform(),
	}

	var seen []geocode.Address
	gc := geocode.GeocoderFunc(func(_ context.Context, a geocode.Address, _ bool) (geocode.Result, error) {
		seen = append(seen, a)
		if a.Street == "" {
			return geocode.Result{Quality: geocode.Unknown}, nil
		}
		return geocode.Result{Lon: 10.72, Lat: 59.94, Quality: geocode.Good}, nil
	})

	tr := &Transformer{Layout: l, Geocoder: gc}
	res, err := tr.Run(context.Background(), adapter, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rows != 2 || res.Geocoded.Total != 2 || res.Geocoded.Failures != 1 {
		t.Errorf("rows = %d, geocoded = %+v", res.Rows, res.Geocoded)
	}
	if len(seen) != 2 {
		t.Errorf("geocoder called %d times, want 2", len(seen))
	}

	out := loadCSV(t, res.Output)
	if strings.Join(out.Columns(), ",") != strings.Join(l.Spec.Columns(), ",") {
		t.Errorf("columns = %v, want schema order", out.Columns())
	}
	first := out.Row(0)
	if first["cc"] != "NO" || first["lat"] != "59.94" || first["geo_qual"] != "1" {
		t.Errorf("first row = %v", first)
	}
	if q := out.Row(1)["geo_qual"]; q != "-1" {
		t.Errorf("failed row geo_qual = %q, want -1", q)
	}
}

func TestTransformerRejectsOtherService(t *testing.T) {
	l := testLayout(t)
	a := country.Adapter{Code: "EE", Service: schema.Education, Transform: func(t *table.Table) (*table.Table, error) { return t, nil }}
	if _, err := (&Transformer{Layout: l}).Run(context.Background(), a, ""); err == nil {
		t.Error("expected error for education adapter on healthcare layout")
	}
}

// ============================================================================
// Runner Tests
// ============================================================================

func TestRunnerBusySlot(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))
	r := NewRunner(20*time.Millisecond, New(l, Options{Countries: []string{"FR"}}))

	// Hold the healthcare slot as a running job would.
	r.slots[schema.Healthcare] <- struct{}{}
	if _, err := r.Run(context.Background(), schema.Healthcare, "api"); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("err = %v, want ErrRunInProgress", err)
	}
	<-r.slots[schema.Healthcare]

	res, err := r.Run(context.Background(), schema.Healthcare, "api")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Last(schema.Healthcare) != res {
		t.Error("Last does not return the latest result")
	}
	if r.ActiveCount() != 0 {
		t.Errorf("active = %d after run", r.ActiveCount())
	}
	if err := r.WaitForDrain(context.Background()); err != nil {
		t.Errorf("WaitForDrain: %v", err)
	}
}

func TestRunnerUnknownService(t *testing.T) {
	r := NewRunner(0, New(testLayout(t), Options{}))
	if _, err := r.Run(context.Background(), schema.Education, "api"); err == nil {
		t.Error("expected error for unconfigured service")
	}
	if got := r.Services(); len(got) != 1 || got[0] != schema.Healthcare {
		t.Errorf("services = %v", got)
	}
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	r := NewRunner(0)
	if _, err := NewScheduler(r, "every tuesday"); err == nil {
		t.Error("expected error for invalid schedule")
	}
	if _, err := NewScheduler(r, "@daily"); err != nil {
		t.Errorf("@daily: %v", err)
	}
}

// ============================================================================
// Watcher Tests
// ============================================================================

func TestWatcherRelevant(t *testing.T) {
	dir := filepath.Join("src", "healthcare", "FR")
	w := &Watcher{dirs: map[string]schema.Service{dir: schema.Healthcare}}

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write country table", fsnotify.Event{Name: filepath.Join(dir, "FR.csv"), Op: fsnotify.Write}, true},
		{"create country table", fsnotify.Event{Name: filepath.Join(dir, "FR.csv"), Op: fsnotify.Create}, true},
		{"raw extract", fsnotify.Event{Name: filepath.Join(dir, "raw.csv"), Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: filepath.Join(dir, "FR.csv"), Op: fsnotify.Chmod}, false},
		{"unwatched folder", fsnotify.Event{Name: filepath.Join("src", "healthcare", "DE", "DE.csv"), Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, ok := w.relevant(tt.ev)
			if ok != tt.want {
				t.Fatalf("relevant = %v, want %v", ok, tt.want)
			}
			if ok && svc != schema.Healthcare {
				t.Errorf("service = %s", svc)
			}
		})
	}
}

func TestNewWatcherSkipsMissingFolders(t *testing.T) {
	l := testLayout(t)
	writeSource(t, l, "FR", hospital("1", "FR", "2.35", "48.85"))
	r := NewRunner(0, New(l, Options{Countries: []string{"FR", "DE"}}))

	w, err := NewWatcher(r, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.watcher.Close()
	if len(w.dirs) != 1 {
		t.Errorf("watched folders = %d, want 1", len(w.dirs))
	}
}
