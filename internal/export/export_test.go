package export

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

func hospitals() *table.Table {
	return table.FromRows(schema.HealthcareSpec.Columns(), []table.Row{
		{"id": "1", "hospital_name": "A", "lon": "2.35", "lat": "48.85", "cap_beds": "120", "cap_prac": ""},
		{"id": "2", "hospital_name": "B", "lon": "", "lat": "", "cap_beds": "x"},
		{"id": "3", "hospital_name": "C", "lon": "5", "lat": "50", "extra": "dropped"},
	})
}

func TestCoerce(t *testing.T) {
	got := Coerce(table.Row{"cap_beds": "120", "cap_prac": "", "cap_rooms": "n/a", "lat": "48.5", "lon": "", "id": "7"}, schema.HealthcareSpec)

	if got["cap_beds"] != int64(120) {
		t.Errorf("cap_beds = %#v", got["cap_beds"])
	}
	if got["cap_prac"] != nil || got["cap_rooms"] != nil || got["lon"] != nil {
		t.Errorf("empty or invalid typed values must be nil: %#v", got)
	}
	if got["lat"] != 48.5 {
		t.Errorf("lat = %#v", got["lat"])
	}
	if got["id"] != "7" {
		t.Errorf("id = %#v", got["id"])
	}
	if got["comments"] != "" {
		t.Errorf("text columns stay strings, got %#v", got["comments"])
	}
}

func TestFeatures(t *testing.T) {
	fs, skipped := Features(hospitals(), schema.HealthcareSpec)
	if len(fs) != 2 || skipped != 1 {
		t.Fatalf("features = %d, skipped = %d", len(fs), skipped)
	}
	if fs[0].Point != (orb.Point{2.35, 48.85}) {
		t.Errorf("point = %v", fs[0].Point)
	}
	if _, ok := fs[1].Properties["extra"]; ok {
		t.Error("columns outside the schema should be dropped")
	}
	b := Bound(fs)
	if b.Min.X() != 2.35 || b.Max.Y() != 50 {
		t.Errorf("bound = %v", b)
	}
}

func TestWriteGeoJSON(t *testing.T) {
	fs, _ := Features(hospitals(), schema.HealthcareSpec)
	path := filepath.Join(t.TempDir(), "geojson", "FR.geojson")
	if err := WriteGeoJSON(path, fs); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d", len(fc.Features))
	}
	f := fc.Features[0]
	if f.Properties["hospital_name"] != "A" || f.Properties["cap_beds"] != 120.0 {
		t.Errorf("properties = %v", f.Properties)
	}
	if f.Properties["cap_prac"] != nil {
		t.Errorf("cap_prac = %v, want null", f.Properties["cap_prac"])
	}
}

func TestWriteGeoPackage(t *testing.T) {
	fs, _ := Features(hospitals(), schema.HealthcareSpec)
	path := filepath.Join(t.TempDir(), "gpkg", "FR.gpkg")
	ctx := context.Background()

	// Written twice: the second run replaces the first.
	for i := 0; i < 2; i++ {
		if err := WriteGeoPackage(ctx, path, "FR", schema.HealthcareSpec, fs); err != nil {
			t.Fatal(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var appID, version int
	if err := db.QueryRow("PRAGMA application_id").Scan(&appID); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if appID != gpkgApplicationID || version != gpkgUserVersion {
		t.Errorf("application_id = %d, user_version = %d", appID, version)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "FR"`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("features = %d, want 2", n)
	}

	var dataType string
	var minX, maxY float64
	if err := db.QueryRow(`SELECT data_type, min_x, max_y FROM gpkg_contents WHERE table_name = 'FR'`).Scan(&dataType, &minX, &maxY); err != nil {
		t.Fatal(err)
	}
	if dataType != "features" || minX != 2.35 || maxY != 50 {
		t.Errorf("contents = %s %v %v", dataType, minX, maxY)
	}

	var blob []byte
	var beds sql.NullInt64
	var prac sql.NullInt64
	if err := db.QueryRow(`SELECT geom, cap_beds, cap_prac FROM "FR" WHERE id = '1'`).Scan(&blob, &beds, &prac); err != nil {
		t.Fatal(err)
	}
	if string(blob[:2]) != "GP" || blob[3] != 0x01 {
		t.Errorf("header = %x", blob[:4])
	}
	if binary.LittleEndian.Uint32(blob[4:8]) != 4326 {
		t.Errorf("srs id = %d", binary.LittleEndian.Uint32(blob[4:8]))
	}
	if !beds.Valid || beds.Int64 != 120 || prac.Valid {
		t.Errorf("cap_beds = %v, cap_prac = %v", beds, prac)
	}
}

func TestGeometryBlob(t *testing.T) {
	blob, err := geometryBlob(orb.Point{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	// header 8 + wkb point 21
	if len(blob) != 29 {
		t.Fatalf("len = %d", len(blob))
	}
	if blob[8] != 1 {
		t.Error("wkb should be little endian")
	}
	x := math.Float64frombits(binary.LittleEndian.Uint64(blob[13:21]))
	y := math.Float64frombits(binary.LittleEndian.Uint64(blob[21:29]))
	if x != 1 || y != 2 {
		t.Errorf("point = %v, %v", x, y)
	}
}

func TestProjectLAEA(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		x, y     float64
	}{
		{"projection centre", 10, 52, 4321000, 3210000},
		{"guidance note example", 5, 50, 3962799.45, 2999718.85},
		{"Paris", 2.35, 48.85, 3760536.82, 2888771.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := ProjectLAEA(tt.lon, tt.lat)
			if math.Abs(x-tt.x) > 1 || math.Abs(y-tt.y) > 1 {
				t.Errorf("ProjectLAEA(%v, %v) = %.2f, %.2f; want %.2f, %.2f", tt.lon, tt.lat, x, y, tt.x, tt.y)
			}
		})
	}
}
