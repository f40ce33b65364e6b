package export

// gpkg.go writes OGC GeoPackage 1.3 point layers. A GeoPackage is a SQLite
// file holding three metadata tables and one table per layer, with
// geometries stored as a small "GP" header followed by WKB.

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/facility-etl/internal/schema"
)

const (
	gpkgApplicationID = 1196444487 // "GPKG"
	gpkgUserVersion   = 10300
	wgs84SRSID        = 4326
)

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

var gpkgSchema = []string{
	`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
		CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
		CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`INSERT INTO gpkg_spatial_ref_sys VALUES
		('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system'),
		('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system'),
		('WGS 84 geodetic', 4326, 'EPSG', 4326, '` + wgs84WKT + `', 'longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid')`,
}

// WriteGeoPackage writes features to a new GeoPackage at path with a single
// point layer. An existing file is replaced. Attribute columns follow the
// schema order and types.
func WriteGeoPackage(ctx context.Context, path, layer string, spec schema.Spec, features []Feature) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove previous geopackage: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if err := writeGeoPackage(ctx, db, layer, spec, features); err != nil {
		return fmt.Errorf("write geopackage %s: %w", path, err)
	}
	return nil
}

func writeGeoPackage(ctx context.Context, db *sql.DB, layer string, spec schema.Spec, features []Feature) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range gpkgSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create metadata: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, createLayerSQL(layer, spec)); err != nil {
		return fmt.Errorf("create layer: %w", err)
	}

	b := Bound(features)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, description, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, ?, ?, ?, ?, ?, ?)`,
		layer, layer, spec.Label, b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y(), wgs84SRSID,
	); err != nil {
		return fmt.Errorf("register contents: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'POINT', ?, 0, 0)`,
		layer, wgs84SRSID,
	); err != nil {
		return fmt.Errorf("register geometry column: %w", err)
	}

	columns := spec.Columns()
	stmt, err := tx.PrepareContext(ctx, insertFeatureSQL(layer, columns))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(columns)+1)
	for _, f := range features {
		blob, err := geometryBlob(f.Point)
		if err != nil {
			return err
		}
		args[0] = blob
		for i, c := range columns {
			args[i+1] = f.Properties[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert feature: %w", err)
		}
	}

	return tx.Commit()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func sqlType(t schema.FieldType) string {
	switch t {
	case schema.FieldInt:
		return "INTEGER"
	case schema.FieldDouble:
		return "DOUBLE"
	default:
		return "TEXT"
	}
}

func createLayerSQL(layer string, spec schema.Spec) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(quoteIdent(layer))
	b.WriteString(" (fid INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, geom POINT")
	for _, f := range spec.Fields {
		b.WriteString(", ")
		b.WriteString(quoteIdent(f.Name))
		b.WriteString(" ")
		b.WriteString(sqlType(f.Type))
	}
	b.WriteString(")")
	return b.String()
}

func insertFeatureSQL(layer string, columns []string) string {
	names := make([]string, 0, len(columns)+1)
	marks := make([]string, 0, len(columns)+1)
	names = append(names, "geom")
	marks = append(marks, "?")
	for _, c := range columns {
		names = append(names, quoteIdent(c))
		marks = append(marks, "?")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(layer), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// geometryBlob encodes a point as a GeoPackage binary geometry: magic "GP",
// version 0, flags (little endian, no envelope), srs id, then WKB.
func geometryBlob(p orb.Point) ([]byte, error) {
	body, err := wkb.Marshal(p, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("encode wkb: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(8 + len(body))
	buf.Write([]byte{'G', 'P', 0, 0x01})
	var srs [4]byte
	binary.LittleEndian.PutUint32(srs[:], uint32(wgs84SRSID))
	buf.Write(srs[:])
	buf.Write(body)
	return buf.Bytes(), nil
}
