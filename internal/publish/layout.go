package publish

import (
	"path/filepath"

	"github.com/JonMunkholm/facility-etl/internal/schema"
)

// Layout maps a service onto the directory convention shared with the
// existing datasets:
//
//	<source>/<folder>/<CC>/<CC>.csv            normalized country table
//	<output>/<folder>/csv/<CC>.csv             published country table
//	<output>/<folder>/geojson/<CC>.geojson
//	<output>/<folder>/gpkg/<CC>.gpkg
//	<output>/<folder>/{csv,geojson,gpkg}/all.* combined table
//	<output>/map/<service>/<extract>           projected web extract
type Layout struct {
	SourceDir string
	OutputDir string
	Spec      schema.Spec
}

// CombinedName is the base name of the combined outputs.
const CombinedName = "all"

// CountryDir is the source folder of one country.
func (l Layout) CountryDir(cc string) string {
	return filepath.Join(l.SourceDir, l.Spec.Folder, cc)
}

// SourceCSV is the normalized table a country transform writes.
func (l Layout) SourceCSV(cc string) string {
	return filepath.Join(l.CountryDir(cc), cc+".csv")
}

// RawFile is a national extract inside the country folder.
func (l Layout) RawFile(cc, name string) string {
	return filepath.Join(l.CountryDir(cc), name)
}

func (l Layout) out(kind, name, ext string) string {
	return filepath.Join(l.OutputDir, l.Spec.Folder, kind, name+ext)
}

// CSV is the published CSV of a country, or of the combined table for
// CombinedName.
func (l Layout) CSV(name string) string { return l.out("csv", name, ".csv") }

// GeoJSON is the published GeoJSON of a country or the combined table.
func (l Layout) GeoJSON(name string) string { return l.out("geojson", name, ".geojson") }

// GeoPackage is the published GeoPackage of a country or the combined table.
func (l Layout) GeoPackage(name string) string { return l.out("gpkg", name, ".gpkg") }

// MapDir holds the web extract of the service.
func (l Layout) MapDir() string {
	return filepath.Join(l.OutputDir, "map", string(l.Spec.Service))
}

// WebExtract is the projected extract read by the map front-end.
func (l Layout) WebExtract() string {
	return filepath.Join(l.MapDir(), l.Spec.WebExtractFile)
}
