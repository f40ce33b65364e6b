// Package adapters registers the national extract transforms. Import it for
// its side effects.
package adapters

import (
	"github.com/JonMunkholm/facility-etl/internal/country"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

func init() {
	country.Register(country.Adapter{
		Code:    "NO",
		Service: schema.Healthcare,
		Source:  "NO_from_Web.csv",
		Geocode: true,
		Transform: country.Mapping{
			Drop:      []string{"Besøksadresse"},
			Constants: map[string]string{"cc": "NO", "ref_date": "01/01/2020"},
		}.Transform(),
	})

	country.Register(country.Adapter{
		Code:      "CZ",
		Service:   schema.Healthcare,
		Source:    "export-2020-04.csv",
		Delimiter: ';',
		Transform: transformCZ,
	})

	country.Register(country.Adapter{
		Code:    "SK",
		Service: schema.Healthcare,
		Source:  "SK_formatted.csv",
		Transform: country.Mapping{
			Constants: map[string]string{"cc": "SK", "comments": ""},
		}.Transform(),
	})
}

// Facility types kept from the Czech register: hospitals, aftercare
// hospitals and long-term care hospitals.
var czHospitalTypes = map[string]bool{
	"Nemocnice":                            true,
	"Nemocnice následné péče":              true,
	"Léčebna pro dlouhodobě nemocné (LDN)": true,
}

var czMapping = country.Mapping{
	Drop: []string{
		"ZdravotnickeZarizeniId", "PCZ", "PCDP", "DruhZarizeniKod", "Kraj", "KrajCode",
		"Okres", "OkresCode", "SpravniObvod", "PoskytovatelFax", "DatumZahajeniCinnosti",
		"IdentifikatorDatoveSchranky", "PoskytovatelNazev", "Ico", "TypOsoby", "PravniFormaKod",
		"RUIANKod", "ORPKodUZIS", "ORP", "KrajCodeSidlo", "KrajSidlo", "OkresCodeSidlo",
		"OkresSidlo", "PscSidlo", "ObecSidlo", "UliceSidlo", "CisloDomovniOrientacniSidlo",
		"OborPece", "FormaPece", "DruhPece", "OdbornyZastupce", "LastModified",
	},
	Renames: []country.Rename{
		{From: "KodZZ", To: "id"},
		{From: "NazevCely", To: "hospital_name"},
		{From: "DruhZarizeni", To: "facility_type"},
		{From: "DruhZarizeniSekundarni", To: "list_specs"},
		{From: "Obec", To: "city"},
		{From: "Psc", To: "postcode"},
		{From: "Ulice", To: "street"},
		{From: "CisloDomovniOrientacni", To: "house_number"},
		{From: "PoskytovatelTelefon", To: "tel"},
		{From: "PoskytovatelEmail", To: "email"},
		{From: "PoskytovatelWeb", To: "url"},
	},
	Constants: map[string]string{
		"cc":             "CZ",
		"country":        "Czechia",
		"ref_date":       "01/04/2020",
		"emergency":      "",
		"public_private": "",
	},
	Keep: func(r table.Row) bool { return czHospitalTypes[r["facility_type"]] },
}

// transformCZ splits the register's "lat lon" GPS column. Rows without GPS
// get a (0,0) placeholder at quality 3 so the geocoder improves them.
func transformCZ(raw *table.Table) (*table.Table, error) {
	t, err := czMapping.Transform()(raw)
	if err != nil {
		return nil, err
	}
	for _, r := range t.Rows() {
		lat, lon, ok := splitPair(r["GPS"], " ")
		if !ok {
			r["lat"], r["lon"], r["geo_qual"] = "0", "0", "3"
			continue
		}
		r["lat"], r["lon"], r["geo_qual"] = lat, lon, "1"
	}
	t.RemoveColumn("GPS")
	t.EnsureColumns([]string{"lat", "lon", "geo_qual"}, "")
	return t, nil
}
