package adapters

import (
	"strings"

	"github.com/JonMunkholm/facility-etl/internal/country"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

func init() {
	country.Register(country.Adapter{
		Code:      "EE",
		Service:   schema.Education,
		Source:    "Estonia_Education_Institutions.csv",
		Delimiter: ';',
		Geocode:   true,
		Transform: transformBaltic("EE"),
	})

	// The Luxembourg extract is published in the Estonian ministry layout.
	country.Register(country.Adapter{
		Code:      "LU",
		Service:   schema.Education,
		Source:    "Luxembourg_Education_Institutions.csv",
		Delimiter: ';',
		Geocode:   true,
		Transform: transformBaltic("LU"),
	})

	country.Register(country.Adapter{
		Code:    "IE",
		Service: schema.Education,
		Source:  "IE_formatted.csv",
		Transform: country.Mapping{
			Drop:      []string{"Attribute"},
			Constants: map[string]string{"cc": "IE", "geo_qual": "4", "ref_date": "30/6/2020"},
		}.Transform(),
	})
}

var balticMapping = country.Mapping{
	Renames: []country.Rename{
		{From: "INSTITUTION_ID", To: "id"},
		{From: "INSTITUTION_NAME", To: "name"},
		{From: "LEVEL OF EDUCATION", To: "levels"},
		{From: "SCHOOL TYPE", To: "facility_type"},
		{From: "ENROLLMENT", To: "cap_students_enrolled"},
		{From: "EPOST", To: "email"},
		{From: "URL", To: "url"},
		{From: "POSTCODE", To: "postcode"},
		{From: "SETTLEMENT", To: "city"},
	},
}

// transformBaltic renames the ministry columns, then splits "Kooli tänav, 1"
// style addresses into street and house number. Addresses without a comma go
// to street as a whole.
func transformBaltic(cc string) country.TransformFunc {
	return func(raw *table.Table) (*table.Table, error) {
		t, err := balticMapping.Transform()(raw)
		if err != nil {
			return nil, err
		}
		for _, r := range t.Rows() {
			ad := r["ADDRESS"]
			street, number, ok := splitPair(ad, ",")
			if !ok {
				r["street"] = strings.TrimSpace(ad)
				continue
			}
			r["street"], r["house_number"] = street, number
		}
		t.RemoveColumn("ADDRESS", "facility_type")
		t.AddColumn("cc", cc)
		return t, nil
	}
}

// splitPair splits s around the first sep into two trimmed, non-empty parts.
func splitPair(s, sep string) (string, string, bool) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), sep)
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)
	if !ok || left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}
