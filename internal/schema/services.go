package schema

// Quality codes accepted in geo_qual.
var geoQualValues = []string{"-1", "1", "2", "3", "4"}

var publicPrivateValues = []string{"public", "private"}

// locationFields open every schema, right after the identifying columns.
func locationFields() []FieldSpec {
	return []FieldSpec{
		{Name: "lat", Type: FieldDouble, Required: true},
		{Name: "lon", Type: FieldDouble, Required: true},
		{Name: "geo_qual", Type: FieldEnum, EnumValues: geoQualValues},
		{Name: "street", Type: FieldText},
		{Name: "house_number", Type: FieldText},
		{Name: "postcode", Type: FieldText},
		{Name: "city", Type: FieldText},
		{Name: "cc", Type: FieldText},
		{Name: "country", Type: FieldText},
	}
}

func contactFields() []FieldSpec {
	return []FieldSpec{
		{Name: "tel", Type: FieldText},
		{Name: "email", Type: FieldText},
		{Name: "url", Type: FieldText},
		{Name: "ref_date", Type: FieldDate, Required: true},
		{Name: "pub_date", Type: FieldDate},
		{Name: "comments", Type: FieldText},
	}
}

func concat(parts ...[]FieldSpec) []FieldSpec {
	var out []FieldSpec
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// HealthcareSpec is the hospital schema.
var HealthcareSpec = Spec{
	Service: Healthcare,
	Label:   "Healthcare services",
	Fields: concat(
		[]FieldSpec{
			{Name: "id", Type: FieldText, Required: true},
			{Name: "hospital_name", Type: FieldText, Required: true},
			{Name: "site_name", Type: FieldText},
		},
		locationFields(),
		[]FieldSpec{
			{Name: "cap_beds", Type: FieldInt},
			{Name: "cap_prac", Type: FieldInt},
			{Name: "cap_rooms", Type: FieldInt},
			{Name: "emergency", Type: FieldEnum, EnumValues: []string{"yes", "no"}},
			{Name: "facility_type", Type: FieldText},
			{Name: "public_private", Type: FieldEnum, EnumValues: publicPrivateValues},
			{Name: "list_specs", Type: FieldText},
		},
		contactFields(),
	),
	Folder:         "healthcare",
	WebExtractFile: "hcs.csv",
	DefaultCountries: []string{
		"AT", "BE", "BG", "CH", "CY", "CZ", "DE", "DK", "EL", "ES", "FI", "FR", "HR", "HU",
		"IE", "IT", "LT", "LU", "LV", "MT", "NL", "NO", "PL", "PT", "RO", "SE", "SI", "SK",
	},
}

// EducationSpec is the school schema.
var EducationSpec = Spec{
	Service: Education,
	Label:   "Education services",
	Fields: concat(
		[]FieldSpec{
			{Name: "id", Type: FieldText, Required: true},
			{Name: "name", Type: FieldText, Required: true},
			{Name: "site_name", Type: FieldText},
		},
		locationFields(),
		[]FieldSpec{
			// ISCED levels, several per school joined with "-" (e.g. "1-2").
			{Name: "levels", Type: FieldEnum, EnumValues: []string{"1", "2", "3"}, Delimiter: "-"},
			{Name: "cap_students", Type: FieldInt},
			{Name: "cap_students_enrolled", Type: FieldInt},
			{Name: "fields", Type: FieldText},
			{Name: "public_private", Type: FieldEnum, EnumValues: publicPrivateValues},
		},
		contactFields(),
	),
	Folder:           "education",
	WebExtractFile:   "edu.csv",
	DefaultCountries: []string{"AT"},
}
