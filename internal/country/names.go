// Package country resolves country codes to names and keeps the registry of
// per-country adapters that turn a national extract into the shared schema.
package country

import "sort"

// names uses Eurostat codes (EL for Greece, UK for the United Kingdom).
var names = map[string]string{
	"AT": "Austria",
	"BE": "Belgium",
	"BG": "Bulgaria",
	"CY": "Cyprus",
	"CZ": "Czechia",
	"DE": "Germany",
	"DK": "Denmark",
	"EE": "Estonia",
	"EL": "Greece",
	"ES": "Spain",
	"FI": "Finland",
	"FR": "France",
	"HR": "Croatia",
	"HU": "Hungary",
	"IE": "Ireland",
	"IT": "Italy",
	"LT": "Lithuania",
	"LU": "Luxembourg",
	"LV": "Latvia",
	"MT": "Malta",
	"NL": "Netherlands",
	"PL": "Poland",
	"PT": "Portugal",
	"RO": "Romania",
	"SE": "Sweden",
	"SI": "Slovenia",
	"SK": "Slovakia",

	"CH": "Switzerland",
	"IS": "Iceland",
	"LI": "Liechtenstein",
	"NO": "Norway",
	"UK": "United Kingdom",

	"AL": "Albania",
	"ME": "Montenegro",
	"MK": "North Macedonia",
	"RS": "Serbia",
	"TR": "Türkiye",
}

// Overseas entities that carry their own code in the datasets but are not
// countries in the table above.
var overrides = map[string]string{
	"GP": "Guadeloupe",
	"MQ": "Martinique",
	"GF": "Guyane française",
	"RE": "Réunion",
	"PM": "Saint-Pierre et Miquelon",
	"YT": "Mayotte",
}

// Name returns the display name of a country code.
// Returns false if the code is unknown.
func Name(cc string) (string, bool) {
	if n, ok := overrides[cc]; ok {
		return n, true
	}
	n, ok := names[cc]
	return n, ok
}

// NameOrCode returns the name of cc, or cc itself when unknown.
func NameOrCode(cc string) string {
	if n, ok := Name(cc); ok {
		return n
	}
	return cc
}

// Codes returns every known code, sorted.
func Codes() []string {
	out := make([]string, 0, len(names)+len(overrides))
	for c := range names {
		out = append(out, c)
	}
	for c := range overrides {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
