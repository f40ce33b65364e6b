package schema

import "fmt"

var registry = map[Service]Spec{
	Healthcare: HealthcareSpec,
	Education:  EducationSpec,
}

// Get returns the spec of a service.
// Returns false if not found.
func Get(s Service) (Spec, bool) {
	spec, ok := registry[s]
	return spec, ok
}

// MustGet is Get for callers holding a parsed Service.
func MustGet(s Service) Spec {
	spec, ok := registry[s]
	if !ok {
		panic(fmt.Sprintf("schema: unknown service %q", s))
	}
	return spec
}

// All returns every spec, healthcare first.
func All() []Spec {
	return []Spec{HealthcareSpec, EducationSpec}
}
