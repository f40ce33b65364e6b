package country

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
)

// TransformFunc turns the rows of a national extract into the shared schema.
// It may modify raw in place and return it.
type TransformFunc func(raw *table.Table) (*table.Table, error)

// Adapter describes how one country's extract for one service is read and
// normalized.
type Adapter struct {
	Code      string         // Country code, e.g. "NO"
	Service   schema.Service // Dataset family
	Source    string         // Raw file name inside the country folder
	Delimiter rune           // Raw file delimiter, ',' when zero
	// Geocode requests positions for every row after the transform.
	Geocode   bool
	Transform TransformFunc
}

// Key returns the registry key, "<service>/<cc>".
func (a Adapter) Key() string { return key(a.Service, a.Code) }

func key(s schema.Service, cc string) string { return string(s) + "/" + cc }

var (
	registry   = make(map[string]Adapter)
	registryMu sync.RWMutex
)

// Register adds an adapter to the registry.
// Panics if an adapter with the same service and code is already registered.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if a.Transform == nil {
		panic(fmt.Sprintf("adapter without transform: %s", a.Key()))
	}
	if _, exists := registry[a.Key()]; exists {
		panic(fmt.Sprintf("adapter already registered: %s", a.Key()))
	}
	if a.Delimiter == 0 {
		a.Delimiter = ','
	}
	registry[a.Key()] = a
}

// Get returns the adapter of a service and country.
// Returns false if not found.
func Get(s schema.Service, cc string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	a, ok := registry[key(s, cc)]
	return a, ok
}

// ByService returns the adapters of a service, sorted by code.
func ByService(s schema.Service) []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var out []Adapter
	for _, a := range registry {
		if a.Service == s {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Clear removes all registered adapters.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Adapter)
}
