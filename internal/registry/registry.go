package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/XavierBriggs/Pythia/pkg/contracts"
)

var (
	// ErrUnknownSport is returned when a sport key has no registered module
	ErrUnknownSport = errors.New("unknown sport")

	// ErrDuplicateSport is returned when a sport key is registered twice
	ErrDuplicateSport = errors.New("sport already registered")
)

// SportRegistry holds the sport modules the service polls, keyed by vendor sport key
type SportRegistry struct {
	vendor contracts.VendorAdapter

	mu      sync.RWMutex
	modules map[string]contracts.SportModule
}

// NewSportRegistry creates an empty registry.
// When vendor is non-nil, every market a sport requests must be supported by it.
func NewSportRegistry(vendor contracts.VendorAdapter) *SportRegistry {
	return &SportRegistry{
		vendor:  vendor,
		modules: make(map[string]contracts.SportModule),
	}
}

// Register validates a module and adds it
func (r *SportRegistry) Register(module contracts.SportModule) error {
	if err := r.validate(module); err != nil {
		return err
	}
	key := module.GetSportKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.modules[key]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSport, key)
	}
	r.modules[key] = module
	return nil
}

func (r *SportRegistry) validate(module contracts.SportModule) error {
	key := module.GetSportKey()
	if key == "" {
		return errors.New("sport key is required")
	}

	markets := module.GetMarkets()
	if len(markets) == 0 {
		return fmt.Errorf("sport %s requests no markets", key)
	}
	if r.vendor == nil {
		return nil
	}

	var unsupported []string
	for _, m := range markets {
		if !r.vendor.SupportsMarket(m) {
			unsupported = append(unsupported, m)
		}
	}
	if len(unsupported) > 0 {
		return fmt.Errorf("sport %s: vendor does not serve markets %s", key, strings.Join(unsupported, ","))
	}
	return nil
}

// Get returns the module for a sport key
func (r *SportRegistry) Get(sportKey string) (contracts.SportModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.modules[sportKey]
	return m, ok
}

// Lookup is Get with an ErrUnknownSport error for missing keys
func (r *SportRegistry) Lookup(sportKey string) (contracts.SportModule, error) {
	if m, ok := r.Get(sportKey); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSport, sportKey)
}

// GetAll returns every module ordered by sport key
func (r *SportRegistry) GetAll() []contracts.SportModule {
	r.mu.RLock()
	keys := make([]string, 0, len(r.modules))
	for k := range r.modules {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]contracts.SportModule, len(keys))
	for i, k := range keys {
		out[i] = r.modules[k]
	}
	r.mu.RUnlock()

	return out
}

// Count returns the number of registered sports
func (r *SportRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
