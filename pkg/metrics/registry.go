package metrics

import (
	"sync"
	"time"
)

// DefaultWindow is the retention window for signals that were never
// configured explicitly.
const DefaultWindow = 60 * time.Second

// SignalConfig describes one signal before traffic starts flowing.
type SignalConfig struct {
	// Type tags the store Gauge or Counter. Defaults to Gauge.
	Type SignalType

	// Window is the store's retention window. Defaults to the registry's
	// default window.
	Window time.Duration

	// Filter holds the ingestion bounds applied to every sample.
	Filter Filter
}

// Registry is the single write/read entry point across many named signals.
// It applies per-signal ingestion filters before a sample ever reaches a
// store and creates stores lazily on first use.
//
// Record and Read support high-fanout concurrent callers across disjoint
// signal names; configuration is expected to happen rarely, before steady
// state. Reconfiguring a signal that is already receiving writes is not
// guaranteed race-free.
type Registry struct {
	defaultWindow time.Duration

	mu      sync.RWMutex
	stores  map[string]*Store
	configs map[string]SignalConfig
}

// NewRegistry creates a Registry. A non-positive defaultWindow falls back
// to DefaultWindow.
func NewRegistry(defaultWindow time.Duration) *Registry {
	if defaultWindow <= 0 {
		defaultWindow = DefaultWindow
	}
	return &Registry{
		defaultWindow: defaultWindow,
		stores:        make(map[string]*Store),
		configs:       make(map[string]SignalConfig),
	}
}

// DefaultWindow returns the window applied to unconfigured signals.
func (r *Registry) DefaultWindow() time.Duration { return r.defaultWindow }

// ConfigureSignal registers per-signal settings and creates the store
// up front. Idempotent; call before write-heavy traffic.
func (r *Registry) ConfigureSignal(name string, cfg SignalConfig) {
	if cfg.Type == "" {
		cfg.Type = Gauge
	}
	if cfg.Window <= 0 {
		cfg.Window = r.defaultWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	r.stores[name] = NewStore(name, cfg.Type, cfg.Window)
}

// Record resolves the sample's store, applies the signal's filter, and
// writes the value. A sample failing any configured bound is dropped
// silently: not stored and invisible to every subsequent read.
//
// Unconfigured signals get an implicit default on first write: Gauge,
// default window, drop-negative filter.
func (r *Registry) Record(s Sample) {
	store, filter := r.storeFor(s.Name)
	if filter.Drops(s.Value) {
		return
	}
	at := s.Time
	if at.IsZero() {
		at = time.Now()
	}
	store.Write(s.Value, at)
}

// Read delegates to the signal's store, or reports no value when the
// signal has never been written.
func (r *Registry) Read(name string, agg Aggregation, window time.Duration) (float64, bool) {
	r.mu.RLock()
	store := r.stores[name]
	r.mu.RUnlock()

	if store == nil {
		return 0, false
	}
	return store.Read(agg, window)
}

// SampleCount returns the count inside the named signal's own window, or
// zero for unknown signals.
func (r *Registry) SampleCount(name string) int {
	r.mu.RLock()
	store := r.stores[name]
	r.mu.RUnlock()

	if store == nil {
		return 0
	}
	return store.SampleCount()
}

// SampleCountTotal sums the per-signal window counts across all stores.
func (r *Registry) SampleCountTotal() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, store := range r.stores {
		total += store.SampleCount()
	}
	return total
}

// SignalNames returns the names of all stores created so far.
func (r *Registry) SignalNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	return names
}

// Clear empties every store. Configuration is preserved.
func (r *Registry) Clear() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, store := range r.stores {
		store.Clear()
	}
}

// storeFor returns the signal's store and filter, creating both from the
// signal's configuration (or the implicit default) on first use.
func (r *Registry) storeFor(name string) (*Store, Filter) {
	r.mu.RLock()
	store := r.stores[name]
	cfg, configured := r.configs[name]
	r.mu.RUnlock()

	if store != nil {
		return store, cfg.Filter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock; another writer may have won.
	if store = r.stores[name]; store != nil {
		return store, r.configs[name].Filter
	}

	if !configured {
		cfg = SignalConfig{
			Type:   Gauge,
			Window: r.defaultWindow,
			Filter: Filter{DropNegative: true},
		}
		r.configs[name] = cfg
	}
	store = NewStore(name, cfg.Type, cfg.Window)
	r.stores[name] = store
	return store, cfg.Filter
}
