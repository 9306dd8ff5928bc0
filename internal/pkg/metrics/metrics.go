package metrics

import (
	"sync"
	"sync/atomic"
)

// Collector receives pipeline counters. It is injected into the coordinator at
// service start instead of living in package-level state, so tests can pass
// their own and nothing leaks across instances.
type Collector interface {
	GenerationStarted(mediaKind string)
	GenerationFinished(mediaKind string, success bool)
	ProviderFailure(providerID string)
	TierWrite(tierName string)
}

// Snapshot is a point-in-time view of the registry counters.
type Snapshot struct {
	ActiveGenerations int64            `json:"active_generations"`
	TotalGenerations  int64            `json:"total_generations"`
	FailedGenerations int64            `json:"failed_generations"`
	ProviderFailures  map[string]int64 `json:"provider_failures"`
	TierWrites        map[string]int64 `json:"tier_writes"`
}

// Registry is the default Collector backed by atomic counters. TierWrites in
// particular feeds degradation audits: a growing count on the weakest tier
// means the primary object store is rejecting writes.
type Registry struct {
	active int64
	total  int64
	failed int64

	mu               sync.Mutex
	providerFailures map[string]int64
	tierWrites       map[string]int64
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		providerFailures: make(map[string]int64),
		tierWrites:       make(map[string]int64),
	}
}

func (r *Registry) GenerationStarted(string) {
	atomic.AddInt64(&r.active, 1)
	atomic.AddInt64(&r.total, 1)
}

func (r *Registry) GenerationFinished(_ string, success bool) {
	atomic.AddInt64(&r.active, -1)
	if !success {
		atomic.AddInt64(&r.failed, 1)
	}
}

func (r *Registry) ProviderFailure(providerID string) {
	r.mu.Lock()
	r.providerFailures[providerID]++
	r.mu.Unlock()
}

func (r *Registry) TierWrite(tierName string) {
	r.mu.Lock()
	r.tierWrites[tierName]++
	r.mu.Unlock()
}

// Snapshot copies the current counter values.
func (r *Registry) Snapshot() Snapshot {
	snap := Snapshot{
		ActiveGenerations: atomic.LoadInt64(&r.active),
		TotalGenerations:  atomic.LoadInt64(&r.total),
		FailedGenerations: atomic.LoadInt64(&r.failed),
		ProviderFailures:  make(map[string]int64),
		TierWrites:        make(map[string]int64),
	}
	r.mu.Lock()
	for k, v := range r.providerFailures {
		snap.ProviderFailures[k] = v
	}
	for k, v := range r.tierWrites {
		snap.TierWrites[k] = v
	}
	r.mu.Unlock()
	return snap
}

// Nop is a Collector that discards everything; handy in tests.
type Nop struct{}

func (Nop) GenerationStarted(string)        {}
func (Nop) GenerationFinished(string, bool) {}
func (Nop) ProviderFailure(string)          {}
func (Nop) TierWrite(string)                {}
