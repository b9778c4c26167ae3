package decoder

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/valentinerf/valentine-rf/internal/arbiter"
	"github.com/valentinerf/valentine-rf/internal/metrics"
	"github.com/valentinerf/valentine-rf/internal/supervisor"
	"github.com/valentinerf/valentine-rf/internal/tools"
)

// Registry owns one Runtime per registered mode, keyed by mode id.
type Registry struct {
	arbiter    *arbiter.Arbiter
	supervisor *supervisor.Supervisor
	resolver   *tools.Resolver
	metrics    *metrics.Metrics
	log        *slog.Logger

	mu       sync.RWMutex
	runtimes map[string]*Runtime
}

// NewRegistry builds an empty Registry. m may be nil to skip metrics
// instrumentation.
func NewRegistry(arb *arbiter.Arbiter, sup *supervisor.Supervisor, resolver *tools.Resolver, m *metrics.Metrics, log *slog.Logger) *Registry {
	return &Registry{
		arbiter:    arb,
		supervisor: sup,
		resolver:   resolver,
		metrics:    m,
		log:        log,
		runtimes:   make(map[string]*Runtime),
	}
}

// Register wires a mode into the registry, building its Runtime.
func (reg *Registry) Register(mode Mode) *Runtime {
	rt := NewRuntime(mode, reg.arbiter, reg.supervisor, reg.resolver, reg.metrics, reg.log)
	reg.mu.Lock()
	reg.runtimes[mode.ID()] = rt
	reg.mu.Unlock()
	return rt
}

// Get returns the Runtime for modeID, or nil if no such mode is registered.
func (reg *Registry) Get(modeID string) *Runtime {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.runtimes[modeID]
}

// ModeIDs returns every registered mode id, sorted.
func (reg *Registry) ModeIDs() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ids := make([]string, 0, len(reg.runtimes))
	for id := range reg.runtimes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllStatuses returns every mode's status, keyed by mode id (spec §4.6
// GET /health's decoder_statuses).
func (reg *Registry) AllStatuses() map[string]Status {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make(map[string]Status, len(reg.runtimes))
	for id, rt := range reg.runtimes {
		out[id] = rt.GetStatus()
	}
	return out
}

// LiveProcessCount sums the supervised process count across every mode
// (spec §4.6 GET /health's process_count).
func (reg *Registry) LiveProcessCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	total := 0
	for _, rt := range reg.runtimes {
		total += rt.LiveProcessCount()
	}
	return total
}

// Healthy reports whether every running mode's process tree is alive (spec
// §4.6 /health contract).
func (reg *Registry) Healthy() bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, rt := range reg.runtimes {
		if !rt.IsHealthy() {
			return false
		}
	}
	return true
}

// KillAll stops every mode and releases every claim (spec §4.6 POST
// /killall). Returns the number of modes that were running.
func (reg *Registry) KillAll(ctx context.Context) int {
	reg.mu.RLock()
	runtimes := make([]*Runtime, 0, len(reg.runtimes))
	for _, rt := range reg.runtimes {
		runtimes = append(runtimes, rt)
	}
	reg.mu.RUnlock()

	stopped := 0
	for _, rt := range runtimes {
		status := rt.GetStatus()
		if status.Running {
			stopped++
		}
		_, _ = rt.Stop()
	}
	reg.arbiter.ReleaseAll()
	return stopped
}
