// Package registry implements the Shared Registry: process-wide state
// (current Prefix Index, monitor roster, monitored-prefix set, configured
// prefix count, configuration timestamp, and data-worker run state) behind
// per-field locks acquired in a fixed order, per spec §5.
//
// Lock acquisition order (fixed, never varied): config_timestamp ->
// prefix_tree -> monitors -> monitored_prefixes -> configured_prefix_count
// -> data_worker. No lock holder performs blocking I/O.
package registry

import (
	"sync"

	"artemis-core/internal/artemiserr"
	"artemis-core/internal/prefixtree"
	"artemis-core/internal/types"
)

// Status is the control plane's view of the data worker's lifecycle.
type Status string

const (
	StatusUnconfigured Status = "unconfigured"
	StatusRunning      Status = "running"
	StatusStopped      Status = "stopped"
)

// Registry is the process-wide Shared Registry.
type Registry struct {
	configTimestampMu sync.RWMutex
	configTimestamp   int64 // -1 means unconfigured, mirroring the original's shared dict default

	prefixTreeMu          sync.RWMutex
	prefixTree            *prefixtree.Index
	prefixTreeRecalculate bool

	monitorsMu sync.RWMutex
	monitors   types.MonitorRoster

	monitoredPrefixesMu sync.RWMutex
	monitoredPrefixes   map[string]struct{}

	configuredPrefixCountMu sync.RWMutex
	configuredPrefixCount   int

	dataWorkerMu      sync.RWMutex
	dataWorkerRunning bool
}

// New returns a freshly initialized, unconfigured Registry.
func New() *Registry {
	return &Registry{
		configTimestamp:   -1,
		prefixTree:        prefixtree.New(),
		prefixTreeRecalculate: true,
		monitors:          types.MonitorRoster{},
		monitoredPrefixes: map[string]struct{}{},
	}
}

// ConfigTimestamp returns the registry's current configuration timestamp.
func (r *Registry) ConfigTimestamp() int64 {
	r.configTimestampMu.RLock()
	defer r.configTimestampMu.RUnlock()
	return r.configTimestamp
}

// Configure installs a freshly compiled configuration iff its timestamp is
// strictly greater than the registry's current one (spec §4.2 step 1 and
// §3 invariant: two concurrent reconfigurations are serialized so only the
// strictly-greater timestamp takes effect). Returns artemiserr's
// ConfigStale error (non-fatal) when the document is stale.
func (r *Registry) Configure(c *prefixtree.Compiled) error {
	r.configTimestampMu.Lock()
	defer r.configTimestampMu.Unlock()

	if c.Timestamp <= r.configTimestamp {
		return artemiserr.NewConfigStaleError("registry.Configure")
	}

	r.prefixTreeMu.Lock()
	r.prefixTree = c.Index
	r.prefixTreeRecalculate = true
	r.prefixTreeMu.Unlock()

	r.monitorsMu.Lock()
	r.monitors = c.Monitors
	r.monitorsMu.Unlock()

	r.monitoredPrefixesMu.Lock()
	r.monitoredPrefixes = c.MonitoredPrefixes
	r.monitoredPrefixesMu.Unlock()

	r.configuredPrefixCountMu.Lock()
	r.configuredPrefixCount = c.ConfiguredPrefixCount
	r.configuredPrefixCountMu.Unlock()

	r.configTimestamp = c.Timestamp
	return nil
}

// PrefixTreeSnapshot returns the current Prefix Index and clears the
// recalculate flag, performed under the same critical section per spec §9
// ("the flag is cleared inside the same critical section [as the
// rebuild]"). Callers use this to rebuild their local annotator copy.
func (r *Registry) PrefixTreeSnapshot() (*prefixtree.Index, bool) {
	r.prefixTreeMu.Lock()
	defer r.prefixTreeMu.Unlock()
	recalc := r.prefixTreeRecalculate
	r.prefixTreeRecalculate = false
	return r.prefixTree, recalc
}

// RecalculateNeeded reports whether the prefix_tree_recalculate flag is
// currently raised, without clearing it.
func (r *Registry) RecalculateNeeded() bool {
	r.prefixTreeMu.RLock()
	defer r.prefixTreeMu.RUnlock()
	return r.prefixTreeRecalculate
}

// Monitors returns the current monitor roster.
func (r *Registry) Monitors() types.MonitorRoster {
	r.monitorsMu.RLock()
	defer r.monitorsMu.RUnlock()
	out := make(types.MonitorRoster, len(r.monitors))
	for k, v := range r.monitors {
		out[k] = v
	}
	return out
}

// MonitoredPrefixes returns the current monitored-prefix set as a slice.
func (r *Registry) MonitoredPrefixes() []string {
	r.monitoredPrefixesMu.RLock()
	defer r.monitoredPrefixesMu.RUnlock()
	out := make([]string, 0, len(r.monitoredPrefixes))
	for p := range r.monitoredPrefixes {
		out = append(out, p)
	}
	return out
}

// ConfiguredPrefixCount returns the current configured prefix count.
func (r *Registry) ConfiguredPrefixCount() int {
	r.configuredPrefixCountMu.RLock()
	defer r.configuredPrefixCountMu.RUnlock()
	return r.configuredPrefixCount
}

// SetDataWorkerRunning updates the data-worker run flag.
func (r *Registry) SetDataWorkerRunning(running bool) {
	r.dataWorkerMu.Lock()
	defer r.dataWorkerMu.Unlock()
	r.dataWorkerRunning = running
}

// DataWorkerRunning reports whether the data worker is currently running.
func (r *Registry) DataWorkerRunning() bool {
	r.dataWorkerMu.RLock()
	defer r.dataWorkerMu.RUnlock()
	return r.dataWorkerRunning
}

// HealthStatus derives the three-state health view named in spec §4.5:
// unconfigured (never successfully compiled a configuration), running, or
// stopped.
func (r *Registry) HealthStatus() Status {
	if r.ConfigTimestamp() < 0 {
		return StatusUnconfigured
	}
	if r.DataWorkerRunning() {
		return StatusRunning
	}
	return StatusStopped
}
