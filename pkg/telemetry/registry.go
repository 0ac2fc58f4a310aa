package telemetry

import (
	"sync"
	"time"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

// ToolMetrics is the per-tool counter snapshot exposed to callers. Entries
// are created at registration (or lazily on first invocation), mutated only
// by the tool runner's finalization step, and never deleted during the
// process lifetime.
type ToolMetrics struct {
	SuccessCount uint64
	ErrorCount   uint64
	LastDuration time.Duration
	AvgDuration  time.Duration
	LastUsedAt   time.Time
	Lifecycle    domain.LifecycleState
}

// Invocations returns the total number of recorded invocations.
func (m ToolMetrics) Invocations() uint64 {
	return m.SuccessCount + m.ErrorCount
}

type toolEntry struct {
	mu sync.Mutex
	m  ToolMetrics
}

// Registry holds process-lifetime execution metrics keyed by tool name.
// Updates are atomic per tool: concurrent pipeline runs invoking the same
// tool contend on that tool's lock only, and lost updates are not possible.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*toolEntry
	prom  *Metrics
}

// NewRegistry creates an empty registry. prom may be nil; when set, every
// recorded invocation is mirrored to the Prometheus exporter.
func NewRegistry(prom *Metrics) *Registry {
	return &Registry{
		tools: make(map[string]*toolEntry),
		prom:  prom,
	}
}

// Register creates the metrics entry for a tool in the LOADED state. It is a
// no-op when the entry already exists, preserving accumulated counters across
// manifest reloads.
func (r *Registry) Register(tool string) {
	r.entry(tool)
}

// entry returns the per-tool entry, creating it lazily in LOADED state.
func (r *Registry) entry(tool string) *toolEntry {
	r.mu.RLock()
	e, ok := r.tools[tool]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.tools[tool]; ok {
		return e
	}
	e = &toolEntry{m: ToolMetrics{Lifecycle: domain.LifecycleLoaded}}
	r.tools[tool] = e
	if r.prom != nil {
		r.prom.observeLifecycle(tool, domain.LifecycleLoaded)
	}
	return e
}

// Record finalizes one invocation: elapsed time, success flag and resulting
// lifecycle state. It is called exactly once per invocation by the tool
// runner, regardless of which path the invocation took.
func (r *Registry) Record(tool string, elapsed time.Duration, success bool, state domain.LifecycleState) {
	e := r.entry(tool)

	e.mu.Lock()
	if success {
		e.m.SuccessCount++
	} else {
		e.m.ErrorCount++
	}
	n := e.m.SuccessCount + e.m.ErrorCount
	e.m.LastDuration = elapsed
	e.m.AvgDuration += (elapsed - e.m.AvgDuration) / time.Duration(n)
	e.m.LastUsedAt = time.Now().UTC()
	e.m.Lifecycle = state
	e.mu.Unlock()

	if r.prom != nil {
		r.prom.observeInvocation(tool, elapsed, success, state)
	}
}

// Snapshot returns a copy of the metrics for one tool.
func (r *Registry) Snapshot(tool string) (ToolMetrics, bool) {
	r.mu.RLock()
	e, ok := r.tools[tool]
	r.mu.RUnlock()
	if !ok {
		return ToolMetrics{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.m, true
}

// All returns a copy of every tool's metrics keyed by tool name.
func (r *Registry) All() map[string]ToolMetrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ToolMetrics, len(r.tools))
	for name, e := range r.tools {
		e.mu.Lock()
		out[name] = e.m
		e.mu.Unlock()
	}
	return out
}
