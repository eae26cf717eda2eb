// Package tools implements the Tool Registry: compile-time
// self-registration of tool implementations, their descriptors, and
// per-tool execution statistics.
package tools

import (
	"fmt"
	"sync"
	"time"

	"github.com/haasonsaas/agentrouter/internal/tools/policy"
)

// MaxToolNameLength and MaxToolParamsSize bound registration and
// invocation inputs against pathological callers.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20 // 10MB
)

// Parameter describes one named, typed tool parameter.
type Parameter struct {
	Name     string
	Type     string
	Required bool
}

// Descriptor is the immutable metadata recorded for a registered tool.
type Descriptor struct {
	Name                 string
	Description          string
	Category             string
	RequiresConfirmation bool
	Parameters           []Parameter
	Version              string
}

// Stats is the mutable, monotonic execution record for a tool.
type Stats struct {
	mu                 sync.Mutex
	Attempts           int64
	Successes          int64
	Failures           int64
	SuccessLatencySum  time.Duration
	LastInvocationNs   int64
}

func (s *Stats) record(success bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attempts++
	if success {
		s.Successes++
		s.SuccessLatencySum += elapsed
	} else {
		s.Failures++
	}
	s.LastInvocationNs = time.Now().UnixNano()
}

// Snapshot returns a point-in-time copy safe to read without the lock.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Attempts:          s.Attempts,
		Successes:         s.Successes,
		Failures:          s.Failures,
		SuccessLatencySum: s.SuccessLatencySum,
		LastInvocationNs:  s.LastInvocationNs,
	}
}

// SuccessRate returns successes/attempts, or 1.0 if never attempted.
func (s Stats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 1.0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

type entry struct {
	descriptor Descriptor
	stats      *Stats
}

// RegistrationFailure records a tool that could not be registered.
type RegistrationFailure struct {
	Name  string
	Error error
}

// Registry holds every tool discovered at process startup via
// compile-time init() self-registration (see Register), plus their
// mutable execution statistics.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]*entry
	failures []RegistrationFailure
	resolver *policy.Resolver
}

// global is the process-wide registry that init() functions register
// against, mirroring the teacher's package-level registration pattern
// but without a filesystem scan: every tool package calls Register from
// its own init().
var global = NewRegistry()

// Default returns the process-wide registry populated by init()-time
// self-registration.
func Default() *Registry { return global }

// NewRegistry constructs an empty registry with a default policy resolver.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry), resolver: policy.NewResolver()}
}

// Register records descriptor in the global registry and initializes
// empty stats for it. Intended to be called from a tool package's
// init() function. A name exceeding MaxToolNameLength or a duplicate
// name is recorded as a RegistrationFailure instead of panicking, so one
// bad tool package cannot abort process startup.
func Register(descriptor Descriptor) {
	global.register(descriptor)
}

// Register records descriptor directly into this registry instance,
// for composition roots that build their own Registry rather than
// relying on the process-wide global populated by init().
func (r *Registry) Register(descriptor Descriptor) {
	r.register(descriptor)
}

func (r *Registry) register(descriptor Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(descriptor.Name) == 0 || len(descriptor.Name) > MaxToolNameLength {
		r.failures = append(r.failures, RegistrationFailure{Name: descriptor.Name, Error: fmt.Errorf("invalid tool name length %d", len(descriptor.Name))})
		return
	}
	if _, exists := r.tools[descriptor.Name]; exists {
		r.failures = append(r.failures, RegistrationFailure{Name: descriptor.Name, Error: fmt.Errorf("duplicate registration")})
		return
	}
	r.tools[descriptor.Name] = &entry{descriptor: descriptor, stats: &Stats{}}
}

// Failures returns every recorded registration failure.
func (r *Registry) Failures() []RegistrationFailure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegistrationFailure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.descriptor, true
}

// All returns every registered descriptor.
func (r *Registry) All() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.descriptor)
	}
	return out
}

// ByCategory filters All() to a single category.
func (r *Registry) ByCategory(category string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Descriptor
	for _, e := range r.tools {
		if e.descriptor.Category == category {
			out = append(out, e.descriptor)
		}
	}
	return out
}

// Validate checks that every declared-required parameter is present in
// params. Type coercion is the tool's own responsibility.
func (r *Registry) Validate(name string, params map[string]any) (ok bool, reason string) {
	r.mu.RLock()
	e, exists := r.tools[name]
	r.mu.RUnlock()
	if !exists {
		return false, "unknown tool"
	}
	for _, p := range e.descriptor.Parameters {
		if !p.Required {
			continue
		}
		if _, present := params[p.Name]; !present {
			return false, fmt.Sprintf("missing required parameter %q", p.Name)
		}
	}
	return true, ""
}

// RecordExecution appends one attempt to name's stats.
func (r *Registry) RecordExecution(name string, success bool, elapsed time.Duration) {
	r.mu.RLock()
	e, exists := r.tools[name]
	r.mu.RUnlock()
	if !exists {
		return
	}
	e.stats.record(success, elapsed)
}

// StatsFor returns a snapshot of name's stats.
func (r *Registry) StatsFor(name string) (Stats, bool) {
	r.mu.RLock()
	e, exists := r.tools[name]
	r.mu.RUnlock()
	if !exists {
		return Stats{}, false
	}
	return e.stats.Snapshot(), true
}

// HealthReport names tools never executed and tools with at least 10
// executions but a success rate below 50%.
type HealthReport struct {
	NeverExecuted   []string
	PoorlyPerforming []string
}

func (r *Registry) HealthReport() HealthReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var report HealthReport
	for name, e := range r.tools {
		snap := e.stats.Snapshot()
		if snap.Attempts == 0 {
			report.NeverExecuted = append(report.NeverExecuted, name)
			continue
		}
		if snap.Attempts >= 10 && snap.SuccessRate() < 0.5 {
			report.PoorlyPerforming = append(report.PoorlyPerforming, name)
		}
	}
	return report
}

// Resolver exposes the underlying access-policy resolver so the
// Confirmation Middleware and Orchestrator can consult it.
func (r *Registry) Resolver() *policy.Resolver {
	return r.resolver
}
