// Package models holds the static and discovered catalog of model
// capabilities used by the classifier, router, and execution engine.
package models

import (
	"sort"
	"sync"
)

// Capability is a single skill a model may be tagged with.
type Capability string

const (
	CapabilityGeneral   Capability = "GENERAL"
	CapabilityCode      Capability = "CODE"
	CapabilityMath      Capability = "MATH"
	CapabilityReasoning Capability = "REASONING"
	CapabilityVision    Capability = "VISION"
	CapabilitySpeed     Capability = "SPEED"
)

// SpeedClass orders models by expected latency, INSTANT fastest.
type SpeedClass string

const (
	SpeedInstant  SpeedClass = "INSTANT"
	SpeedFast     SpeedClass = "FAST"
	SpeedBalanced SpeedClass = "BALANCED"
	SpeedSlow     SpeedClass = "SLOW"
)

var speedRank = map[SpeedClass]int{
	SpeedInstant:  0,
	SpeedFast:     1,
	SpeedBalanced: 2,
	SpeedSlow:     3,
}

// Descriptor is the immutable (post-registration) record of a model's
// capabilities, plus a mutable availability flag.
type Descriptor struct {
	ModelID       string
	DisplayName   string
	BackendID     string
	APIModelName  string
	Capabilities  map[Capability]bool
	SpeedClass    SpeedClass
	ParameterSize string
	ContextWindow int
	Cost          float64
	QualityScore  float64

	mu        sync.RWMutex
	available bool
}

// NewDescriptor builds a Descriptor from a capability list, defaulting to
// available=true as the teacher's catalog does at registration time.
func NewDescriptor(modelID, displayName, backendID, apiModelName string, caps []Capability, speed SpeedClass, paramSize string, contextWindow int, cost, quality float64) *Descriptor {
	capSet := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		capSet[c] = true
	}
	return &Descriptor{
		ModelID:       modelID,
		DisplayName:   displayName,
		BackendID:     backendID,
		APIModelName:  apiModelName,
		Capabilities:  capSet,
		SpeedClass:    speed,
		ParameterSize: paramSize,
		ContextWindow: contextWindow,
		Cost:          cost,
		QualityScore:  quality,
		available:     true,
	}
}

// Has reports whether the descriptor was tagged with the given capability.
func (d *Descriptor) Has(c Capability) bool {
	return d.Capabilities[c]
}

// Available returns the current mutable availability flag.
func (d *Descriptor) Available() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.available
}

func (d *Descriptor) setAvailable(v bool) {
	d.mu.Lock()
	d.available = v
	d.mu.Unlock()
}

// Registry is the process-wide catalog of model descriptors. Safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Descriptor)}
}

// Register adds or replaces a descriptor. Re-registering an existing
// modelId overwrites its descriptor entirely (the registry, not the
// individual Descriptor, owns identity).
func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[d.ModelID] = d
}

// Get returns the descriptor for modelId, or (nil, false) if unknown.
func (r *Registry) Get(modelID string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.models[modelID]
	return d, ok
}

// List returns all registered descriptors in lexicographic modelId order.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.models))
	for _, d := range r.models {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModelID < out[j].ModelID })
	return out
}

// SetAvailable flips the mutable availability flag for modelId. A no-op if
// modelId is unknown.
func (r *Registry) SetAvailable(modelID string, available bool) {
	r.mu.RLock()
	d, ok := r.models[modelID]
	r.mu.RUnlock()
	if ok {
		d.setAvailable(available)
	}
}

// Filter narrows List() to available descriptors satisfying a predicate.
// Used internally by FastestWith/BestQualityWith.
func (r *Registry) available() []*Descriptor {
	all := r.List()
	out := all[:0:0]
	for _, d := range all {
		if d.Available() {
			out = append(out, d)
		}
	}
	return out
}

// FastestWith returns the available descriptor with the lowest SpeedClass
// (INSTANT<FAST<BALANCED<SLOW), breaking ties by ascending Cost then
// lexicographic modelId. If capability is non-empty, only descriptors
// tagged with it are considered. Returns (nil, false) if no candidate
// matches -- this never raises, per the registry contract.
func (r *Registry) FastestWith(capability Capability) (*Descriptor, bool) {
	candidates := r.available()
	var best *Descriptor
	for _, d := range candidates {
		if capability != "" && !d.Has(capability) {
			continue
		}
		if best == nil || betterSpeed(d, best) {
			best = d
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func betterSpeed(a, b *Descriptor) bool {
	if speedRank[a.SpeedClass] != speedRank[b.SpeedClass] {
		return speedRank[a.SpeedClass] < speedRank[b.SpeedClass]
	}
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	return a.ModelID < b.ModelID
}

// BestQualityWith returns the available descriptor tagged with capability
// whose Cost <= maxCost, ordered by descending QualityScore and tie-broken
// by ascending Cost. Returns (nil, false) if no candidate matches.
func (r *Registry) BestQualityWith(capability Capability, maxCost float64) (*Descriptor, bool) {
	candidates := r.available()
	var best *Descriptor
	for _, d := range candidates {
		if capability != "" && !d.Has(capability) {
			continue
		}
		if d.Cost > maxCost {
			continue
		}
		if best == nil || betterQuality(d, best) {
			best = d
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func betterQuality(a, b *Descriptor) bool {
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	return a.ModelID < b.ModelID
}

// CheapestWith returns the available descriptor tagged with every
// capability in required, ordered by ascending Cost, tie-broken by
// descending QualityScore then lexicographic modelId. Used by the
// COST_OPTIMIZED routing strategy.
func (r *Registry) CheapestWith(required []Capability) (*Descriptor, bool) {
	candidates := r.available()
	var best *Descriptor
	for _, d := range candidates {
		ok := true
		for _, c := range required {
			if !d.Has(c) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if best == nil || betterCost(d, best) {
			best = d
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func betterCost(a, b *Descriptor) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	if a.QualityScore != b.QualityScore {
		return a.QualityScore > b.QualityScore
	}
	return a.ModelID < b.ModelID
}
