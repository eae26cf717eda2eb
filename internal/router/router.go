// Package router implements the policy-driven Intelligent Router: it
// classifies a query and selects a primary model plus an ordered
// fallback chain according to one of five strategies.
package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/agentrouter/internal/classifier"
	"github.com/haasonsaas/agentrouter/internal/models"
)

// Strategy selects how the router weighs speed against quality against cost.
type Strategy string

const (
	Auto          Strategy = "AUTO"
	Speed         Strategy = "SPEED"
	Quality       Strategy = "QUALITY"
	Balanced      Strategy = "BALANCED"
	CostOptimized Strategy = "COST_OPTIMIZED"
)

// UnavailableModelID is returned as the primary of a RoutingDecision when
// no model is available anywhere; the Execution Engine treats this as fatal.
const UnavailableModelID = "__unavailable__"

// Decision is the router's output: one primary, up to three fallbacks,
// both drawn from the Model Registry, plus the classification that drove
// the choice and a human-readable reasoning trail.
type Decision struct {
	Primary        string
	Fallbacks      []string
	Classification classifier.Classification
	Strategy       Strategy
	Reasoning      string
}

// PreferenceRule lets an operator override AUTO's default complexity ->
// capability-tier mapping with an explicit, ordered modelId list.
type PreferenceRule map[classifier.Complexity][]string

// Router ties a Model Registry to a selection strategy.
type Router struct {
	registry    *models.Registry
	strategy    Strategy
	preferences PreferenceRule
}

// New constructs a Router. preferences may be nil.
func New(registry *models.Registry, strategy Strategy, preferences PreferenceRule) *Router {
	return &Router{registry: registry, strategy: strategy, preferences: preferences}
}

// complexityCapability maps a complexity tier to the capability tier the
// registry default mapping prefers when no operator preference is set.
var complexityCapability = map[classifier.Complexity]models.Capability{
	classifier.Trivial:  models.CapabilitySpeed,
	classifier.Simple:   models.CapabilitySpeed,
	classifier.Moderate: models.CapabilityGeneral,
	classifier.Complex:  models.CapabilityReasoning,
	classifier.Expert:   models.CapabilityReasoning,
}

// Route classifies query and builds a RoutingDecision for it.
func (r *Router) Route(query string, hasAttachment bool, maxCost float64) Decision {
	c := classifier.Classify(query, hasAttachment)

	primary, reasoning := r.selectPrimary(c, maxCost)
	if primary == "" {
		return Decision{
			Primary:        UnavailableModelID,
			Classification: c,
			Strategy:       r.strategy,
			Reasoning:      "no model available anywhere; routed to unavailable sentinel",
		}
	}

	fallbacks := r.buildFallbackChain(primary)
	return Decision{
		Primary:        primary,
		Fallbacks:      fallbacks,
		Classification: c,
		Strategy:       r.strategy,
		Reasoning:      reasoning,
	}
}

func (r *Router) selectPrimary(c classifier.Classification, maxCost float64) (string, string) {
	switch r.strategy {
	case Speed:
		cap := strongestRequiredCapability(c)
		if d, ok := r.registry.FastestWith(cap); ok {
			return d.ModelID, fmt.Sprintf("SPEED strategy: fastest model with capability %s", cap)
		}
		return "", ""
	case Quality:
		cap := derivedCapability(c)
		if d, ok := r.registry.BestQualityWith(cap, maxCost); ok {
			return d.ModelID, fmt.Sprintf("QUALITY strategy: best quality with capability %s under cost %.2f", cap, maxCost)
		}
		return "", ""
	case Balanced:
		switch c.Complexity {
		case classifier.Trivial, classifier.Simple:
			cap := strongestRequiredCapability(c)
			if d, ok := r.registry.FastestWith(cap); ok {
				return d.ModelID, "BALANCED strategy: low complexity routed via SPEED"
			}
			return "", ""
		case classifier.Complex, classifier.Expert:
			cap := derivedCapability(c)
			if d, ok := r.registry.BestQualityWith(cap, maxCost); ok {
				return d.ModelID, "BALANCED strategy: high complexity routed via QUALITY"
			}
			return "", ""
		default:
			return r.autoSelect(c, maxCost*0.7, "BALANCED strategy: moderate complexity routed via AUTO at 70% budget")
		}
	case CostOptimized:
		required := requiredCapabilities(c)
		if d, ok := r.registry.CheapestWith(required); ok {
			return d.ModelID, fmt.Sprintf("COST_OPTIMIZED strategy: cheapest model satisfying %v", required)
		}
		return "", ""
	default: // Auto
		return r.autoSelect(c, maxCost, "AUTO strategy")
	}
}

func (r *Router) autoSelect(c classifier.Classification, maxCost float64, prefix string) (string, string) {
	if rule, ok := r.preferences[c.Complexity]; ok && len(rule) > 0 {
		for _, modelID := range rule {
			if d, ok := r.registry.Get(modelID); ok && d.Available() && d.Cost <= maxCost {
				return d.ModelID, fmt.Sprintf("%s: operator preference for %s satisfied by %s", prefix, c.Complexity, modelID)
			}
		}
	}

	cap := complexityCapability[c.Complexity]
	if c.RequiresCode {
		cap = models.CapabilityCode
	}
	if d, ok := r.registry.BestQualityWith(cap, maxCost); ok {
		return d.ModelID, fmt.Sprintf("%s: default mapping for complexity %s -> capability %s", prefix, c.Complexity, cap)
	}
	return "", ""
}

func strongestRequiredCapability(c classifier.Classification) models.Capability {
	if c.RequiresCode {
		return models.CapabilityCode
	}
	if c.RequiresMath {
		return models.CapabilityMath
	}
	if c.RequiresVision {
		return models.CapabilityVision
	}
	return complexityCapability[c.Complexity]
}

func derivedCapability(c classifier.Classification) models.Capability {
	if c.RequiresCode {
		return models.CapabilityCode
	}
	if c.RequiresVision {
		return models.CapabilityVision
	}
	return models.CapabilityReasoning
}

func requiredCapabilities(c classifier.Classification) []models.Capability {
	caps := []models.Capability{models.CapabilityGeneral}
	if c.RequiresCode {
		caps = append(caps, models.CapabilityCode)
	}
	if c.RequiresMath {
		caps = append(caps, models.CapabilityMath)
	}
	if c.RequiresVision {
		caps = append(caps, models.CapabilityVision)
	}
	return caps
}

// buildFallbackChain returns up to three other available models, ordered
// by descending qualityScore, excluding primary.
func (r *Router) buildFallbackChain(primary string) []string {
	all := r.registry.List()
	candidates := make([]*models.Descriptor, 0, len(all))
	for _, d := range all {
		if d.ModelID == primary || !d.Available() {
			continue
		}
		candidates = append(candidates, d)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].QualityScore != candidates[j].QualityScore {
			return candidates[i].QualityScore > candidates[j].QualityScore
		}
		return candidates[i].ModelID < candidates[j].ModelID
	})
	limit := 3
	if len(candidates) < limit {
		limit = len(candidates)
	}
	out := make([]string, limit)
	for i := 0; i < limit; i++ {
		out[i] = candidates[i].ModelID
	}
	return out
}

// DescribeStrategy renders a strategy for logs/reasoning strings.
func DescribeStrategy(s Strategy) string {
	return strings.ToLower(string(s))
}
