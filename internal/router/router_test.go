package router

import (
	"testing"

	"github.com/haasonsaas/agentrouter/internal/classifier"
	"github.com/haasonsaas/agentrouter/internal/models"
)

func testRegistry() *models.Registry {
	r := models.NewRegistry()
	r.Register(models.NewDescriptor("fast-small", "Fast Small", "local-generate", "small",
		[]models.Capability{models.CapabilityGeneral, models.CapabilitySpeed, models.CapabilityCode}, models.SpeedInstant, "3B", 4096, 0.0, 0.5))
	r.Register(models.NewDescriptor("balanced-mid", "Balanced Mid", "local-chat", "mid",
		[]models.Capability{models.CapabilityGeneral, models.CapabilityCode, models.CapabilityReasoning}, models.SpeedBalanced, "30B", 16384, 0.1, 0.75))
	r.Register(models.NewDescriptor("quality-cloud", "Quality Cloud", "cloud-anthropic", "claude",
		[]models.Capability{models.CapabilityGeneral, models.CapabilityReasoning, models.CapabilityCode, models.CapabilityVision}, models.SpeedSlow, "", 200000, 3.0, 0.97))
	return r
}

func TestSpeedStrategyPicksFastest(t *testing.T) {
	r := New(testRegistry(), Speed, nil)
	d := r.Route("hi there", false, 10.0)
	if d.Primary != "fast-small" {
		t.Fatalf("expected fast-small, got %s", d.Primary)
	}
}

func TestQualityStrategyRespectsMaxCost(t *testing.T) {
	r := New(testRegistry(), Quality, nil)
	d := r.Route("analyze and compare these two architectures in depth", false, 0.5)
	if d.Primary != "balanced-mid" {
		t.Fatalf("expected balanced-mid under cost cap, got %s", d.Primary)
	}
}

func TestBalancedRoutesTrivialViaSpeed(t *testing.T) {
	r := New(testRegistry(), Balanced, nil)
	d := r.Route("hello", false, 10.0)
	if d.Primary != "fast-small" {
		t.Fatalf("expected fast-small for trivial complexity, got %s", d.Primary)
	}
}

func TestBalancedRoutesExpertViaQuality(t *testing.T) {
	r := New(testRegistry(), Balanced, nil)
	d := r.Route("Please prove this theorem and derive the general form.", false, 10.0)
	if d.Primary != "quality-cloud" {
		t.Fatalf("expected quality-cloud for expert complexity, got %s", d.Primary)
	}
}

func TestFallbackChainExcludesPrimaryAndCapsAtThree(t *testing.T) {
	r := New(testRegistry(), Speed, nil)
	d := r.Route("hi", false, 10.0)
	for _, f := range d.Fallbacks {
		if f == d.Primary {
			t.Fatalf("fallback chain must exclude primary, found %s", f)
		}
	}
	if len(d.Fallbacks) > 3 {
		t.Fatalf("fallback chain must be capped at 3, got %d", len(d.Fallbacks))
	}
}

func TestAutoPreferencesOverride(t *testing.T) {
	prefs := PreferenceRule{classifier.Moderate: {"quality-cloud", "balanced-mid"}}
	r := New(testRegistry(), Auto, prefs)
	d := r.Route("tell me about the weather patterns this season", false, 10.0)
	if d.Primary != "quality-cloud" {
		t.Fatalf("expected operator preference honored, got %s", d.Primary)
	}
}

func TestNoAvailableModelReturnsUnavailableSentinel(t *testing.T) {
	reg := models.NewRegistry()
	r := New(reg, Auto, nil)
	d := r.Route("hello", false, 10.0)
	if d.Primary != UnavailableModelID {
		t.Fatalf("expected unavailable sentinel, got %s", d.Primary)
	}
}

func TestReasoningIsDeterministic(t *testing.T) {
	r := New(testRegistry(), Balanced, nil)
	d1 := r.Route("analyze this", false, 10.0)
	d2 := r.Route("analyze this", false, 10.0)
	if d1.Reasoning != d2.Reasoning {
		t.Fatalf("expected deterministic reasoning, got %q vs %q", d1.Reasoning, d2.Reasoning)
	}
}
