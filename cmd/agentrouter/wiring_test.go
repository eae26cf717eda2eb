package main

import (
	"testing"

	"github.com/haasonsaas/agentrouter/internal/config"
	"github.com/haasonsaas/agentrouter/internal/models"
)

func TestParseCapabilities(t *testing.T) {
	got := parseCapabilities([]string{"GENERAL", "CODE"})
	want := []models.Capability{models.CapabilityGeneral, models.CapabilityCode}
	if len(got) != len(want) {
		t.Fatalf("expected %d capabilities, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("capability %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestBuildAdapterLocalProvider(t *testing.T) {
	adapter, err := buildAdapter(config.BackendConfig{
		ID:       "local-1",
		Provider: "local",
		BaseURL:  "http://localhost:11434",
	})
	if err != nil {
		t.Fatalf("buildAdapter() error = %v", err)
	}
	if adapter.BackendID() != "local-1" {
		t.Errorf("expected backend id local-1, got %s", adapter.BackendID())
	}
}

func TestBuildAdapterUnknownProvider(t *testing.T) {
	_, err := buildAdapter(config.BackendConfig{ID: "x", Provider: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
