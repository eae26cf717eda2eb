package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "status"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := resolveConfigPath("custom.yaml"); got != "custom.yaml" {
		t.Errorf("expected explicit path to win, got %s", got)
	}

	t.Setenv("AGENTROUTER_CONFIG", "/etc/agentrouter/env.yaml")
	if got := resolveConfigPath(""); got != "/etc/agentrouter/env.yaml" {
		t.Errorf("expected env var path, got %s", got)
	}

	t.Setenv("AGENTROUTER_CONFIG", "")
	if got := resolveConfigPath(""); got != "agentrouter.yaml" {
		t.Errorf("expected default path, got %s", got)
	}
}
