package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicyFileParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := "profile: coding\nallow:\n  - group:web\ndeny:\n  - exec\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	p, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("LoadPolicyFile: %v", err)
	}
	if p.Profile != ProfileCoding {
		t.Fatalf("expected profile coding, got %s", p.Profile)
	}
	if len(p.Allow) != 1 || p.Allow[0] != "group:web" {
		t.Fatalf("unexpected allow list: %+v", p.Allow)
	}
	if len(p.Deny) != 1 || p.Deny[0] != "exec" {
		t.Fatalf("unexpected deny list: %+v", p.Deny)
	}
}

func TestLoadPolicyFileMissingFile(t *testing.T) {
	if _, err := LoadPolicyFile("/nonexistent/policy.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
