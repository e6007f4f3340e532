package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRules_EmptyPath(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules.Keywords) != 0 || len(rules.Mute) != 0 {
		t.Errorf("expected empty rules, got %+v", rules)
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if len(rules.Keywords) != 0 {
		t.Errorf("expected empty rules, got %+v", rules)
	}
}

func TestLoadRules_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "keywords:\n  - hotfix\n  - beta\nmute:\n  - '\\brepost\\b'\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules.Keywords) != 2 || rules.Keywords[0] != "hotfix" {
		t.Errorf("keywords = %v", rules.Keywords)
	}
	if len(rules.Mute) != 1 {
		t.Errorf("mute = %v", rules.Mute)
	}
}

func TestLoadRules_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("keywords: {not: a list"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(path); err == nil {
		t.Fatal("expected parse error")
	}
}
