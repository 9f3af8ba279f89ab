package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackcoderx/probe/pkg/collection"
)

func TestAssertions_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := GetAssertionsPath(dir)

	if err := SaveAssertions(AssertionSet{Blocks: DefaultAssertions()}, path); err != nil {
		t.Fatalf("SaveAssertions() error = %v", err)
	}

	blocks, err := LoadAssertions(path)
	if err != nil {
		t.Fatalf("LoadAssertions() error = %v", err)
	}

	want := DefaultAssertions()
	if len(blocks) != len(want) {
		t.Fatalf("blocks = %d, want %d", len(blocks), len(want))
	}
	for i := range want {
		if blocks[i].Text() != want[i].Text() {
			t.Errorf("block %d = %q, want %q", i, blocks[i].Text(), want[i].Text())
		}
	}
}

func TestLoadAssertions_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"not yaml", "blocks: [", "failed to parse"},
		{"no blocks", "blocks: []\n", "defines no blocks"},
		{"blank block", "blocks:\n  - name: empty\n    lines: [\"  \", \"\"]\n", "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "a.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadAssertions(path)
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error = %v, want containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestLoadAssertions_Missing(t *testing.T) {
	if _, err := LoadAssertions(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultAssertions_AreInjectable(t *testing.T) {
	c := &collection.Collection{Items: []*collection.Item{{Name: "a", Request: &collection.Request{}}}}
	result := collection.NewMutator(DefaultAssertions(), collection.ModeAppend, nil).Apply(c)
	if len(result.Modified) != 1 {
		t.Errorf("Modified = %v", result.Modified)
	}
}

func TestEnvironment_LoadAndSubstitute(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROBE_TEST_PASSWORD", "s3cret")

	if err := os.MkdirAll(GetEnvironmentsDir(dir), 0755); err != nil {
		t.Fatal(err)
	}
	content := "BASE_URL: https://api.example.com\nPASSWORD: \"{{env:PROBE_TEST_PASSWORD}}\"\n"
	if err := os.WriteFile(GetEnvironmentPath(dir, "dev"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadEnvironment(GetEnvironmentPath(dir, "dev"))
	if err != nil {
		t.Fatalf("LoadEnvironment() error = %v", err)
	}
	if loaded["PASSWORD"] != "s3cret" {
		t.Errorf("PASSWORD = %q, want resolved env ref", loaded["PASSWORD"])
	}

	got := SubstituteVariables("{{BASE_URL}}/collections/{{ID}}", loaded)
	if got != "https://api.example.com/collections/{{ID}}" {
		t.Errorf("SubstituteVariables() = %q", got)
	}

	names, err := ListEnvironments(dir)
	if err != nil {
		t.Fatalf("ListEnvironments() error = %v", err)
	}
	if len(names) != 1 || names[0] != "dev" {
		t.Errorf("ListEnvironments() = %v", names)
	}
}

func TestListEnvironments_NoDirectory(t *testing.T) {
	names, err := ListEnvironments(filepath.Join(t.TempDir(), "missing"))
	if err != nil || len(names) != 0 {
		t.Errorf("ListEnvironments() = %v, %v", names, err)
	}
}

func TestExportNewmanEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.json")
	if err := ExportNewmanEnvironment("dev", map[string]string{"B": "2", "A": "1"}, path); err != nil {
		t.Fatalf("ExportNewmanEnvironment() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out newmanEnvironment
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.Name != "dev" || len(out.Values) != 2 || out.Values[0].Key != "A" || !out.Values[0].Enabled {
		t.Errorf("environment = %+v", out)
	}
}
