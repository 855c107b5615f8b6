package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedFS_ContainsInitialSchema(t *testing.T) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		t.Fatalf("read embedded FS: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Name() == "001_initial_schema.sql" {
			found = true
		}
	}
	if !found {
		t.Error("001_initial_schema.sql not found in embedded FS")
	}
}

func TestInitialSchema_HasGooseDirectives(t *testing.T) {
	content, err := FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	s := string(content)
	for _, want := range []string{
		"-- +goose Up",
		"-- +goose Down",
		"CREATE TABLE tracked_files",
		"CREATE TABLE idempotency_records",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("migration missing %q", want)
		}
	}
}
