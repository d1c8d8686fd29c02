package infra

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrationsFS(), "*.sql")
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected at least 2 migrations, got %v", files)
	}
	for _, name := range files {
		raw, err := fs.ReadFile(migrationsFS(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s is missing goose annotations", name)
		}
	}
}

func TestExtractMarker(t *testing.T) {
	marker, body, err := ExtractMarker("\n--sql 2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1\nselect 1;\n")
	if err != nil {
		t.Fatalf("ExtractMarker error: %v", err)
	}
	if marker != "2caa5b21-4c2b-4b72-8a36-7d3d0f9b77a1" || body != "select 1;" {
		t.Fatalf("unexpected marker=%q body=%q", marker, body)
	}
	if _, _, err := ExtractMarker("--sql not-a-uuid\nselect 1;"); err != ErrSQLMarker {
		t.Fatalf("expected ErrSQLMarker, got %v", err)
	}
}
