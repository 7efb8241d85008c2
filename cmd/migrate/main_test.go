package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	cases := map[string]int64{
		"001_issuance_records.up.sql": 1,
		"012_add_index.up.sql":        12,
	}
	for name, want := range cases {
		got, err := versionFromFile(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != want {
			t.Errorf("%s: got %d, want %d", name, got, want)
		}
	}
	if _, err := versionFromFile("init.sql"); err == nil {
		t.Error("expected error for filename without numeric prefix")
	}
}

func TestUpMigrations_skipsDown(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"002_b.up.sql", "001_a.up.sql", "001_a.down.sql", "README.md",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.up.sql"), 0o700); err != nil {
		t.Fatal(err)
	}

	files, err := upMigrations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != "001_a.up.sql" || files[1] != "002_b.up.sql" {
		t.Errorf("unexpected migrations: %v", files)
	}
}

func TestUpMigrations_repoDirectory(t *testing.T) {
	files, err := upMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 || files[0] != "001_issuance_records.up.sql" {
		t.Errorf("expected issuance migration first, got %v", files)
	}
}
