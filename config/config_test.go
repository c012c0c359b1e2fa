package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txvalidate.yaml")
	content := `
schema_source: https://mirror.example.com/{schema}/{version}.zip
cache_dir: /var/cache/txvalidate
profiles:
  strict:
    disabled_rules: [frameDefaultsHaveALocale]
  audit:
    enabled_rules: [everyLineIsReferenced, duplicateFrameIds]
    schema_source: https://audit.example.com/{schema}/{version}.zip
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SchemaSource != "https://mirror.example.com/{schema}/{version}.zip" {
		t.Errorf("SchemaSource = %q", cfg.SchemaSource)
	}
	if cfg.CacheDir != "/var/cache/txvalidate" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}

	strict, ok := cfg.ProfileNamed("strict")
	if !ok {
		t.Fatal("profile strict not found")
	}
	if len(strict.DisabledRules) != 1 || strict.DisabledRules[0] != "frameDefaultsHaveALocale" {
		t.Errorf("strict.DisabledRules = %v", strict.DisabledRules)
	}

	audit, ok := cfg.ProfileNamed("audit")
	if !ok {
		t.Fatal("profile audit not found")
	}
	if len(audit.EnabledRules) != 2 {
		t.Errorf("audit.EnabledRules = %v", audit.EnabledRules)
	}
	if audit.SchemaSource == "" {
		t.Error("audit.SchemaSource not set")
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Profiles) != 0 || cfg.SchemaSource != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("profiles: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TXVALIDATE_SCHEMA_SOURCE", "https://env.example.com/{schema}/{version}.zip")
	t.Setenv("TXVALIDATE_CACHE_DIR", "/tmp/txv-cache")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SchemaSource != "https://env.example.com/{schema}/{version}.zip" {
		t.Errorf("SchemaSource = %q", cfg.SchemaSource)
	}
	if cfg.CacheDir != "/tmp/txv-cache" {
		t.Errorf("CacheDir = %q", cfg.CacheDir)
	}
}
