package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected missing file tolerated, got %v", err)
	}
	if cfg.Sync.PullInterval != 60*time.Second {
		t.Errorf("expected default pull interval, got %v", cfg.Sync.PullInterval)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("expected default max retries, got %d", cfg.Sync.MaxRetries)
	}
	if cfg.DataDir == "" {
		t.Error("expected default data dir set")
	}
}

func TestWriteDefaultThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("failed to write default config: %v", err)
	}

	// Never clobber an existing file.
	if err := WriteDefault(path); err == nil {
		t.Error("expected error overwriting existing config")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	def := Default()
	if cfg.Sync.PullInterval != def.Sync.PullInterval {
		t.Errorf("round trip changed pull interval: %v", cfg.Sync.PullInterval)
	}
	if cfg.Dashboard.Port != def.Dashboard.Port {
		t.Errorf("round trip changed dashboard port: %d", cfg.Dashboard.Port)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
data_dir: /tmp/focal-test
remote:
  base_url: https://sync.example.com
  token: secret
sync:
  pull_interval: 30s
  max_retries: 9
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.DataDir != "/tmp/focal-test" {
		t.Errorf("expected data dir override, got %s", cfg.DataDir)
	}
	if cfg.Remote.BaseURL != "https://sync.example.com" || cfg.Remote.Token != "secret" {
		t.Errorf("expected remote overrides, got %+v", cfg.Remote)
	}
	if cfg.Sync.PullInterval != 30*time.Second {
		t.Errorf("expected 30s pull interval, got %v", cfg.Sync.PullInterval)
	}
	if cfg.Sync.MaxRetries != 9 {
		t.Errorf("expected 9 retries, got %d", cfg.Sync.MaxRetries)
	}
	// Unset keys keep their defaults.
	if cfg.Sync.DrainBatchSize != 25 {
		t.Errorf("expected default batch size, got %d", cfg.Sync.DrainBatchSize)
	}
	if cfg.DatabasePath() != filepath.Join("/tmp/focal-test", "focal.db") {
		t.Errorf("unexpected database path %s", cfg.DatabasePath())
	}
}
