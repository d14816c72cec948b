package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("expected default backend URL, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Polling.IntervalSeconds != 3 || cfg.Polling.Attempts != 10 {
		t.Errorf("expected 3s/10 polling, got %d/%d", cfg.Polling.IntervalSeconds, cfg.Polling.Attempts)
	}
	if len(cfg.FallbackFeeds) == 0 {
		t.Error("expected fallback feeds to be populated")
	}
}

func TestDefaultCategoriesOrder(t *testing.T) {
	cats := DefaultCategories()
	if len(cats) != 9 {
		t.Fatalf("expected 9 categories, got %d", len(cats))
	}
	if cats[0] != "All" {
		t.Errorf("expected 'All' first, got %q", cats[0])
	}
	if cats[len(cats)-1] != "Miscellaneous" {
		t.Errorf("expected 'Miscellaneous' last, got %q", cats[len(cats)-1])
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
backend:
  base_url: http://backend:9000
server:
  port: 4000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Backend.BaseURL != "http://backend:9000" {
		t.Errorf("expected overridden backend URL, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Polling.IntervalSeconds != 3 {
		t.Errorf("expected default poll interval, got %d", cfg.Polling.IntervalSeconds)
	}
	if len(cfg.Categories) == 0 {
		t.Error("expected default categories when none configured")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Categories) == 0 {
		t.Error("expected categories to be populated from file")
	}
}

func TestBackendBaseURLEnvOverride(t *testing.T) {
	cfg := &Config{Backend: Backend{BaseURL: "http://fromconfig:8000"}}

	t.Setenv("TRENDSAGE_API_URL", "")
	if got := cfg.BackendBaseURL(); got != "http://fromconfig:8000" {
		t.Errorf("expected config URL, got %q", got)
	}

	t.Setenv("TRENDSAGE_API_URL", "http://fromenv:8000")
	if got := cfg.BackendBaseURL(); got != "http://fromenv:8000" {
		t.Errorf("expected env URL to win, got %q", got)
	}
}

func TestPollInterval(t *testing.T) {
	cfg := &Config{Polling: Polling{IntervalSeconds: 5}}
	if got := cfg.PollInterval(); got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetDataDir() == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected custom path, got %q", cfg.GetDataDir())
	}
}
