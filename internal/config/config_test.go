package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.Provider)
	}
	if cfg.ContextWindow != 0 {
		t.Errorf("expected default context_window 0, got %d", cfg.ContextWindow)
	}
	if cfg.MarginFactor != 0 {
		t.Errorf("expected margin_factor 0 (planner default), got %v", cfg.MarginFactor)
	}
	if cfg.History.Disabled {
		t.Error("history should be enabled by default")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	// Should return default config.
	if cfg.Provider != "anthropic" {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	yaml := `
provider: deepseek
model: deepseek-chat
context_window: 32000
margin_factor: 0.7
transcripts_dir: /data/transcripts
providers:
  deepseek:
    api_key: sk-test
history:
  disabled: true
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "deepseek" || cfg.Model != "deepseek-chat" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.ContextWindow != 32000 {
		t.Errorf("context_window = %d", cfg.ContextWindow)
	}
	if cfg.MarginFactor != 0.7 {
		t.Errorf("margin_factor = %v", cfg.MarginFactor)
	}
	if cfg.GetProviderConfig("deepseek").APIKey != "sk-test" {
		t.Error("provider api_key not loaded")
	}
	if !cfg.History.Disabled {
		t.Error("history.disabled not loaded")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLIPCHAT_PROVIDER", "openai")
	t.Setenv("CLIPCHAT_MODEL", "gpt-4o")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("env provider override ignored: %q", cfg.Provider)
	}
	if cfg.Model != "gpt-4o" {
		t.Errorf("env model override ignored: %q", cfg.Model)
	}
	if cfg.GetProviderConfig("openai").APIKey != "sk-env" {
		t.Error("OPENAI_API_KEY not applied")
	}
}

func TestGetProviderConfig_Missing(t *testing.T) {
	cfg := DefaultConfig()
	pc := cfg.GetProviderConfig("nope")
	if pc == nil || pc.APIKey != "" {
		t.Error("missing provider should return empty config, not nil")
	}
}

func TestHistoryDBPath_Override(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.Path = "/tmp/custom.sqlite"
	p, err := cfg.HistoryDBPath()
	if err != nil || p != "/tmp/custom.sqlite" {
		t.Errorf("HistoryDBPath = %q, %v", p, err)
	}
}

func TestProviderDefaults(t *testing.T) {
	defs := LoadProviderDefaults()
	if defs["deepseek"].BaseURL == "" {
		t.Error("embedded defaults should include deepseek base_url")
	}
	if defs["anthropic"].DefaultModel == "" {
		t.Error("embedded defaults should include anthropic default_model")
	}
}
