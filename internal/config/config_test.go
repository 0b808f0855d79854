package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "verdict" {
		t.Errorf("expected Name=verdict, got %s", cfg.Name)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected Provider=anthropic, got %s", cfg.LLM.Provider)
	}
	if !cfg.LLM.MockMode {
		t.Error("expected MockMode=true by default")
	}
	if cfg.Verification.MaxExplanationRounds != 2 {
		t.Errorf("expected MaxExplanationRounds=2, got %d", cfg.Verification.MaxExplanationRounds)
	}
	if cfg.Verification.MaxRisks != 2 {
		t.Errorf("expected MaxRisks=2, got %d", cfg.Verification.MaxRisks)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.MockMode = false
	cfg.Verification.MaxClarificationRounds = 5

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.APIKey != "sk-test" {
		t.Errorf("expected APIKey=sk-test, got %s", loaded.LLM.APIKey)
	}
	if loaded.LLM.MockMode {
		t.Error("expected MockMode=false after load")
	}
	if loaded.Verification.MaxClarificationRounds != 5 {
		t.Errorf("expected MaxClarificationRounds=5, got %d", loaded.Verification.MaxClarificationRounds)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Name != "verdict" {
		t.Errorf("expected defaults, got Name=%s", cfg.Name)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	// Mock mode needs no API key
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	cfg.LLM.MockMode = false
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing API key")
	}

	cfg.LLM.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}

	cfg.LLM.Provider = "invalid-provider"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}

	cfg = DefaultConfig()
	cfg.Verification.MaxExplanationRounds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero explanation rounds")
	}
}
