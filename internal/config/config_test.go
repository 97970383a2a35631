package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("HARDWARE_MODE", "sim")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("Expected ollama provider, got %q", cfg.LLM.Provider)
	}
	if cfg.Hardware.Mode != "sim" {
		t.Errorf("Expected sim hardware mode, got %q", cfg.Hardware.Mode)
	}
	if cfg.ConversationLog.QueueSize <= 0 {
		t.Errorf("Expected positive queue size, got %d", cfg.ConversationLog.QueueSize)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mystery")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for unknown LLM provider")
	}
}

func TestLoadTreatsPlaceholderKeyAsUnset(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("ELEVENLABS_API_KEY", "your_elevenlabs_api_key_here")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TTS.APIKey != "" {
		t.Errorf("Expected placeholder key to be cleared, got %q", cfg.TTS.APIKey)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " http://a.test , ,http://b.test")

	got := getEnvList("CORS_ORIGINS", nil)
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("Unexpected origins: %v", got)
	}
}
