// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	CORSOrigins     []string
	DBPath          string
	EventsDataPath  string
	School          string
	WakeWord        string
	LLM             LLMConfig
	TTS             TTSConfig
	Hardware        HardwareConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
	OTelEnabled     bool
}

// LLMConfig selects and configures the reasoning backend.
type LLMConfig struct {
	Provider         string // "ollama" (default) or "patriotai"
	OllamaHost       string
	OllamaModel      string
	PatriotAIBaseURL string
	PatriotAIAPIKey  string
	PatriotAIModel   string
	Timeout          time.Duration
}

// TTSConfig controls ElevenLabs speech synthesis.
type TTSConfig struct {
	Enabled bool
	APIKey  string
	VoiceID string
	Model   string
	Dir     string
	BaseURL string
	Timeout time.Duration
}

// HardwareConfig selects the actuator sink.
type HardwareConfig struct {
	Mode       string // "sim" (default) or "arduino"
	SerialPort string
	SerialBaud int
}

// RateLimitConfig bounds how fast a single connection may start turns.
type RateLimitConfig struct {
	TurnsPerMinute int
	Burst          int
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8000"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"}),
		DBPath:         getEnv("DB_PATH", "./data/vuddy.db"),
		EventsDataPath: getEnv("EVENTS_DATA_PATH", "./data/events_seed.json"),
		School:         getEnv("SCHOOL", "gmu"),
		WakeWord:       getEnv("WAKE_WORD", "hey vuddy"),
		LLM: LLMConfig{
			Provider:         strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
			OllamaHost:       getEnv("OLLAMA_HOST", "http://localhost:11434"),
			OllamaModel:      getEnv("OLLAMA_MODEL", "qwen3:8b"),
			PatriotAIBaseURL: getEnv("PATRIOTAI_BASE_URL", "https://api.patriotai.com/v1"),
			PatriotAIAPIKey:  getEnv("PATRIOTAI_API_KEY", ""),
			PatriotAIModel:   getEnv("PATRIOTAI_MODEL", "patriotai-default"),
			Timeout:          time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 180)) * time.Second,
		},
		TTS: TTSConfig{
			Enabled: getEnvBool("ENABLE_TTS", true),
			APIKey:  getEnv("ELEVENLABS_API_KEY", ""),
			VoiceID: getEnv("ELEVENLABS_VOICE_ID", "pNInz6obpgDQGcFmaJgB"),
			Model:   getEnv("ELEVENLABS_MODEL", "eleven_turbo_v2_5"),
			Dir:     getEnv("TTS_DIR", "./data/audio/tts"),
			BaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
			Timeout: 30 * time.Second,
		},
		Hardware: HardwareConfig{
			Mode:       strings.ToLower(getEnv("HARDWARE_MODE", "sim")),
			SerialPort: getEnv("SERIAL_PORT", "/dev/ttyUSB0"),
			SerialBaud: getEnvInt("SERIAL_BAUD", 115200),
		},
		RateLimit: RateLimitConfig{
			TurnsPerMinute: getEnvInt("CHAT_RATE_LIMIT", 20),
			Burst:          getEnvInt("CHAT_RATE_BURST", 5),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
		OTelEnabled: getEnvBool("OTEL_ENABLED", false),
	}

	// Placeholder keys copied from .env.example count as unset.
	if cfg.TTS.APIKey == "your_elevenlabs_api_key_here" {
		cfg.TTS.APIKey = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.LLM.Provider {
	case "ollama", "patriotai":
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of ollama, patriotai (got %q)", c.LLM.Provider)
	}
	switch c.Hardware.Mode {
	case "sim", "arduino":
	default:
		return fmt.Errorf("HARDWARE_MODE must be one of sim, arduino (got %q)", c.Hardware.Mode)
	}
	if c.TTS.Dir == "" {
		return fmt.Errorf("TTS_DIR cannot be empty")
	}
	if c.RateLimit.TurnsPerMinute <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("CHAT_RATE_BURST must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
