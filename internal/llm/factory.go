package llm

import (
	"fmt"

	"github.com/vuddy-labs/vuddy/internal/config"
)

// New builds the gateway selected by cfg.Provider.
func New(cfg config.LLMConfig) (Gateway, error) {
	switch cfg.Provider {
	case "", "ollama":
		return NewOllama(cfg.OllamaHost, cfg.OllamaModel, cfg.Timeout), nil
	case "patriotai":
		return NewOpenAICompat("patriotai", cfg.PatriotAIBaseURL, cfg.PatriotAIAPIKey, cfg.PatriotAIModel, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
