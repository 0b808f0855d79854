package gateway

import (
	"fmt"

	"verdict/internal/config"
)

// NewClient creates a gateway client from configuration.
// Mock mode always selects the offline simulator; otherwise the provider
// field picks the backend.
func NewClient(cfg *config.Config) (Client, error) {
	if cfg.LLM.MockMode {
		return NewSimulator(), nil
	}

	switch cfg.LLM.Provider {
	case "simulator":
		return NewSimulator(), nil

	case "anthropic":
		ac := DefaultAnthropicConfig(cfg.LLM.APIKey)
		if cfg.LLM.Model != "" {
			ac.Model = cfg.LLM.Model
		}
		if cfg.LLM.BaseURL != "" {
			ac.BaseURL = cfg.LLM.BaseURL
		}
		ac.Timeout = cfg.GetLLMTimeout()
		return NewAnthropicClientWithConfig(ac), nil

	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.LLM.Provider)
	}
}
