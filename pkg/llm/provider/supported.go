package provider

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/bridge/pkg/llm/provider/ollama"
	"github.com/papercomputeco/bridge/pkg/llm/provider/openai"
)

// Supported target provider names.
const (
	OpenAI = "openai"
	Ollama = "ollama"
)

// SupportedProviders lists every target provider name.
func SupportedProviders() []string {
	return []string{OpenAI, Ollama}
}

// Config selects and configures a target client.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// New builds the client for c.Provider.
func New(c Config) (Client, error) {
	switch c.Provider {
	case OpenAI:
		if c.APIKey == "" {
			return nil, fmt.Errorf("%s: %w (set BRIDGE_TARGET_API_KEY)", c.Provider, ErrMissingAPIKey)
		}
		return openai.NewClient(openai.Config{
			BaseURL: c.BaseURL,
			APIKey:  c.APIKey,
			Model:   c.Model,
			Timeout: c.Timeout,
			Logger:  c.Logger,
		})
	case Ollama:
		return ollama.NewClient(ollama.Config{
			BaseURL: c.BaseURL,
			Model:   c.Model,
			Timeout: c.Timeout,
			Logger:  c.Logger,
		})
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", c.Provider, SupportedProviders())
	}
}
