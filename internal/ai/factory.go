package ai

import (
	"fmt"

	"github.com/kariro/kariro/internal/ai/anthropic"
	"github.com/kariro/kariro/internal/ai/mock"
	"github.com/kariro/kariro/internal/ai/openai"
	"github.com/kariro/kariro/internal/config"
	"github.com/kariro/kariro/pkg/models"
)

// NewProvider constructs the appropriate AI provider based on config.
// Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of openai, anthropic, mock", cfg.Provider)
	}
}
