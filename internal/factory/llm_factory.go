package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

// ScorerFactory creates scoring clients
type ScorerFactory struct {
	logger *zap.Logger
}

// NewScorerFactory creates a new scorer factory
func NewScorerFactory(logger *zap.Logger) *ScorerFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScorerFactory{logger: logger}
}

// CreateScorer creates a scorer for the configured provider. The returned
// close function releases the client and is never nil.
func (f *ScorerFactory) CreateScorer(ctx context.Context, cfg config.LLMConfig) (core.Scorer, func() error, error) {
	switch cfg.Provider {
	case "bedrock":
		return f.createBedrockScorer(ctx, cfg)
	case "gemini":
		return f.createGeminiScorer(ctx, cfg)
	case "openai":
		return f.createOpenAIScorer(cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func noClose() error { return nil }
