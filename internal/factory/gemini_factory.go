package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/adapters/gemini"
	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

func (f *ScorerFactory) createGeminiScorer(ctx context.Context, cfg config.LLMConfig) (core.Scorer, func() error, error) {
	apiKey, err := config.ResolveSecret("llm.api_key_env", cfg.APIKeyEnv)
	if err != nil {
		return nil, nil, err
	}
	scorer, err := gemini.NewScorer(ctx, apiKey, cfg.Model, cfg.MaxTokens, cfg.Temperature, f.logger)
	if err != nil {
		return nil, nil, err
	}
	f.logger.Debug("Created Gemini scorer", zap.String("model", cfg.Model))
	return scorer, scorer.Close, nil
}
