package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/adapters/openai"
	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

func (f *ScorerFactory) createOpenAIScorer(cfg config.LLMConfig) (core.Scorer, func() error, error) {
	apiKey, err := config.ResolveSecret("llm.api_key_env", cfg.APIKeyEnv)
	if err != nil {
		return nil, nil, err
	}
	f.logger.Debug("Created OpenAI scorer",
		zap.String("model", cfg.Model),
		zap.String("base_url", cfg.BaseURL))
	return openai.NewScorer(apiKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Temperature, f.logger), noClose, nil
}
