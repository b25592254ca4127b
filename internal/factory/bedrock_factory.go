package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/adapters/bedrock"
	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

// createBedrockScorer uses the default AWS credential chain
func (f *ScorerFactory) createBedrockScorer(ctx context.Context, cfg config.LLMConfig) (core.Scorer, func() error, error) {
	scorer, err := bedrock.NewScorer(ctx, cfg.Region, cfg.Model, cfg.MaxTokens, cfg.Temperature, f.logger)
	if err != nil {
		return nil, nil, err
	}
	f.logger.Debug("Created Bedrock scorer",
		zap.String("model", cfg.Model),
		zap.String("region", cfg.Region))
	return scorer, noClose, nil
}
