package safety

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

func perEmail(v float64) *float64 { return &v }

func baseConfig() config.SafetyConfig {
	return config.SafetyConfig{
		Enabled:                        true,
		CostThreshold:                  0.10,
		SkipConfirmationBelowThreshold: true,
		CostPerEmail:                   perEmail(0.002),
		AverageTokensPerEmail:          2000,
		CostPer1KTokens:                0.01,
	}
}

func TestEstimateAboveThresholdRequiresConfirmation(t *testing.T) {
	il := NewInterlock(baseConfig(), nil)

	est := il.EstimateCost(100)
	assert.InDelta(t, 0.20, est.Total, 1e-9)
	assert.Equal(t, BasisPerEmail, est.Basis)
	assert.True(t, il.RequiresConfirmation(est))
}

func TestTokenPricingWhenNoDirectCost(t *testing.T) {
	cfg := baseConfig()
	cfg.CostPerEmail = nil
	il := NewInterlock(cfg, nil)

	est := il.EstimateCost(10)
	assert.Equal(t, BasisPerTokens, est.Basis)
	assert.InDelta(t, 0.02, est.PerEmail, 1e-9)
	assert.InDelta(t, 0.20, est.Total, 1e-9)
}

func TestBelowThresholdSkipsConfirmation(t *testing.T) {
	il := NewInterlock(baseConfig(), nil)
	est := il.EstimateCost(10)
	assert.False(t, il.RequiresConfirmation(est))

	cfg := baseConfig()
	cfg.SkipConfirmationBelowThreshold = false
	assert.True(t, NewInterlock(cfg, nil).RequiresConfirmation(est))
}

func TestDisabledNeverRequiresConfirmation(t *testing.T) {
	cfg := baseConfig()
	cfg.Enabled = false
	il := NewInterlock(cfg, nil)
	assert.False(t, il.RequiresConfirmation(il.EstimateCost(100000)))
}

func TestGate(t *testing.T) {
	il := NewInterlock(baseConfig(), nil)
	ctx := context.Background()

	_, err := il.Gate(ctx, 100, Decline)
	assert.ErrorIs(t, err, core.ErrCostNotConfirmed)

	_, err = il.Gate(ctx, 100, nil)
	assert.ErrorIs(t, err, core.ErrCostNotConfirmed)

	est, err := il.Gate(ctx, 100, AutoConfirm)
	require.NoError(t, err)
	assert.Equal(t, 100, est.Count)

	called := false
	_, err = il.Gate(ctx, 5, func(context.Context, CostEstimate) (bool, error) {
		called = true
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, called, "below threshold")

	_, err = il.Gate(ctx, 0, Decline)
	assert.NoError(t, err)
}

func TestGatePropagatesPromptError(t *testing.T) {
	il := NewInterlock(baseConfig(), nil)
	boom := errors.New("tty closed")
	_, err := il.Gate(context.Background(), 100, func(context.Context, CostEstimate) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}
