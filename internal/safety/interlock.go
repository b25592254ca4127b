package safety

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

// PricingBasis names the knob a cost estimate was computed from
type PricingBasis string

const (
	BasisPerEmail  PricingBasis = "cost_per_email"
	BasisPerTokens PricingBasis = "cost_per_1k_tokens"
)

// CostEstimate is the projected spend of classifying a batch
type CostEstimate struct {
	// AccountID is filled in by the caller that owns the batch
	AccountID string
	Count     int
	Total     float64
	PerEmail  float64
	Basis     PricingBasis
	Threshold float64
}

func (e CostEstimate) String() string {
	return fmt.Sprintf("%d emails x $%.4f = $%.4f (threshold $%.4f, priced by %s)",
		e.Count, e.PerEmail, e.Total, e.Threshold, e.Basis)
}

// ConfirmFunc asks the operator whether a batch may proceed
type ConfirmFunc func(ctx context.Context, estimate CostEstimate) (bool, error)

// AutoConfirm approves every batch
func AutoConfirm(context.Context, CostEstimate) (bool, error) { return true, nil }

// Decline rejects every batch that needs confirmation
func Decline(context.Context, CostEstimate) (bool, error) { return false, nil }

// Interlock gates paid classification calls behind a cost estimate
type Interlock struct {
	cfg    config.SafetyConfig
	logger *zap.Logger
}

// NewInterlock creates a new Interlock
func NewInterlock(cfg config.SafetyConfig, logger *zap.Logger) *Interlock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interlock{cfg: cfg, logger: logger}
}

// EstimateCost projects the cost of count classifications. A configured
// cost_per_email takes precedence over token based pricing.
func (i *Interlock) EstimateCost(count int) CostEstimate {
	est := CostEstimate{Count: count, Threshold: i.cfg.CostThreshold}
	if i.cfg.CostPerEmail != nil {
		est.Basis = BasisPerEmail
		est.PerEmail = *i.cfg.CostPerEmail
	} else {
		est.Basis = BasisPerTokens
		est.PerEmail = float64(i.cfg.AverageTokensPerEmail) / 1000 * i.cfg.CostPer1KTokens
	}
	est.Total = float64(count) * est.PerEmail
	return est
}

// RequiresConfirmation reports whether the operator must approve est
func (i *Interlock) RequiresConfirmation(est CostEstimate) bool {
	if !i.cfg.Enabled {
		return false
	}
	if est.Total < i.cfg.CostThreshold && i.cfg.SkipConfirmationBelowThreshold {
		return false
	}
	return true
}

// Confirm asks prompt for approval. A nil prompt declines.
func (i *Interlock) Confirm(ctx context.Context, prompt ConfirmFunc, est CostEstimate) (bool, error) {
	if prompt == nil {
		return false, nil
	}
	ok, err := prompt(ctx, est)
	if err != nil {
		return false, fmt.Errorf("failed to obtain cost confirmation: %w", err)
	}
	return ok, nil
}

// Gate estimates the cost of count classifications and, when required,
// obtains confirmation. It returns core.ErrCostNotConfirmed when declined.
func (i *Interlock) Gate(ctx context.Context, count int, prompt ConfirmFunc) (CostEstimate, error) {
	est := i.EstimateCost(count)
	if count == 0 {
		return est, nil
	}

	i.logger.Info("Estimated classification cost",
		zap.Int("emails", est.Count),
		zap.Float64("estimated_cost", est.Total),
		zap.Float64("threshold", est.Threshold),
		zap.String("pricing", string(est.Basis)))

	if !i.RequiresConfirmation(est) {
		return est, nil
	}

	ok, err := i.Confirm(ctx, prompt, est)
	if err != nil {
		return est, err
	}
	if !ok {
		i.logger.Warn("Cost confirmation declined", zap.Float64("estimated_cost", est.Total))
		return est, core.ErrCostNotConfirmed
	}
	return est, nil
}
