// Package errkind maps errors to the short kind names used in run summaries.
package errkind

import (
	"errors"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/rules"
)

const (
	ConfigNotFound    = "config_not_found"
	ConfigInvalid     = "config_invalid"
	RuleDefinition    = "rule_definition"
	MissingSecret     = "missing_secret"
	InvalidAccount    = "invalid_account"
	CostNotConfirmed  = "cost_not_confirmed"
	Canceled          = "canceled"
	Transient         = "transient"
	MalformedResponse = "malformed_response"
	Unknown           = "unknown"
)

// Classify returns the kind of err. Message and account errors report their
// stage or operation, e.g. "persist" or "connect".
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		verr    *config.ValidationError
		defErr  *rules.DefinitionError
		secret  *config.MissingSecretError
		msgErr  *core.MessageError
		accErr  *core.AccountError
		transEr *core.TransientError
	)

	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		return ConfigNotFound
	case errors.As(err, &verr):
		return ConfigInvalid
	case errors.As(err, &defErr):
		return RuleDefinition
	case errors.As(err, &secret):
		return MissingSecret
	case errors.Is(err, config.ErrInvalidAccountName):
		return InvalidAccount
	case errors.Is(err, core.ErrCostNotConfirmed):
		return CostNotConfirmed
	case errors.As(err, &msgErr):
		return msgErr.Stage
	case core.IsCanceled(err):
		return Canceled
	case errors.As(err, &accErr):
		return accErr.Op
	case errors.Is(err, core.ErrMalformedResponse):
		return MalformedResponse
	case errors.As(err, &transEr):
		return Transient
	default:
		return Unknown
	}
}
