package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfigNotFound is returned when the mandatory global document is absent
var ErrConfigNotFound = errors.New("global configuration not found")

// ErrInvalidAccountName is returned for account names unsafe to use in paths
var ErrInvalidAccountName = errors.New("invalid account name")

// ValidationError lists every schema violation of one merged document
type ValidationError struct {
	AccountID string
	Errors    []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	prefix := "configuration"
	if e.AccountID != "" {
		prefix = fmt.Sprintf("configuration for account %q", e.AccountID)
	}
	return fmt.Sprintf("%s is invalid (%d errors): %s", prefix, len(e.Errors), strings.Join(parts, "; "))
}

// MissingSecretError names the environment variable that should hold a secret
type MissingSecretError struct {
	Field string
	Var   string
}

func (e *MissingSecretError) Error() string {
	if e.Var == "" {
		return fmt.Sprintf("%s: no environment variable configured", e.Field)
	}
	return fmt.Sprintf("%s: environment variable %s is not set", e.Field, e.Var)
}
