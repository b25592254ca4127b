package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrMalformedResponse is returned when a scorer reply cannot be parsed
	ErrMalformedResponse = errors.New("malformed scoring response")
	// ErrScoreOutOfRange is returned when a reply parses but a score is outside 0..10
	ErrScoreOutOfRange = errors.New("score out of range")
	// ErrRateLimited is returned when the scoring API throttles the caller
	ErrRateLimited = errors.New("rate limited")
	// ErrCostNotConfirmed is returned when the cost gate was declined
	ErrCostNotConfirmed = errors.New("cost confirmation declined")
	// ErrLedgerNotFound is returned when no ledger entry exists
	ErrLedgerNotFound = errors.New("ledger entry not found")
)

// TransientError marks a failure worth retrying
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is worth retrying
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrScoreOutOfRange) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}

// MessageError is a failure contained to one message
type MessageError struct {
	AccountID string
	MessageID string
	Stage     string
	Err       error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("message %s (%s): %s: %v", e.MessageID, e.AccountID, e.Stage, e.Err)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}

// AccountError aborts one account without touching its siblings
type AccountError struct {
	AccountID string
	Op        string
	Err       error
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("account %s: %s: %v", e.AccountID, e.Op, e.Err)
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// IsCanceled reports whether err came from context cancellation
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
