package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/utils"
)

// Options controls the retry budget and input size of a Classifier
type Options struct {
	Attempts     int
	BaseDelay    time.Duration
	MaxJitter    time.Duration
	CallTimeout  time.Duration
	MaxBodyChars int
}

// OptionsFromConfig reads the classifier options of one account
func OptionsFromConfig(cfg config.AccountConfig) Options {
	return Options{
		Attempts:     cfg.LLM.RetryAttempts,
		BaseDelay:    cfg.LLM.RetryDelay(),
		MaxJitter:    cfg.LLM.RetryJitter(),
		CallTimeout:  cfg.LLM.Timeout(),
		MaxBodyChars: cfg.Classification.MaxBodyChars,
	}
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customizes a Classifier
type Option func(*Classifier)

// WithSleep replaces the backoff sleep
func WithSleep(sleep SleepFunc) Option {
	return func(c *Classifier) { c.sleep = sleep }
}

// WithJitter replaces the jitter source
func WithJitter(jitter func() time.Duration) Option {
	return func(c *Classifier) { c.jitter = jitter }
}

// Classifier asks a Scorer for scores with bounded retries. It never
// returns an error: an exhausted budget yields a sentinel outcome.
type Classifier struct {
	scorer core.Scorer
	opts   Options
	text   *utils.TextProcessor
	logger *zap.Logger
	sleep  SleepFunc
	jitter func() time.Duration
}

// New creates a new Classifier
func New(scorer core.Scorer, opts Options, logger *zap.Logger, options ...Option) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	c := &Classifier{
		scorer: scorer,
		opts:   opts,
		text:   utils.NewTextProcessor(logger),
		logger: logger,
		sleep:  sleepContext,
	}
	c.jitter = c.randomJitter

	for _, o := range options {
		o(c)
	}
	return c
}

// Backoff returns the delay after the given failed attempt (1-based):
// base * 2^(attempt-1) + jitter.
func (c *Classifier) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(c.opts.BaseDelay) * math.Pow(2, float64(attempt-1)))
	return delay + c.jitter()
}

// Classify scores text with prompt
func (c *Classifier) Classify(ctx context.Context, text, prompt string) core.ClassificationOutcome {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	body := c.text.ProcessText(text, c.opts.MaxBodyChars)

	var (
		lastErr error
		lastRaw string
	)
	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.FailedClassification(attempt-1, lastRaw, err)
		}

		resp, err := c.score(ctx, prompt, body)
		if err == nil {
			err = ValidateScores(resp)
		}
		if resp.Raw != "" {
			lastRaw = resp.Raw
		}
		if err == nil {
			return core.ClassificationOutcome{
				ImportanceScore: resp.ImportanceScore,
				SpamScore:       resp.SpamScore,
				RawResponse:     resp.Raw,
				Status:          core.ClassificationSuccess,
				Attempts:        attempt,
			}
		}
		lastErr = err

		if !core.IsTransient(err) {
			c.logger.Warn("Classification failed with a permanent error",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return core.FailedClassification(attempt, lastRaw, err)
		}
		if attempt == c.opts.Attempts {
			break
		}

		delay := c.Backoff(attempt)
		c.logger.Warn("Classification attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.opts.Attempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		if err := c.sleep(ctx, delay); err != nil {
			return core.FailedClassification(attempt, lastRaw, err)
		}
	}

	c.logger.Error("Classification attempts exhausted",
		zap.Int("attempts", c.opts.Attempts),
		zap.Error(lastErr))
	return core.FailedClassification(c.opts.Attempts, lastRaw,
		fmt.Errorf("classification failed after %d attempts: %w", c.opts.Attempts, lastErr))
}

func (c *Classifier) score(ctx context.Context, prompt, body string) (resp core.ScoreResponse, err error) {
	callCtx := ctx
	if c.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scorer panicked: %v", r)
		}
	}()

	resp, err = c.scorer.Score(callCtx, prompt, body)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = core.Transient(err)
	}
	return resp, err
}

func (c *Classifier) randomJitter() time.Duration {
	if c.opts.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(c.opts.MaxJitter)))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
