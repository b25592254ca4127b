package factory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/adapters/mailbox"
	"github.com/mikey/llm-inbox-triage/internal/adapters/notes"
	"github.com/mikey/llm-inbox-triage/internal/adapters/notify"
	"github.com/mikey/llm-inbox-triage/internal/classifier"
	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
	"github.com/mikey/llm-inbox-triage/internal/processor"
	"github.com/mikey/llm-inbox-triage/internal/rules"
	"github.com/mikey/llm-inbox-triage/internal/safety"
)

// AccountFactory builds the collaborators of one account run. Every call
// returns fresh instances so accounts never share connections or state.
type AccountFactory struct {
	scorers *ScorerFactory
	ledgers *LedgerFactory
}

// NewAccountFactory creates a new account factory
func NewAccountFactory(scorers *ScorerFactory, ledgers *LedgerFactory) *AccountFactory {
	return &AccountFactory{scorers: scorers, ledgers: ledgers}
}

// Build implements orchestrator.CollaboratorFactory
func (f *AccountFactory) Build(ctx context.Context, cfg config.AccountConfig, logger *zap.Logger) (*orchestrator.AccountKit, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fail := func(err error) (*orchestrator.AccountKit, error) {
		return nil, &core.AccountError{AccountID: cfg.AccountID, Op: "build", Err: err}
	}

	password, err := config.ResolveSecret("imap.password_env", cfg.IMAP.PasswordEnv)
	if err != nil {
		return fail(err)
	}

	var notifier orchestrator.Notifier
	if cfg.Notify.Enabled {
		var smtpPassword string
		if cfg.Notify.Username != "" {
			if smtpPassword, err = config.ResolveSecret("notify.password_env", cfg.Notify.PasswordEnv); err != nil {
				return fail(err)
			}
		}
		notifier = notify.NewSMTPNotifier(cfg.Notify, smtpPassword, logger)
	}

	scorer, closeScorer, err := f.scorers.CreateScorer(ctx, cfg.LLM)
	if err != nil {
		return fail(err)
	}

	ledger, err := f.ledgers.CreateLedger(ctx, cfg.Ledger)
	if err != nil {
		_ = closeScorer()
		return fail(err)
	}

	kit := &orchestrator.AccountKit{
		Collaborators: processor.Collaborators{
			Mail:       mailbox.NewClient(cfg.IMAP, password, logger),
			Classifier: classifier.New(scorer, classifier.OptionsFromConfig(cfg), logger),
			Rules:      rules.NewEngine(logger),
			Renderer:   notes.NewTemplateRenderer(logger),
			Writer:     notes.NewFileWriter(logger),
			Ledger:     ledger,
			Interlock:  safety.NewInterlock(cfg.SafetyInterlock, logger),
		},
		Notifier: notifier,
		Close: func() error {
			return errors.Join(ledger.Close(), closeScorer())
		},
	}

	logger.Debug("Built account collaborators",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("ledger", cfg.Ledger.Type),
		zap.Bool("notify", notifier != nil))
	return kit, nil
}
