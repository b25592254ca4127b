package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/processor"
	"github.com/mikey/llm-inbox-triage/internal/safety"
)

// Notifier delivers an account summary once its run has finished
type Notifier interface {
	Notify(ctx context.Context, summary *RunSummary) error
}

// AccountKit is the collaborator set built for exactly one account run
type AccountKit struct {
	Collaborators processor.Collaborators
	// Notifier is optional
	Notifier Notifier
	// Close releases everything the kit opened
	Close func() error
}

// CollaboratorFactory builds a fresh AccountKit per account. Implementations
// must never hand the same instance to two accounts.
type CollaboratorFactory interface {
	Build(ctx context.Context, cfg config.AccountConfig, logger *zap.Logger) (*AccountKit, error)
}

// Recorder receives every finished account summary
type Recorder interface {
	ObserveAccount(summary *RunSummary)
}

// Options are the per-run switches shared by every account
type Options struct {
	DryRun         bool
	ForceReprocess bool
	Limit          int
	// Parallel is the maximum number of accounts processed at once
	Parallel int
	Confirm  safety.ConfirmFunc
}

// Orchestrator runs account processors and aggregates their summaries
type Orchestrator struct {
	store    *config.Store
	factory  CollaboratorFactory
	recorder Recorder
	logger   *zap.Logger
	newID    func() string
	now      func() time.Time
}

// New creates a new Orchestrator. recorder may be nil.
func New(store *config.Store, factory CollaboratorFactory, recorder Recorder, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:    store,
		factory:  factory,
		recorder: recorder,
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// DiscoverAccounts lists the configured accounts
func (o *Orchestrator) DiscoverAccounts() ([]string, error) {
	return o.store.DiscoverAccounts()
}

// Run processes accountIDs, or every discovered account when accountIDs is
// empty. Only a missing global configuration fails the whole run; every
// other problem is reported in the summary of the affected account.
func (o *Orchestrator) Run(ctx context.Context, accountIDs []string, opts Options) (*RunReport, error) {
	report := &RunReport{RunID: o.newID(), Started: o.now(), DryRun: opts.DryRun}
	logger := o.logger.With(zap.String("run_id", report.RunID))

	global, err := o.store.LoadGlobal()
	if err != nil {
		logger.Error("Cannot start run without global configuration", zap.Error(err))
		return nil, err
	}

	if len(accountIDs) == 0 {
		if accountIDs, err = o.store.DiscoverAccounts(); err != nil {
			return nil, fmt.Errorf("failed to discover accounts: %w", err)
		}
	}
	if len(accountIDs) == 0 {
		logger.Warn("No accounts configured", zap.String("config_dir", o.store.Dir()))
		return report, nil
	}

	parallel := opts.Parallel
	if parallel < 1 {
		parallel = 1
	}
	logger.Info("Starting run",
		zap.Strings("accounts", accountIDs),
		zap.Int("parallel", parallel),
		zap.Bool("dry_run", opts.DryRun))

	report.Accounts = make([]RunSummary, len(accountIDs))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, id := range accountIDs {
		i, id := i, id
		g.Go(func() error {
			report.Accounts[i] = o.runAccount(ctx, logger, global, report.RunID, i, id, opts)
			return nil
		})
	}
	_ = g.Wait()

	report.Elapsed = o.now().Sub(report.Started)
	totals := report.Totals()
	logger.Info("Run finished",
		zap.Int("accounts", len(report.Accounts)),
		zap.Int("processed", totals.Processed),
		zap.Int("dropped", totals.Dropped),
		zap.Int("recorded", totals.Recorded),
		zap.Int("errors", totals.Errors),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// AccountCorrelationID nests an account identifier under the run identifier
func AccountCorrelationID(runID string, index int, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s/%d-%s", runID, index+1, short)
}

func (o *Orchestrator) runAccount(ctx context.Context, runLogger *zap.Logger, global map[string]any, runID string, index int, accountID string, opts Options) (summary RunSummary) {
	start := o.now()
	summary = RunSummary{
		AccountID:     accountID,
		CorrelationID: AccountCorrelationID(runID, index, o.newID()),
		DryRun:        opts.DryRun,
	}
	logger := runLogger.With(
		zap.String("account", accountID),
		zap.String("correlation_id", summary.CorrelationID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in account run", zap.Any("panic", r))
			summary.setFatal(fmt.Errorf("panic: %v", r))
		}
		summary.Elapsed = o.now().Sub(start)
		if o.recorder != nil {
			o.recorder.ObserveAccount(&summary)
		}
	}()

	cfg, err := o.store.Load(global, accountID)
	if err != nil {
		logger.Error("Skipping account with invalid configuration", zap.Error(err))
		summary.setFatal(err)
		return summary
	}

	kit, err := o.factory.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to build account collaborators", zap.Error(err))
		summary.setFatal(err)
		return summary
	}
	defer func() {
		if kit.Close == nil {
			return
		}
		if err := kit.Close(); err != nil {
			logger.Warn("Failed to release account collaborators", zap.Error(err))
		}
	}()

	p := processor.New(cfg, kit.Collaborators, logger)
	res, err := p.Run(ctx, processor.RunOptions{
		DryRun:         opts.DryRun,
		ForceReprocess: opts.ForceReprocess,
		Limit:          opts.Limit,
		RunID:          runID,
		Confirm:        opts.Confirm,
	})
	summary.absorb(res)
	if err != nil {
		summary.setFatal(err)
	}

	logger.Info("Account finished",
		zap.Int("processed", summary.Processed),
		zap.Int("dropped", summary.Dropped),
		zap.Int("recorded", summary.Recorded),
		zap.Int("errors", summary.Errors),
		zap.Int("classification_failures", summary.ClassificationFailures))

	summary.Elapsed = o.now().Sub(start)
	if kit.Notifier != nil && !opts.DryRun {
		if err := kit.Notifier.Notify(context.WithoutCancel(ctx), &summary); err != nil {
			logger.Warn("Failed to send account summary", zap.Error(err))
		}
	}
	return summary
}
