package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/classifier"
	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/rules"
	"github.com/mikey/llm-inbox-triage/internal/safety"
)

// Classifier scores message text
type Classifier interface {
	Classify(ctx context.Context, text, prompt string) core.ClassificationOutcome
}

// Collaborators are the per-account instances a Processor drives. None of
// them may be shared with another account.
type Collaborators struct {
	Mail       core.MailClient
	Classifier Classifier
	Rules      *rules.Engine
	Renderer   core.Renderer
	Writer     core.NoteWriter
	Ledger     core.Ledger
	Interlock  *safety.Interlock
}

// RunOptions are the per-run switches
type RunOptions struct {
	DryRun         bool
	ForceReprocess bool
	// Limit caps the number of messages; it wins over
	// processing.max_emails_per_run when greater than zero.
	Limit   int
	RunID   string
	Confirm safety.ConfirmFunc
}

// Result is everything one account run produced
type Result struct {
	AccountID   string
	Candidates  int
	Outcomes    []core.ProcessingOutcome
	Estimate    *safety.CostEstimate
	Interrupted bool
	Elapsed     time.Duration
}

// Processor runs the message state machine for a single account
type Processor struct {
	cfg    config.AccountConfig
	c      Collaborators
	logger *zap.Logger
	now    func() time.Time
}

// Option customizes a Processor
type Option func(*Processor)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New creates a new Processor
func New(cfg config.AccountConfig, c Collaborators, logger *zap.Logger, options ...Option) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if c.Rules == nil {
		c.Rules = rules.NewEngine(logger)
	}
	if c.Interlock == nil {
		c.Interlock = safety.NewInterlock(cfg.SafetyInterlock, logger)
	}
	p := &Processor{cfg: cfg, c: c, logger: logger, now: time.Now}
	for _, o := range options {
		o(p)
	}
	return p
}

// Run processes the candidate messages of the account. The returned error is
// account-fatal and always a *core.AccountError; per-message failures are
// reported in Result.Outcomes.
func (p *Processor) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := p.now()
	result := &Result{AccountID: p.cfg.AccountID}
	defer func() { result.Elapsed = p.now().Sub(start) }()

	if err := p.c.Mail.Connect(ctx); err != nil {
		return result, p.accountError("connect", err)
	}
	defer func() {
		if err := p.c.Mail.Disconnect(); err != nil {
			p.logger.Warn("Failed to disconnect from mailbox", zap.Error(err))
		}
	}()

	candidates, err := p.c.Mail.ListCandidates(ctx, p.cfg.IMAP.Query, p.cfg.IMAP.ProcessedTag, opts.ForceReprocess)
	if err != nil {
		return result, p.accountError("list candidates", err)
	}
	result.Candidates = len(candidates)

	if limit := p.limit(opts); limit > 0 && len(candidates) > limit {
		p.logger.Info("Capping batch size",
			zap.Int("candidates", len(candidates)),
			zap.Int("limit", limit))
		candidates = candidates[:limit]
	}

	p.logger.Info("Processing candidates",
		zap.Int("count", len(candidates)),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("force_reprocess", opts.ForceReprocess))

	est, err := p.c.Interlock.Gate(ctx, p.classifiable(candidates), p.confirmFor(opts.Confirm))
	est.AccountID = p.cfg.AccountID
	result.Estimate = &est
	if err != nil {
		return result, p.accountError("cost gate", err)
	}

	for _, msg := range candidates {
		if ctx.Err() != nil {
			result.Interrupted = true
			p.logger.Warn("Run cancelled, not starting further messages",
				zap.Int("processed", len(result.Outcomes)),
				zap.Int("remaining", len(candidates)-len(result.Outcomes)))
			break
		}
		// The in-flight message finishes even if the run is cancelled.
		outcome := p.processMessage(context.WithoutCancel(ctx), msg, opts)
		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

// confirmFor tags estimates with the account before prompting
func (p *Processor) confirmFor(confirm safety.ConfirmFunc) safety.ConfirmFunc {
	if confirm == nil {
		return nil
	}
	return func(ctx context.Context, est safety.CostEstimate) (bool, error) {
		est.AccountID = p.cfg.AccountID
		return confirm(ctx, est)
	}
}

func (p *Processor) limit(opts RunOptions) int {
	if opts.Limit > 0 {
		return opts.Limit
	}
	return p.cfg.Processing.MaxEmailsPerRun
}

// classifiable counts the candidates the blacklist lets through to the
// classifier, since only those incur a scoring call.
func (p *Processor) classifiable(candidates []*core.Message) int {
	n := 0
	for _, msg := range candidates {
		if action, _ := p.c.Rules.EvaluateBlacklist(msg, p.cfg.Blacklist); action == rules.BlacklistPass {
			n++
		}
	}
	return n
}

func (p *Processor) accountError(op string, err error) error {
	p.logger.Error("Account run aborted", zap.String("op", op), zap.Error(err))
	return &core.AccountError{AccountID: p.cfg.AccountID, Op: op, Err: err}
}

// messageRun carries the state of one message through the machine
type messageRun struct {
	msg *core.Message
	// body is the message text, fetched on demand; msg itself is never modified
	body    string
	logger  *zap.Logger
	state   State
	outcome core.ProcessingOutcome
}

func (m *messageRun) to(next State) {
	if !CanTransition(m.state, next) {
		m.logger.Warn("Unexpected state transition",
			zap.String("from", string(m.state)),
			zap.String("to", string(next)))
	}
	m.logger.Debug("Message state", zap.String("from", string(m.state)), zap.String("to", string(next)))
	m.state = next
}

func (p *Processor) processMessage(ctx context.Context, msg *core.Message, opts RunOptions) (outcome core.ProcessingOutcome) {
	start := p.now()
	m := &messageRun{
		msg:    msg,
		body:   msg.Body,
		logger: p.logger.With(zap.String("message_id", msg.ID)),
		state:  StateFetched,
		outcome: core.ProcessingOutcome{
			MessageID: msg.ID,
			Subject:   msg.Subject,
			DryRun:    opts.DryRun,
		},
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Recovered from panic while processing message", zap.Any("panic", r))
			p.fail(m, "panic", fmt.Errorf("panic: %v", r))
		}
		m.outcome.Elapsed = p.now().Sub(start)
		if !opts.DryRun {
			p.record(ctx, m, opts.RunID)
		}
		outcome = m.outcome
	}()

	action, rule := p.c.Rules.EvaluateBlacklist(msg, p.cfg.Blacklist)
	switch action {
	case rules.BlacklistDrop:
		m.to(StateDropped)
		m.outcome.Status = core.StatusDropped
		m.logger.Info("Message dropped by blacklist",
			zap.String("trigger", string(rule.Trigger)),
			zap.String("value", rule.Value))
		return m.outcome
	case rules.BlacklistRecord:
		p.recordWithoutClassification(ctx, m, opts)
		return m.outcome
	}

	m.to(StateClassifying)
	if err := p.ensureBody(ctx, m); err != nil {
		p.fail(m, "fetch", err)
		return m.outcome
	}

	result := p.c.Classifier.Classify(ctx, classifier.FormatMessage(msg, m.body), p.cfg.Classification.Prompt)
	if result.Failed() {
		m.to(StateClassifiedError)
		m.outcome.ClassificationFailed = true
		m.logger.Warn("Classification failed, continuing with error status",
			zap.Int("attempts", result.Attempts),
			zap.Error(result.Err))
	} else {
		m.to(StateClassifiedOK)
	}

	decision := p.decide(msg, result)
	m.to(StateBoosted)
	m.outcome.Decision = &decision

	data := noteData(noteInput{
		accountID: p.cfg.AccountID,
		runID:     opts.RunID,
		msg:       msg,
		body:      m.body,
		decision:  &decision,
		outcome:   &result,
		now:       p.now(),
	})
	if !p.persist(ctx, m, data, opts) {
		return m.outcome
	}
	m.outcome.Status = core.StatusProcessed

	m.logger.Info("Message processed",
		zap.Int("importance", decision.FinalImportanceScore),
		zap.Int("spam", decision.FinalSpamScore),
		zap.Bool("important", decision.IsImportant),
		zap.Bool("spam_flag", decision.IsSpam),
		zap.Strings("tags", decision.Tags),
		zap.String("note", m.outcome.NotePath))
	return m.outcome
}

// decide applies whitelist boosts and thresholds to a classification
func (p *Processor) decide(msg *core.Message, result core.ClassificationOutcome) core.DecisionResult {
	base := core.DecisionResult{
		ImportanceScore:      result.ImportanceScore,
		SpamScore:            result.SpamScore,
		FinalImportanceScore: result.ImportanceScore,
		FinalSpamScore:       result.SpamScore,
		Status:               result.Status,
	}
	decision := p.c.Rules.EvaluateWhitelist(msg, base, p.cfg.Whitelist)
	if decision.Status == core.ClassificationSuccess {
		decision.IsImportant = decision.FinalImportanceScore >= p.cfg.Classification.ImportanceThreshold
		decision.IsSpam = decision.FinalSpamScore >= p.cfg.Classification.SpamThreshold
	}
	return decision
}

func (p *Processor) recordWithoutClassification(ctx context.Context, m *messageRun, opts RunOptions) {
	data := noteData(noteInput{
		accountID: p.cfg.AccountID,
		runID:     opts.RunID,
		msg:       m.msg,
		body:      m.body,
		recorded:  true,
		now:       p.now(),
	})

	// Recorded notes are rendered and persisted without passing through the
	// classification states.
	text, err := p.c.Renderer.Render(p.cfg.Paths.TemplateFile, data)
	if err != nil {
		p.failNote(ctx, m, "render", err, opts)
		return
	}
	if !p.write(ctx, m, text, opts) {
		return
	}
	if !opts.DryRun {
		if err := p.acknowledge(ctx, m.msg.ID); err != nil {
			p.fail(m, "acknowledge", err)
			return
		}
	}
	m.to(StateRecorded)
	m.outcome.Status = core.StatusRecorded
	m.logger.Info("Message recorded without classification", zap.String("note", m.outcome.NotePath))
}

// persist renders, writes and acknowledges a classified message. It returns
// false when the message ended in the error state.
func (p *Processor) persist(ctx context.Context, m *messageRun, data map[string]any, opts RunOptions) bool {
	text, err := p.c.Renderer.Render(p.cfg.Paths.TemplateFile, data)
	if err != nil {
		p.failNote(ctx, m, "render", err, opts)
		return false
	}
	m.to(StateRendered)

	if !p.write(ctx, m, text, opts) {
		return false
	}
	if opts.DryRun {
		return true
	}
	m.to(StatePersisted)

	if err := p.acknowledge(ctx, m.msg.ID); err != nil {
		p.fail(m, "acknowledge", err)
		return false
	}
	m.to(StateAcknowledged)
	return true
}

func (p *Processor) write(ctx context.Context, m *messageRun, text string, opts RunOptions) bool {
	target := NotePath(p.cfg.Paths.NotesDir, m.msg, p.now())
	if opts.DryRun {
		m.outcome.NotePath = target
		m.logger.Info("Dry run, note not written", zap.String("note", target))
		return true
	}

	final, err := p.c.Writer.Write(target, text, opts.ForceReprocess)
	if err != nil {
		p.failNote(ctx, m, "persist", err, opts)
		return false
	}
	m.outcome.NotePath = final
	return true
}

func (p *Processor) acknowledge(ctx context.Context, id string) error {
	if err := p.c.Mail.MarkProcessed(ctx, id, p.cfg.IMAP.ProcessedTag); err != nil {
		return err
	}
	if tag := p.cfg.IMAP.FailedTag; tag != "" {
		if err := p.c.Mail.RemoveTags(ctx, id, []string{tag}); err != nil {
			p.logger.Debug("Failed to clear failure tag", zap.String("message_id", id), zap.Error(err))
		}
	}
	return nil
}

// failNote marks a message whose note could not be produced. The failure
// tag is best-effort.
func (p *Processor) failNote(ctx context.Context, m *messageRun, stage string, err error, opts RunOptions) {
	p.fail(m, stage, err)
	if opts.DryRun || p.cfg.IMAP.FailedTag == "" {
		return
	}
	if tagErr := p.c.Mail.MarkProcessed(ctx, m.msg.ID, p.cfg.IMAP.FailedTag); tagErr != nil {
		m.logger.Warn("Failed to tag message as failed", zap.Error(tagErr))
	}
}

func (p *Processor) fail(m *messageRun, stage string, err error) {
	m.to(StateError)
	m.outcome.Status = core.StatusError
	m.outcome.Err = &core.MessageError{
		AccountID: p.cfg.AccountID,
		MessageID: m.msg.ID,
		Stage:     stage,
		Err:       err,
	}
	m.logger.Error("Message processing failed", zap.String("stage", stage), zap.Error(err))
}

func (p *Processor) ensureBody(ctx context.Context, m *messageRun) error {
	if m.body != "" {
		return nil
	}
	body, err := p.c.Mail.FetchBody(ctx, m.msg.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch body: %w", err)
	}
	m.body = body
	return nil
}

func (p *Processor) record(ctx context.Context, m *messageRun, runID string) {
	if p.c.Ledger == nil {
		return
	}
	entry := &core.LedgerEntry{
		AccountID:       p.cfg.AccountID,
		MessageID:       m.outcome.MessageID,
		RunID:           runID,
		Status:          m.outcome.Status,
		NotePath:        m.outcome.NotePath,
		ImportanceScore: core.ErrorSentinel,
		SpamScore:       core.ErrorSentinel,
		ProcessedAt:     p.now(),
	}
	if d := m.outcome.Decision; d != nil {
		entry.ImportanceScore = d.FinalImportanceScore
		entry.SpamScore = d.FinalSpamScore
	}
	if m.outcome.Err != nil {
		entry.Error = m.outcome.Err.Error()
	}
	if err := p.c.Ledger.Record(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("Failed to record ledger entry", zap.Error(err))
	}
}
