package orchestrator

import (
	"time"

	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/errkind"
	"github.com/mikey/llm-inbox-triage/internal/processor"
)

// Failure is one diagnosable problem in a run summary
type Failure struct {
	AccountID string
	MessageID string
	Kind      string
	Message   string
}

// RunSummary aggregates the outcome of one account
type RunSummary struct {
	AccountID              string
	CorrelationID          string
	DryRun                 bool
	Candidates             int
	Processed              int
	Dropped                int
	Recorded               int
	Errors                 int
	ClassificationFailures int
	EstimatedCost          float64
	Interrupted            bool
	Elapsed                time.Duration
	Outcomes               []core.ProcessingOutcome
	Failures               []Failure
	// Err is the account-fatal error, if any
	Err     error
	ErrKind string
}

// Failed reports whether the account aborted or any message failed
func (s *RunSummary) Failed() bool {
	return s.Err != nil || s.Errors > 0
}

func (s *RunSummary) setFatal(err error) {
	s.Err = err
	s.ErrKind = errkind.Classify(err)
	s.Failures = append(s.Failures, Failure{
		AccountID: s.AccountID,
		Kind:      s.ErrKind,
		Message:   err.Error(),
	})
}

func (s *RunSummary) absorb(res *processor.Result) {
	if res == nil {
		return
	}
	s.Candidates = res.Candidates
	s.Interrupted = res.Interrupted
	if res.Estimate != nil {
		s.EstimatedCost = res.Estimate.Total
	}
	s.Outcomes = append(s.Outcomes, res.Outcomes...)

	for _, o := range res.Outcomes {
		switch o.Status {
		case core.StatusProcessed:
			s.Processed++
		case core.StatusDropped:
			s.Dropped++
		case core.StatusRecorded:
			s.Recorded++
		case core.StatusError:
			s.Errors++
		}
		if o.ClassificationFailed {
			s.ClassificationFailures++
		}
		if o.Err != nil {
			s.Failures = append(s.Failures, Failure{
				AccountID: s.AccountID,
				MessageID: o.MessageID,
				Kind:      errkind.Classify(o.Err),
				Message:   o.Err.Error(),
			})
		}
	}
}

// RunReport is the result of one orchestrated run
type RunReport struct {
	RunID    string
	Started  time.Time
	Elapsed  time.Duration
	DryRun   bool
	Accounts []RunSummary
}

// Failed reports whether any account failed
func (r *RunReport) Failed() bool {
	for i := range r.Accounts {
		if r.Accounts[i].Failed() {
			return true
		}
	}
	return false
}

// Failures lists every failure of the run in account order
func (r *RunReport) Failures() []Failure {
	var out []Failure
	for _, s := range r.Accounts {
		out = append(out, s.Failures...)
	}
	return out
}

// Totals sums the per-account counters
func (r *RunReport) Totals() RunSummary {
	var t RunSummary
	for _, s := range r.Accounts {
		t.Candidates += s.Candidates
		t.Processed += s.Processed
		t.Dropped += s.Dropped
		t.Recorded += s.Recorded
		t.Errors += s.Errors
		t.ClassificationFailures += s.ClassificationFailures
		t.EstimatedCost += s.EstimatedCost
	}
	t.Elapsed = r.Elapsed
	return t
}
