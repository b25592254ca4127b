package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
)

// Recorder collects run metrics on a private registry
type Recorder struct {
	registry *prometheus.Registry
	now      func() time.Time

	MessagesTotal          *prometheus.CounterVec
	ClassificationFailures *prometheus.CounterVec
	AccountRunsTotal       *prometheus.CounterVec
	AccountDuration        *prometheus.HistogramVec
	EstimatedCost          *prometheus.GaugeVec
	LastRunTimestamp       *prometheus.GaugeVec
}

// NewRecorder creates a new Recorder with its metrics registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		now:      time.Now,

		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbox_triage_messages_total",
				Help: "Messages handled, by final status",
			},
			[]string{"account", "status"},
		),
		ClassificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbox_triage_classification_failures_total",
				Help: "Messages whose classification exhausted every retry",
			},
			[]string{"account"},
		),
		AccountRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inbox_triage_account_runs_total",
				Help: "Account runs, by result",
			},
			[]string{"account", "result"},
		),
		AccountDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "inbox_triage_account_duration_seconds",
				Help:    "Duration of account runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"account"},
		),
		EstimatedCost: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inbox_triage_estimated_cost_dollars",
				Help: "Estimated classification cost of the last account run",
			},
			[]string{"account"},
		),
		LastRunTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "inbox_triage_last_run_timestamp_seconds",
				Help: "Unix time the account last finished a run",
			},
			[]string{"account"},
		),
	}

	r.registry.MustRegister(
		r.MessagesTotal,
		r.ClassificationFailures,
		r.AccountRunsTotal,
		r.AccountDuration,
		r.EstimatedCost,
		r.LastRunTimestamp,
	)
	return r
}

// Registry returns the registry holding every metric
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveAccount records a finished account summary
func (r *Recorder) ObserveAccount(s *orchestrator.RunSummary) {
	account := s.AccountID

	counts := map[core.ProcessingStatus]int{
		core.StatusProcessed: s.Processed,
		core.StatusDropped:   s.Dropped,
		core.StatusRecorded:  s.Recorded,
		core.StatusError:     s.Errors,
	}
	for status, n := range counts {
		if n > 0 {
			r.MessagesTotal.WithLabelValues(account, string(status)).Add(float64(n))
		}
	}
	if s.ClassificationFailures > 0 {
		r.ClassificationFailures.WithLabelValues(account).Add(float64(s.ClassificationFailures))
	}

	result := "ok"
	switch {
	case s.Err != nil:
		result = "aborted"
	case s.Errors > 0:
		result = "partial"
	}
	r.AccountRunsTotal.WithLabelValues(account, result).Inc()
	r.AccountDuration.WithLabelValues(account).Observe(s.Elapsed.Seconds())
	r.EstimatedCost.WithLabelValues(account).Set(s.EstimatedCost)
	r.LastRunTimestamp.WithLabelValues(account).Set(float64(r.now().Unix()))
}

// WriteTextfile writes the registry in the node_exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}
