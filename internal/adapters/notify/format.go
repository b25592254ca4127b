package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
)

// Subject returns the summary email subject
func Subject(s *orchestrator.RunSummary) string {
	status := "ok"
	if s.Failed() {
		status = "with errors"
	}
	return fmt.Sprintf("[inbox-triage] %s: %d processed, %d important (%s)",
		s.AccountID, s.Processed, countImportant(s), status)
}

// Body returns the plain text summary
func Body(s *orchestrator.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Account:     %s\n", s.AccountID)
	fmt.Fprintf(&b, "Correlation: %s\n", s.CorrelationID)
	fmt.Fprintf(&b, "Candidates:  %d\n", s.Candidates)
	fmt.Fprintf(&b, "Processed:   %d\n", s.Processed)
	fmt.Fprintf(&b, "Dropped:     %d\n", s.Dropped)
	fmt.Fprintf(&b, "Recorded:    %d\n", s.Recorded)
	fmt.Fprintf(&b, "Errors:      %d\n", s.Errors)
	if s.ClassificationFailures > 0 {
		fmt.Fprintf(&b, "Unclassified: %d\n", s.ClassificationFailures)
	}
	if s.EstimatedCost > 0 {
		fmt.Fprintf(&b, "Est. cost:   $%.4f\n", s.EstimatedCost)
	}
	fmt.Fprintf(&b, "Elapsed:     %s\n", s.Elapsed.Round(time.Millisecond))
	if s.Interrupted {
		b.WriteString("\nThe run was interrupted before all messages were handled.\n")
	}

	var important []core.ProcessingOutcome
	for _, o := range s.Outcomes {
		if o.Decision != nil && o.Decision.IsImportant {
			important = append(important, o)
		}
	}
	if len(important) > 0 {
		b.WriteString("\nImportant:\n")
		for _, o := range important {
			fmt.Fprintf(&b, "  - %s (%d/10)", o.Subject, o.Decision.FinalImportanceScore)
			if o.NotePath != "" {
				fmt.Fprintf(&b, " -> %s", o.NotePath)
			}
			b.WriteString("\n")
		}
	}

	if len(s.Failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, f := range s.Failures {
			if f.MessageID != "" {
				fmt.Fprintf(&b, "  - [%s] message %s: %s\n", f.Kind, f.MessageID, f.Message)
			} else {
				fmt.Fprintf(&b, "  - [%s] %s\n", f.Kind, f.Message)
			}
		}
	}
	return b.String()
}

func countImportant(s *orchestrator.RunSummary) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Decision != nil && o.Decision.IsImportant {
			n++
		}
	}
	return n
}
