package core

import (
	"strings"
	"time"
)

// ErrorSentinel marks a score that could not be obtained. It is outside
// the valid 0..10 range and must never be read as a low score.
const ErrorSentinel = -1

// Score bounds accepted from the scoring collaborator
const (
	MinScore = 0
	MaxScore = 10
)

// Message represents a candidate email pulled from a mailbox
type Message struct {
	ID      string
	Sender  string
	Subject string
	Body    string
	Date    time.Time
	Headers map[string][]string
}

// Domain returns the lower-cased domain portion of the sender address
func (m *Message) Domain() string {
	return SenderDomain(m.Sender)
}

// SenderDomain extracts the domain from an address such as
// "Jane <jane@example.com>" or "jane@example.com".
func SenderDomain(sender string) string {
	addr := sender
	if start := strings.LastIndex(addr, "<"); start >= 0 {
		if end := strings.Index(addr[start:], ">"); end > 0 {
			addr = addr[start+1 : start+end]
		}
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(addr[at+1:]))
}

// ScoreResponse is what a scorer returns for one call
type ScoreResponse struct {
	ImportanceScore int
	SpamScore       int
	Raw             string
}

// ClassificationStatus tells a real result apart from an exhausted one
type ClassificationStatus string

const (
	ClassificationSuccess ClassificationStatus = "success"
	ClassificationError   ClassificationStatus = "error"
)

// ClassificationOutcome is the normalized result of classifying one message
type ClassificationOutcome struct {
	ImportanceScore int
	SpamScore       int
	RawResponse     string
	Status          ClassificationStatus
	Attempts        int
	Err             error
}

// Failed reports whether the outcome carries sentinel scores
func (o ClassificationOutcome) Failed() bool {
	return o.Status == ClassificationError
}

// FailedClassification builds an outcome carrying sentinel scores
func FailedClassification(attempts int, raw string, err error) ClassificationOutcome {
	return ClassificationOutcome{
		ImportanceScore: ErrorSentinel,
		SpamScore:       ErrorSentinel,
		RawResponse:     raw,
		Status:          ClassificationError,
		Attempts:        attempts,
		Err:             err,
	}
}

// DecisionResult is the classification outcome after thresholds and
// whitelist boosts have been applied.
type DecisionResult struct {
	IsImportant          bool
	IsSpam               bool
	ImportanceScore      int
	SpamScore            int
	FinalImportanceScore int
	FinalSpamScore       int
	ScoreBoost           int
	Tags                 []string
	Status               ClassificationStatus
	// ExceedsRange is set when boosts pushed the final score past MaxScore.
	// Scores are not clamped.
	ExceedsRange bool
}

// AddTags appends tags that are not already present, keeping order
func (d *DecisionResult) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag == "" || d.HasTag(tag) {
			continue
		}
		d.Tags = append(d.Tags, tag)
	}
}

// HasTag reports whether tag is already attached
func (d *DecisionResult) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ProcessingStatus is the terminal state of one message
type ProcessingStatus string

const (
	StatusProcessed ProcessingStatus = "processed"
	StatusDropped   ProcessingStatus = "dropped"
	StatusRecorded  ProcessingStatus = "recorded"
	StatusError     ProcessingStatus = "error"
)

// ProcessingOutcome is the immutable per-message result
type ProcessingOutcome struct {
	MessageID            string
	Subject              string
	Status               ProcessingStatus
	NotePath             string
	Decision             *DecisionResult
	ClassificationFailed bool
	DryRun               bool
	Err                  error
	Elapsed              time.Duration
}

// LedgerEntry is one persisted processing record
type LedgerEntry struct {
	AccountID       string
	MessageID       string
	RunID           string
	Status          ProcessingStatus
	NotePath        string
	ImportanceScore int
	SpamScore       int
	Error           string
	ProcessedAt     time.Time
}
