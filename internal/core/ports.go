package core

import (
	"context"
)

// MailClient defines the mailbox operations the processor needs.
// Message IDs must stay stable between list, fetch and mark calls
// within one run.
type MailClient interface {
	// Connect opens the mailbox session
	Connect(ctx context.Context) error

	// Disconnect closes the mailbox session
	Disconnect() error

	// ListCandidates returns messages matching query. Unless force is set,
	// messages already carrying excludeTag are left out.
	ListCandidates(ctx context.Context, query string, excludeTag string, force bool) ([]*Message, error)

	// FetchBody returns the text body of a message
	FetchBody(ctx context.Context, messageID string) (string, error)

	// MarkProcessed adds tag to a message
	MarkProcessed(ctx context.Context, messageID string, tag string) error

	// RemoveTags removes tags from a message
	RemoveTags(ctx context.Context, messageID string, tags []string) error
}

// Scorer defines the interface for the external scoring call
type Scorer interface {
	// Score asks the model for importance and spam scores. Retryable
	// failures are returned as *TransientError.
	Score(ctx context.Context, prompt string, body string) (ScoreResponse, error)
}

// Renderer turns a template and a context into note text
type Renderer interface {
	Render(templateRef string, data map[string]any) (string, error)
}

// NoteWriter persists note text
type NoteWriter interface {
	// Write stores text at path. When overwrite is false and path exists a
	// disambiguated path is used; the path actually written is returned.
	Write(path string, text string, overwrite bool) (string, error)
}

// Ledger records processing outcomes
type Ledger interface {
	// Record stores an entry, replacing any entry for the same account and message
	Record(ctx context.Context, entry *LedgerEntry) error

	// Get retrieves the entry for a message
	Get(ctx context.Context, accountID string, messageID string) (*LedgerEntry, error)

	// Recent lists the newest entries for an account
	Recent(ctx context.Context, accountID string, limit int) ([]*LedgerEntry, error)

	// Close releases the backing store
	Close() error
}
