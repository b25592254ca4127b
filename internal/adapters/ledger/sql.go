package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/llm-inbox-triage/internal/core"
)

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `account_id, message_id, run_id, status, note_path, importance_score, spam_score, error, processed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*core.LedgerEntry, error) {
	var (
		entry       core.LedgerEntry
		status      string
		processedAt string
	)
	if err := row.Scan(&entry.AccountID, &entry.MessageID, &entry.RunID, &status, &entry.NotePath,
		&entry.ImportanceScore, &entry.SpamScore, &entry.Error, &processedAt); err != nil {
		return nil, err
	}
	entry.Status = core.ProcessingStatus(status)

	t, err := time.Parse(timeLayout, processedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse processed_at timestamp: %w", err)
	}
	entry.ProcessedAt = t
	return &entry, nil
}

func queryGet(ctx context.Context, db *sql.DB, accountID, messageID string) (*core.LedgerEntry, error) {
	row := db.QueryRowContext(ctx, `SELECT `+selectColumns+`
		FROM processing_ledger
		WHERE account_id = ? AND message_id = ?`, accountID, messageID)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrLedgerNotFound
		}
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	return entry, nil
}

func queryRecent(ctx context.Context, db *sql.DB, accountID string, limit int) ([]*core.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT `+selectColumns+`
		FROM processing_ledger
		WHERE account_id = ?
		ORDER BY processed_at DESC, message_id ASC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var out []*core.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read ledger row: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger rows: %w", err)
	}
	return out, nil
}

func recordArgs(entry *core.LedgerEntry) []any {
	return []any{
		entry.AccountID, entry.MessageID, entry.RunID, string(entry.Status), entry.NotePath,
		entry.ImportanceScore, entry.SpamScore, entry.Error,
		entry.ProcessedAt.UTC().Format(timeLayout),
	}
}
