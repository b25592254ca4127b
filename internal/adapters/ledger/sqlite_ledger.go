package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/core"
)

// SQLiteLedger is a SQLite implementation of the Ledger interface
type SQLiteLedger struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteLedger opens (and if needed creates) the ledger database at dbPath
func NewSQLiteLedger(dbPath string, logger *zap.Logger) (*SQLiteLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A single connection keeps SQLite writers from contending for the file lock.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS processing_ledger (
			account_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			status TEXT NOT NULL,
			note_path TEXT NOT NULL,
			importance_score INTEGER NOT NULL,
			spam_score INTEGER NOT NULL,
			error TEXT NOT NULL,
			processed_at TEXT NOT NULL,
			PRIMARY KEY (account_id, message_id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_ledger_processed_at ON processing_ledger(account_id, processed_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteLedger{db: db, logger: logger}, nil
}

// Record stores an entry, replacing any entry for the same message
func (l *SQLiteLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO processing_ledger (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, recordArgs(entry)...)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// Get retrieves the entry for a message
func (l *SQLiteLedger) Get(ctx context.Context, accountID, messageID string) (*core.LedgerEntry, error) {
	return queryGet(ctx, l.db, accountID, messageID)
}

// Recent lists the newest entries for an account
func (l *SQLiteLedger) Recent(ctx context.Context, accountID string, limit int) ([]*core.LedgerEntry, error) {
	return queryRecent(ctx, l.db, accountID, limit)
}

// Close closes the database connection
func (l *SQLiteLedger) Close() error {
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close SQLite database", zap.Error(err))
		return err
	}
	return nil
}

// sqliteDSN lets concurrent account runs share one database file
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}
