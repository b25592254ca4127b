package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/core"
)

// MySQLLedger is a MySQL implementation of the Ledger interface
type MySQLLedger struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLLedger connects to MySQL and ensures the ledger table exists
func NewMySQLLedger(ctx context.Context, dsn string, logger *zap.Logger) (*MySQLLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS processing_ledger (
			account_id VARCHAR(255) NOT NULL,
			message_id VARCHAR(255) NOT NULL,
			run_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL,
			note_path TEXT NOT NULL,
			importance_score INT NOT NULL,
			spam_score INT NOT NULL,
			error TEXT NOT NULL,
			processed_at VARCHAR(40) NOT NULL,
			PRIMARY KEY (account_id, message_id),
			INDEX idx_ledger_processed_at (account_id, processed_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLLedger{db: db, logger: logger}, nil
}

// Record stores an entry, replacing any entry for the same message
func (l *MySQLLedger) Record(ctx context.Context, entry *core.LedgerEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO processing_ledger (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			run_id = VALUES(run_id),
			status = VALUES(status),
			note_path = VALUES(note_path),
			importance_score = VALUES(importance_score),
			spam_score = VALUES(spam_score),
			error = VALUES(error),
			processed_at = VALUES(processed_at)
	`, recordArgs(entry)...)
	if err != nil {
		return fmt.Errorf("failed to upsert ledger entry: %w", err)
	}
	return nil
}

// Get retrieves the entry for a message
func (l *MySQLLedger) Get(ctx context.Context, accountID, messageID string) (*core.LedgerEntry, error) {
	return queryGet(ctx, l.db, accountID, messageID)
}

// Recent lists the newest entries for an account
func (l *MySQLLedger) Recent(ctx context.Context, accountID string, limit int) ([]*core.LedgerEntry, error) {
	return queryRecent(ctx, l.db, accountID, limit)
}

// Close closes the database connection
func (l *MySQLLedger) Close() error {
	if err := l.db.Close(); err != nil {
		l.logger.Error("Failed to close MySQL database", zap.Error(err))
		return err
	}
	return nil
}
