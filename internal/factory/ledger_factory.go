package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/adapters/ledger"
	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
)

// LedgerFactory creates processing ledgers based on configuration
type LedgerFactory struct {
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(logger *zap.Logger) *LedgerFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerFactory{logger: logger}
}

// CreateLedger creates a ledger based on the configuration
func (f *LedgerFactory) CreateLedger(ctx context.Context, cfg config.LedgerConfig) (core.Ledger, error) {
	switch cfg.Type {
	case "", "memory":
		return ledger.NewMemoryLedger(f.logger), nil
	case "sqlite":
		return ledger.NewSQLiteLedger(cfg.SQLitePath, f.logger)
	case "mysql":
		dsn, err := config.ResolveSecret("ledger.mysql_dsn_env", cfg.MySQLDSNEnv)
		if err != nil {
			return nil, err
		}
		return ledger.NewMySQLLedger(ctx, dsn, f.logger)
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", cfg.Type)
	}
}
