package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/factory"
	"github.com/mikey/llm-inbox-triage/internal/logging"
	"github.com/mikey/llm-inbox-triage/internal/metrics"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register process settings
	if err := container.Provide(func(flags *CLIFlags) config.AppSettings {
		return config.NewAppSettings(flags.ConfigDir, flags.MetricsFile)
	}); err != nil {
		return nil, err
	}

	// Register logger. Flags win over the global logging section.
	if err := container.Provide(func(flags *CLIFlags, settings config.AppSettings) (*zap.Logger, error) {
		format := "console"
		if flags.JSONLog {
			format = "json"
		}
		switch {
		case flags.LogLevel != "":
			return logging.InitLogger(flags.LogLevel, format)
		case flags.Verbose || flags.JSONLog:
			return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
		}
		if lc, ok := config.GlobalLogging(settings.ConfigDir); ok {
			return logging.InitLogger(lc.Level, lc.Format)
		}
		return logging.InitConsoleLogger(false, false)
	}); err != nil {
		return nil, err
	}

	// Register configuration store
	if err := container.Provide(func(settings config.AppSettings, logger *zap.Logger) *config.Store {
		return config.NewStore(settings.ConfigDir, logger)
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewScorerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewLedgerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewAccountFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AccountFactory) orchestrator.CollaboratorFactory {
		return f
	}); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.NewRecorder); err != nil {
		return nil, err
	}

	// Register orchestrator
	if err := container.Provide(func(
		store *config.Store,
		f orchestrator.CollaboratorFactory,
		recorder *metrics.Recorder,
		logger *zap.Logger,
	) *orchestrator.Orchestrator {
		return orchestrator.New(store, f, recorder, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
