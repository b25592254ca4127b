package di

import (
	"github.com/spf13/pflag"
)

// CLIFlags contains the process-wide command line flags
type CLIFlags struct {
	ConfigDir   string
	MetricsFile string
	LogLevel    string
	Verbose     bool
	JSONLog     bool
}

// RegisterFlags binds the process-wide flags to fs
func RegisterFlags(fs *pflag.FlagSet) *CLIFlags {
	flags := &CLIFlags{}
	fs.StringVar(&flags.ConfigDir, "config-dir", "", "Configuration directory (env INBOX_TRIAGE_CONFIG_DIR, default ./config)")
	fs.StringVar(&flags.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after a run (env INBOX_TRIAGE_METRICS_FILE)")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides --verbose")
	fs.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	return flags
}
