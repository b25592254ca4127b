package config

import (
	"strings"

	"github.com/spf13/viper"
)

// AppSettings are process-level options that are not part of any account
type AppSettings struct {
	ConfigDir   string
	MetricsFile string
}

// NewAppSettings resolves process-level settings. Explicit flag values win
// over INBOX_TRIAGE_* environment variables, which win over defaults.
func NewAppSettings(configDir, metricsFile string) AppSettings {
	v := viper.New()
	v.SetDefault("config_dir", "./config")
	v.SetDefault("metrics_file", "")

	v.SetEnvPrefix("INBOX_TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configDir != "" {
		v.Set("config_dir", configDir)
	}
	if metricsFile != "" {
		v.Set("metrics_file", metricsFile)
	}

	return AppSettings{
		ConfigDir:   v.GetString("config_dir"),
		MetricsFile: v.GetString("metrics_file"),
	}
}

// GlobalLogging reads the logging section of the global document in dir.
// ok is false when the document or the section is absent.
func GlobalLogging(dir string) (cfg LoggingConfig, ok bool) {
	doc, err := NewStore(dir, nil).LoadGlobal()
	if err != nil {
		return LoggingConfig{}, false
	}
	section, found := asMap(doc["logging"])
	if !found {
		return LoggingConfig{}, false
	}
	cfg.Level, _ = section["level"].(string)
	cfg.Format, _ = section["format"].(string)
	return cfg, cfg.Level != "" || cfg.Format != ""
}
