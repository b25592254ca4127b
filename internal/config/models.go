package config

import (
	"time"

	"github.com/mikey/llm-inbox-triage/internal/rules"
)

// AccountConfig is the validated configuration of exactly one account.
// It is built once per run and only read afterwards.
type AccountConfig struct {
	AccountID       string               `mapstructure:"-"`
	IMAP            IMAPConfig           `mapstructure:"imap"`
	LLM             LLMConfig            `mapstructure:"llm"`
	Classification  ClassificationConfig `mapstructure:"classification"`
	Processing      ProcessingConfig     `mapstructure:"processing"`
	Paths           PathsConfig          `mapstructure:"paths"`
	SafetyInterlock SafetyConfig         `mapstructure:"safety_interlock"`
	Ledger          LedgerConfig         `mapstructure:"ledger"`
	Notify          NotifyConfig         `mapstructure:"notify"`
	Logging         LoggingConfig        `mapstructure:"logging"`

	Blacklist []rules.Rule `mapstructure:"-"`
	Whitelist []rules.Rule `mapstructure:"-"`
}

// IMAPConfig represents the mailbox connection settings
type IMAPConfig struct {
	Server         string `mapstructure:"server"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	PasswordEnv    string `mapstructure:"password_env"`
	UseTLS         bool   `mapstructure:"use_tls"`
	Mailbox        string `mapstructure:"mailbox"`
	Query          string `mapstructure:"query"`
	ProcessedTag   string `mapstructure:"processed_tag"`
	FailedTag      string `mapstructure:"failed_tag"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the dial/command timeout
func (c IMAPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig represents the scoring provider settings
type LLMConfig struct {
	Provider           string  `mapstructure:"provider"`
	Model              string  `mapstructure:"model"`
	APIKeyEnv          string  `mapstructure:"api_key_env"`
	BaseURL            string  `mapstructure:"base_url"`
	Region             string  `mapstructure:"region"`
	Temperature        float64 `mapstructure:"temperature"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	RetryAttempts      int     `mapstructure:"retry_attempts"`
	RetryDelaySeconds  float64 `mapstructure:"retry_delay_seconds"`
	RetryJitterSeconds float64 `mapstructure:"retry_jitter_seconds"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
}

// RetryDelay returns the base backoff delay
func (c LLMConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds * float64(time.Second))
}

// RetryJitter returns the upper bound of the random jitter
func (c LLMConfig) RetryJitter() time.Duration {
	return time.Duration(c.RetryJitterSeconds * float64(time.Second))
}

// Timeout returns the per-call timeout
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ClassificationConfig represents thresholds and prompt settings
type ClassificationConfig struct {
	ImportanceThreshold int    `mapstructure:"importance_threshold"`
	SpamThreshold       int    `mapstructure:"spam_threshold"`
	MaxBodyChars        int    `mapstructure:"max_body_chars"`
	Prompt              string `mapstructure:"prompt"`
	PromptFile          string `mapstructure:"prompt_file"`
}

// ProcessingConfig represents batch limits
type ProcessingConfig struct {
	MaxEmailsPerRun int `mapstructure:"max_emails_per_run"`
}

// PathsConfig represents output locations
type PathsConfig struct {
	NotesDir     string `mapstructure:"notes_dir"`
	TemplateFile string `mapstructure:"template_file"`
}

// SafetyConfig represents the cost gate settings. CostPerEmail is nil when
// not configured; when set it takes precedence over token pricing.
type SafetyConfig struct {
	Enabled                        bool     `mapstructure:"enabled"`
	CostThreshold                  float64  `mapstructure:"cost_threshold"`
	SkipConfirmationBelowThreshold bool     `mapstructure:"skip_confirmation_below_threshold"`
	CostPerEmail                   *float64 `mapstructure:"cost_per_email"`
	AverageTokensPerEmail          int      `mapstructure:"average_tokens_per_email"`
	CostPer1KTokens                float64  `mapstructure:"cost_per_1k_tokens"`
}

// LedgerConfig represents the processing ledger backend
type LedgerConfig struct {
	Type        string `mapstructure:"type"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	MySQLDSNEnv string `mapstructure:"mysql_dsn_env"`
}

// NotifyConfig represents the run summary email
type NotifyConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SMTPAddress string `mapstructure:"smtp_address"`
	// StartTLS upgrades the connection before authenticating
	StartTLS    bool     `mapstructure:"starttls"`
	From        string   `mapstructure:"from"`
	To          []string `mapstructure:"to"`
	Username    string   `mapstructure:"username"`
	PasswordEnv string   `mapstructure:"password_env"`
}

// LoggingConfig represents log output settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
