package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-inbox-triage/internal/rules"
)

const globalYAML = `
imap:
  server: imap.example.com
  username: me@example.com
  password_env: IMAP_PASSWORD
llm:
  provider: openai
  model: gpt-4o-mini
  api_key_env: OPENAI_API_KEY
  retry_attempts: 3
classification:
  importance_threshold: 8
  spam_threshold: 5
paths:
  notes_dir: /tmp/notes
safety_interlock:
  cost_threshold: 0.10
  cost_per_email: 0.002
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), globalYAML)
	return NewStore(dir, nil), dir
}

func TestLoadGlobalMissing(t *testing.T) {
	s := NewStore(t.TempDir(), nil)
	_, err := s.LoadGlobal()
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadAccountOverrideMissingIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	doc, err := s.LoadAccountOverride("work")
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestLoadAccountOverrideRejectsTraversal(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.LoadAccountOverride("../etc")
	assert.ErrorIs(t, err, ErrInvalidAccountName)
}

func TestAccountOverrideWinsThreshold(t *testing.T) {
	s, dir := newTestStore(t)
	writeFile(t, filepath.Join(dir, "accounts", "work.yaml"), "classification:\n  importance_threshold: 7\n")

	global, err := s.LoadGlobal()
	require.NoError(t, err)

	cfg, err := s.Load(global, "work")
	require.NoError(t, err)
	assert.Equal(t, "work", cfg.AccountID)
	assert.Equal(t, 7, cfg.Classification.ImportanceThreshold)
	assert.Equal(t, 5, cfg.Classification.SpamThreshold, "untouched keys come from the global document")
	assert.Equal(t, 993, cfg.IMAP.Port, "schema default")
	assert.Equal(t, "AIProcessed", cfg.IMAP.ProcessedTag)
	require.NotNil(t, cfg.SafetyInterlock.CostPerEmail)
	assert.InDelta(t, 0.002, *cfg.SafetyInterlock.CostPerEmail, 1e-9)
	assert.True(t, cfg.SafetyInterlock.Enabled)

	other, err := s.Load(global, "home")
	require.NoError(t, err)
	assert.Equal(t, 8, other.Classification.ImportanceThreshold)
}

func TestLoadReportsValidationErrorsForAccount(t *testing.T) {
	s, dir := newTestStore(t)
	writeFile(t, filepath.Join(dir, "accounts", "bad.yaml"), "classification:\n  importance_threshold: 11\nimap:\n  port: \"x\"\n")

	global, err := s.LoadGlobal()
	require.NoError(t, err)

	_, err = s.Load(global, "bad")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "bad", verr.AccountID)
	assert.Len(t, verr.Errors, 2)
}

func TestDiscoverAccounts(t *testing.T) {
	s, dir := newTestStore(t)
	writeFile(t, filepath.Join(dir, "accounts", "work.yaml"), "{}\n")
	writeFile(t, filepath.Join(dir, "accounts", "home.yml"), "{}\n")
	writeFile(t, filepath.Join(dir, "accounts", "sample.example.yaml"), "{}\n")
	writeFile(t, filepath.Join(dir, "accounts", "notes.txt"), "")
	writeFile(t, filepath.Join(dir, "accounts", "work", "blacklist.yaml"), "[]\n")

	ids, err := s.DiscoverAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "work"}, ids)
}

func TestDiscoverAccountsWithoutDirectory(t *testing.T) {
	s, _ := newTestStore(t)
	ids, err := s.DiscoverAccounts()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAccountRulesReplaceGlobalRules(t *testing.T) {
	s, dir := newTestStore(t)
	writeFile(t, filepath.Join(dir, "blacklist.yaml"), `
- trigger: domain
  value: spam.example
  action: drop
- trigger: subject
  value: receipt
  action: record
`)
	writeFile(t, filepath.Join(dir, "accounts", "work", "blacklist.yaml"), `
- trigger: sender
  value: noreply@
  action: drop
`)

	global, err := s.LoadGlobal()
	require.NoError(t, err)

	work, err := s.Load(global, "work")
	require.NoError(t, err)
	require.Len(t, work.Blacklist, 1)
	assert.Equal(t, rules.TriggerSender, work.Blacklist[0].Trigger)

	home, err := s.Load(global, "home")
	require.NoError(t, err)
	assert.Len(t, home.Blacklist, 2)
	assert.Empty(t, home.Whitelist)
}

func TestMalformedRuleFailsAtLoad(t *testing.T) {
	s, dir := newTestStore(t)
	writeFile(t, filepath.Join(dir, "whitelist.yaml"), `
- trigger: domain
  value: vip.example
  action: boost
`)
	global, err := s.LoadGlobal()
	require.NoError(t, err)

	_, err = s.Load(global, "home")
	var defErr *rules.DefinitionError
	require.True(t, errors.As(err, &defErr))
	assert.Equal(t, rules.KindWhitelist, defErr.Kind)
}

func TestPromptFileIsResolvedRelativeToConfigDir(t *testing.T) {
	s, dir := newTestStore(t)
	writeFile(t, filepath.Join(dir, "prompts", "triage.txt"), "Score this email.")
	writeFile(t, filepath.Join(dir, "accounts", "work.yaml"), "classification:\n  prompt_file: prompts/triage.txt\n")

	global, err := s.LoadGlobal()
	require.NoError(t, err)

	cfg, err := s.Load(global, "work")
	require.NoError(t, err)
	assert.Equal(t, "Score this email.", cfg.Classification.Prompt)
}

func TestEffectiveIncludesDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	global, err := s.LoadGlobal()
	require.NoError(t, err)

	doc, err := s.Effective(global, "home")
	require.NoError(t, err)
	ledger, ok := doc["ledger"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "memory", ledger["type"])
}

func TestValidateAccountName(t *testing.T) {
	for _, name := range []string{"", "   ", "..", "a/b", `a\b`, "x..y"} {
		assert.ErrorIs(t, ValidateAccountName(name), ErrInvalidAccountName, name)
	}
	for _, name := range []string{"work", "me@example.com", "home-2"} {
		assert.NoError(t, ValidateAccountName(name), name)
	}
}

func TestResolveSecret(t *testing.T) {
	t.Setenv("TRIAGE_TEST_SECRET", "hunter2")
	v, err := ResolveSecret("imap.password_env", "TRIAGE_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	_, err = ResolveSecret("imap.password_env", "TRIAGE_TEST_UNSET_SECRET")
	var missing *MissingSecretError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "TRIAGE_TEST_UNSET_SECRET", missing.Var)
	assert.Contains(t, err.Error(), "TRIAGE_TEST_UNSET_SECRET")
}

func TestAppSettings(t *testing.T) {
	t.Setenv("INBOX_TRIAGE_CONFIG_DIR", "/etc/triage")
	assert.Equal(t, "/etc/triage", NewAppSettings("", "").ConfigDir)
	assert.Equal(t, "/opt/cfg", NewAppSettings("/opt/cfg", "").ConfigDir)
}

func TestGlobalLogging(t *testing.T) {
	dir := t.TempDir()
	_, ok := GlobalLogging(dir)
	assert.False(t, ok)

	writeFile(t, filepath.Join(dir, "config.yaml"), "logging:\n  level: debug\n  format: json\n")
	cfg, ok := GlobalLogging(dir)
	require.True(t, ok)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}
