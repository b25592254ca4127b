package di

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/metrics"
	"github.com/mikey/llm-inbox-triage/internal/orchestrator"
)

func TestRegisterFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config-dir", "/etc/triage", "-v", "--json-log"}))

	assert.Equal(t, "/etc/triage", flags.ConfigDir)
	assert.True(t, flags.Verbose)
	assert.True(t, flags.JSONLog)
	assert.Empty(t, flags.LogLevel)
}

func TestBuildContainer(t *testing.T) {
	dir := t.TempDir()
	container, err := BuildContainer(&CLIFlags{ConfigDir: dir, LogLevel: "warn"})
	require.NoError(t, err)

	err = container.Invoke(func(
		settings config.AppSettings,
		store *config.Store,
		o *orchestrator.Orchestrator,
		r *metrics.Recorder,
	) {
		assert.Equal(t, dir, settings.ConfigDir)
		assert.Equal(t, dir, store.Dir())
		assert.NotNil(t, o)
		assert.NotNil(t, r.Registry())
	})
	require.NoError(t, err)
}
