package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("template:\n  path: base.zip\n"))
	require.NoError(t, err)

	assert.Equal(t, "base.zip", cfg.Template.Path)
	assert.Equal(t, DefaultModuleRoot, cfg.Modules.Root)
	assert.Equal(t, ".py", cfg.Modules.Extension)
	assert.Equal(t, DefaultNamespace, cfg.Modules.Namespace)
	assert.Zero(t, cfg.Modules.MaxInjectedBytes)
	assert.Equal(t, DefaultOutputName, cfg.Output.Name)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.AssembleTimeout)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.False(t, cfg.Modules.Sync.Enabled())
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplatePath, cfg.Template.Path)
}

func TestParseFullDocument(t *testing.T) {
	t.Setenv("BOTPACK_TEST_TOKEN", "s3cret")

	doc := `
template:
  path: /srv/BotLauncher.zip
modules:
  root: /srv/cogs
  extension: py
  namespace: _internal/cogs
  max_injected_bytes: 1000000
  sync:
    url: https://example.com/cogs.git
    token: ${BOTPACK_TEST_TOKEN}
    interval: 15m
output:
  name: Launcher.zip
server:
  addr: 127.0.0.1:9000
  assemble_timeout: 5s
  rate_limit:
    requests_per_second: 2.5
logging:
  level: DEBUG
  format: json
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, ".py", cfg.Modules.Extension)
	assert.Equal(t, int64(1_000_000), cfg.Modules.MaxInjectedBytes)
	require.True(t, cfg.Modules.Sync.Enabled())
	assert.Equal(t, "s3cret", cfg.Modules.Sync.Token)
	assert.Equal(t, 15*time.Minute, cfg.Modules.Sync.Interval)
	assert.Equal(t, RetryBackoffExponential, cfg.Modules.Sync.Retry.Backoff)
	assert.Equal(t, 5*time.Second, cfg.Server.AssembleTimeout)
	assert.Equal(t, 1, cfg.Server.RateLimit.Burst)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("modules:\n  rooot: typo\n"))
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"absolute namespace", "modules:\n  namespace: /abs\n", "modules.namespace"},
		{"dotdot namespace", "modules:\n  namespace: ../escape\n", "modules.namespace"},
		{"unclean namespace", "modules:\n  namespace: a//b\n", "modules.namespace"},
		{"trailing slash namespace", "modules:\n  namespace: cogs/\n", "modules.namespace"},
		{"negative cap", "modules:\n  max_injected_bytes: -1\n", "modules.max_injected_bytes"},
		{"bad extension", "modules:\n  extension: a/b\n", "modules.extension"},
		{"output with path", "output:\n  name: dir/out.zip\n", "output.name"},
		{"negative connections", "server:\n  max_connections: -3\n", "server.max_connections"},
		{"bad metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"bad backoff", "modules:\n  sync:\n    url: x\n    retry:\n      backoff: random\n", "modules.sync.retry.backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			c, ok := derrors.AsClassified(err)
			require.True(t, ok)
			field, _ := c.Context().GetString("field")
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, derrors.HasCategory(err, derrors.CategoryConfig))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botpack.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), cfg.Modules.MaxInjectedBytes)
	assert.True(t, cfg.Metrics.Enabled)

	err = Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))
}

func TestLoggingNormalization(t *testing.T) {
	assert.Equal(t, LogLevelWarn, NormalizeLogLevel(" Warning "))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("chatty"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat("xml"))
}

func TestRetryBackoffAliases(t *testing.T) {
	assert.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff("Constant"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("random"))

	cfg, err := Parse([]byte("modules:\n  sync:\n    url: x\n    retry:\n      backoff: CONSTANT\n"))
	require.NoError(t, err)
	assert.Equal(t, RetryBackoffFixed, cfg.Modules.Sync.Retry.Backoff)
}
