package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uebliche/dockbridge/internal/naming"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "unix:///var/run/docker.sock", cfg.Docker.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.Docker.PollInterval.Duration())
	assert.Equal(t, "net.uebliche.dockbridge.autoregister", cfg.Autoregister.LabelKey)
	assert.Equal(t, "true", cfg.Autoregister.LabelValue)
	assert.Equal(t, "net.uebliche.dockbridge.server_name", cfg.Autoregister.NameLabel)
	assert.Equal(t, "net.uebliche.dockbridge.server_port", cfg.Autoregister.PortLabel)
	assert.Equal(t, naming.ModeSuffix, cfg.Autoregister.DuplicateMode())
	assert.Equal(t, 25565, cfg.Autoregister.DefaultPort)
	assert.False(t, cfg.Autoregister.RenameOnRelabel)
	assert.Equal(t, "memory", cfg.Registry.Backend)
	assert.True(t, cfg.Registry.PreferredOrderMutable)

	assert.False(t, cfg.Log.Scan)
	assert.False(t, cfg.Log.Matches)
	assert.True(t, cfg.Log.Summary)
	assert.False(t, cfg.Log.SummaryWhenUnchanged)
	assert.True(t, cfg.Log.Registered)
	assert.True(t, cfg.Log.Updated)
	assert.True(t, cfg.Log.Unregistered)
	assert.Equal(t, "info", cfg.Log.GetLevel())

	assert.Equal(t, "0.0.0.0:9090", cfg.Healthcheck.Addr())
	assert.Equal(t, 5*time.Second, cfg.GetShutdownTimeout())
}

func TestParse_Overrides(t *testing.T) {
	data := `
docker:
  poll_interval: "5s"
autoregister:
  duplicate_strategy: "OVERWRITE"
  rename_on_relabel: true
registry:
  backend: sqlite
  preferred_order_mutable: false
log:
  level: DEBUG
  summary: false
  registered: false
healthcheck:
  port: 8080
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Docker.PollInterval.Duration())
	assert.Equal(t, naming.ModeOverwrite, cfg.Autoregister.DuplicateMode())
	assert.True(t, cfg.Autoregister.RenameOnRelabel)
	assert.Equal(t, "sqlite", cfg.Registry.Backend)
	assert.False(t, cfg.Registry.PreferredOrderMutable)
	assert.False(t, cfg.Log.Summary)
	assert.False(t, cfg.Log.Registered)
	assert.True(t, cfg.Log.Updated)
	assert.Equal(t, "debug", cfg.Log.GetLevel())
	assert.Equal(t, 8080, cfg.Healthcheck.GetPort())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad duration", data: "docker:\n  poll_interval: soon\n"},
		{name: "unknown backend", data: "registry:\n  backend: redis\n"},
		{name: "malformed yaml", data: "docker: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParse_UnknownStrategyFallsBackToSuffix(t *testing.T) {
	cfg, err := Parse([]byte("autoregister:\n  duplicate_strategy: random\n"))
	require.NoError(t, err)
	assert.Equal(t, naming.ModeSuffix, cfg.Autoregister.DuplicateMode())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DOCKBRIDGE_TEST_HOST", "tcp://docker:2375")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set", input: "${DOCKBRIDGE_TEST_HOST}", want: "tcp://docker:2375"},
		{name: "set with default", input: "${DOCKBRIDGE_TEST_HOST:unix:///x}", want: "tcp://docker:2375"},
		{name: "unset with default", input: "${DOCKBRIDGE_TEST_UNSET:fallback}", want: "fallback"},
		{name: "unset", input: "a${DOCKBRIDGE_TEST_UNSET}b", want: "ab"},
		{name: "plain", input: "no vars", want: "no vars"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.input))
		})
	}
}

func TestLoad_WritesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), written)

	assert.True(t, cfg.Docker.WatchEvents)
	assert.True(t, cfg.Healthcheck.Enabled)
	assert.Equal(t, 720*time.Hour, cfg.Ledger.Retention.Duration())
}

func TestLoad_ExistingFileIsNotOverwritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("autoregister:\n  label_value: \"yes\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yes", cfg.Autoregister.LabelValue)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "yes")
}
