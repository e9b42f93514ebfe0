package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/uebliche/dockbridge/internal/naming"
)

//go:embed default.yaml
var defaultConfig []byte

// Default returns the configuration file written on first start.
func Default() []byte {
	return append([]byte(nil), defaultConfig...)
}

// Config represents the application configuration
type Config struct {
	Docker          DockerConfig       `yaml:"docker"`
	Autoregister    AutoregisterConfig `yaml:"autoregister"`
	Registry        RegistryConfig     `yaml:"registry"`
	Database        DatabaseConfig     `yaml:"database"`
	Log             LogConfig          `yaml:"log"`
	Reconciler      ReconcilerConfig   `yaml:"reconciler"`
	Ledger          LedgerConfig       `yaml:"ledger"`
	Healthcheck     HealthcheckConfig  `yaml:"healthcheck"`
	Update          UpdateConfig       `yaml:"update"`
	ShutdownTimeout Duration           `yaml:"shutdown_timeout"`
}

// DockerConfig contains Docker daemon connection settings
type DockerConfig struct {
	Endpoint     string   `yaml:"endpoint"`
	Timeout      Duration `yaml:"timeout"`       // per-request timeout
	PollInterval Duration `yaml:"poll_interval"` // time between scheduled refreshes
	WatchEvents  bool     `yaml:"watch_events"`  // refresh on container events too
	// EventDebounce groups a burst of container events into one refresh.
	EventDebounce Duration `yaml:"event_debounce"`
}

// AutoregisterConfig selects containers and controls how they are named
type AutoregisterConfig struct {
	LabelKey          string `yaml:"label_key"`
	LabelValue        string `yaml:"label_value"`
	NameLabel         string `yaml:"name_label"`
	PortLabel         string `yaml:"port_label"`
	DuplicateStrategy string `yaml:"duplicate_strategy"` // suffix | overwrite
	DefaultPort       int    `yaml:"default_port"`
	// RenameOnRelabel gives a running container a new name when its name label changes.
	RenameOnRelabel bool `yaml:"rename_on_relabel"`
}

// DuplicateMode parses the duplicate strategy.
func (c *AutoregisterConfig) DuplicateMode() naming.Mode {
	return naming.ParseMode(c.DuplicateStrategy)
}

// RegistryConfig selects the routing registry backend
type RegistryConfig struct {
	Backend               string `yaml:"backend"` // memory | sqlite
	PreferredOrderMutable bool   `yaml:"preferred_order_mutable"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`

	Scan                 bool `yaml:"scan"`
	Matches              bool `yaml:"matches"`
	Summary              bool `yaml:"summary"`
	SummaryWhenUnchanged bool `yaml:"summary_when_unchanged"`
	Registered           bool `yaml:"registered"`
	Updated              bool `yaml:"updated"`
	Unregistered         bool `yaml:"unregistered"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// ReconcilerConfig contains reconciler settings
type ReconcilerConfig struct {
	RateLimitRPS float64 `yaml:"rate_limit_rps"` // 0 = unlimited
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	Retention       Duration `yaml:"retention"`
}

// HealthcheckConfig contains status server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetHost returns the listen host with default
func (c *HealthcheckConfig) GetHost() string {
	if c.Host == "" {
		return "0.0.0.0"
	}
	return c.Host
}

// GetPort returns the listen port with default
func (c *HealthcheckConfig) GetPort() int {
	if c.Port <= 0 {
		return 9090
	}
	return c.Port
}

// Addr returns host:port for the status server.
func (c *HealthcheckConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.GetPort())
}

// UpdateConfig contains update checker settings
type UpdateConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// GetShutdownTimeout returns the graceful shutdown timeout with default
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ShutdownTimeout.Duration()
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file. A missing file is created
// from the embedded default first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("Wrote default configuration")
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes configuration data and applies defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	cfg := Config{
		Log: LogConfig{
			Summary:      true,
			Registered:   true,
			Updated:      true,
			Unregistered: true,
		},
		Registry: RegistryConfig{PreferredOrderMutable: true},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Docker defaults
	if cfg.Docker.Endpoint == "" {
		cfg.Docker.Endpoint = "unix:///var/run/docker.sock"
	}
	if cfg.Docker.Timeout == 0 {
		cfg.Docker.Timeout = Duration(10 * time.Second)
	}
	if cfg.Docker.PollInterval <= 0 {
		cfg.Docker.PollInterval = Duration(30 * time.Second)
	}
	if cfg.Docker.EventDebounce <= 0 {
		cfg.Docker.EventDebounce = Duration(time.Second)
	}

	// Autoregister defaults
	if cfg.Autoregister.LabelKey == "" {
		cfg.Autoregister.LabelKey = "net.uebliche.dockbridge.autoregister"
	}
	if cfg.Autoregister.LabelValue == "" {
		cfg.Autoregister.LabelValue = "true"
	}
	if cfg.Autoregister.NameLabel == "" {
		cfg.Autoregister.NameLabel = "net.uebliche.dockbridge.server_name"
	}
	if cfg.Autoregister.PortLabel == "" {
		cfg.Autoregister.PortLabel = "net.uebliche.dockbridge.server_port"
	}
	if cfg.Autoregister.DuplicateStrategy == "" {
		cfg.Autoregister.DuplicateStrategy = string(naming.ModeSuffix)
	}
	if cfg.Autoregister.DefaultPort <= 0 || cfg.Autoregister.DefaultPort > 65535 {
		cfg.Autoregister.DefaultPort = naming.DefaultPort
	}

	// Registry defaults
	switch strings.ToLower(cfg.Registry.Backend) {
	case "", "memory":
		cfg.Registry.Backend = "memory"
	case "sqlite":
		cfg.Registry.Backend = "sqlite"
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "./dockbridge.sqlite"
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.Retention == 0 {
		cfg.Ledger.Retention = Duration(30 * 24 * time.Hour)
	}

	// Update defaults
	if cfg.Update.URL == "" {
		cfg.Update.URL = "https://api.modrinth.com/v2/project/dockbridge/version"
	}
	if cfg.Update.Timeout == 0 {
		cfg.Update.Timeout = Duration(5 * time.Second)
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}

	return &cfg, nil
}

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
