// Package config provides configuration management for the gateway.
// Everything lives under a single base directory (default ~/.vest):
// mandates, agent identities, paper broker state, the SQLite database,
// and logs.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jcgs2503/vestbridge/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Broker       string        `mapstructure:"broker"`
	DefaultAgent string        `mapstructure:"default_agent"`
	Logging      LoggingConfig `mapstructure:"logging"`

	// BaseDir is the root data directory. Set from the --config flag or
	// VEST_DIR, not from the config file itself.
	BaseDir string `mapstructure:"-"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultBaseDir returns the default data directory.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vest"
	}
	return filepath.Join(home, ".vest")
}

// MandatesDir returns the directory holding mandate YAML files.
func (c *Config) MandatesDir() string { return filepath.Join(c.BaseDir, "mandates") }

// AgentsDir returns the directory holding agent identities.
func (c *Config) AgentsDir() string { return filepath.Join(c.BaseDir, "agents") }

// PaperDir returns the paper broker's state directory.
func (c *Config) PaperDir() string { return filepath.Join(c.BaseDir, "paper") }

// AuditPath returns the path of the append-only audit log.
func (c *Config) AuditPath() string { return filepath.Join(c.BaseDir, "audit.jsonl") }

// DBPath returns the path of the SQLite state database.
func (c *Config) DBPath() string { return filepath.Join(c.BaseDir, "vest.db") }

// LogPath returns the path of the rotating application log.
func (c *Config) LogPath() string { return filepath.Join(c.BaseDir, "logs", "vest.log") }

// OwnerKeyPath returns the path of the owner's mandate signing key.
func (c *Config) OwnerKeyPath() string { return filepath.Join(c.BaseDir, "owner.key") }

// EnsureDirs creates the base directory structure if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.BaseDir, c.MandatesDir(), c.AgentsDir(), c.PaperDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewStorageError("mkdir", dir, err)
		}
	}
	return nil
}

// Load loads configuration from baseDir/config.yaml, writing a template
// on first run. An empty baseDir uses VEST_DIR or the default.
func Load(baseDir string) (*Config, error) {
	if baseDir == "" {
		baseDir = os.Getenv("VEST_DIR")
	}
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}

	cfg := &Config{
		Broker:  "paper",
		BaseDir: baseDir,
		Logging: LoggingConfig{Level: "info", Console: true, File: true},
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(baseDir)
	v.SetDefault("broker", cfg.Broker)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.file", cfg.Logging.File)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createTemplate(baseDir); err != nil {
				return nil, err
			}
		} else {
			return nil, fmt.Errorf("loading config.yaml: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.yaml: %w", err)
	}
	cfg.BaseDir = baseDir

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VEST_BROKER"); v != "" {
		cfg.Broker = v
	}
	if v := os.Getenv("VEST_AGENT"); v != "" {
		cfg.DefaultAgent = v
	}
	if v := os.Getenv("VEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(errors.ErrConfigInvalid, "logging.level %q", c.Logging.Level)
	}
	if c.Broker == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "broker must be set")
	}
	return nil
}

const configTemplate = `# vestbridge configuration
broker: paper
# default_agent: agt_00000000

logging:
  level: info
  console: true
  file: true
`

func createTemplate(baseDir string) error {
	path := filepath.Join(baseDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		return errors.NewStorageError("write", path, err)
	}
	return nil
}
