// Package config loads sentryctl settings from config.yaml, SENTRYCTL_*
// environment variables and built-in defaults, in that order of precedence
// (environment wins over the file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gurisko/sentryctl/internal/bridge"
	"github.com/gurisko/sentryctl/internal/drop"
	"github.com/gurisko/sentryctl/internal/paths"
	"github.com/gurisko/sentryctl/internal/registry"
)

const EnvPrefix = "SENTRYCTL"

type Config struct {
	Backend Backend `mapstructure:"backend"`
	Toggle  Toggle  `mapstructure:"toggle"`
	Drop    Drop    `mapstructure:"drop"`
	Session Session `mapstructure:"session"`
	State   State   `mapstructure:"state"`
	Journal Journal `mapstructure:"journal"`
	Log     Log     `mapstructure:"log"`
}

type Backend struct {
	Interpreter     string        `mapstructure:"interpreter"`
	Args            []string      `mapstructure:"args"`
	WorkDir         string        `mapstructure:"workdir"`
	Protocol        string        `mapstructure:"protocol"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ConflictMarkers []string      `mapstructure:"conflict_markers"`
}

type Toggle struct {
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	SettleAttempts int           `mapstructure:"settle_attempts"`
}

type Drop struct {
	DefaultFiles     []string `mapstructure:"default_files"`
	TargetExtensions []string `mapstructure:"target_extensions"`
	MaxTargets       int      `mapstructure:"max_targets"`
}

type Session struct {
	Socket   string        `mapstructure:"socket"`
	PIDFile  string        `mapstructure:"pidfile"`
	Inbox    string        `mapstructure:"inbox"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type State struct {
	Dir string `mapstructure:"dir"`
}

type Journal struct {
	Enabled bool `mapstructure:"enabled"`
	Keep    int  `mapstructure:"keep"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

// DefaultPath is config.yaml in the user config directory.
func DefaultPath() string {
	return filepath.Join(paths.DefaultConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.interpreter", "python3")
	v.SetDefault("backend.args", []string{"-m", "src.backend.cli"})
	v.SetDefault("backend.workdir", ".")
	v.SetDefault("backend.protocol", string(bridge.ProtocolLegacy))
	v.SetDefault("backend.timeout", time.Duration(0))
	v.SetDefault("backend.conflict_markers", drop.DefaultConflictMarkers)

	v.SetDefault("toggle.settle_delay", registry.DefaultSettleDelay)
	v.SetDefault("toggle.settle_attempts", registry.DefaultSettleAttempts)

	v.SetDefault("drop.default_files", drop.DefaultOutputFiles)
	v.SetDefault("drop.target_extensions", drop.DefaultTargetExtensions)
	v.SetDefault("drop.max_targets", drop.DefaultMaxTargets)

	v.SetDefault("session.socket", paths.DefaultSocketPath())
	v.SetDefault("session.pidfile", paths.DefaultPIDPath())
	v.SetDefault("session.inbox", paths.DefaultInboxDir())
	v.SetDefault("session.debounce", 300*time.Millisecond)

	v.SetDefault("state.dir", paths.DefaultStateDir())

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.keep", 1000)

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. An empty path selects DefaultPath; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			if explicit {
				return nil, fmt.Errorf("config file %s not found", path)
			}
		default:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the core cannot work with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.Interpreter) == "" {
		return errors.New("backend.interpreter must not be empty")
	}
	if _, err := bridge.ParseProtocol(c.Backend.Protocol); err != nil {
		return fmt.Errorf("backend.protocol: %w", err)
	}
	if c.Backend.Timeout < 0 {
		return errors.New("backend.timeout must not be negative")
	}
	if c.Toggle.SettleDelay < 0 {
		return errors.New("toggle.settle_delay must not be negative")
	}
	if c.Toggle.SettleAttempts < 1 {
		return errors.New("toggle.settle_attempts must be at least 1")
	}
	if c.Drop.MaxTargets < 1 {
		return errors.New("drop.max_targets must be at least 1")
	}
	return nil
}

// BridgeConfig converts backend settings for the command bridge.
func (c *Config) BridgeConfig() bridge.Config {
	protocol, _ := bridge.ParseProtocol(c.Backend.Protocol)
	return bridge.Config{
		Interpreter: c.Backend.Interpreter,
		Args:        c.Backend.Args,
		WorkDir:     c.Backend.WorkDir,
		Protocol:    protocol,
		Timeout:     c.Backend.Timeout,
	}
}

// DropOptions converts drop settings for the resolver.
func (c *Config) DropOptions() drop.Options {
	return drop.Options{
		OutputFiles:      c.Drop.DefaultFiles,
		TargetExtensions: c.Drop.TargetExtensions,
		ConflictMarkers:  c.Backend.ConflictMarkers,
		MaxTargets:       c.Drop.MaxTargets,
	}
}

func (c *Config) PendingPath() string { return paths.PendingPath(c.State.Dir) }
func (c *Config) JournalPath() string { return paths.JournalPath(c.State.Dir) }
