// Package config loads patternsync settings from defaults, a YAML file,
// PATTERNSYNC_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/james-see/patternsync/pkg/apperr"
	"github.com/james-see/patternsync/pkg/converter"
	"github.com/james-see/patternsync/pkg/grid"
	"github.com/james-see/patternsync/pkg/source"
)

// EnvPrefix namespaces environment overrides, e.g. PATTERNSYNC_SERVER_PORT
const EnvPrefix = "PATTERNSYNC"

var ErrInvalid = errors.New("invalid configuration")

// ServerConfig is the HTTP listener
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RuntimeConfig locates the live engine
type RuntimeConfig struct {
	URL          string        `mapstructure:"url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"` // 0 disables polling
}

// SourceConfig locates pattern source files
type SourceConfig struct {
	Root string `mapstructure:"root"`
}

// SyncConfig tunes reconciliation
type SyncConfig struct {
	Debounce     time.Duration `mapstructure:"debounce"`
	SearchWindow int           `mapstructure:"search_window"`
	CallNames    []string      `mapstructure:"call_names"`
}

// GridConfig is the geometry of new empty lanes
type GridConfig struct {
	StepsPerBar int `mapstructure:"steps_per_bar"`
	NumBars     int `mapstructure:"num_bars"`
	BeatsPerBar int `mapstructure:"beats_per_bar"`
}

// LogConfig sets the log level: debug, info, warn or error
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config is the main configuration structure
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Source  SourceConfig  `mapstructure:"source"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Grid    GridConfig    `mapstructure:"grid"`
	Log     LogConfig     `mapstructure:"log"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Runtime: RuntimeConfig{URL: "http://localhost:8765", Timeout: 2 * time.Second},
		Source:  SourceConfig{Root: "."},
		Sync: SyncConfig{
			Debounce:     300 * time.Millisecond,
			SearchWindow: source.DefaultWindow,
			CallNames:    append([]string(nil), source.DefaultCallNames...),
		},
		Grid: GridConfig{
			StepsPerBar: grid.DefaultConfig.StepsPerBar,
			NumBars:     grid.DefaultConfig.NumBars,
			BeatsPerBar: grid.DefaultConfig.BeatsPerBar,
		},
		Log: LogConfig{Level: "info"},
	}
}

// ConfigDir returns the per-user config directory
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "patternsync"), nil
}

// New returns a viper instance carrying the defaults and env binding. Flags
// bound to it with BindPFlag take precedence over everything else.
func New() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("runtime.url", d.Runtime.URL)
	v.SetDefault("runtime.timeout", d.Runtime.Timeout)
	v.SetDefault("runtime.poll_interval", d.Runtime.PollInterval)
	v.SetDefault("source.root", d.Source.Root)
	v.SetDefault("sync.debounce", d.Sync.Debounce)
	v.SetDefault("sync.search_window", d.Sync.SearchWindow)
	v.SetDefault("sync.call_names", d.Sync.CallNames)
	v.SetDefault("grid.steps_per_bar", d.Grid.StepsPerBar)
	v.SetDefault("grid.num_bars", d.Grid.NumBars)
	v.SetDefault("grid.beats_per_bar", d.Grid.BeatsPerBar)
	v.SetDefault("log.level", d.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configFile, or patternsync.yaml from the working directory or
// ConfigDir when configFile is empty, and decodes the merged settings. A
// missing default file is not an error; a missing explicit file is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("patternsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := ConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Runtime.URL == "" {
		problems = append(problems, "runtime.url is empty")
	}
	if c.Runtime.Timeout <= 0 {
		problems = append(problems, "runtime.timeout must be positive")
	}
	if c.Runtime.PollInterval < 0 || c.Sync.Debounce < 0 {
		problems = append(problems, "durations must not be negative")
	}
	if c.Sync.SearchWindow <= 0 {
		problems = append(problems, "sync.search_window must be positive")
	}
	if c.Grid.StepsPerBar <= 0 || c.Grid.NumBars <= 0 || c.Grid.BeatsPerBar <= 0 {
		problems = append(problems, "grid geometry must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 {
		return nil
	}
	msg := strings.Join(problems, "; ")
	return apperr.Invalid(fmt.Errorf("%w: %s", ErrInvalid, msg), msg)
}

// GridDefaults is the configured geometry as a grid.Config
func (c *Config) GridDefaults() grid.Config {
	return grid.Config{StepsPerBar: c.Grid.StepsPerBar, NumBars: c.Grid.NumBars, BeatsPerBar: c.Grid.BeatsPerBar}
}

// Locator builds the definition locator for the sync settings
func (c *Config) Locator() *source.Locator {
	return source.NewLocator(c.Sync.SearchWindow, c.Sync.CallNames)
}

// ParseLevel maps a level name to a slog level
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q is not debug, info, warn or error", name)
	}
	return level, nil
}

// Logger builds a text logger at the configured level
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ConverterOptions returns MIDI options using the configured grid geometry
func (c *Config) ConverterOptions() converter.Options {
	opts := converter.DefaultOptions()
	opts.Grid = c.GridDefaults()
	return opts
}
