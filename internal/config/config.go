// Package config handles TOML configuration loading with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for orderwatch.
type Config struct {
	Instance    InstanceConfig    `toml:"instance"`
	Matcher     MatcherConfig     `toml:"matcher"`
	Cooldown    CooldownConfig    `toml:"cooldown"`
	Reset       ResetConfig       `toml:"reset"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Source      SourceConfig      `toml:"source"`
	DB          DBConfig          `toml:"db"`
	Log         LogConfig         `toml:"log"`
}

// InstanceConfig identifies this prover host.
type InstanceConfig struct {
	ID string `toml:"id"`
}

// MatcherConfig controls failure-signature matching.
type MatcherConfig struct {
	// Markers are substrings that must all appear on a line for it to count
	// as a prover failure. Empty means the built-in signature.
	Markers []string `toml:"markers"`
}

// CooldownConfig controls per-order reset debouncing.
type CooldownConfig struct {
	Window Duration `toml:"window"`
}

// ResetConfig controls the external recovery command.
type ResetConfig struct {
	Command string   `toml:"command"`
	Timeout Duration `toml:"timeout"`
}

// DiagnosticsConfig controls container-state capture on trigger.
type DiagnosticsConfig struct {
	Dir            string   `toml:"dir"`
	Containers     []string `toml:"containers"`
	LogWindow      Duration `toml:"log_window"`
	CommandTimeout Duration `toml:"command_timeout"`
}

// TelegramConfig controls the optional operator notification.
type TelegramConfig struct {
	// EnvFile is a KEY=VALUE file holding TG_TOKEN and TG_CHAT_ID.
	// A missing file disables notification.
	EnvFile string `toml:"env_file"`
}

// SourceConfig selects where log lines come from.
type SourceConfig struct {
	// Mode is "stdin" (default) or "docker".
	Mode string `toml:"mode"`
	// Container is the container whose logs are followed in docker mode.
	Container string `toml:"container"`
}

// DBConfig controls the reset history database.
type DBConfig struct {
	Path      string   `toml:"path"`
	Retention Duration `toml:"retention"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps time.Duration for TOML string parsing (e.g. "5m", "1h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultContainers returns the bento deployment containers whose logs are
// captured on trigger: broker, REST API, GPU prover, aux agent, and the five
// exec agents.
func DefaultContainers() []string {
	names := []string{
		"bento-broker-1",
		"bento-rest_api-1",
		"bento-gpu_prove_agent0-1",
		"bento-aux_agent-1",
	}
	for i := 0; i < 5; i++ {
		names = append(names, fmt.Sprintf("bento-exec_agent%d-1", i))
	}
	return names
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return &Config{
		Instance: InstanceConfig{
			ID: hostname,
		},
		Cooldown: CooldownConfig{
			Window: Duration{5 * time.Minute},
		},
		Reset: ResetConfig{
			Command: "./scripts/reset-order.sh",
			Timeout: Duration{2 * time.Minute},
		},
		Diagnostics: DiagnosticsConfig{
			Dir:            "auto-reset-logs",
			Containers:     DefaultContainers(),
			LogWindow:      Duration{3 * time.Minute},
			CommandTimeout: Duration{30 * time.Second},
		},
		Telegram: TelegramConfig{
			EnvFile: "scripts/.env.tg",
		},
		Source: SourceConfig{
			Mode:      "stdin",
			Container: "bento-broker-1",
		},
		DB: DBConfig{
			Retention: Duration{30 * 24 * time.Hour},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "orderwatch", "config.toml")
}

// DBPath returns the configured database path, or the default under the
// user's data directory.
func (c *Config) DBPath() string {
	if c.DB.Path != "" {
		return c.DB.Path
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "orderwatch", "resets.db")
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Source.Mode {
	case "stdin", "docker":
	default:
		return fmt.Errorf("invalid source.mode %q (want stdin or docker)", c.Source.Mode)
	}
	if c.Source.Mode == "docker" && c.Source.Container == "" {
		return fmt.Errorf("source.mode is docker but source.container is empty")
	}
	if c.Reset.Command == "" {
		return fmt.Errorf("reset.command must not be empty")
	}
	return nil
}
