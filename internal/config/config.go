// Package config loads the widget's TOML configuration file and resolves
// the per-user application directory.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

// appDirName is the directory created under the platform config root.
const appDirName = "dexshare-widget"

// Poll and timeout bounds. The floor keeps a misconfigured install from
// hammering the share service, whose upstream cadence is ~5 minutes.
const (
	DefaultPollInterval = 60 * time.Second
	MinPollInterval     = 10 * time.Second

	DefaultFetchTimeout = 30 * time.Second
	MinFetchTimeout     = 5 * time.Second

	DefaultBadgeSize = 64
	MinBadgeSize     = 16
	MaxBadgeSize     = 256
)

// Config is the runtime configuration after defaulting and clamping.
type Config struct {
	PollInterval time.Duration
	FetchTimeout time.Duration
	LogLevel     string
	LogFormat    string
	VaultBackend string
	BadgeSize    int

	dir string
}

// fileConfig is the raw on-disk shape. Durations are plain seconds so
// the file stays hand-editable.
type fileConfig struct {
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	LogLevel            string `toml:"log_level"`
	LogFormat           string `toml:"log_format"`
	Vault               string `toml:"vault"`
	BadgeSize           int    `toml:"badge_size"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		FetchTimeout: DefaultFetchTimeout,
		LogLevel:     "info",
		LogFormat:    "console",
		VaultBackend: "auto",
		BadgeSize:    DefaultBadgeSize,
	}
}

// Load reads the config file at path, or the default location when path
// is empty. A missing file yields defaults. Unknown keys are rejected
// rather than silently ignored, so typos in the file surface instead of
// reverting a setting behind the user's back.
func Load(path string) (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, dexerr.Wrap(dexerr.KindConfig, "resolving config directory", err)
	}
	cfg := Default()
	cfg.dir = dir

	resolved, err := resolvePath(path, dir)
	if err != nil {
		return Config{}, dexerr.Wrap(dexerr.KindConfig, "resolving config path", err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, dexerr.Wrap(dexerr.KindConfig, "reading config file", err)
	}

	var raw fileConfig
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Config{}, dexerr.Wrap(dexerr.KindCorruptConfig, "parsing config file", err)
	}

	if raw.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(raw.PollIntervalSeconds) * time.Second
	}
	if cfg.PollInterval < MinPollInterval {
		cfg.PollInterval = MinPollInterval
	}

	if raw.FetchTimeoutSeconds > 0 {
		cfg.FetchTimeout = time.Duration(raw.FetchTimeoutSeconds) * time.Second
	}
	if cfg.FetchTimeout < MinFetchTimeout {
		cfg.FetchTimeout = MinFetchTimeout
	}

	if lvl := strings.TrimSpace(raw.LogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if format := strings.TrimSpace(raw.LogFormat); format != "" {
		cfg.LogFormat = format
	}

	if vault := strings.TrimSpace(raw.Vault); vault != "" {
		cfg.VaultBackend = vault
	}
	switch cfg.VaultBackend {
	case "auto", "keyring", "file":
	default:
		return Config{}, dexerr.Newf(dexerr.KindConfig, "unknown vault backend %q (expected auto, keyring or file)", cfg.VaultBackend)
	}

	if raw.BadgeSize > 0 {
		cfg.BadgeSize = raw.BadgeSize
	}
	if cfg.BadgeSize < MinBadgeSize {
		cfg.BadgeSize = MinBadgeSize
	}
	if cfg.BadgeSize > MaxBadgeSize {
		cfg.BadgeSize = MaxBadgeSize
	}

	return cfg, nil
}

// SessionPath is where the persisted session lives.
func (c Config) SessionPath() string {
	return filepath.Join(c.dir, "session.json")
}

// VaultDir is where the file vault keeps its identity and credential
// files when the OS keyring is not used.
func (c Config) VaultDir() string {
	return filepath.Join(c.dir, "vault")
}

// LogPath is the log file used when logs cannot go to the terminal.
func (c Config) LogPath() string {
	return filepath.Join(c.dir, "dexshare.log")
}

// Dir returns the per-user application directory, creating it on first
// use.
func Dir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, appDirName)
	if err := os.MkdirAll(appDir, 0o750); err != nil {
		return "", err
	}
	return appDir, nil
}

func resolvePath(path, dir string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return filepath.Join(dir, "config.toml"), nil
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
