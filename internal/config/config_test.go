package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dexerr "github.com/mrcode/dexshare-widget/pkg/errors"
)

// pointConfigDirAt pins every platform's config root at dir so Dir()
// resolves under the test's temp directory regardless of GOOS.
func pointConfigDirAt(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("APPDATA", dir)
	t.Setenv("HOME", dir)
}

func writeConfigFile(t *testing.T, dir, contents string) {
	t.Helper()
	appDir := filepath.Join(dir, appDirName)
	if err := os.MkdirAll(appDir, 0o750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.PollInterval != want.PollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, want.PollInterval)
	}
	if cfg.FetchTimeout != want.FetchTimeout {
		t.Errorf("FetchTimeout = %v, want %v", cfg.FetchTimeout, want.FetchTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "console")
	}
	if cfg.VaultBackend != "auto" {
		t.Errorf("VaultBackend = %q, want %q", cfg.VaultBackend, "auto")
	}
	if cfg.BadgeSize != DefaultBadgeSize {
		t.Errorf("BadgeSize = %d, want %d", cfg.BadgeSize, DefaultBadgeSize)
	}
}

func TestLoad_ParsesConfig(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)
	writeConfigFile(t, root, `
poll_interval_seconds = 120
fetch_timeout_seconds = 15
log_level = "debug"
log_format = "json"
vault = "file"
badge_size = 32
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval != 2*time.Minute {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, 2*time.Minute)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("FetchTimeout = %v, want %v", cfg.FetchTimeout, 15*time.Second)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "json")
	}
	if cfg.VaultBackend != "file" {
		t.Errorf("VaultBackend = %q, want %q", cfg.VaultBackend, "file")
	}
	if cfg.BadgeSize != 32 {
		t.Errorf("BadgeSize = %d, want %d", cfg.BadgeSize, 32)
	}
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)
	writeConfigFile(t, root, `log_level = "warn"`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "warn")
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.VaultBackend != "auto" {
		t.Errorf("VaultBackend = %q, want %q", cfg.VaultBackend, "auto")
	}
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)
	writeConfigFile(t, root, `
poll_interval_seconds = 1
fetch_timeout_seconds = 1
badge_size = 4
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval != MinPollInterval {
		t.Errorf("PollInterval = %v, want clamp to %v", cfg.PollInterval, MinPollInterval)
	}
	if cfg.FetchTimeout != MinFetchTimeout {
		t.Errorf("FetchTimeout = %v, want clamp to %v", cfg.FetchTimeout, MinFetchTimeout)
	}
	if cfg.BadgeSize != MinBadgeSize {
		t.Errorf("BadgeSize = %d, want clamp to %d", cfg.BadgeSize, MinBadgeSize)
	}
}

func TestLoad_ClampsOversizedBadge(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)
	writeConfigFile(t, root, `badge_size = 9999`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BadgeSize != MaxBadgeSize {
		t.Errorf("BadgeSize = %d, want clamp to %d", cfg.BadgeSize, MaxBadgeSize)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)
	writeConfigFile(t, root, `poll_interval_seconds = = 60`)

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error for invalid TOML")
	}
	if kind := dexerr.KindOf(err); kind != dexerr.KindCorruptConfig {
		t.Errorf("KindOf(err) = %q, want %q", kind, dexerr.KindCorruptConfig)
	}
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)
	writeConfigFile(t, root, `pol_interval_seconds = 60`)

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error for unknown key")
	}
	if kind := dexerr.KindOf(err); kind != dexerr.KindCorruptConfig {
		t.Errorf("KindOf(err) = %q, want %q", kind, dexerr.KindCorruptConfig)
	}
}

func TestLoad_UnknownVaultBackendFails(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)
	writeConfigFile(t, root, `vault = "cloud"`)

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error for unknown vault backend")
	}
	if kind := dexerr.KindOf(err); kind != dexerr.KindConfig {
		t.Errorf("KindOf(err) = %q, want %q", kind, dexerr.KindConfig)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)

	path := filepath.Join(root, "custom.toml")
	if err := os.WriteFile(path, []byte(`log_format = "json"`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "json")
	}
}

func TestConfigPaths(t *testing.T) {
	root := t.TempDir()
	pointConfigDirAt(t, root)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.SessionPath(); filepath.Base(got) != "session.json" {
		t.Errorf("SessionPath() = %q, want basename session.json", got)
	}
	if got := cfg.VaultDir(); filepath.Base(got) != "vault" {
		t.Errorf("VaultDir() = %q, want basename vault", got)
	}
	if got := cfg.LogPath(); filepath.Base(got) != "dexshare.log" {
		t.Errorf("LogPath() = %q, want basename dexshare.log", got)
	}
	for _, p := range []string{cfg.SessionPath(), cfg.VaultDir(), cfg.LogPath()} {
		if filepath.Base(filepath.Dir(p)) != appDirName {
			t.Errorf("path %q not under %q directory", p, appDirName)
		}
	}
}
