package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

const appName = "soundleaf"

type Config struct {
	UserID       string `koanf:"user_id"`
	DownloadsDir string `koanf:"downloads_dir"` // root for downloaded chapter audio
	ProgressDB   string `koanf:"progress_db"`   // empty means the XDG data path

	// Remote row-store API (enables sync when configured)
	Remote RemoteConfig `koanf:"remote"`

	// Timing overrides; zero values fall back to the built-in defaults
	Timing TimingConfig `koanf:"timing"`
}

// RemoteConfig holds the row-store API endpoint.
type RemoteConfig struct {
	URL   string `koanf:"url"`   // e.g., "https://api.soundleaf.app"
	Token string `koanf:"token"` // bearer token
}

// TimingConfig mirrors the tunable subset of the timing policy. Durations
// use Go syntax ("300ms", "15s").
type TimingConfig struct {
	ToggleDebounce      string `koanf:"toggle_debounce"`
	OperationTimeout    string `koanf:"operation_timeout"`
	BreakerThreshold    int    `koanf:"breaker_threshold"`
	BreakerResetTimeout string `koanf:"breaker_reset_timeout"`
	ProgressInterval    string `koanf:"progress_interval"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.DownloadsDir == "" {
		cfg.DownloadsDir = filepath.Join(xdg.DataHome, appName, "downloads")
	}
	cfg.DownloadsDir = expandPath(cfg.DownloadsDir)
	cfg.ProgressDB = expandPath(cfg.ProgressDB)

	// Normalize remote URL (remove trailing slash)
	cfg.Remote.URL = strings.TrimSuffix(cfg.Remote.URL, "/")

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/soundleaf/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// HasRemoteConfig returns true if the row-store API is configured.
func (c *Config) HasRemoteConfig() bool {
	return c.Remote.URL != "" && c.Remote.Token != ""
}

// Policy returns the timing policy with config overrides applied.
// Unparseable durations are ignored rather than fatal; a bad override
// must never disable a guard.
func (c *Config) Policy() timing.Policy {
	p := timing.Default()
	if d, err := time.ParseDuration(c.Timing.ToggleDebounce); err == nil && d > 0 {
		p.ToggleDebounce = d
	}
	if d, err := time.ParseDuration(c.Timing.OperationTimeout); err == nil && d > 0 {
		p.OperationTimeout = d
	}
	if c.Timing.BreakerThreshold > 0 {
		p.BreakerThreshold = c.Timing.BreakerThreshold
	}
	if d, err := time.ParseDuration(c.Timing.BreakerResetTimeout); err == nil && d > 0 {
		p.BreakerResetTimeout = d
	}
	if d, err := time.ParseDuration(c.Timing.ProgressInterval); err == nil && d > 0 {
		p.ProgressInterval = d
	}
	return p.Normalized()
}

// DeviceID returns this installation's stable device identifier, creating
// it on first use. Progress snapshots carry it so multi-device conflicts
// can be resolved server-side.
func DeviceID() (string, error) {
	path, err := xdg.DataFile(filepath.Join(appName, "device_id"))
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err == nil && len(data) > 0 {
		return strings.TrimSpace(string(data)), nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generating device id: %w", err)
	}
	id = "dev_" + id
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persisting device id: %w", err)
	}
	return id, nil
}
