// Package config loads chat-central's configuration, grounded on the
// pack's viper-based config loaders: an optional config file given by
// path, layered with CHATCENTRAL_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Theme is the closed set for the config.theme KV key.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// PlatformTunables are the per-platform BatchOrchestrator knobs called
// out as "configuration, not design" in the Gemini tunables open
// question.
type PlatformTunables struct {
	PollInterval  time.Duration
	PollTimeout   time.Duration
	FetchInterval time.Duration
}

// Config is the fully-resolved, typed configuration for a chat-central
// process.
type Config struct {
	StorePath      string
	WidgetEnabled  bool
	Theme          Theme
	MaxArchiveSize int64 // advisory threshold, bytes (default 50MB)

	Claude  PlatformTunables
	ChatGPT PlatformTunables
	Gemini  PlatformTunables
}

// Default returns the configuration used when no file or environment
// overrides are present, matching the literal defaults named in the spec
// (500ms poll interval, 15s/800ms for Claude and ChatGPT, 20s/3000ms for
// Gemini, 50MB export-size advisory).
func Default() Config {
	return Config{
		StorePath:      defaultStorePath(),
		WidgetEnabled:  true,
		Theme:          ThemeSystem,
		MaxArchiveSize: 50 * 1024 * 1024,
		Claude: PlatformTunables{
			PollInterval: 500 * time.Millisecond, PollTimeout: 15 * time.Second, FetchInterval: 800 * time.Millisecond,
		},
		ChatGPT: PlatformTunables{
			PollInterval: 500 * time.Millisecond, PollTimeout: 15 * time.Second, FetchInterval: 800 * time.Millisecond,
		},
		Gemini: PlatformTunables{
			PollInterval: 500 * time.Millisecond, PollTimeout: 20 * time.Second, FetchInterval: 3000 * time.Millisecond,
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "chat-central", "store.db")
}

// Load reads configuration from an optional file path plus
// CHATCENTRAL_-prefixed environment variables, falling back to Default()
// for anything unset. A missing configPath is not an error.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("CHATCENTRAL")
	v.AutomaticEnv()

	v.SetDefault("store_path", cfg.StorePath)
	v.SetDefault("widget_enabled", cfg.WidgetEnabled)
	v.SetDefault("theme", string(cfg.Theme))
	v.SetDefault("max_archive_size", cfg.MaxArchiveSize)
	v.SetDefault("gemini.poll_interval_ms", cfg.Gemini.PollInterval.Milliseconds())
	v.SetDefault("gemini.poll_timeout_ms", cfg.Gemini.PollTimeout.Milliseconds())
	v.SetDefault("gemini.fetch_interval_ms", cfg.Gemini.FetchInterval.Milliseconds())
	v.SetDefault("claude.poll_interval_ms", cfg.Claude.PollInterval.Milliseconds())
	v.SetDefault("claude.poll_timeout_ms", cfg.Claude.PollTimeout.Milliseconds())
	v.SetDefault("claude.fetch_interval_ms", cfg.Claude.FetchInterval.Milliseconds())
	v.SetDefault("chatgpt.poll_interval_ms", cfg.ChatGPT.PollInterval.Milliseconds())
	v.SetDefault("chatgpt.poll_timeout_ms", cfg.ChatGPT.PollTimeout.Milliseconds())
	v.SetDefault("chatgpt.fetch_interval_ms", cfg.ChatGPT.FetchInterval.Milliseconds())

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return cfg, fmt.Errorf("config: reading %s: %w", configPath, err)
			}
		}
	}

	cfg.StorePath = v.GetString("store_path")
	cfg.WidgetEnabled = v.GetBool("widget_enabled")
	cfg.Theme = Theme(v.GetString("theme"))
	cfg.MaxArchiveSize = v.GetInt64("max_archive_size")

	cfg.Gemini = PlatformTunables{
		PollInterval:  time.Duration(v.GetInt64("gemini.poll_interval_ms")) * time.Millisecond,
		PollTimeout:   time.Duration(v.GetInt64("gemini.poll_timeout_ms")) * time.Millisecond,
		FetchInterval: time.Duration(v.GetInt64("gemini.fetch_interval_ms")) * time.Millisecond,
	}
	cfg.Claude = PlatformTunables{
		PollInterval:  time.Duration(v.GetInt64("claude.poll_interval_ms")) * time.Millisecond,
		PollTimeout:   time.Duration(v.GetInt64("claude.poll_timeout_ms")) * time.Millisecond,
		FetchInterval: time.Duration(v.GetInt64("claude.fetch_interval_ms")) * time.Millisecond,
	}
	cfg.ChatGPT = PlatformTunables{
		PollInterval:  time.Duration(v.GetInt64("chatgpt.poll_interval_ms")) * time.Millisecond,
		PollTimeout:   time.Duration(v.GetInt64("chatgpt.poll_timeout_ms")) * time.Millisecond,
		FetchInterval: time.Duration(v.GetInt64("chatgpt.fetch_interval_ms")) * time.Millisecond,
	}

	return cfg, nil
}
