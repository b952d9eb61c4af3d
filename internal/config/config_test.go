package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Theme, cfg.Theme)
	assert.Equal(t, 500*time.Millisecond, cfg.Claude.PollInterval)
	assert.Equal(t, 20*time.Second, cfg.Gemini.PollTimeout)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\nwidget_enabled: false\nclaude:\n  poll_interval_ms: 250\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, cfg.Theme)
	assert.False(t, cfg.WidgetEnabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Claude.PollInterval)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().StorePath, cfg.StorePath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CHATCENTRAL_THEME", "light")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, cfg.Theme)
}
