package adapter

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmcdole/culler/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := loadConfig(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Prefetch.Ahead)
	assert.Equal(t, 1, cfg.Prefetch.Behind)
	assert.Equal(t, domain.VariantPreview, cfg.DisplayVariant())
	assert.Contains(t, cfg.Library.Extensions, "jpg")
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	yaml := []byte(`
library:
  root: /srv/photos
  extensions: [jpg, png]
  recursive: true
prefetch:
  ahead: 5
decode:
  variant: full
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0644))
	t.Setenv("CULLER_PREFETCH_BEHIND", "2")

	cfg, err := loadConfig(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/photos", cfg.Library.Root)
	assert.Equal(t, []string{"jpg", "png"}, cfg.Library.Extensions)
	assert.True(t, cfg.Library.Recursive)
	assert.Equal(t, 5, cfg.Prefetch.Ahead)
	assert.Equal(t, 2, cfg.Prefetch.Behind)
	assert.Equal(t, domain.VariantFull, cfg.DisplayVariant())
	// untouched keys keep their defaults
	assert.Equal(t, int64(512<<20), cfg.Cache.MaxBytes)
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("decode:\n  variant: huge\n"), 0644))

	_, err := loadConfig(viper.New(), dir)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative ahead", func(c *Config) { c.Prefetch.Ahead = -1 }},
		{"negative workers", func(c *Config) { c.Workers.Count = -2 }},
		{"zero cache", func(c *Config) { c.Cache.MaxBytes = 0 }},
		{"no extensions", func(c *Config) { c.Library.Extensions = nil }},
		{"zero preview", func(c *Config) { c.Decode.PreviewWidth = 0 }},
		{"unknown filter", func(c *Config) { c.Decode.Filter = "sinc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	chdir(t, t.TempDir())
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Library.Root = "/mnt/card"
	cfg.Prefetch.Ahead = 7

	require.NoError(t, saveConfig(viper.New(), cfg, dir))

	loaded, err := loadConfig(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/card", loaded.Library.Root)
	assert.Equal(t, 7, loaded.Prefetch.Ahead)
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", "item", "a.jpg")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"item":"a.jpg"`)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
