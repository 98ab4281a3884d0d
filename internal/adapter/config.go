package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mmcdole/culler/internal/domain"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Library  LibraryConfig  `mapstructure:"library"`
	Prefetch PrefetchConfig `mapstructure:"prefetch"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Decode   DecodeConfig   `mapstructure:"decode"`
	Store    StoreConfig    `mapstructure:"store"`
	Viewer   ViewerConfig   `mapstructure:"viewer"`
	UI       UIConfig       `mapstructure:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// LibraryConfig describes which files make up the catalog
type LibraryConfig struct {
	Root       string   `mapstructure:"root"`       // Directory to review
	Extensions []string `mapstructure:"extensions"` // Lowercase, without the dot
	Recursive  bool     `mapstructure:"recursive"`
	Watch      bool     `mapstructure:"watch"` // Invalidate cached decodes when files change
}

// PrefetchConfig sizes the prefetch window around the current position
type PrefetchConfig struct {
	Ahead     int `mapstructure:"ahead"`
	Behind    int `mapstructure:"behind"`
	MaxQueued int `mapstructure:"max_queued"` // Window tasks allowed to wait in the pool
}

// WorkersConfig sizes the decode worker pool
type WorkersConfig struct {
	Count int `mapstructure:"count"` // 0 = number of CPUs
}

// CacheConfig bounds the decoded image cache
type CacheConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// DecodeConfig controls the variant produced for display
type DecodeConfig struct {
	Variant       string `mapstructure:"variant"` // "full", "preview", "thumb"
	PreviewWidth  int    `mapstructure:"preview_width"`
	PreviewHeight int    `mapstructure:"preview_height"`
	ThumbSize     int    `mapstructure:"thumb_size"`
	Filter        string `mapstructure:"filter"` // Resampling: nearest, bilinear, bicubic, lanczos2, lanczos3
}

// StoreConfig locates the rating database
type StoreConfig struct {
	Path string `mapstructure:"path"` // Empty = memory only
}

// ViewerConfig selects the external program used to open the current image
type ViewerConfig struct {
	Command string   `mapstructure:"command"` // Empty = detect, then system default
	Args    []string `mapstructure:"args"`
}

// UIConfig holds UI configuration
type UIConfig struct {
	Theme    string `mapstructure:"theme"`
	ShowHelp bool   `mapstructure:"show_help"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Library: LibraryConfig{
			Root:       ".",
			Extensions: []string{"jpg", "jpeg", "png", "gif"},
			Recursive:  false,
			Watch:      true,
		},
		Prefetch: PrefetchConfig{
			Ahead:     3,
			Behind:    1,
			MaxQueued: 4,
		},
		Workers: WorkersConfig{
			Count: 0,
		},
		Cache: CacheConfig{
			MaxBytes: 512 << 20,
		},
		Decode: DecodeConfig{
			Variant:       "preview",
			PreviewWidth:  2560,
			PreviewHeight: 1440,
			ThumbSize:     256,
			Filter:        "lanczos3",
		},
		Store: StoreConfig{
			Path: defaultDataPath(),
		},
		UI: UIConfig{
			Theme:    "default",
			ShowHelp: true,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "culler.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "culler")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "culler")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "culler")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "culler")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	return loadConfig(viper.GetViper(), defaultConfigPath())
}

func loadConfig(v *viper.Viper, configDir string) (*Config, error) {
	cfg := DefaultConfig()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Environment variable overrides (CULLER_PREFETCH_AHEAD, ...)
	v.SetEnvPrefix("CULLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnvKeys makes AutomaticEnv visible to Unmarshal for keys that have no
// config file entry.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"library.root", "library.recursive", "library.watch",
		"prefetch.ahead", "prefetch.behind", "prefetch.max_queued",
		"workers.count", "cache.max_bytes",
		"decode.variant", "decode.preview_width", "decode.preview_height", "decode.thumb_size", "decode.filter",
		"store.path", "viewer.command", "ui.theme", "ui.show_help",
		"logging.file", "logging.level",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate rejects settings the core cannot run with
func (c *Config) Validate() error {
	if c.Prefetch.Ahead < 0 || c.Prefetch.Behind < 0 {
		return fmt.Errorf("prefetch window must not be negative (ahead=%d, behind=%d)", c.Prefetch.Ahead, c.Prefetch.Behind)
	}
	if c.Prefetch.MaxQueued < 0 {
		return fmt.Errorf("prefetch.max_queued must not be negative")
	}
	if c.Workers.Count < 0 {
		return fmt.Errorf("workers.count must not be negative")
	}
	if c.Cache.MaxBytes <= 0 {
		return fmt.Errorf("cache.max_bytes must be positive")
	}
	if _, err := domain.ParseVariant(c.Decode.Variant); err != nil {
		return fmt.Errorf("decode.variant: %w", err)
	}
	if c.Decode.PreviewWidth <= 0 || c.Decode.PreviewHeight <= 0 || c.Decode.ThumbSize <= 0 {
		return fmt.Errorf("decode dimensions must be positive")
	}
	switch strings.ToLower(c.Decode.Filter) {
	case "", "nearest", "bilinear", "bicubic", "lanczos2", "lanczos3":
	default:
		return fmt.Errorf("decode.filter: unknown resampling filter %q", c.Decode.Filter)
	}
	if len(c.Library.Extensions) == 0 {
		return fmt.Errorf("library.extensions must list at least one extension")
	}
	return nil
}

// WorkerCount resolves the configured worker count
func (c *Config) WorkerCount() int {
	if c.Workers.Count > 0 {
		return c.Workers.Count
	}
	return runtime.NumCPU()
}

// DisplayVariant returns the parsed display variant (Validate guarantees it parses)
func (c *Config) DisplayVariant() domain.Variant {
	v, _ := domain.ParseVariant(c.Decode.Variant)
	return v
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	return saveConfig(viper.GetViper(), cfg, defaultConfigPath())
}

func saveConfig(v *viper.Viper, cfg *Config, configPath string) error {
	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("library.root", cfg.Library.Root)
	v.Set("library.extensions", cfg.Library.Extensions)
	v.Set("library.recursive", cfg.Library.Recursive)
	v.Set("library.watch", cfg.Library.Watch)

	v.Set("prefetch.ahead", cfg.Prefetch.Ahead)
	v.Set("prefetch.behind", cfg.Prefetch.Behind)
	v.Set("prefetch.max_queued", cfg.Prefetch.MaxQueued)

	v.Set("workers.count", cfg.Workers.Count)
	v.Set("cache.max_bytes", cfg.Cache.MaxBytes)

	v.Set("decode.variant", cfg.Decode.Variant)
	v.Set("decode.preview_width", cfg.Decode.PreviewWidth)
	v.Set("decode.preview_height", cfg.Decode.PreviewHeight)
	v.Set("decode.thumb_size", cfg.Decode.ThumbSize)
	v.Set("decode.filter", cfg.Decode.Filter)

	v.Set("store.path", cfg.Store.Path)
	v.Set("viewer.command", cfg.Viewer.Command)
	v.Set("viewer.args", cfg.Viewer.Args)

	v.Set("ui.theme", cfg.UI.Theme)
	v.Set("ui.show_help", cfg.UI.ShowHelp)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
