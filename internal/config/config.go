// Package config provides configuration loading and structs for the mitsukeru server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/mitsukeru/internal/dates"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Search     SearchConfig     `yaml:"search"`
	Dates      DatesConfig      `yaml:"dates"`
	Thumbnails ThumbnailsConfig `yaml:"thumbnails"`
	Watch      WatchConfig      `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SessionIdleTimeout evicts sessions not used for this long. Zero disables eviction.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// StorageConfig holds paths for the metadata database and keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// SearchConfig holds paging and ranking settings.
type SearchConfig struct {
	PageSize    int     `yaml:"page_size"`
	MaxPageSize int     `yaml:"max_page_size"`
	NameBoost   float64 `yaml:"name_boost"`
	// IndexWorkers bounds concurrent extraction during directory indexing.
	IndexWorkers int `yaml:"index_workers"`
}

// ClampPageSize returns n bounded to [1, MaxPageSize], or PageSize when n <= 0.
func (s *SearchConfig) ClampPageSize(n int) int {
	if n <= 0 {
		n = s.PageSize
	}
	if s.MaxPageSize > 0 && n > s.MaxPageSize {
		n = s.MaxPageSize
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// DatesConfig controls how numeric dates are read and which timezone day bounds use.
type DatesConfig struct {
	// Order is "auto", "month_first" or "day_first".
	Order string `yaml:"order"`
	// Locale overrides the environment locale when Order is auto (e.g. "en-GB").
	Locale string `yaml:"locale"`
	// Timezone is an IANA name; empty means the local zone.
	Timezone string `yaml:"timezone"`
}

// Detector returns the day/month order strategy described by the config.
func (d *DatesConfig) Detector() (dates.OrderDetector, error) {
	order := strings.TrimSpace(d.Order)
	if order == "" || strings.EqualFold(order, "auto") {
		if d.Locale != "" {
			return dates.LocaleDetector{Tag: dates.ParseLocale(d.Locale)}, nil
		}
		return dates.LocaleDetector{Tag: dates.DetectLocale()}, nil
	}
	o, ok := dates.ParseOrder(order)
	if !ok {
		return nil, fmt.Errorf("invalid dates.order %q", d.Order)
	}
	return dates.FixedOrder(o), nil
}

// Location resolves Timezone, falling back to time.Local when empty.
func (d *DatesConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid dates.timezone: %w", err)
	}
	return loc, nil
}

// ThumbnailsConfig bounds background preview fetching.
type ThumbnailsConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	MaxDimension  int           `yaml:"max_dimension"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate reports settings that cannot be used as given.
func (c *Config) Validate() error {
	if c.Search.MaxPageSize > 0 && c.Search.PageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.page_size %d exceeds max_page_size %d", c.Search.PageSize, c.Search.MaxPageSize)
	}
	if _, err := c.Dates.Detector(); err != nil {
		return err
	}
	if _, err := c.Dates.Location(); err != nil {
		return err
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, strings.TrimPrefix(path, "~/"))
	}
	return path
}
