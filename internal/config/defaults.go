package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionIdleTimeout == 0 {
		cfg.Server.SessionIdleTimeout = 30 * time.Minute
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mitsukeru/data/db/documents.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/mitsukeru/data/indices/bleve"
	}
	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = 50
	}
	if cfg.Search.MaxPageSize == 0 {
		cfg.Search.MaxPageSize = 500
	}
	if cfg.Search.NameBoost == 0 {
		cfg.Search.NameBoost = 10.0
	}
	if cfg.Search.IndexWorkers == 0 {
		cfg.Search.IndexWorkers = 4
	}
	if cfg.Dates.Order == "" {
		cfg.Dates.Order = "auto"
	}
	if cfg.Thumbnails.MaxConcurrent == 0 {
		cfg.Thumbnails.MaxConcurrent = 4
	}
	if cfg.Thumbnails.MaxDimension == 0 {
		cfg.Thumbnails.MaxDimension = 256
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{
			".txt", ".md", ".rst", ".csv", ".json", ".pdf", ".docx", ".xlsx", ".pptx",
			".odt", ".odp", ".ods", ".rtf", ".jpg", ".jpeg", ".png", ".gif", ".webp",
		}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
