// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

// QuillConfig is the root configuration stored at ~/.quill/quill.yaml.
type QuillConfig struct {
	API   APIConfig   `yaml:"api"`
	Feed  FeedConfig  `yaml:"feed"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// APIConfig configures the blog API connection.
type APIConfig struct {
	// BaseURL is the root of the blog API, e.g. "http://localhost:3000/api".
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds each request. Zero means the client default.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// RateLimit caps requests per second. Zero or negative disables
	// client-side limiting.
	RateLimit float64 `yaml:"rate_limit"`
}

// FeedConfig configures listing page sizes.
type FeedConfig struct {
	// PageLimit is the feed page size for infinite scroll.
	PageLimit int `yaml:"page_limit"`

	// AdminPageLimit is the page size for the dashboard tables.
	AdminPageLimit int `yaml:"admin_page_limit"`
}

// CacheConfig configures the on-disk warm cache.
type CacheConfig struct {
	// Enabled toggles persistence. When false every run starts cold.
	Enabled bool `yaml:"enabled"`

	// Dir is the badger database directory. Supports ~ expansion.
	Dir string `yaml:"dir"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Dir is the log file directory. Supports ~ expansion.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON. File logs are always JSON.
	JSON bool `yaml:"json"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() QuillConfig {
	return QuillConfig{
		API: APIConfig{
			BaseURL:        "http://localhost:3000/api",
			TimeoutSeconds: 30,
			RateLimit:      10,
		},
		Feed: FeedConfig{
			PageLimit:      6,
			AdminPageLimit: 10,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     "~/.quill/cache",
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "~/.quill/logs",
		},
	}
}
