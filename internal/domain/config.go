// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config holds the runtime configuration unmarshaled from config.toml
// and environment variables.
type Config struct {
	Version string

	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"baseUrl"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	TMDBAPIKey   string `mapstructure:"tmdbApiKey"`
	TMDBAPIURL   string `mapstructure:"tmdbApiUrl"`
	TMDBLanguage string `mapstructure:"tmdbLanguage"`

	CacheTTLMinutes      int  `mapstructure:"cacheTtlMinutes"`
	PageMultiplier       int  `mapstructure:"pageMultiplier"`
	AnimeCheckFallback   bool `mapstructure:"animeCheckFallback"`
	MaxConcurrentFetches int  `mapstructure:"maxConcurrentFetches"`

	MetricsEnabled bool   `mapstructure:"metricsEnabled"`
	MetricsHost    string `mapstructure:"metricsHost"`
	MetricsPort    int    `mapstructure:"metricsPort"`
}
