package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the ingestion pipeline.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`

	ArchiveBaseURL string `mapstructure:"ARCHIVE_BASE_URL"`

	ServerPort string `mapstructure:"SERVER_PORT"` // metrics/health endpoint

	TermWorkers  int `mapstructure:"TERM_WORKERS"`
	PageWorkers  int `mapstructure:"PAGE_WORKERS"`
	MediaWorkers int `mapstructure:"MEDIA_WORKERS"`

	// MinAdCreationTime (YYYY-MM-DD, optional) drops ads created before
	// the given date during enrichment.
	MinAdCreationTime string `mapstructure:"MIN_AD_CREATION_TIME"`

	PollIntervalSeconds int `mapstructure:"POLL_INTERVAL_SECONDS"`
	HTTPTimeoutSeconds  int `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	NavTimeoutSeconds   int `mapstructure:"NAV_TIMEOUT_SECONDS"`
	MediaCacheDays      int `mapstructure:"MEDIA_CACHE_DAYS"`
}

// Load reads configuration from a .env file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables.
	_ = viper.ReadInConfig()

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("ARCHIVE_BASE_URL", "https://graph.facebook.com/v19.0")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TERM_WORKERS", 5)
	viper.SetDefault("PAGE_WORKERS", 20)
	viper.SetDefault("MEDIA_WORKERS", 13)
	viper.SetDefault("POLL_INTERVAL_SECONDS", 5)
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	viper.SetDefault("NAV_TIMEOUT_SECONDS", 60)
	viper.SetDefault("MEDIA_CACHE_DAYS", 2)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval returns the stage poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// HTTPTimeout returns the archive call timeout as a duration.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// NavTimeout returns the browser navigation timeout as a duration.
func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}

// MediaCacheTTL returns how long an extracted creative suppresses re-renders.
func (c *Config) MediaCacheTTL() time.Duration {
	return time.Duration(c.MediaCacheDays) * 24 * time.Hour
}
