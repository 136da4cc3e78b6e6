package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort         string  `mapstructure:"SERVER_PORT"`
	RedisAddr          string  `mapstructure:"REDIS_ADDR"`
	FetchTimeout       int     `mapstructure:"FETCH_TIMEOUT"`
	MaxRetries         int     `mapstructure:"MAX_RETRIES"`
	RetryBaseDelayMs   int     `mapstructure:"RETRY_BASE_DELAY_MS"`
	MaxBodyBytes       int64   `mapstructure:"MAX_BODY_BYTES"`
	MaxImages          int     `mapstructure:"MAX_IMAGES"`
	DiffThreshold      float64 `mapstructure:"DIFF_THRESHOLD"`
	CacheTTLSeconds    int     `mapstructure:"CACHE_TTL_SECONDS"`
	BrowserCacheMaxAge int     `mapstructure:"BROWSER_CACHE_MAX_AGE"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "") // empty disables the metadata cache
	viper.SetDefault("FETCH_TIMEOUT", 15) // in seconds
	viper.SetDefault("MAX_RETRIES", 2)
	viper.SetDefault("RETRY_BASE_DELAY_MS", 1000)
	viper.SetDefault("MAX_BODY_BYTES", 10*1024*1024)
	viper.SetDefault("MAX_IMAGES", 12)
	viper.SetDefault("DIFF_THRESHOLD", 0.1)
	viper.SetDefault("CACHE_TTL_SECONDS", 3600)
	viper.SetDefault("BROWSER_CACHE_MAX_AGE", 3600)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FetchTimeoutDuration returns the per-request upstream timeout.
func (c *Config) FetchTimeoutDuration() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

// RetryBaseDelay returns the initial backoff delay for retried image fetches.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// CacheTTL returns the Redis metadata cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
