package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig
	Scraper ScraperConfig
	Cache   CacheConfig
	Status  StatusConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ScraperConfig holds retailer scraping configuration
type ScraperConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	AmazonBaseURL   string        `mapstructure:"amazon_base_url"`
	FlipkartBaseURL string        `mapstructure:"flipkart_base_url"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type      string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL  string        `mapstructure:"redis_url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// StatusConfig holds status stream configuration
type StatusConfig struct {
	OrphanTTL time.Duration `mapstructure:"orphan_ttl"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load loads configuration from an optional .env file, environment variables
// and an optional config file. Environment variables win over the file.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricescout/")

	// PRICESCOUT_SERVER_PORT -> server.port
	v.SetEnvPrefix("PRICESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads ./.env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Scraper defaults
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	v.SetDefault("scraper.request_timeout", "30s")
	v.SetDefault("scraper.rate_per_second", 1.0)
	v.SetDefault("scraper.burst", 2)
	v.SetDefault("scraper.amazon_base_url", "https://www.amazon.in")
	v.SetDefault("scraper.flipkart_base_url", "https://www.flipkart.com")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "pricescout:")
	v.SetDefault("cache.ttl", "15m")

	// Status stream defaults
	v.SetDefault("status.orphan_ttl", "5m")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "text")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis' (set PRICESCOUT_CACHE_REDIS_URL)")
	}

	if config.Scraper.RequestTimeout <= 0 {
		return fmt.Errorf("scraper request timeout must be positive, got: %s", config.Scraper.RequestTimeout)
	}

	if config.Scraper.RatePerSecond < 0 {
		return fmt.Errorf("scraper rate must not be negative, got: %v", config.Scraper.RatePerSecond)
	}

	for name, raw := range map[string]string{
		"amazon":   config.Scraper.AmazonBaseURL,
		"flipkart": config.Scraper.FlipkartBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s base URL must be an absolute http(s) URL, got: %q", name, raw)
		}
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}
