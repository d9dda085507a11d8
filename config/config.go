// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default limits applied when the environment leaves them unset.
const (
	DefaultBodySizeLimit   = int64(20 * 1024 * 1024) // 20MB, pitch decks are image-heavy
	DefaultPollInterval    = 1 * time.Second
	DefaultPollMaxAttempts = 300
	DefaultSignExpiry      = 60 * time.Second
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig
	OpenAI  OpenAIConfig
	Backend BackendConfig
	Store   StoreConfig
	Cache   CacheConfig
	SMTP    SMTPConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string
	BodySizeLimit int64
}

// OpenAIConfig holds external model API configuration
type OpenAIConfig struct {
	APIKey          string
	Model           string
	PollInterval    time.Duration
	PollMaxAttempts int
}

// BackendConfig holds the hosted backend (auth, object storage) configuration
type BackendConfig struct {
	URL            string
	ServiceRoleKey string
	AnonKey        string
	Bucket         string
}

// StoreConfig holds record store configuration
type StoreConfig struct {
	// Type selects the backend: "sqlite", "postgresql", or "mongodb"
	Type string
	// SQLitePath is the database file path for the sqlite backend
	SQLitePath string
	// DatabaseURL is the connection string for postgresql/mongodb backends
	DatabaseURL string
	// MongoDatabase is the database name for the mongodb backend
	MongoDatabase string
}

// CacheConfig holds extraction result cache configuration
type CacheConfig struct {
	// Type selects the backend: "local" or "redis"; empty disables caching
	Type     string
	FilePath string
	RedisURL string
}

// SMTPConfig holds outbound notification email configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// LoggingConfig holds log output configuration
type LoggingConfig struct {
	// Format is "json" (default) or "text" for tinted development output
	Format string
}

// Load reads configuration from a .env file and the environment.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // .env is optional

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("EXTRACT_MODEL", "gpt-4o-mini")
	viper.SetDefault("POLL_INTERVAL_SECONDS", 1)
	viper.SetDefault("POLL_MAX_ATTEMPTS", DefaultPollMaxAttempts)
	viper.SetDefault("STORAGE_TYPE", "sqlite")
	viper.SetDefault("SQLITE_PATH", "data/decklens.db")
	viper.SetDefault("MONGODB_DATABASE", "decklens")
	viper.SetDefault("STORAGE_BUCKET", "decks")
	viper.SetDefault("CACHE_TYPE", "")
	viper.SetDefault("CACHE_FILE_PATH", "data/extract-cache.json")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("METRICS_ENABLED", false)
	viper.SetDefault("METRICS_ENDPOINT", "/metrics")
	viper.SetDefault("LOG_FORMAT", "json")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:          viper.GetString("PORT"),
			BodySizeLimit: viper.GetInt64("BODY_SIZE_LIMIT"),
		},
		OpenAI: OpenAIConfig{
			APIKey:          viper.GetString("OPENAI_API_KEY"),
			Model:           viper.GetString("EXTRACT_MODEL"),
			PollInterval:    time.Duration(viper.GetInt("POLL_INTERVAL_SECONDS")) * time.Second,
			PollMaxAttempts: viper.GetInt("POLL_MAX_ATTEMPTS"),
		},
		Backend: BackendConfig{
			URL:            viper.GetString("BACKEND_URL"),
			ServiceRoleKey: viper.GetString("BACKEND_SERVICE_ROLE_KEY"),
			AnonKey:        viper.GetString("BACKEND_ANON_KEY"),
			Bucket:         viper.GetString("STORAGE_BUCKET"),
		},
		Store: StoreConfig{
			Type:          viper.GetString("STORAGE_TYPE"),
			SQLitePath:    viper.GetString("SQLITE_PATH"),
			DatabaseURL:   viper.GetString("DATABASE_URL"),
			MongoDatabase: viper.GetString("MONGODB_DATABASE"),
		},
		Cache: CacheConfig{
			Type:     viper.GetString("CACHE_TYPE"),
			FilePath: viper.GetString("CACHE_FILE_PATH"),
			RedisURL: viper.GetString("REDIS_URL"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			Username: viper.GetString("SMTP_USERNAME"),
			Password: viper.GetString("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
			To:       viper.GetString("SMTP_TO"),
		},
		Metrics: MetricsConfig{
			Enabled:  viper.GetBool("METRICS_ENABLED"),
			Endpoint: viper.GetString("METRICS_ENDPOINT"),
		},
		Logging: LoggingConfig{
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	if cfg.Server.BodySizeLimit <= 0 {
		cfg.Server.BodySizeLimit = DefaultBodySizeLimit
	}

	return cfg, nil
}

// Validate checks that required credentials are present. A missing model API
// key is a fatal configuration error: no extraction request is ever attempted
// without it.
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OpenAI.PollInterval <= 0 {
		c.OpenAI.PollInterval = DefaultPollInterval
	}
	if c.OpenAI.PollMaxAttempts <= 0 {
		c.OpenAI.PollMaxAttempts = DefaultPollMaxAttempts
	}
	return nil
}
