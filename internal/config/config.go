// Package config provides unified configuration loading for DeckVoice.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the DeckVoice service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Limits        LimitsConfig        `yaml:"limits"`
	LLM           LLMConfig           `yaml:"llm"`
	Render        RenderConfig        `yaml:"render"`
	Session       SessionConfig       `yaml:"session"`
	Storage       StorageConfig       `yaml:"storage"`
	Database      DatabaseConfig      `yaml:"database"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// LimitsConfig bounds accepted input and prompt context.
type LimitsConfig struct {
	MaxSlides         int `yaml:"max_slides"`
	MaxFileSizeMB     int `yaml:"max_file_size_mb"`
	NotesContextRunes int `yaml:"notes_context_runes"`
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (l LimitsConfig) MaxFileSizeBytes() int64 {
	return int64(l.MaxFileSizeMB) * 1024 * 1024
}

// LLMConfig holds text-generation provider settings.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	Concurrency    int           `yaml:"concurrency"`
}

// RenderConfig holds slide preview rendering settings.
type RenderConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SofficePath string `yaml:"soffice_path"`
	JPEGQuality int    `yaml:"jpeg_quality"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	Driver string        `yaml:"driver"` // memory or redis
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// StorageConfig holds blob storage settings.
type StorageConfig struct {
	Driver string   `yaml:"driver"` // local or s3
	Local  struct {
		Dir string `yaml:"dir"`
	} `yaml:"local"`
	S3 S3Config `yaml:"s3"`
}

// S3Config holds S3/MinIO settings.
type S3Config struct {
	Endpoint       string `yaml:"endpoint"`
	Region         string `yaml:"region"`
	Bucket         string `yaml:"bucket"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// DatabaseConfig holds the optional project-mode persistence settings.
// When DSN is empty the service runs stateless.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Limits: LimitsConfig{
			MaxSlides:         30,
			MaxFileSizeMB:     50,
			NotesContextRunes: 2000,
		},
		LLM: LLMConfig{
			BaseURL:        "https://openrouter.ai/api/v1/chat/completions",
			Model:          "google/gemini-2.5-flash",
			RequestTimeout: 90 * time.Second,
			MaxRetries:     3,
			Concurrency:    4,
		},
		Render: RenderConfig{
			Enabled:     true,
			JPEGQuality: 80,
		},
		Session: SessionConfig{
			Driver: "memory",
			TTL:    2 * time.Hour,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
	cfg.Storage.Driver = "local"
	cfg.Storage.Local.Dir = "/tmp/deckvoice"
	cfg.Storage.S3.Region = "us-east-1"
	cfg.Storage.S3.Bucket = "deckvoice"
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Limits.MaxSlides < 1 {
		return fmt.Errorf("max_slides must be positive, got %d", c.Limits.MaxSlides)
	}
	if c.Limits.MaxFileSizeMB < 1 {
		return fmt.Errorf("max_file_size_mb must be positive, got %d", c.Limits.MaxFileSizeMB)
	}
	if c.Session.Driver != "memory" && c.Session.Driver != "redis" {
		return fmt.Errorf("invalid session driver: %s", c.Session.Driver)
	}
	if c.Storage.Driver != "local" && c.Storage.Driver != "s3" {
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}
	if c.LLM.Concurrency < 1 {
		return fmt.Errorf("llm concurrency must be positive, got %d", c.LLM.Concurrency)
	}
	return nil
}

// Stateless reports whether the service runs without project persistence.
func (c *Config) Stateless() bool {
	return c.Database.DSN == ""
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MAX_SLIDES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxSlides = n
		}
	}
	if v := os.Getenv("MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Limits.MaxFileSizeMB = n
		}
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("SOFFICE_PATH"); v != "" {
		cfg.Render.SofficePath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Session.Driver = "redis"
		cfg.Session.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.Driver = "s3"
		cfg.Storage.S3.Endpoint = v
		cfg.Storage.S3.ForcePathStyle = true // MinIO needs path-style addressing
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Storage.S3.SecretKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
