// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrOwnerIDRequired is returned when OWNER_ID is not set.
	ErrOwnerIDRequired = errors.New("config: OWNER_ID is required")
	// ErrRegionRequired is returned when AWS backends are selected without AWS_REGION.
	ErrRegionRequired = errors.New("config: AWS_REGION is required when STORE_BACKEND=aws")
	// ErrUnknownBackend is returned when STORE_BACKEND is neither "aws" nor "memory".
	ErrUnknownBackend = errors.New("config: STORE_BACKEND must be \"aws\" or \"memory\"")
	// ErrInvalidPresignTTL is returned when PRESIGN_TTL is not positive.
	ErrInvalidPresignTTL = errors.New("config: PRESIGN_TTL must be positive")
)

// Store backends.
const (
	BackendAWS    = "aws"
	BackendMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=3000" json:"port"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Owner identity under which every metadata record is partitioned.
	OwnerID string `env:"OWNER_ID, required" json:"owner_id"`

	// Storage settings
	StoreBackend string        `env:"STORE_BACKEND, default=aws" json:"store_backend"`
	TempDir      string        `env:"TEMP_DIR, default=/tmp/mediavault" json:"temp_dir"`
	PresignTTL   time.Duration `env:"PRESIGN_TTL, default=1h" json:"presign_ttl"`

	// AWS settings
	AWSRegion          string `env:"AWS_REGION" json:"aws_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	DynamoDBEndpoint   string `env:"DYNAMODB_ENDPOINT" json:"dynamodb_endpoint,omitempty"`

	// Names looked up in SSM Parameter Store / Secrets Manager
	ParamBucketName    string        `env:"PARAM_BUCKET_NAME, default=/mediavault/s3-bucket-name" json:"param_bucket_name"`
	ParamTableName     string        `env:"PARAM_TABLE_NAME, default=/mediavault/dynamodb-table-name" json:"param_table_name"`
	SecretPartitionKey string        `env:"SECRET_PARTITION_KEY, default=mediavault/dynamodb-partition-key" json:"secret_partition_key"`
	SecretSearchAPIKey string        `env:"SECRET_SEARCH_API_KEY, default=mediavault/search-api-key" json:"secret_search_api_key"`
	ParamRefresh       time.Duration `env:"PARAM_REFRESH, default=5m" json:"param_refresh"`

	// Static overrides; when set the corresponding lookup is skipped
	S3Bucket             string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	DynamoDBTable        string `env:"DYNAMODB_TABLE" json:"dynamodb_table,omitempty"`
	DynamoDBPartitionKey string `env:"DYNAMODB_PARTITION_KEY" json:"dynamodb_partition_key,omitempty"`
	SearchAPIKey         string `env:"SEARCH_API_KEY" json:"-"` // Masked in JSON

	// External tools and services
	FFmpegPath    string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath   string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	SearchBaseURL string `env:"SEARCH_BASE_URL, default=https://content.guardianapis.com" json:"search_base_url"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// UseMemoryBackends reports whether object and metadata storage are kept in memory.
func (c *Config) UseMemoryBackends() bool {
	return strings.EqualFold(c.StoreBackend, BackendMemory)
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set or values are inconsistent.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		if strings.Contains(err.Error(), "OWNER_ID") {
			return nil, ErrOwnerIDRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.OwnerID == "" {
		return ErrOwnerIDRequired
	}
	switch strings.ToLower(c.StoreBackend) {
	case BackendAWS:
		if c.AWSRegion == "" {
			return ErrRegionRequired
		}
	case BackendMemory:
	default:
		return ErrUnknownBackend
	}
	if c.PresignTTL <= 0 {
		return ErrInvalidPresignTTL
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, OwnerID: %s, StoreBackend: %s, TempDir: %s, PresignTTL: %s, AWSRegion: %s, S3Bucket: %s, DynamoDBTable: %s, ParamRefresh: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.OwnerID,
		c.StoreBackend,
		c.TempDir,
		c.PresignTTL,
		c.AWSRegion,
		c.S3Bucket,
		c.DynamoDBTable,
		c.ParamRefresh,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
