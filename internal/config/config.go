// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrProjectIDRequired is returned when VEO_PROJECT_ID is not set.
	ErrProjectIDRequired = errors.New("config: VEO_PROJECT_ID is required")
	// ErrOutputBucketRequired is returned when OUTPUT_BUCKET is not set.
	ErrOutputBucketRequired = errors.New("config: OUTPUT_BUCKET is required")
	// ErrOutputBucketScheme is returned when OUTPUT_BUCKET is not a gs:// URI.
	ErrOutputBucketScheme = errors.New("config: OUTPUT_BUCKET must be a gs:// URI")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Veo backend settings
	VeoProjectID string `env:"VEO_PROJECT_ID, required" json:"veo_project_id"`
	VeoLocation  string `env:"VEO_LOCATION, default=us-central1" json:"veo_location"`
	VeoModelID   string `env:"VEO_MODEL_ID" json:"veo_model_id,omitempty"`
	// OutputBucket is the gs:// prefix the backend writes generated videos to.
	OutputBucket string `env:"OUTPUT_BUCKET, required" json:"output_bucket"`

	// Storage settings
	DataDir string `env:"DATA_DIR, default=results" json:"data_dir"`
	TempDir string `env:"TEMP_DIR, default=/tmp/reframe" json:"temp_dir"`

	// Media tooling settings
	FFmpegPath  string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	FFprobePath string `env:"FFPROBE_PATH" json:"ffprobe_path,omitempty"`

	// Optional S3 settings for result storage
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional Redis settings for job persistence
	RedisAddr     string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword string `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB       int    `env:"REDIS_DB, default=0" json:"redis_db"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from environment variables using go-envconfig.
// It returns an error if required variables are not set.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "VEO_PROJECT_ID") {
			return nil, ErrProjectIDRequired
		}
		if strings.Contains(err.Error(), "OUTPUT_BUCKET") {
			return nil, ErrOutputBucketRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and well-formed.
func (c *Config) Validate() error {
	if c.VeoProjectID == "" {
		return ErrProjectIDRequired
	}
	if c.OutputBucket == "" {
		return ErrOutputBucketRequired
	}
	if !strings.HasPrefix(c.OutputBucket, "gs://") {
		return fmt.Errorf("%w: got %q", ErrOutputBucketScheme, c.OutputBucket)
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
		"Config{Port: %d, VeoProjectID: %s, VeoLocation: %s, OutputBucket: %s, DataDir: %s, TempDir: %s, S3Bucket: %s, S3Region: %s, RedisAddr: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.VeoProjectID,
		c.VeoLocation,
		c.OutputBucket,
		c.DataDir,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.RedisAddr,
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
