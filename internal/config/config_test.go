package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VEO_PROJECT_ID", "test-project")
	t.Setenv("OUTPUT_BUCKET", "gs://test-bucket/outputs")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "test-project", cfg.VeoProjectID)
	assert.Equal(t, "us-central1", cfg.VeoLocation)
	assert.Equal(t, "gs://test-bucket/outputs", cfg.OutputBucket)
	assert.Equal(t, "results", cfg.DataDir)
	assert.Equal(t, "/tmp/reframe", cfg.TempDir)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadMissingProjectID(t *testing.T) {
	t.Setenv("VEO_PROJECT_ID", "")
	t.Setenv("OUTPUT_BUCKET", "gs://test-bucket/outputs")

	_, err := Load()
	assert.ErrorIs(t, err, ErrProjectIDRequired)
}

func TestLoadMissingOutputBucket(t *testing.T) {
	t.Setenv("VEO_PROJECT_ID", "test-project")
	t.Setenv("OUTPUT_BUCKET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrOutputBucketRequired)
}

func TestLoadRejectsNonGCSBucket(t *testing.T) {
	t.Setenv("VEO_PROJECT_ID", "test-project")
	t.Setenv("OUTPUT_BUCKET", "s3://wrong-scheme/outputs")

	_, err := Load()
	assert.ErrorIs(t, err, ErrOutputBucketScheme)
}

func TestS3Enabled(t *testing.T) {
	cfg := &Config{S3Bucket: "bucket"}
	assert.False(t, cfg.S3Enabled(), "region is also required")

	cfg.S3Region = "eu-west-1"
	assert.True(t, cfg.S3Enabled())
}

func TestRedisEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.RedisEnabled())

	cfg.RedisAddr = "localhost:6379"
	assert.True(t, cfg.RedisEnabled())
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := &Config{
		VeoProjectID:       "proj",
		AWSAccessKeyID:     "AKIA-SECRET",
		AWSSecretAccessKey: "very-secret",
		RedisPassword:      "hunter2",
	}

	s := cfg.String()
	assert.Contains(t, s, "proj")
	assert.NotContains(t, s, "AKIA-SECRET")
	assert.NotContains(t, s, "very-secret")
	assert.NotContains(t, s, "hunter2")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("unknown"))
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogFormat: "json", LogLevel: "debug"}
	assert.NotNil(t, cfg.NewLogger())

	cfg = &Config{LogFormat: "text", LogLevel: "info"}
	assert.NotNil(t, cfg.NewLogger())
}
