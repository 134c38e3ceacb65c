package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fileflux/fileflux/internal/bytesize"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("S3_BUCKET", "test-bucket")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultMongoURI, cfg.Mongo.URI)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, DefaultMaxFileSize, cfg.Upload.MaxFileSize)
	// The cap is binary gibibytes, not decimal gigabytes.
	assert.Equal(t, bytesize.ByteSize(5<<30), cfg.Upload.MaxFileSize)
	assert.Equal(t, DefaultAllowedTypes, cfg.Upload.AllowedTypes)
	assert.Equal(t, 1000, cfg.Jobs.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.LockTimeout())
	assert.Equal(t, 10*time.Minute, cfg.Jobs.StaleThreshold())
	assert.Equal(t, time.Second, cfg.Jobs.PollInterval())
	assert.Equal(t, 50*time.Millisecond, cfg.Jobs.WritePause())
	assert.Equal(t, 3, cfg.Jobs.MaxAttempts)
	assert.True(t, cfg.Worker.Enabled)
	assert.Contains(t, cfg.Worker.ID, "worker-")
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MONGODB_URI", "mongodb://db.internal:27017/ingest")
	t.Setenv("S3_BUCKET", "uploads-prod")
	t.Setenv("MAX_FILE_SIZE", "1Gi")
	t.Setenv("ALLOWED_FILE_TYPES", "text/csv,application/json")
	t.Setenv("JOB_BATCH_SIZE", "250")
	t.Setenv("WORKER_POLL_INTERVAL_MS", "2500")
	t.Setenv("ENABLE_WORKER", "false")
	t.Setenv("WORKER_ID", "worker-blue-1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mongodb://db.internal:27017/ingest", cfg.Mongo.URI)
	assert.Equal(t, "uploads-prod", cfg.S3.Bucket)
	assert.Equal(t, bytesize.GiB, cfg.Upload.MaxFileSize)
	assert.Equal(t, []string{"text/csv", "application/json"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, 250, cfg.Jobs.BatchSize)
	assert.Equal(t, 2500*time.Millisecond, cfg.Jobs.PollInterval())
	assert.False(t, cfg.Worker.Enabled)
	assert.Equal(t, "worker-blue-1", cfg.Worker.ID)
	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level is normalized to uppercase")
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
upload:
  max_file_size: 100MB
jobs:
  batch_size: 10
  write_pause_ms: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("S3_BUCKET", "test-bucket")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100*bytesize.MB, cfg.Upload.MaxFileSize)
	assert.Equal(t, 10, cfg.Jobs.BatchSize)
	assert.Equal(t, 5*time.Millisecond, cfg.Jobs.WritePause())
	// Unset fields still pick up defaults.
	assert.Equal(t, DefaultMongoURI, cfg.Mongo.URI)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	t.Setenv("S3_BUCKET", "test-bucket")
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := Load("")
	assert.Error(t, err)
}

func TestDumpElidesSecret(t *testing.T) {
	t.Setenv("S3_BUCKET", "test-bucket")

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.S3.SecretAccessKey = "super-secret"

	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.NotContains(t, out, "super-secret")
}
