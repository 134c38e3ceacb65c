package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fileflux/fileflux/internal/bytesize"
)

// Defaults for every tunable. Kept as named constants so tests and docs
// reference one source of truth.
const (
	DefaultPort            = 3000
	DefaultShutdownTimeout = 10 * time.Second

	DefaultMongoURI = "mongodb://localhost:27017/fileflux"

	DefaultRegion           = "us-east-1"
	DefaultPartSize         = 5 * bytesize.MiB
	DefaultMaxParallelParts = 4

	DefaultMaxFileSize = 5 * bytesize.GiB

	DefaultBatchSize        = 1000
	DefaultWritePauseMS     = 50
	DefaultLockTimeoutMS    = 300_000
	DefaultStaleThresholdMS = 600_000
	DefaultPollIntervalMS   = 1000
	DefaultMaxAttempts      = 3
)

// DefaultAllowedTypes is the default upload MIME allow-list.
var DefaultAllowedTypes = []string{"text/plain", "application/json", "text/csv"}

// ApplyDefaults fills unset fields with their defaults. Explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMongoDefaults(&cfg.Mongo)
	applyS3Defaults(&cfg.S3)
	applyUploadDefaults(&cfg.Upload)
	applyJobsDefaults(&cfg.Jobs)
	applyWorkerDefaults(&cfg.Worker)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func applyMongoDefaults(cfg *MongoConfig) {
	if cfg.URI == "" {
		cfg.URI = DefaultMongoURI
	}
}

func applyS3Defaults(cfg *S3Config) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.PartSize == 0 {
		cfg.PartSize = DefaultPartSize
	}
	if cfg.MaxParallel == 0 {
		cfg.MaxParallel = DefaultMaxParallelParts
	}
}

func applyUploadDefaults(cfg *UploadConfig) {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = append([]string(nil), DefaultAllowedTypes...)
	}
	for i := range cfg.AllowedTypes {
		cfg.AllowedTypes[i] = strings.TrimSpace(cfg.AllowedTypes[i])
	}
}

func applyJobsDefaults(cfg *JobsConfig) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.WritePauseMS == 0 {
		cfg.WritePauseMS = DefaultWritePauseMS
	}
	if cfg.LockTimeoutMS == 0 {
		cfg.LockTimeoutMS = DefaultLockTimeoutMS
	}
	if cfg.StaleThresholdMS == 0 {
		cfg.StaleThresholdMS = DefaultStaleThresholdMS
	}
	if cfg.PollIntervalMS == 0 {
		cfg.PollIntervalMS = DefaultPollIntervalMS
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
}

func applyWorkerDefaults(cfg *WorkerConfig) {
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("worker-%d", os.Getpid())
	}
}
