// Package config loads service configuration from environment variables
// and an optional YAML file.
//
// Precedence (highest to lowest): environment variables, config file,
// defaults. The environment surface uses plain deployment-style names
// (PORT, MONGODB_URI, S3_BUCKET) rather than a prefixed scheme, matching
// how the service is deployed behind container orchestrators.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fileflux/fileflux/internal/bytesize"
)

// Config is the full service configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server"  yaml:"server"`
	Mongo   MongoConfig   `mapstructure:"mongo"   yaml:"mongo"`
	S3      S3Config      `mapstructure:"s3"      yaml:"s3"`
	Upload  UploadConfig  `mapstructure:"upload"  yaml:"upload"`
	Jobs    JobsConfig    `mapstructure:"jobs"    yaml:"jobs"`
	Worker  WorkerConfig  `mapstructure:"worker"  yaml:"worker"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN, or ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lte=65535" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0" yaml:"shutdown_timeout"`
}

// MongoConfig points at the metadata store.
type MongoConfig struct {
	URI string `mapstructure:"uri" validate:"required" yaml:"uri"`
}

// S3Config configures the object store adapter. Endpoint and path-style
// addressing support S3-compatible stores (MinIO, LocalStack).
type S3Config struct {
	Bucket          string            `mapstructure:"bucket" validate:"required" yaml:"bucket"`
	Region          string            `mapstructure:"region" validate:"required" yaml:"region"`
	AccessKeyID     string            `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string            `mapstructure:"secret_access_key" yaml:"-"`
	Endpoint        string            `mapstructure:"endpoint" yaml:"endpoint"`
	ForcePathStyle  bool              `mapstructure:"force_path_style" yaml:"force_path_style"`
	PartSize        bytesize.ByteSize `mapstructure:"part_size" yaml:"part_size"`
	MaxParallel     int               `mapstructure:"max_parallel_parts" yaml:"max_parallel_parts"`
}

// UploadConfig controls ingest limits.
type UploadConfig struct {
	MaxFileSize  bytesize.ByteSize `mapstructure:"max_file_size" validate:"gt=0" yaml:"max_file_size"`
	AllowedTypes []string          `mapstructure:"allowed_types" validate:"min=1" yaml:"allowed_types"`
}

// JobsConfig tunes the queue and the worker pipeline. The millisecond
// fields mirror their environment variable names; use the accessor
// methods for time.Duration values.
type JobsConfig struct {
	BatchSize        int `mapstructure:"batch_size" validate:"gt=0" yaml:"batch_size"`
	WritePauseMS     int `mapstructure:"write_pause_ms" validate:"gte=0" yaml:"write_pause_ms"`
	LockTimeoutMS    int `mapstructure:"lock_timeout_ms" validate:"gt=0" yaml:"lock_timeout_ms"`
	StaleThresholdMS int `mapstructure:"stale_threshold_ms" validate:"gt=0" yaml:"stale_threshold_ms"`
	PollIntervalMS   int `mapstructure:"poll_interval_ms" validate:"gt=0" yaml:"poll_interval_ms"`
	MaxAttempts      int `mapstructure:"max_attempts" validate:"gt=0" yaml:"max_attempts"`
}

// WritePause returns the post-flush pause.
func (c JobsConfig) WritePause() time.Duration { return time.Duration(c.WritePauseMS) * time.Millisecond }

// LockTimeout returns the claim lease duration.
func (c JobsConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// StaleThreshold returns the stale-job cutoff.
func (c JobsConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdMS) * time.Millisecond
}

// PollInterval returns the idle claim poll interval.
func (c JobsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// WorkerConfig controls the in-process worker.
type WorkerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	ID      string `mapstructure:"id" yaml:"id"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Load reads configuration from the optional file at configPath and the
// environment, applies defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the struct-level validation tags.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// Dump renders the configuration as YAML with secrets elided.
func Dump(cfg *Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// envBindings maps config keys to their environment variable names.
var envBindings = map[string]string{
	"logging.level":           "LOG_LEVEL",
	"logging.format":          "LOG_FORMAT",
	"server.port":             "PORT",
	"mongo.uri":               "MONGODB_URI",
	"s3.bucket":               "S3_BUCKET",
	"s3.region":               "AWS_REGION",
	"s3.access_key_id":        "AWS_ACCESS_KEY_ID",
	"s3.secret_access_key":    "AWS_SECRET_ACCESS_KEY",
	"s3.endpoint":             "S3_ENDPOINT",
	"s3.force_path_style":     "S3_FORCE_PATH_STYLE",
	"upload.max_file_size":    "MAX_FILE_SIZE",
	"upload.allowed_types":    "ALLOWED_FILE_TYPES",
	"jobs.batch_size":         "JOB_BATCH_SIZE",
	"jobs.write_pause_ms":     "JOB_WRITE_PAUSE_MS",
	"jobs.lock_timeout_ms":    "JOB_LOCK_TIMEOUT_MS",
	"jobs.stale_threshold_ms": "JOB_STALE_THRESHOLD_MS",
	"jobs.poll_interval_ms":   "WORKER_POLL_INTERVAL_MS",
	"jobs.max_attempts":       "MAX_JOB_ATTEMPTS",
	"worker.enabled":          "ENABLE_WORKER",
	"worker.id":               "WORKER_ID",
	"metrics.enabled":         "METRICS_ENABLED",
}

func setupViper(v *viper.Viper, configPath string) {
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	v.AutomaticEnv()

	// Booleans cannot distinguish unset from false after unmarshal, so
	// their defaults live here instead of ApplyDefaults.
	v.SetDefault("worker.enabled", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// the config accepts "5GB", "512Mi", or a raw byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.Parse(strings.TrimSpace(v))
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
