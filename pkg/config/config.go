// Package config provides configuration structures and loading logic for the
// pipeline engine binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the global configuration shared by the CLI and the worker.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// EngineConfig holds execution policy for pipeline runs.
type EngineConfig struct {
	MaxAttempts      int    `yaml:"max_attempts"`
	RetryBaseDelayMS int    `yaml:"retry_base_delay_ms"`
	RunTimeoutMS     int    `yaml:"run_timeout_ms"`
	ScratchDir       string `yaml:"scratch_dir"`
}

// RetryBaseDelay returns the backoff unit as a duration.
func (c *EngineConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// RunTimeout returns the per-run soft deadline as a duration.
func (c *EngineConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutMS) * time.Millisecond
}

// AnalyticsConfig bounds the embedded analytical sessions. Empty fields use
// the analytics package defaults.
type AnalyticsConfig struct {
	MemoryLimit  string `yaml:"memory_limit"`
	Threads      int    `yaml:"threads"`
	EnableHTTPFS bool   `yaml:"enable_httpfs"`
}

// StorageConfig selects and configures the object store backend.
type StorageConfig struct {
	Kind  string      `yaml:"kind"` // fs or minio
	FS    FSConfig    `yaml:"fs"`
	Minio MinioConfig `yaml:"minio"`
}

// FSConfig configures the filesystem object store.
type FSConfig struct {
	Dir string `yaml:"dir"`
}

// MinioConfig configures the MinIO/S3 object store.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RedisConfig configures the queue and pub/sub client.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Queue    string `yaml:"queue"`
}

// WorkerConfig holds configuration for the queue worker.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// MetricsConfig holds configuration for the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string            `yaml:"otlp_endpoint"`
	Insecure     bool              `yaml:"insecure"`
	Environment  string            `yaml:"environment"`
	Headers      map[string]string `yaml:"headers,omitempty"`
}

// Load reads configuration from a file and applies environment variable
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			MaxAttempts:      3,
			RetryBaseDelayMS: 2000,
			RunTimeoutMS:     600000,
		},
		Storage: StorageConfig{
			Kind: "fs",
			FS:   FSConfig{Dir: "data"},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Worker: WorkerConfig{
			Concurrency: 4,
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("LOOM_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("LOOM_LOG_PRETTY"); val == "true" {
		cfg.Logging.Pretty = true
	}

	if val := os.Getenv("LOOM_MAX_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Engine.MaxAttempts = n
		}
	}
	if val := os.Getenv("LOOM_SCRATCH_DIR"); val != "" {
		cfg.Engine.ScratchDir = val
	}

	if val := os.Getenv("LOOM_STORAGE_KIND"); val != "" {
		cfg.Storage.Kind = val
	}
	if val := os.Getenv("LOOM_STORAGE_DIR"); val != "" {
		cfg.Storage.FS.Dir = val
	}
	if val := os.Getenv("LOOM_MINIO_ENDPOINT"); val != "" {
		cfg.Storage.Minio.Endpoint = val
	}
	if val := os.Getenv("LOOM_MINIO_ACCESS_KEY"); val != "" {
		cfg.Storage.Minio.AccessKey = val
	}
	if val := os.Getenv("LOOM_MINIO_SECRET_KEY"); val != "" {
		cfg.Storage.Minio.SecretKey = val
	}
	if val := os.Getenv("LOOM_MINIO_BUCKET"); val != "" {
		cfg.Storage.Minio.Bucket = val
	}
	if val := os.Getenv("LOOM_MINIO_USE_SSL"); val == "true" {
		cfg.Storage.Minio.UseSSL = true
	}

	if val := os.Getenv("LOOM_REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
	}
	if val := os.Getenv("LOOM_REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("LOOM_REDIS_DB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = n
		}
	}
	if val := os.Getenv("LOOM_QUEUE"); val != "" {
		cfg.Redis.Queue = val
	}

	if val := os.Getenv("LOOM_WORKER_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Worker.Concurrency = n
		}
	}

	if val := os.Getenv("LOOM_METRICS_ADDR"); val != "" {
		cfg.Metrics.Addr = val
	}

	if val := os.Getenv("LOOM_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("LOOM_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
}

// Validate performs validation of the entire configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine configuration: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage configuration: %w", err)
	}
	if err := c.Worker.Validate(); err != nil {
		return fmt.Errorf("worker configuration: %w", err)
	}
	return nil
}

// Validate normalizes the log level and rejects unknown values.
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = "info"
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}

// Validate fills engine defaults and rejects nonsensical values.
func (c *EngineConfig) Validate() error {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.RetryBaseDelayMS == 0 {
		c.RetryBaseDelayMS = 2000
	}
	if c.RetryBaseDelayMS < 0 {
		return fmt.Errorf("retry_base_delay_ms must be positive, got %d", c.RetryBaseDelayMS)
	}
	if c.RunTimeoutMS == 0 {
		c.RunTimeoutMS = 600000
	}
	if c.RunTimeoutMS < 0 {
		return fmt.Errorf("run_timeout_ms must be positive, got %d", c.RunTimeoutMS)
	}
	return nil
}

// Validate checks the selected backend and its required fields.
func (c *StorageConfig) Validate() error {
	kind := strings.TrimSpace(strings.ToLower(c.Kind))
	if kind == "" {
		kind = "fs"
	}
	c.Kind = kind

	switch kind {
	case "fs":
		if strings.TrimSpace(c.FS.Dir) == "" {
			c.FS.Dir = "data"
		}
		return nil
	case "minio":
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("minio storage requires an endpoint")
		}
		if c.Minio.Bucket == "" {
			return fmt.Errorf("minio storage requires a bucket")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage kind %q, supported kinds: fs, minio", c.Kind)
	}
}

// Validate fills the worker defaults.
func (c *WorkerConfig) Validate() error {
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}
