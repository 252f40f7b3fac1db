package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the orchestrator's complete runtime configuration: store DSN,
// monitor cadence, queue bounds and worker pool limits (§4.4-§4.5, §6).
// Values are seeded from environment variables and may be overridden by an
// optional YAML file passed with -config.
type Config struct {
	// Store
	DatabaseDSN string `yaml:"database_dsn"`
	TestMode    bool   `yaml:"test_mode"`
	TestDBName  string `yaml:"test_db_name"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogDir   string `yaml:"log_dir"`

	// Input monitor (§4.4)
	InputMonitorPollInterval time.Duration `yaml:"input_monitor_poll_interval"`
	InputMonitorBatchSize    int           `yaml:"input_monitor_batch_size"`
	InputMonitorWorkers      int           `yaml:"input_monitor_workers"`

	// Output monitor (§4.6)
	OutputMonitorMinPollInterval time.Duration `yaml:"output_monitor_min_poll_interval"`
	OutputMonitorMaxPollInterval time.Duration `yaml:"output_monitor_max_poll_interval"`
	OutputMonitorBatchSize       int           `yaml:"output_monitor_batch_size"`

	// Worker pool (§4.5)
	MinWorkers         int `yaml:"min_workers"`
	MaxWorkers         int `yaml:"max_workers"`
	WorkerThreadCap    int `yaml:"worker_thread_cap"`
	WorkerQueueCap     int `yaml:"worker_queue_cap"`
	ScaleUpThreshold   float64 `yaml:"scale_up_threshold"`
	ScaleDownThreshold float64 `yaml:"scale_down_threshold"`
	ScaleDownPercent   float64 `yaml:"scale_down_percent"`

	// Scheduler supervisor (§4.7)
	HealthCheckInterval  time.Duration `yaml:"health_check_interval"`
	MaxConsecutiveFailures int         `yaml:"max_consecutive_failures"`

	// HTTP API (§6)
	HTTPAddr  string `yaml:"http_addr"`
	JWTSecret string `yaml:"jwt_secret"`

	// Observability
	MetricsAddr    string `yaml:"metrics_addr"`
	OTelExporter   string `yaml:"otel_exporter"`
	OTelEndpoint   string `yaml:"otel_endpoint"`

	// Worker IPC (§4.5.1)
	NATSURL string `yaml:"nats_url"`
}

// Default returns a Config populated with the values used when no
// environment variable or override file is present.
func Default() Config {
	return Config{
		DatabaseDSN: "postgres://localhost:5432/orchestrator?sslmode=disable",
		LogLevel:    "INFO",

		InputMonitorPollInterval: time.Second,
		InputMonitorBatchSize:    100,
		InputMonitorWorkers:      4,

		OutputMonitorMinPollInterval: 100 * time.Millisecond,
		OutputMonitorMaxPollInterval: 2 * time.Second,
		OutputMonitorBatchSize:       100,

		MinWorkers:         2,
		MaxWorkers:         8,
		WorkerThreadCap:    10,
		WorkerQueueCap:     1000,
		ScaleUpThreshold:   1.5,
		ScaleDownThreshold: 1.0,
		ScaleDownPercent:   0.3,

		HealthCheckInterval:    5 * time.Second,
		MaxConsecutiveFailures: 3,

		HTTPAddr: ":8080",

		MetricsAddr:  ":9090",
		OTelExporter: "stdout",

		NATSURL: "nats://127.0.0.1:4222",
	}
}

// FromEnv builds a Config starting from Default and overriding every field
// that has a corresponding environment variable set (§6).
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("TEST_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid TEST_MODE: %w", err)
		}
		cfg.TestMode = b
	}
	if v := os.Getenv("TEST_DB_NAME"); v != "" {
		cfg.TestDBName = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("MIN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid MIN_WORKERS: %w", err)
		}
		cfg.MinWorkers = n
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid MAX_WORKERS: %w", err)
		}
		cfg.MaxWorkers = n
	}
	if v := os.Getenv("WORKER_THREAD_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WORKER_THREAD_CAP: %w", err)
		}
		cfg.WorkerThreadCap = n
	}
	if v := os.Getenv("WORKER_QUEUE_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WORKER_QUEUE_CAP: %w", err)
		}
		cfg.WorkerQueueCap = n
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("OTEL_EXPORTER"); v != "" {
		cfg.OTelExporter = v
	}
	if v := os.Getenv("OTEL_ENDPOINT"); v != "" {
		cfg.OTelEndpoint = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}

	return cfg, nil
}

// LoadOverride applies a YAML override file on top of cfg, if path is
// non-empty. Fields absent from the file keep cfg's existing value.
func LoadOverride(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	return LoadYAML(path, cfg)
}

// Validate checks the invariants the rest of the system depends on.
func (c Config) Validate() error {
	if c.MinWorkers < 1 {
		return fmt.Errorf("min_workers must be at least 1")
	}
	if c.MaxWorkers < c.MinWorkers {
		return fmt.Errorf("max_workers must be >= min_workers")
	}
	if c.WorkerThreadCap < 1 {
		return fmt.Errorf("worker_thread_cap must be at least 1")
	}
	if c.WorkerQueueCap < 1 {
		return fmt.Errorf("worker_queue_cap must be at least 1")
	}
	if c.OutputMonitorMinPollInterval <= 0 || c.OutputMonitorMaxPollInterval <= 0 {
		return fmt.Errorf("output monitor poll intervals must be positive")
	}
	if c.OutputMonitorMinPollInterval > c.OutputMonitorMaxPollInterval {
		return fmt.Errorf("output_monitor_min_poll_interval must be <= output_monitor_max_poll_interval")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn must be set")
	}
	return nil
}
