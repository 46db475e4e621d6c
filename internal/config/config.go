package config

import "time"

// EngineConfig is the root configuration for an engine instance.
type EngineConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Solver   SolverConfig   `yaml:"solver"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Normal   NormalConfig   `yaml:"normal"`
	Writer   WriterConfig   `yaml:"writer"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this engine.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	BatchConcurrency int           `yaml:"batch_concurrency"` // Parallel solves per batch request
	MaxBatchSize     int           `yaml:"max_batch_size"`    // Queries accepted per batch request
}

// DatabaseConfig holds the optional PostgreSQL registry connection.
// When disabled, parameters and table overrides live in memory.
type DatabaseConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Name            string `yaml:"name"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"ssl_mode"`
	ApplicationName string `yaml:"application_name"`
	MaxConns        int    `yaml:"max_conns"`
	MinConns        int    `yaml:"min_conns"`
}

// SolverConfig holds implied volatility search settings. These seed the
// parameter registry; values already in the registry win.
type SolverConfig struct {
	AcceptableRangeBps uint32 `yaml:"acceptable_range_bps"`
	MaxIterations      uint32 `yaml:"max_iterations"`
	StepBps            uint32 `yaml:"step_bps"`
}

// PricingConfig holds Black-Scholes settings.
type PricingConfig struct {
	Decimals uint8 `yaml:"decimals"` // Precision of N(d)
}

// NormalConfig holds probability table settings.
type NormalConfig struct {
	TablePath string `yaml:"table_path"` // Optional CSV replacing the built-in table
}

// WriterConfig holds data point persistence settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
