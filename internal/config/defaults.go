package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID         = "ivengine"
	DefaultServerPort         = 8080
	DefaultReadTimeout        = 10 * time.Second
	DefaultWriteTimeout       = 30 * time.Second
	DefaultShutdownTimeout    = 15 * time.Second
	DefaultBatchConcurrency   = 8
	DefaultMaxBatchSize       = 500
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultApplicationName    = "ivengine"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultAcceptableRangeBps = 10
	DefaultMaxIterations      = 64
	DefaultStepBps            = 1000
	DefaultPricingDecimals    = 24
	DefaultWriterBatchSize    = 100
	DefaultFlushInterval      = 1 * time.Second
	DefaultWriterBufferSize   = 1024
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *EngineConfig) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.BatchConcurrency == 0 {
		c.Server.BatchConcurrency = DefaultBatchConcurrency
	}
	if c.Server.MaxBatchSize == 0 {
		c.Server.MaxBatchSize = DefaultMaxBatchSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Solver defaults
	if c.Solver.AcceptableRangeBps == 0 {
		c.Solver.AcceptableRangeBps = DefaultAcceptableRangeBps
	}
	if c.Solver.MaxIterations == 0 {
		c.Solver.MaxIterations = DefaultMaxIterations
	}
	if c.Solver.StepBps == 0 {
		c.Solver.StepBps = DefaultStepBps
	}

	if c.Pricing.Decimals == 0 {
		c.Pricing.Decimals = DefaultPricingDecimals
	}

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultWriterBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultWriterBufferSize
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.ApplicationName == "" {
		db.ApplicationName = DefaultApplicationName
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
