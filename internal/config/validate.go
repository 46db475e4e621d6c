package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *EngineConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.BatchConcurrency < 1 {
		return errors.New("server.batch_concurrency must be >= 1")
	}
	if c.Server.MaxBatchSize < 1 {
		return errors.New("server.max_batch_size must be >= 1")
	}

	if c.Database.Enabled {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	if c.Solver.AcceptableRangeBps < 10 || c.Solver.AcceptableRangeBps > 10000 {
		return fmt.Errorf("solver.acceptable_range_bps must be between 10 and 10000, got %d", c.Solver.AcceptableRangeBps)
	}
	if c.Solver.MaxIterations < 1 || c.Solver.MaxIterations > 1024 {
		return fmt.Errorf("solver.max_iterations must be between 1 and 1024, got %d", c.Solver.MaxIterations)
	}
	if c.Solver.StepBps < 1 || c.Solver.StepBps > 9999 {
		return fmt.Errorf("solver.step_bps must be between 1 and 9999, got %d", c.Solver.StepBps)
	}

	if c.Pricing.Decimals < 4 || c.Pricing.Decimals > 76 {
		return fmt.Errorf("pricing.decimals must be between 4 and 76, got %d", c.Pricing.Decimals)
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.BufferSize < 1 {
		return errors.New("writer.buffer_size must be >= 1")
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
