package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/ivengine/internal/config"
	"github.com/rickgao/ivengine/internal/database"
	"github.com/rickgao/ivengine/internal/feed"
	"github.com/rickgao/ivengine/internal/metrics"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/normal"
	"github.com/rickgao/ivengine/internal/pricing"
	"github.com/rickgao/ivengine/internal/registry"
	"github.com/rickgao/ivengine/internal/server"
	"github.com/rickgao/ivengine/internal/solver"
	"github.com/rickgao/ivengine/internal/version"
	"github.com/rickgao/ivengine/internal/writer"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to load config:", err)
			os.Exit(1)
		}
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting ivengine",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"config", *configPath,
	)

	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Probability table
	table, err := loadTable(cfg.Normal)
	if err != nil {
		logger.Error("failed to load probability table", "error", err)
		os.Exit(1)
	}
	logger.Info("probability table loaded", "points", table.Len(), "path", cfg.Normal.TablePath)

	// Parameter registry
	var (
		store registry.Store
		db    server.Pinger
	)
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := registry.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to create schema", "error", err)
			os.Exit(1)
		}
		store, db = pg, pool
		logger.Info("database connected")
	} else {
		store = registry.NewMemoryStore()
		logger.Info("database disabled, using in-memory registry")
	}

	seeded, err := registry.SeedDefaults(ctx, store, map[string]uint64{
		registry.KeyAcceptableRangeBps: uint64(cfg.Solver.AcceptableRangeBps),
		registry.KeyMaxIterations:      uint64(cfg.Solver.MaxIterations),
	})
	if err != nil {
		logger.Error("failed to seed registry", "error", err)
		os.Exit(1)
	}

	persisted, err := store.DataPoints(ctx)
	if err != nil {
		logger.Error("failed to read persisted data points", "error", err)
		os.Exit(1)
	}
	applied, err := table.Apply(persisted)
	if err != nil {
		logger.Error("failed to apply persisted data points", "error", err)
		os.Exit(1)
	}
	logger.Info("registry ready", "seeded_keys", seeded, "applied_points", applied)

	// Pricing and solver
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.ObserveTableWrite("loaded", table.Version())

	pricer := pricing.New(table, pricing.Config{Decimals: cfg.Pricing.Decimals})

	guesser := solver.New(pricer, store,
		solver.WithLogger(logger),
		solver.WithMetrics(m),
		solver.WithConfig(model.ConvergenceConfig{
			AcceptableRangeBps: cfg.Solver.AcceptableRangeBps,
			MaxIterations:      cfg.Solver.MaxIterations,
			StepBps:            cfg.Solver.StepBps,
		}),
	)
	if err := solver.ValidateConfig(guesser.Config()); err != nil {
		logger.Error("invalid solver settings", "error", err)
		os.Exit(1)
	}
	if _, err := guesser.UpdateAcceptableRange(ctx); err != nil {
		logger.Error("failed to load acceptable range", "error", err)
		os.Exit(1)
	}
	if _, err := guesser.UpdateConvergence(ctx); err != nil {
		logger.Error("failed to load max iterations", "error", err)
		os.Exit(1)
	}

	// Table change fan-out and persistence
	changes := feed.New(feed.Config{BufferSize: cfg.Writer.BufferSize}, table, m, logger)
	if err := changes.Start(ctx); err != nil {
		logger.Error("failed to start feed", "error", err)
		os.Exit(1)
	}

	dpWriter := writer.NewDataPointWriter(
		writer.WriterConfig{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
		},
		changes.Subscribe("datapoint-writer"),
		store,
		m,
		logger,
	)
	if err := dpWriter.Start(ctx); err != nil {
		logger.Error("failed to start data point writer", "error", err)
		os.Exit(1)
	}

	// HTTP server
	srv := server.New(server.Config{
		Port:             cfg.Server.Port,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		BatchConcurrency: cfg.Server.BatchConcurrency,
		MaxBatchSize:     cfg.Server.MaxBatchSize,
		MetricsPath:      cfg.Metrics.Path,
	}, server.Components{
		Table:    table,
		Pricer:   pricer,
		Guesser:  guesser,
		Store:    store,
		Feed:     changes,
		Metrics:  m,
		Database: db,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		// Stopping the feed ends websocket streams and the writer's input.
		if err := changes.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("feed: %w", err))
		}
		if err := dpWriter.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("writer: %w", err))
		}
		return errors.Join(errs...)
	})

	logger.Info("ivengine running",
		"port", cfg.Server.Port,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("ivengine stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("ivengine stopped", "writer", dpWriter.Stats())
}

func loadTable(cfg config.NormalConfig) (*normal.Table, error) {
	if cfg.TablePath == "" {
		return normal.Default(), nil
	}
	return normal.LoadFile(cfg.TablePath)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
