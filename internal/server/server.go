package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rickgao/ivengine/internal/feed"
	"github.com/rickgao/ivengine/internal/metrics"
	"github.com/rickgao/ivengine/internal/normal"
	"github.com/rickgao/ivengine/internal/pricing"
	"github.com/rickgao/ivengine/internal/registry"
	"github.com/rickgao/ivengine/internal/solver"
)

// Config holds HTTP server settings.
type Config struct {
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	BatchConcurrency int    // Parallel solves per batch request
	MaxBatchSize     int    // Queries accepted per batch request
	MetricsPath      string // Empty disables the metrics route
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:             8080,
		ReadTimeout:      15 * time.Second,
		WriteTimeout:     30 * time.Second,
		BatchConcurrency: 8,
		MaxBatchSize:     500,
		MetricsPath:      "/metrics",
	}
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Components are the engine parts the server exposes. Store, Feed,
// Metrics and Database are optional.
type Components struct {
	Table    *normal.Table
	Pricer   *pricing.Pricer
	Guesser  *solver.Guesser
	Store    registry.Store
	Feed     *feed.Feed
	Metrics  *metrics.Metrics
	Database Pinger
}

// Server is the engine's HTTP front end.
type Server struct {
	cfg    Config
	c      Components
	logger *slog.Logger

	router   *mux.Router
	upgrader websocket.Upgrader
	http     *http.Server
}

// New creates a Server and registers its routes.
func New(cfg Config, c Components, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = def.BatchConcurrency
	}
	if cfg.MaxBatchSize < 1 {
		cfg.MaxBatchSize = def.MaxBatchSize
	}

	s := &Server{
		cfg:    cfg,
		c:      c,
		logger: logger,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.routes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.instrument)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/probability", s.handleProbability).Methods(http.MethodGet)
	v1.HandleFunc("/price/{kind}", s.handlePrice).Methods(http.MethodPost)
	v1.HandleFunc("/iv/closer", s.handleCloserIV).Methods(http.MethodPost)
	v1.HandleFunc("/iv/{kind}", s.handleIV).Methods(http.MethodPost)
	v1.HandleFunc("/iv/{kind}/batch", s.handleIVBatch).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/datapoints", s.handleSetDataPoint).Methods(http.MethodPost)
	admin.HandleFunc("/acceptable-range", s.handleAcceptableRange).Methods(http.MethodPost)
	admin.HandleFunc("/table", s.handleTable).Methods(http.MethodGet)

	r.HandleFunc("/ws/table", s.handleTableStream).Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	if s.cfg.MetricsPath != "" && s.c.Metrics != nil {
		r.Handle(s.cfg.MetricsPath, s.c.Metrics.Handler()).Methods(http.MethodGet)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("http server listening", "addr", l.Addr().String())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured port.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Table streams end when the feed stops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.http.Shutdown(ctx)
}
