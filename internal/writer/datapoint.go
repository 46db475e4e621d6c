package writer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/ivengine/internal/metrics"
	"github.com/rickgao/ivengine/internal/model"
)

// Sink stores data points. registry.Store implements it.
type Sink interface {
	PutDataPoints(ctx context.Context, points []model.DataPoint) error
}

// Input yields table changes. *feed.Subscription implements it.
type Input interface {
	Receive() (model.TableChange, bool)
	Close()
}

// WriterConfig holds batching settings.
type WriterConfig struct {
	BatchSize     int           // Flush when this many buckets are pending
	FlushInterval time.Duration // Flush at least this often
	FlushTimeout  time.Duration // Deadline for a single flush
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
		FlushTimeout:  10 * time.Second,
	}
}

// WriterMetrics contains writer statistics.
type WriterMetrics struct {
	Received  int64 `json:"received"`
	Persisted int64 `json:"persisted"`
	Flushes   int64 `json:"flushes"`
	Errors    int64 `json:"errors"`
}

// DataPointWriter consumes table changes and writes them to a Sink.
type DataPointWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	input Input
	sink  Sink

	// Batching: latest probability per bucket.
	pending     map[int64]int64
	pendingMu   sync.Mutex
	flushMu     sync.Mutex // one flush at a time keeps writes ordered
	flushTicker *time.Ticker
	stats       WriterMetrics

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDataPointWriter creates a new DataPointWriter.
func NewDataPointWriter(
	cfg WriterConfig,
	input Input,
	sink Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
) *DataPointWriter {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}
	return &DataPointWriter{
		cfg:     cfg,
		input:   input,
		sink:    sink,
		metrics: m,
		logger:  logger,
		pending: make(map[int64]int64),
	}
}

// Start begins consuming changes and writing to the sink.
func (w *DataPointWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	// Consumer goroutine
	w.wg.Add(1)
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("data point writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input, waits for the loops, and flushes what is pending.
func (w *DataPointWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping data point writer")

	w.input.Close()
	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("data point writer stopped")
	case <-ctx.Done():
		w.logger.Warn("data point writer stop timed out")
	}

	// Final flush
	w.flush()

	return nil
}

// Stats returns current metrics.
func (w *DataPointWriter) Stats() WriterMetrics {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return w.stats
}

// consumeLoop reads changes until the input is closed.
func (w *DataPointWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		change, ok := w.input.Receive()
		if !ok {
			return
		}
		w.handleChange(change)
	}
}

// flushLoop periodically flushes pending points.
func (w *DataPointWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

// handleChange records a change, flushing when the batch is full.
func (w *DataPointWriter) handleChange(change model.TableChange) {
	p := transform(change)

	w.pendingMu.Lock()
	w.pending[p.Bucket] = p.Probability
	w.stats.Received++
	shouldFlush := len(w.pending) >= w.cfg.BatchSize
	w.pendingMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

// transform converts a TableChange to the DataPoint it leaves behind.
func transform(change model.TableChange) model.DataPoint {
	return model.DataPoint{Bucket: change.Bucket, Probability: change.New}
}

// flush writes pending points to the sink. Points that fail to write are
// put back unless a newer value arrived meanwhile.
func (w *DataPointWriter) flush() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := make([]model.DataPoint, 0, len(w.pending))
	for bucket, prob := range w.pending {
		batch = append(batch, model.DataPoint{Bucket: bucket, Probability: prob})
	}
	w.pending = make(map[int64]int64)
	w.pendingMu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Bucket < batch[j].Bucket })

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.FlushTimeout)
	defer cancel()

	err := w.sink.PutDataPoints(ctx, batch)
	w.metrics.ObserveFlush(err)
	if err != nil {
		w.logger.Error("persist data points failed", "error", err, "count", len(batch))
		w.pendingMu.Lock()
		w.stats.Errors++
		for _, p := range batch {
			if _, newer := w.pending[p.Bucket]; !newer {
				w.pending[p.Bucket] = p.Probability
			}
		}
		w.pendingMu.Unlock()
		return
	}

	w.pendingMu.Lock()
	w.stats.Persisted += int64(len(batch))
	w.stats.Flushes++
	w.pendingMu.Unlock()

	w.logger.Debug("persisted data points",
		"count", len(batch),
		"duration", time.Since(start),
	)
}
