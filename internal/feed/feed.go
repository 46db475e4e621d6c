package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/ivengine/internal/metrics"
	"github.com/rickgao/ivengine/internal/model"
)

// Source provides table changes. *normal.Table implements it.
type Source interface {
	Subscribe() <-chan model.TableChange
}

// Config holds feed configuration.
type Config struct {
	BufferSize int // Pending changes per subscriber (default: 256)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 256}
}

// Stats contains runtime statistics.
type Stats struct {
	Received    int64 `json:"received"`
	Subscribers int   `json:"subscribers"`
}

// Feed broadcasts table changes to subscribers.
type Feed struct {
	cfg     Config
	src     <-chan model.TableChange
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	subs     map[uint64]*Subscription
	nextID   uint64
	received atomic.Int64
	stopped  bool

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Feed over src.
func New(cfg Config, src Source, m *metrics.Metrics, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &Feed{
		cfg:     cfg,
		src:     src.Subscribe(),
		logger:  logger,
		metrics: m,
		subs:    make(map[uint64]*Subscription),
	}
}

// Start begins broadcasting.
func (f *Feed) Start(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.wg.Add(1)
	go f.run()

	f.logger.Info("table change feed started", "buffer_size", f.cfg.BufferSize)
	return nil
}

// Stop halts broadcasting and closes every subscription.
func (f *Feed) Stop(ctx context.Context) error {
	if f.cancel != nil {
		f.cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	f.stopped = true
	for id, s := range f.subs {
		s.ring.Close()
		delete(f.subs, id)
	}
	f.mu.Unlock()
	f.metrics.SetSubscribers(0)

	f.logger.Info("table change feed stopped")
	return nil
}

// Subscribe registers a new subscriber. The returned subscription is
// already closed if the feed has stopped.
func (f *Feed) Subscribe(name string) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	s := &Subscription{
		id:   f.nextID,
		name: name,
		ring: NewRing[model.TableChange](f.cfg.BufferSize),
		feed: f,
	}
	if f.stopped {
		s.ring.Close()
		return s
	}
	f.subs[s.id] = s
	f.metrics.SetSubscribers(len(f.subs))

	f.logger.Debug("feed subscriber added", "name", name, "id", s.id)
	return s
}

// Stats returns current statistics.
func (f *Feed) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{Received: f.received.Load(), Subscribers: len(f.subs)}
}

func (f *Feed) run() {
	defer f.wg.Done()

	for {
		select {
		case <-f.ctx.Done():
			return
		case change, ok := <-f.src:
			if !ok {
				return
			}
			f.broadcast(change)
		}
	}
}

func (f *Feed) broadcast(change model.TableChange) {
	f.received.Add(1)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, s := range f.subs {
		dropped, _ := s.ring.Send(change)
		if dropped {
			f.metrics.ObserveDropped()
			f.logger.Warn("feed subscriber lagging, dropped oldest change",
				"name", s.name,
				"version", change.Version,
			)
		}
	}
}

func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[id]; ok {
		delete(f.subs, id)
		f.metrics.SetSubscribers(len(f.subs))
	}
}

// Subscription is one subscriber's queue of changes.
type Subscription struct {
	id   uint64
	name string
	ring *Ring[model.TableChange]
	feed *Feed
}

// Receive blocks for the next change. It returns false once the
// subscription is closed and drained.
func (s *Subscription) Receive() (model.TableChange, bool) {
	return s.ring.Receive()
}

// DrainTo returns up to max pending changes without blocking.
func (s *Subscription) DrainTo(max int) []model.TableChange {
	return s.ring.DrainTo(max)
}

// Stats returns the subscription's queue statistics.
func (s *Subscription) Stats() RingStats {
	return s.ring.Stats()
}

// Close unsubscribes and wakes any blocked Receive.
func (s *Subscription) Close() {
	s.feed.remove(s.id)
	s.ring.Close()
}
