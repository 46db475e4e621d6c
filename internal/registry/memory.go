package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/rickgao/ivengine/internal/model"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	params map[string]uint64
	points map[int64]int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		params: make(map[string]uint64),
		points: make(map[int64]int64),
	}
}

func (m *MemoryStore) Uint(ctx context.Context, key string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.params[key]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) SetUint(ctx context.Context, key string, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.params[key] = value
	return nil
}

func (m *MemoryStore) DataPoints(ctx context.Context) ([]model.DataPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	points := make([]model.DataPoint, 0, len(m.points))
	for bucket, prob := range m.points {
		points = append(points, model.DataPoint{Bucket: bucket, Probability: prob})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket < points[j].Bucket })
	return points, nil
}

func (m *MemoryStore) PutDataPoints(ctx context.Context, points []model.DataPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range points {
		m.points[p.Bucket] = p.Probability
	}
	return nil
}
