package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/rickgao/ivengine/internal/model"
)

func TestMemoryStore_Uint(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Uint(ctx, KeyAcceptableRangeBps); !errors.Is(err, ErrNotFound) {
		t.Errorf("Uint on empty store error = %v, want ErrNotFound", err)
	}

	if err := s.SetUint(ctx, KeyAcceptableRangeBps, 25); err != nil {
		t.Fatalf("SetUint error: %v", err)
	}
	got, err := s.Uint(ctx, KeyAcceptableRangeBps)
	if err != nil {
		t.Fatalf("Uint error: %v", err)
	}
	if got != 25 {
		t.Errorf("Uint = %d, want 25", got)
	}

	if err := s.SetUint(ctx, KeyAcceptableRangeBps, 50); err != nil {
		t.Fatalf("SetUint error: %v", err)
	}
	if got, _ := s.Uint(ctx, KeyAcceptableRangeBps); got != 50 {
		t.Errorf("Uint after overwrite = %d, want 50", got)
	}
}

func TestMemoryStore_DataPoints(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.PutDataPoints(ctx, []model.DataPoint{
		{Bucket: 2000, Probability: 97725},
		{Bucket: 1000, Probability: 84000},
	})
	if err != nil {
		t.Fatalf("PutDataPoints error: %v", err)
	}
	if err := s.PutDataPoints(ctx, []model.DataPoint{{Bucket: 1000, Probability: 84134}}); err != nil {
		t.Fatalf("PutDataPoints error: %v", err)
	}

	got, err := s.DataPoints(ctx)
	if err != nil {
		t.Fatalf("DataPoints error: %v", err)
	}
	want := []model.DataPoint{
		{Bucket: 1000, Probability: 84134},
		{Bucket: 2000, Probability: 97725},
	}
	if len(got) != len(want) {
		t.Fatalf("len(DataPoints) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DataPoints[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSeedDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SetUint(ctx, KeyAcceptableRangeBps, 30); err != nil {
		t.Fatalf("SetUint error: %v", err)
	}

	n, err := SeedDefaults(ctx, s, map[string]uint64{
		KeyAcceptableRangeBps: 10,
		KeyMaxIterations:      64,
	})
	if err != nil {
		t.Fatalf("SeedDefaults error: %v", err)
	}
	if n != 1 {
		t.Errorf("SeedDefaults wrote %d keys, want 1", n)
	}

	if got, _ := s.Uint(ctx, KeyAcceptableRangeBps); got != 30 {
		t.Errorf("existing key overwritten: got %d, want 30", got)
	}
	if got, _ := s.Uint(ctx, KeyMaxIterations); got != 64 {
		t.Errorf("seeded key = %d, want 64", got)
	}
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Uint(ctx context.Context, key string) (uint64, error) {
	return 0, errors.New("connection refused")
}

func TestSeedDefaults_ReadError(t *testing.T) {
	s := failingStore{NewMemoryStore()}
	_, err := SeedDefaults(context.Background(), s, map[string]uint64{KeyMaxIterations: 64})
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("SeedDefaults error = %v, want read error", err)
	}
}
