package feed

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/ivengine/internal/metrics"
	"github.com/rickgao/ivengine/internal/model"
	"github.com/rickgao/ivengine/internal/normal"
)

// chanSource is a Source backed by a test-controlled channel.
type chanSource chan model.TableChange

func (c chanSource) Subscribe() <-chan model.TableChange { return c }

func receiveWithin(t *testing.T, s *Subscription, d time.Duration) model.TableChange {
	t.Helper()
	got := make(chan model.TableChange, 1)
	go func() {
		if c, ok := s.Receive(); ok {
			got <- c
		}
	}()
	select {
	case c := <-got:
		return c
	case <-time.After(d):
		t.Fatal("timed out waiting for change")
		return model.TableChange{}
	}
}

func TestFeed_BroadcastsToAllSubscribers(t *testing.T) {
	src := make(chanSource, 4)
	f := New(DefaultConfig(), src, nil, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer f.Stop(context.Background())

	a := f.Subscribe("a")
	b := f.Subscribe("b")

	src <- model.TableChange{Bucket: 1000, New: 84134, Version: 1}

	for _, s := range []*Subscription{a, b} {
		c := receiveWithin(t, s, time.Second)
		if c.Bucket != 1000 || c.Version != 1 {
			t.Errorf("subscriber %s got %+v, want bucket 1000 version 1", s.name, c)
		}
	}

	if stats := f.Stats(); stats.Subscribers != 2 {
		t.Errorf("Stats().Subscribers = %d, want 2", stats.Subscribers)
	}
}

func TestFeed_FromTable(t *testing.T) {
	tbl, err := normal.NewTable([]model.DataPoint{{Bucket: 0, Probability: 50000}})
	if err != nil {
		t.Fatalf("NewTable error: %v", err)
	}

	f := New(DefaultConfig(), tbl, nil, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer f.Stop(context.Background())

	sub := f.Subscribe("test")
	if _, err := tbl.SetDataPoint(1000, 84134); err != nil {
		t.Fatalf("SetDataPoint error: %v", err)
	}

	c := receiveWithin(t, sub, time.Second)
	if c.Bucket != 1000 || !c.Inserted {
		t.Errorf("change = %+v, want inserted bucket 1000", c)
	}
}

func TestFeed_SlowSubscriberDropsOldest(t *testing.T) {
	src := make(chanSource)
	m := metrics.New(nil)
	f := New(Config{BufferSize: 2}, src, m, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer f.Stop(context.Background())

	sub := f.Subscribe("slow")
	for v := uint64(1); v <= 5; v++ {
		src <- model.TableChange{Version: v}
	}

	// The unbuffered source guarantees run() took every change; wait for
	// the last broadcast to land.
	deadline := time.Now().Add(time.Second)
	for f.Stats().Received < 5 || sub.Stats().Received < 5 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for broadcast")
		}
		time.Sleep(time.Millisecond)
	}

	got := sub.DrainTo(0)
	if len(got) != 2 || got[0].Version != 4 || got[1].Version != 5 {
		t.Errorf("pending = %+v, want versions 4 and 5", got)
	}
	if dropped := testutil.ToFloat64(m.FeedDropped); dropped != 3 {
		t.Errorf("FeedDropped = %v, want 3", dropped)
	}
}

func TestSubscription_Close(t *testing.T) {
	src := make(chanSource)
	f := New(DefaultConfig(), src, nil, nil)

	sub := f.Subscribe("temp")
	if f.Stats().Subscribers != 1 {
		t.Fatalf("Subscribers = %d, want 1", f.Stats().Subscribers)
	}

	sub.Close()
	if f.Stats().Subscribers != 0 {
		t.Errorf("Subscribers after Close = %d, want 0", f.Stats().Subscribers)
	}
	if _, ok := sub.Receive(); ok {
		t.Error("Receive on closed subscription returned ok")
	}
}

func TestFeed_StopClosesSubscriptions(t *testing.T) {
	src := make(chanSource)
	f := New(DefaultConfig(), src, nil, nil)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	sub := f.Subscribe("a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	if _, ok := sub.Receive(); ok {
		t.Error("Receive after Stop returned ok")
	}

	late := f.Subscribe("late")
	if _, ok := late.Receive(); ok {
		t.Error("subscription created after Stop is open")
	}
}
