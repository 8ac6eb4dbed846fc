package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"feed-observer/src/logger"
	"feed-observer/src/models"
)

func TestTickSinkFlushesOnShutdown(t *testing.T) {
	db := newTestDB(t)
	sink := NewTickSink(db, models.MStorageConfig{BatchSize: 4, FlushIntervalMs: 60000}, logger.NewNopLogger())

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	if err := sink.Start(ctx, &wg); err != nil {
		t.Fatal(err)
	}

	inst := models.MInstrument{Epic: "E"}
	for _, s := range snapshots("E", 1, 10) {
		sink.OnSnapshot(inst, s)
	}

	cancel()
	wg.Wait()

	stored, err := db.LoadRecent("E", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 10 {
		t.Fatalf("expected 10 stored ticks, got %d", len(stored))
	}
}

func TestTickSinkFlushesOnInterval(t *testing.T) {
	db := newTestDB(t)
	sink := NewTickSink(db, models.MStorageConfig{BatchSize: 100, FlushIntervalMs: 10}, logger.NewNopLogger())

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		wg.Wait()
	}()
	sink.Start(ctx, &wg)

	sink.OnSnapshot(models.MInstrument{Epic: "E"}, snapshots("E", 1, 1)[0])

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if stored, _ := db.LoadRecent("E", 10); len(stored) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("snapshot not flushed by the interval")
}

func TestTickSinkDropsWhenFull(t *testing.T) {
	sink := NewTickSink(nil, models.MStorageConfig{BatchSize: 1}, logger.NewNopLogger())
	for i := 0; i < 10; i++ {
		sink.OnSnapshot(models.MInstrument{Epic: "E"}, models.MPriceSnapshot{Epic: "E", Sequence: int64(i)})
	}
	if len(sink.queue) != cap(sink.queue) {
		t.Fatalf("queue should be full, got %d/%d", len(sink.queue), cap(sink.queue))
	}
}
