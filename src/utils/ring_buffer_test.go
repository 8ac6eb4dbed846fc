package utils

import (
	"sync"
	"testing"
	"time"

	"feed-observer/src/models"
)

func snap(ts int64, seq int64) models.MPriceSnapshot {
	return models.MPriceSnapshot{Epic: "E", Timestamp: ts, Close: 100 + seq, DecimalPlaces: 2, Direction: models.DirectionBuy, Sequence: seq}
}

func TestRingBufferEmpty(t *testing.T) {
	rb := NewRingBuffer(4, 0)
	if _, ok := rb.Latest(); ok {
		t.Fatalf("expected no data")
	}
	if rb.Size() != 0 || len(rb.GetAll()) != 0 {
		t.Fatalf("expected empty buffer")
	}
}

func TestRingBufferCountBound(t *testing.T) {
	rb := NewRingBuffer(4, 0)
	for i := int64(1); i <= 25; i++ {
		rb.Append(snap(i*1000, i))
		if rb.Size() > 4 {
			t.Fatalf("size %d exceeds capacity after %d appends", rb.Size(), i)
		}
	}

	all := rb.GetAll()
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	for i, s := range all {
		if s.Sequence != int64(22+i) {
			t.Fatalf("entry %d has sequence %d, want %d", i, s.Sequence, 22+i)
		}
	}
	latest, ok := rb.Latest()
	if !ok || latest.Sequence != 25 {
		t.Fatalf("unexpected latest %+v", latest)
	}
	if !rb.IsFull() {
		t.Fatalf("expected full buffer")
	}
}

func TestRingBufferTimeHorizon(t *testing.T) {
	rb := NewRingBuffer(100, 10*time.Second)
	for i := int64(0); i <= 30; i++ {
		rb.Append(snap(i*1000, i))
	}

	all := rb.GetAll()
	// newest is 30s, cutoff 20s, entries 20..30 kept
	if len(all) != 11 {
		t.Fatalf("expected 11 entries, got %d", len(all))
	}
	if all[0].Timestamp != 20000 {
		t.Fatalf("oldest entry should be at 20000, got %d", all[0].Timestamp)
	}
}

func TestRingBufferHorizonKeepsNewest(t *testing.T) {
	rb := NewRingBuffer(10, time.Second)
	rb.Append(snap(0, 1))
	rb.Append(snap(60000, 2))
	all := rb.GetAll()
	if len(all) != 1 || all[0].Sequence != 2 {
		t.Fatalf("expected only the newest entry, got %+v", all)
	}
}

func TestRingBufferGetLatest(t *testing.T) {
	rb := NewRingBuffer(8, 0)
	for i := int64(1); i <= 5; i++ {
		rb.Append(snap(i, i))
	}
	got := rb.GetLatest(2)
	if len(got) != 2 || got[0].Sequence != 4 || got[1].Sequence != 5 {
		t.Fatalf("unexpected latest 2: %+v", got)
	}
	if len(rb.GetLatest(50)) != 5 {
		t.Fatalf("GetLatest should cap at size")
	}
	if len(rb.GetLatest(0)) != 0 {
		t.Fatalf("GetLatest(0) should be empty")
	}
}

func TestRingBufferViewIsStableAcrossAppends(t *testing.T) {
	rb := NewRingBuffer(3, 0)
	for i := int64(1); i <= 3; i++ {
		rb.Append(snap(i, i))
	}
	view := rb.GetAll()
	for i := int64(4); i <= 20; i++ {
		rb.Append(snap(i, i))
	}
	for i, s := range view {
		if s.Sequence != int64(i+1) {
			t.Fatalf("published view was overwritten: %+v", view)
		}
	}
}

func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer(3, 0)
	rb.Append(snap(1, 1))
	rb.Clear()
	if rb.Size() != 0 {
		t.Fatalf("expected empty after clear")
	}
	rb.Append(snap(2, 2))
	if latest, _ := rb.Latest(); latest.Sequence != 2 {
		t.Fatalf("unexpected latest after clear %+v", latest)
	}
}

func TestRingBufferConcurrentReadersSeeOrderedViews(t *testing.T) {
	rb := NewRingBuffer(16, 0)
	const total = 5000

	var wg sync.WaitGroup
	done := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				view := rb.GetAll()
				if len(view) > 16 {
					t.Errorf("view of %d entries exceeds bound", len(view))
					return
				}
				for i := 1; i < len(view); i++ {
					if view[i].Sequence != view[i-1].Sequence+1 || view[i].Timestamp < view[i-1].Timestamp {
						t.Errorf("torn or unordered view: %+v", view)
						return
					}
					if view[i].Close != 100+view[i].Sequence {
						t.Errorf("partially written entry: %+v", view[i])
						return
					}
				}
			}
		}()
	}

	for i := int64(1); i <= total; i++ {
		rb.Append(snap(i, i))
	}
	close(done)
	wg.Wait()

	latest, _ := rb.Latest()
	if latest.Sequence != total {
		t.Fatalf("expected latest %d, got %d", total, latest.Sequence)
	}
}
