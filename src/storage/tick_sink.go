package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/metrics"
	"feed-observer/src/models"
)

const cleanupInterval = time.Hour

// -----------------------------------------------------------------------------
// TickSink persists accepted snapshots in batches, off the delivery path.
// -----------------------------------------------------------------------------

type TickSink struct {
	DB            interfaces.IDatabase
	BatchSize     int
	FlushInterval time.Duration
	Logger        *logger.Logger

	queue     chan models.MPriceSnapshot
	isRunning atomic.Bool
}

// -----------------------------------------------------------------------------

func NewTickSink(db interfaces.IDatabase, cfg models.MStorageConfig, log *logger.Logger) *TickSink {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	flush := time.Duration(cfg.FlushIntervalMs) * time.Millisecond
	if flush <= 0 {
		flush = time.Second
	}

	return &TickSink{
		DB:            db,
		BatchSize:     batch,
		FlushInterval: flush,
		Logger:        log,
		queue:         make(chan models.MPriceSnapshot, batch*4),
	}
}

// -----------------------------------------------------------------------------

// OnSnapshot enqueues a snapshot; it is dropped when the queue is full
func (s *TickSink) OnSnapshot(_ models.MInstrument, snapshot models.MPriceSnapshot) {
	select {
	case s.queue <- snapshot:
	default:
		metrics.DroppedSnapshotsTotal.WithLabelValues("tick_sink").Inc()
	}
}

// -----------------------------------------------------------------------------

func (s *TickSink) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if s.isRunning.Swap(true) {
		return fmt.Errorf("tick sink is already running")
	}

	wg.Add(1)
	go s.runLoop(ctx, wg)
	s.Logger.Info("Tick sink started (batch %d, every %v)", s.BatchSize, s.FlushInterval)
	return nil
}

// -----------------------------------------------------------------------------

func (s *TickSink) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer s.isRunning.Store(false)

	flushTicker := time.NewTicker(s.FlushInterval)
	defer flushTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	batch := make([]models.MPriceSnapshot, 0, s.BatchSize)

	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued
			for {
				select {
				case snap := <-s.queue:
					batch = append(batch, snap)
				default:
					s.flush(batch)
					return
				}
			}
		case snap := <-s.queue:
			batch = append(batch, snap)
			if len(batch) >= s.BatchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-flushTicker.C:
			s.flush(batch)
			batch = batch[:0]
		case <-cleanupTicker.C:
			if err := s.DB.CleanupOldData(); err != nil {
				s.Logger.Error("Cleanup failed: %v", err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func (s *TickSink) flush(batch []models.MPriceSnapshot) {
	if len(batch) == 0 {
		return
	}
	if err := s.DB.SaveSnapshotsBulk(batch); err != nil {
		s.Logger.Error("Failed to save %d snapshots: %v", len(batch), err)
		return
	}
	s.Logger.Debug("Saved %d snapshots", len(batch))
}
