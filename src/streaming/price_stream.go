package streaming

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/models"
	"feed-observer/src/utils"

	"github.com/shopspring/decimal"
)

// Bounds of a close once scaled to the instrument precision
var (
	minClose = decimal.NewFromInt(1)
	maxClose = decimal.NewFromInt(math.MaxInt64)
)

// -----------------------------------------------------------------------------
// InstrumentPriceStream folds the ticks of one instrument into a bounded history.
// Writes come from the channel delivery path; reads never lock.
// -----------------------------------------------------------------------------

type InstrumentPriceStream struct {
	instrument   models.MInstrument
	history      *utils.RingBuffer
	updates      atomic.Int64
	lastUpdateAt atomic.Int64 // unix nanos of the local receive time
	subscribedAt time.Time
	closed       atomic.Bool
	listeners    atomic.Pointer[[]interfaces.IPriceListener]
	now          func() time.Time

	mu            sync.Mutex // serializes writers
	lastClose     int64
	lastDirection models.MDirection
}

// -----------------------------------------------------------------------------

func NewInstrumentPriceStream(instrument models.MInstrument, historySize int, retention time.Duration) *InstrumentPriceStream {
	return newInstrumentPriceStream(instrument, historySize, retention, time.Now)
}

func newInstrumentPriceStream(instrument models.MInstrument, historySize int, retention time.Duration, now func() time.Time) *InstrumentPriceStream {
	s := &InstrumentPriceStream{
		instrument:   instrument,
		history:      utils.NewRingBuffer(historySize, retention),
		subscribedAt: now(),
		now:          now,
	}
	s.listeners.Store(&[]interfaces.IPriceListener{})
	return s
}

// -----------------------------------------------------------------------------

// OnUpdate appends a snapshot as delivered. It returns false once the stream is closed.
func (s *InstrumentPriceStream) OnUpdate(snapshot models.MPriceSnapshot) bool {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return false
	}
	s.appendLocked(snapshot)
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

// -----------------------------------------------------------------------------

// OnTick validates a raw tick, converts it to a snapshot and appends it
func (s *InstrumentPriceStream) OnTick(tick models.MPriceTick) error {
	if err := s.validate(tick); err != nil {
		return err
	}

	precision := s.instrument.Precision
	scaled := tick.Price.Shift(precision).Round(0)
	if scaled.LessThan(minClose) || scaled.GreaterThan(maxClose) {
		return helpers.NewDeliveryError(s.instrument.Epic, fmt.Sprintf("price %s out of range at precision %d", tick.Price.String(), precision))
	}
	fixed := scaled.IntPart()

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil
	}

	direction := tick.Direction
	if direction == "" {
		direction = s.deriveDirection(fixed)
	}

	snapshot := models.MPriceSnapshot{
		Epic:          s.instrument.Epic,
		Timestamp:     tick.Timestamp,
		Close:         fixed,
		DecimalPlaces: precision,
		Direction:     direction,
		Sequence:      s.updates.Load() + 1,
	}
	s.appendLocked(snapshot)
	s.mu.Unlock()

	s.notify(snapshot)
	return nil
}

// -----------------------------------------------------------------------------

func (s *InstrumentPriceStream) validate(tick models.MPriceTick) error {
	epic := s.instrument.Epic
	if tick.Epic != epic {
		return helpers.NewDeliveryError(epic, fmt.Sprintf("tick for %q delivered to stream %q", tick.Epic, epic))
	}
	if tick.Timestamp < 0 {
		return helpers.NewDeliveryError(epic, fmt.Sprintf("invalid timestamp %d", tick.Timestamp))
	}
	if tick.Price.Sign() <= 0 {
		return helpers.NewDeliveryError(epic, fmt.Sprintf("invalid price %s", tick.Price.String()))
	}
	switch tick.Direction {
	case "", models.DirectionBuy, models.DirectionSell:
	default:
		return helpers.NewDeliveryError(epic, fmt.Sprintf("invalid direction %q", tick.Direction))
	}
	return nil
}

// -----------------------------------------------------------------------------

// deriveDirection compares with the previous close; unchanged keeps the last direction
func (s *InstrumentPriceStream) deriveDirection(close int64) models.MDirection {
	if s.lastDirection == "" {
		return models.DirectionBuy
	}
	switch {
	case close > s.lastClose:
		return models.DirectionBuy
	case close < s.lastClose:
		return models.DirectionSell
	default:
		return s.lastDirection
	}
}

// -----------------------------------------------------------------------------

func (s *InstrumentPriceStream) appendLocked(snapshot models.MPriceSnapshot) {
	s.updates.Add(1)
	s.history.Append(snapshot)
	s.lastUpdateAt.Store(s.now().UnixNano())
	s.lastClose = snapshot.Close
	s.lastDirection = snapshot.Direction
}

// -----------------------------------------------------------------------------

func (s *InstrumentPriceStream) notify(snapshot models.MPriceSnapshot) {
	for _, l := range *s.listeners.Load() {
		l.OnSnapshot(s.instrument, snapshot)
	}
}

// -----------------------------------------------------------------------------

// Register adds a listener notified after every accepted snapshot
func (s *InstrumentPriceStream) Register(listener interfaces.IPriceListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := *s.listeners.Load()
	next := make([]interfaces.IPriceListener, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, listener)
	s.listeners.Store(&next)
}

// -----------------------------------------------------------------------------

// Close stops further updates and releases the history
func (s *InstrumentPriceStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return
	}
	s.history.Clear()
	s.listeners.Store(&[]interfaces.IPriceListener{})
}

// -----------------------------------------------------------------------------
// Read side
// -----------------------------------------------------------------------------

func (s *InstrumentPriceStream) Instrument() models.MInstrument {
	return s.instrument
}

// Latest returns the newest snapshot; ok=false means no tick was received yet
func (s *InstrumentPriceStream) Latest() (models.MPriceSnapshot, bool) {
	return s.history.Latest()
}

// History returns the bounded history, oldest first. Do not modify it.
func (s *InstrumentPriceStream) History() []models.MPriceSnapshot {
	return s.history.GetAll()
}

func (s *InstrumentPriceStream) UpdateCount() int64 {
	return s.updates.Load()
}

// LastUpdateAt is the local time of the last accepted update, zero if none
func (s *InstrumentPriceStream) LastUpdateAt() time.Time {
	nanos := s.lastUpdateAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (s *InstrumentPriceStream) SubscribedAt() time.Time {
	return s.subscribedAt
}

func (s *InstrumentPriceStream) IsClosed() bool {
	return s.closed.Load()
}
