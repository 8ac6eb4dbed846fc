package streaming

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/metrics"
	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------
// PriceStreams owns one InstrumentPriceStream per subscribed epic and routes
// channel ticks to them.
// -----------------------------------------------------------------------------

type PriceStreams struct {
	Streams      map[string]*InstrumentPriceStream // by epic
	HistorySize  int
	Retention    time.Duration
	Channel      interfaces.IStreamingChannel
	ErrorHandler *helpers.ErrorHandler
	Logger       *logger.Logger
	listeners    []interfaces.IPriceListener
	mu           sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewPriceStreams(channel interfaces.IStreamingChannel, historySize int, retention time.Duration, l *logger.Logger) *PriceStreams {
	ps := &PriceStreams{
		Streams:      make(map[string]*InstrumentPriceStream),
		HistorySize:  historySize,
		Retention:    retention,
		Channel:      channel,
		ErrorHandler: helpers.NewErrorHandler(l),
		Logger:       l,
	}
	if channel != nil {
		channel.SetTickHandler(ps.Dispatch)
	}
	return ps
}

// -----------------------------------------------------------------------------

// Subscribe creates the stream of an instrument and subscribes it on the channel.
// Subscribing an epic twice returns the existing stream.
func (ps *PriceStreams) Subscribe(ctx context.Context, inst models.MInstrument) (*InstrumentPriceStream, error) {
	ps.mu.Lock()
	if existing, ok := ps.Streams[inst.Epic]; ok {
		ps.mu.Unlock()
		return existing, nil
	}

	stream := NewInstrumentPriceStream(inst, ps.HistorySize, ps.Retention)
	for _, l := range ps.listeners {
		stream.Register(l)
	}
	ps.Streams[inst.Epic] = stream
	metrics.SubscribedStreams.Set(float64(len(ps.Streams)))
	ps.mu.Unlock()

	ps.Logger.Info("Subscribed %s (%s)", inst.Epic, inst.Name)

	if ps.Channel == nil {
		return stream, nil
	}
	if err := ps.Channel.Subscribe(ctx, inst.Epic); err != nil {
		return stream, fmt.Errorf("subscribe %s: %w", inst.Epic, err)
	}
	return stream, nil
}

// -----------------------------------------------------------------------------

// Unsubscribe closes the stream of epic. Later ticks for it are ignored.
func (ps *PriceStreams) Unsubscribe(ctx context.Context, epic string) error {
	ps.mu.Lock()
	stream, ok := ps.Streams[epic]
	if ok {
		delete(ps.Streams, epic)
		metrics.SubscribedStreams.Set(float64(len(ps.Streams)))
	}
	ps.mu.Unlock()

	if !ok {
		return nil
	}
	stream.Close()
	ps.Logger.Info("Unsubscribed %s", epic)

	if ps.Channel == nil {
		return nil
	}
	return ps.Channel.Unsubscribe(ctx, epic)
}

// -----------------------------------------------------------------------------

// Resubscribe asks the channel to re-send the subscription of epic
func (ps *PriceStreams) Resubscribe(ctx context.Context, epic string) error {
	if ps.Stream(epic) == nil {
		return fmt.Errorf("resubscribe %s: not subscribed", epic)
	}
	if ps.Channel == nil {
		return nil
	}
	return ps.Channel.Resubscribe(ctx, epic)
}

// -----------------------------------------------------------------------------

// Dispatch delivers a tick to its stream. Ticks for unknown epics are ignored.
// Malformed ticks are dropped, reported and returned; the stream keeps running.
func (ps *PriceStreams) Dispatch(tick models.MPriceTick) error {
	stream := ps.Stream(tick.Epic)
	if stream == nil {
		return nil
	}

	if err := stream.OnTick(tick); err != nil {
		metrics.DeliveryErrorsTotal.WithLabelValues(tick.Epic).Inc()
		ps.ErrorHandler.Handle(err, "PriceStreams.Dispatch")
		return err
	}

	metrics.TicksTotal.WithLabelValues(tick.Epic).Inc()
	return nil
}

// -----------------------------------------------------------------------------

// Register adds a listener to every current and future stream
func (ps *PriceStreams) Register(listener interfaces.IPriceListener) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.listeners = append(ps.listeners, listener)
	for _, stream := range ps.Streams {
		stream.Register(listener)
	}
}

// -----------------------------------------------------------------------------

func (ps *PriceStreams) Stream(epic string) *InstrumentPriceStream {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.Streams[epic]
}

// -----------------------------------------------------------------------------

// All returns the streams ordered by instrument name, then epic
func (ps *PriceStreams) All() []*InstrumentPriceStream {
	ps.mu.RLock()
	out := make([]*InstrumentPriceStream, 0, len(ps.Streams))
	for _, stream := range ps.Streams {
		out = append(out, stream)
	}
	ps.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Instrument(), out[j].Instrument()
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Epic < b.Epic
	})
	return out
}

// -----------------------------------------------------------------------------

// Views returns All as read-only views
func (ps *PriceStreams) Views() []interfaces.IPriceView {
	streams := ps.All()
	views := make([]interfaces.IPriceView, len(streams))
	for i, s := range streams {
		views[i] = s
	}
	return views
}

// -----------------------------------------------------------------------------

// View returns the read side of epic, nil when not subscribed
func (ps *PriceStreams) View(epic string) interfaces.IPriceView {
	stream := ps.Stream(epic)
	if stream == nil {
		return nil
	}
	return stream
}

// -----------------------------------------------------------------------------

// Close unsubscribes every stream
func (ps *PriceStreams) Close(ctx context.Context) {
	for _, stream := range ps.All() {
		if err := ps.Unsubscribe(ctx, stream.Instrument().Epic); err != nil {
			ps.Logger.Warning("Unsubscribe %s failed: %v", stream.Instrument().Epic, err)
		}
	}
}
