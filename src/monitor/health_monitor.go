package monitor

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
	"feed-observer/src/utils"
)

// -----------------------------------------------------------------------------
// ConnectionHealthMonitor watches the streaming channel and every price stream.
// A dead channel triggers a re-login with exponential backoff; a silent stream
// of an open market is resubscribed.
// -----------------------------------------------------------------------------

type ConnectionHealthMonitor struct {
	Manager   interfaces.IConnectionManager
	Channel   interfaces.IStreamingChannel
	Streams   interfaces.IPriceStreams
	Scheduler *utils.MarketScheduler
	Logger    *logger.Logger

	Interval       time.Duration
	Silence        time.Duration
	ChannelTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration

	now func() time.Time

	mu              sync.Mutex // serializes passes
	lastResubscribe map[string]time.Time

	recoveryMu  sync.Mutex // never held across I/O
	recovering  atomic.Bool
	failures    int
	nextAttempt time.Time
	generation  uint64 // logout generation the recovery started from

	health     atomic.Pointer[[]models.MStreamHealth]
	isRunning  atomic.Bool
	cancelFunc context.CancelFunc
}

// -----------------------------------------------------------------------------

func NewConnectionHealthMonitor(
	cfg models.MMonitorConfig,
	manager interfaces.IConnectionManager,
	channel interfaces.IStreamingChannel,
	streams interfaces.IPriceStreams,
	scheduler *utils.MarketScheduler,
	log *logger.Logger,
) *ConnectionHealthMonitor {
	m := &ConnectionHealthMonitor{
		Manager:         manager,
		Channel:         channel,
		Streams:         streams,
		Scheduler:       scheduler,
		Logger:          log,
		Interval:        seconds(cfg.IntervalSeconds, 5),
		Silence:         seconds(cfg.SilenceSeconds, 60),
		ChannelTimeout:  seconds(cfg.ChannelTimeoutSeconds, 30),
		BaseDelay:       seconds(cfg.ReloginBaseDelaySeconds, 5),
		MaxDelay:        seconds(cfg.ReloginMaxDelaySeconds, 300),
		now:             time.Now,
		lastResubscribe: make(map[string]time.Time),
	}
	m.health.Store(&[]models.MStreamHealth{})
	return m
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// -----------------------------------------------------------------------------

// Start runs Check every Interval until ctx is done or Stop is called
func (m *ConnectionHealthMonitor) Start(parentCtx context.Context, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning.Load() {
		return fmt.Errorf("health monitor is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	m.cancelFunc = cancel
	m.isRunning.Store(true)

	wg.Add(1)
	go m.runLoop(ctx, wg)
	m.Logger.Info("Health monitor started (every %v, silence %v)", m.Interval, m.Silence)
	return nil
}

// -----------------------------------------------------------------------------

func (m *ConnectionHealthMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning.Load() {
		return
	}
	m.cancelFunc()
	m.isRunning.Store(false)
}

// -----------------------------------------------------------------------------

func (m *ConnectionHealthMonitor) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// Check runs one pass and returns the published health of every stream
func (m *ConnectionHealthMonitor) Check(ctx context.Context) []models.MStreamHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	generation := m.Manager.LogoutGeneration()
	loggedIn := m.Manager.IsLoggedIn()

	switch {
	case !loggedIn && !m.recovering.Load():
		// Explicit logout, nothing to repair
	case !loggedIn || m.channelDown(now):
		m.recoverSession(ctx, now, generation)
	default:
		return m.publish(m.probeAll(ctx, now, true))
	}

	return m.publish(m.probeAll(ctx, now, false))
}

// -----------------------------------------------------------------------------

func (m *ConnectionHealthMonitor) channelDown(now time.Time) bool {
	if !m.Channel.IsConnected() {
		return true
	}
	last := m.Channel.LastMessageAt()
	return !last.IsZero() && now.Sub(last) >= m.ChannelTimeout
}

// -----------------------------------------------------------------------------

// recoverSession re-logs in unless the backoff delay has not elapsed yet.
// generation is the logout generation read before the session state; a
// recovery already in progress keeps the generation it started from.
func (m *ConnectionHealthMonitor) recoverSession(ctx context.Context, now time.Time, generation uint64) {
	m.recoveryMu.Lock()
	if now.Before(m.nextAttempt) {
		m.recoveryMu.Unlock()
		return
	}
	if !m.recovering.Swap(true) {
		m.generation = generation
		m.Logger.Warning("Streaming channel is down, re-logging in")
	}
	generation = m.generation
	m.recoveryMu.Unlock()

	ok := m.Manager.Relogin(ctx, generation)

	m.recoveryMu.Lock()
	defer m.recoveryMu.Unlock()

	if ok {
		m.Logger.Info("Re-login succeeded after %d failed attempts", m.failures)
		metrics.ReloginsTotal.WithLabelValues("success").Inc()
		m.resetRecovery()
		return
	}
	if m.Manager.LogoutGeneration() != generation || !m.recovering.Load() {
		m.Logger.Info("Recovery abandoned after an explicit logout")
		m.resetRecovery()
		return
	}

	m.failures++
	delay := m.backoff(m.failures)
	m.nextAttempt = now.Add(delay)
	metrics.ReloginsTotal.WithLabelValues("failure").Inc()
	m.Logger.Warning("Re-login attempt %d failed, next attempt in %v", m.failures, delay)
}

// -----------------------------------------------------------------------------

// backoff doubles BaseDelay per failure, capped at MaxDelay
func (m *ConnectionHealthMonitor) backoff(failures int) time.Duration {
	delay := m.BaseDelay
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= m.MaxDelay {
			return m.MaxDelay
		}
	}
	if delay > m.MaxDelay {
		return m.MaxDelay
	}
	return delay
}

// -----------------------------------------------------------------------------

func (m *ConnectionHealthMonitor) resetRecovery() {
	m.recovering.Store(false)
	m.failures = 0
	m.nextAttempt = time.Time{}
}

// -----------------------------------------------------------------------------

// CancelRecovery stops pending re-login attempts. Called on an explicit logout.
func (m *ConnectionHealthMonitor) CancelRecovery() {
	m.recoveryMu.Lock()
	defer m.recoveryMu.Unlock()
	m.resetRecovery()
}

// -----------------------------------------------------------------------------

func (m *ConnectionHealthMonitor) Recovering() bool {
	return m.recovering.Load()
}

// -----------------------------------------------------------------------------

// probeAll probes every stream; with repair set, silent streams of open markets are resubscribed
func (m *ConnectionHealthMonitor) probeAll(ctx context.Context, now time.Time, repair bool) []models.MStreamHealth {
	views := m.Streams.Views()
	out := make([]models.MStreamHealth, 0, len(views))
	m.pruneResubscribes(views)

	for _, view := range views {
		h := m.Probe(view, now)
		h.MarketOpen = m.Scheduler == nil || m.Scheduler.IsOpen(h.Epic, now)

		if repair && !h.Alive && h.MarketOpen {
			h.Resubscribed = m.resubscribe(ctx, h.Epic, now)
		}
		out = append(out, h)
	}
	return out
}

// -----------------------------------------------------------------------------

// Probe reports the liveness of one stream at now. A stream without ticks is
// measured from its subscription time.
func (m *ConnectionHealthMonitor) Probe(view interfaces.IPriceView, now time.Time) models.MStreamHealth {
	h := models.MStreamHealth{Epic: view.Instrument().Epic}

	ref := view.LastUpdateAt()
	if !ref.IsZero() {
		h.LastUpdateAt = ref.UnixMilli()
	} else {
		ref = view.SubscribedAt()
	}

	silent := now.Sub(ref)
	if silent < 0 {
		silent = 0
	}
	h.SilentMs = silent.Milliseconds()
	h.Alive = silent < m.Silence
	return h
}

// -----------------------------------------------------------------------------

// pruneResubscribes forgets epics that are no longer subscribed
func (m *ConnectionHealthMonitor) pruneResubscribes(views []interfaces.IPriceView) {
	if len(m.lastResubscribe) == 0 {
		return
	}
	live := make(map[string]struct{}, len(views))
	for _, view := range views {
		live[view.Instrument().Epic] = struct{}{}
	}
	for epic := range m.lastResubscribe {
		if _, ok := live[epic]; !ok {
			delete(m.lastResubscribe, epic)
		}
	}
}

// -----------------------------------------------------------------------------

func (m *ConnectionHealthMonitor) resubscribe(ctx context.Context, epic string, now time.Time) bool {
	if last, ok := m.lastResubscribe[epic]; ok && now.Sub(last) < m.Silence {
		return false
	}
	m.lastResubscribe[epic] = now

	if err := m.Streams.Resubscribe(ctx, epic); err != nil {
		m.Logger.Warning("Resubscribe %s failed: %v", epic, err)
		return false
	}

	metrics.ResubscribesTotal.WithLabelValues(epic).Inc()
	m.Logger.Info("Resubscribed silent stream %s", epic)
	return true
}

// -----------------------------------------------------------------------------

func (m *ConnectionHealthMonitor) publish(health []models.MStreamHealth) []models.MStreamHealth {
	m.health.Store(&health)
	return health
}

// -----------------------------------------------------------------------------

// Health returns the result of the last pass
func (m *ConnectionHealthMonitor) Health() []models.MStreamHealth {
	return *m.health.Load()
}
