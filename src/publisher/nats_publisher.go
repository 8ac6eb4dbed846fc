package publisher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/metrics"
	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------
// NATSPublisher fans accepted snapshots out to NATS, core or JetStream.
// -----------------------------------------------------------------------------

type NATSPublisher struct {
	name       string
	config     models.MPublisherConfig
	logger     *logger.Logger
	serializer interfaces.ISerializer

	mu           sync.RWMutex
	nc           *nats.Conn
	js           nats.JetStreamContext
	useJetStream bool

	connected atomic.Bool
	isRunning atomic.Bool
	queue     chan models.MPriceSnapshot
}

// -----------------------------------------------------------------------------

func NewNATSPublisher(cfg models.MPublisherConfig, serializer interfaces.ISerializer, log *logger.Logger) *NATSPublisher {
	size := cfg.QueueSize
	if size <= 0 {
		size = 4096
	}
	return &NATSPublisher{
		name:       cfg.ClientID,
		config:     cfg,
		logger:     log,
		serializer: serializer,
		queue:      make(chan models.MPriceSnapshot, size),
	}
}

// -----------------------------------------------------------------------------

// SnapshotSubject returns "<prefix>.prices.<epic>" with the dots of the epic replaced
func SnapshotSubject(prefix, epic string) string {
	token := strings.ReplaceAll(epic, ".", "_")
	if prefix == "" {
		return "prices." + token
	}
	return prefix + ".prices." + token
}

// -----------------------------------------------------------------------------

// OnSnapshot enqueues a snapshot for publishing; it is dropped when the queue is full
func (np *NATSPublisher) OnSnapshot(_ models.MInstrument, snapshot models.MPriceSnapshot) {
	select {
	case np.queue <- snapshot:
	default:
		metrics.DroppedSnapshotsTotal.WithLabelValues("nats_publisher").Inc()
	}
}

// -----------------------------------------------------------------------------

// Start runs the publishing worker until ctx is done
func (np *NATSPublisher) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if np.isRunning.Swap(true) {
		return fmt.Errorf("%s : publisher is already running", np.name)
	}

	wg.Add(1)
	go np.runLoop(ctx, wg)
	return nil
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer np.isRunning.Store(false)

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-np.queue:
			np.publishSnapshot(snap)
		}
	}
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) publishSnapshot(snap models.MPriceSnapshot) {
	if !np.IsConnected() {
		metrics.DroppedSnapshotsTotal.WithLabelValues("nats_publisher").Inc()
		return
	}

	subject := SnapshotSubject(np.config.SubjectPrefix, snap.Epic)
	data, err := np.serializer.Marshal(snap)
	if err != nil {
		np.logger.Error("%s : failed to serialize snapshot for %s: %v", np.name, subject, err)
		return
	}

	if err := np.Publish(subject, data); err != nil {
		np.logger.Error("%s : failed to publish snapshot to %s: %v", np.name, subject, err)
	}
}

// -----------------------------------------------------------------------------

// Publish sends data with a unique Nats-Msg-Id so JetStream can de-duplicate retries
func (np *NATSPublisher) Publish(subject string, data []byte) error {
	if !np.IsConnected() {
		return fmt.Errorf("nats client not connected")
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())

	np.mu.RLock()
	defer np.mu.RUnlock()

	if np.useJetStream {
		if np.js == nil {
			return fmt.Errorf("jetstream is not initialized")
		}
		_, err := np.js.PublishMsg(msg)
		return err
	}
	return np.nc.PublishMsg(msg)
}

// -----------------------------------------------------------------------------

// Connect establishes the NATS connection and the JetStream context if configured
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc != nil && np.nc.IsConnected() {
		return nil
	}
	if len(np.config.Servers) == 0 {
		return fmt.Errorf("no nats servers configured")
	}

	timeout := time.Duration(np.config.ConnectTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(timeout),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(np.config.MaxReconnects),

		// Connection Event Handlers
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS connected to %s", np.name, nc.ConnectedUrl())
			np.connected.Store(true)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Warning("%s : NATS connection closed", np.name)
			np.connected.Store(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
			np.connected.Store(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS reconnected to %s", np.name, nc.ConnectedUrl())
			np.connected.Store(true)
		}),
	}

	nc, err := nats.Connect(strings.Join(np.config.Servers, ","), opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	np.nc = nc
	np.connected.Store(nc.IsConnected())
	np.logger.Info("%s : connected to NATS at %s", np.name, nc.ConnectedUrl())

	if !np.config.JetStream.Enabled {
		np.useJetStream = false
		np.logger.Info("%s : publishing with NATS core", np.name)
		return nil
	}

	np.useJetStream = true
	np.js, err = nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream context creation failed: %w", err)
	}
	if err := np.ensureStreamExists(); err != nil {
		np.logger.Warning("%s : failed to ensure stream exists: %v (continuing anyway)", np.name, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ensureStreamExists creates the JetStream stream when it is missing
func (np *NATSPublisher) ensureStreamExists() error {
	cfg := np.config.JetStream
	if cfg.StreamName == "" {
		return fmt.Errorf("stream name not configured")
	}

	if stream, err := np.js.StreamInfo(cfg.StreamName); err == nil {
		np.logger.Info("%s : JetStream stream '%s' already exists with %d subjects",
			np.name, cfg.StreamName, len(stream.Config.Subjects))
		return nil
	}

	subjects := cfg.Subjects
	if len(subjects) == 0 {
		subjects = []string{SnapshotSubject(np.config.SubjectPrefix, ">")}
	}
	maxAge := time.Duration(cfg.MaxAgeHours) * time.Hour
	if maxAge == 0 {
		maxAge = 72 * time.Hour
	}

	_, err := np.js.AddStream(&nats.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   subjects,
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		MaxAge:     maxAge,
		Discard:    nats.DiscardOld,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", cfg.StreamName, err)
	}

	np.logger.Info("%s : created JetStream stream '%s' with subjects %v", np.name, cfg.StreamName, subjects)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect drains pending messages and closes the connection
func (np *NATSPublisher) Disconnect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil {
		return nil
	}

	err := np.nc.Drain()
	np.nc = nil
	np.js = nil
	np.connected.Store(false)
	if err != nil {
		return fmt.Errorf("nats drain failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) IsConnected() bool {
	return np.connected.Load()
}
