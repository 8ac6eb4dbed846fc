package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
)

const (
	// Time allowed to write a frame to the broker
	writeWait = 5 * time.Second

	handshakeTimeout = 10 * time.Second
)

// Frames sent to the broker
type streamRequest struct {
	Op        string   `json:"op"`
	AccountID string   `json:"account_id,omitempty"`
	CST       string   `json:"cst,omitempty"`
	Token     string   `json:"token,omitempty"`
	Epics     []string `json:"epics,omitempty"`
}

// Frames received from the broker
type streamMessage struct {
	Type      string          `json:"type"`
	Epic      string          `json:"epic"`
	Timestamp int64           `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Direction string          `json:"direction"`
	Message   string          `json:"message"`
}

// -----------------------------------------------------------------------------
// StreamingChannel implements IStreamingChannel over a websocket with a JSON protocol.
// -----------------------------------------------------------------------------

type StreamingChannel struct {
	Endpoint          string // overrides the endpoint returned by login
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Serializer        interfaces.ISerializer
	ErrorHandler      *helpers.ErrorHandler
	Logger            *logger.Logger

	mu            sync.Mutex // guards conn, subscriptions and every write
	conn          *websocket.Conn
	details       models.MLoginDetails
	subscriptions map[string]struct{}
	done          chan struct{}
	wg            sync.WaitGroup

	connected     atomic.Bool
	lastMessageAt atomic.Int64
	handler       atomic.Pointer[interfaces.TickHandler]
}

// -----------------------------------------------------------------------------

func NewStreamingChannel(cfg models.MBrokerConfig, serializer interfaces.ISerializer, log *logger.Logger) *StreamingChannel {
	return &StreamingChannel{
		Endpoint:          cfg.StreamingURL,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    time.Duration(cfg.ReconnectDelaySeconds) * time.Second,
		Serializer:        serializer,
		ErrorHandler:      helpers.NewErrorHandler(log),
		Logger:            log,
		subscriptions:     make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------

// Connect dials, authenticates and replays the subscription set
func (c *StreamingChannel) Connect(ctx context.Context, details models.MLoginDetails) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected.Load() {
		return nil
	}

	c.details = details
	conn, err := c.openLocked(ctx)
	if err != nil {
		return err
	}

	c.conn = conn
	c.done = make(chan struct{})
	c.connected.Store(true)
	c.touch()

	c.wg.Add(1)
	go c.readLoop(conn, c.done)

	c.Logger.Info("Streaming channel connected (%d subscriptions)", len(c.subscriptions))
	return nil
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return c.details.StreamingEndpoint
}

// -----------------------------------------------------------------------------

// openLocked dials the endpoint, sends the auth frame and replays subscriptions
func (c *StreamingChannel) openLocked(ctx context.Context) (*websocket.Conn, error) {
	endpoint := c.endpoint()
	if endpoint == "" {
		return nil, helpers.NewNetworkError("no streaming endpoint", nil)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, helpers.NewNetworkError(fmt.Sprintf("failed to connect to %s", endpoint), err)
	}

	auth := streamRequest{Op: "auth", AccountID: c.details.AccountID, CST: c.details.CST, Token: c.details.SecurityToken}
	if err := c.write(conn, auth); err != nil {
		conn.Close()
		return nil, err
	}

	if epics := c.epicsLocked(); len(epics) > 0 {
		if err := c.write(conn, streamRequest{Op: "subscribe", Epics: epics}); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the connection and stops the read loop. Subscriptions are kept.
func (c *StreamingChannel) Disconnect() error {
	c.mu.Lock()
	if c.done == nil {
		c.mu.Unlock()
		return nil
	}

	close(c.done)
	c.done = nil
	c.connected.Store(false)

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.Logger.Info("Streaming channel disconnected")

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to close streaming connection: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) IsConnected() bool {
	return c.connected.Load()
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) LastMessageAt() time.Time {
	nanos := c.lastMessageAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) SetTickHandler(handler interfaces.TickHandler) {
	c.handler.Store(&handler)
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) Subscribe(ctx context.Context, epic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subscriptions[epic]; ok {
		return nil
	}
	c.subscriptions[epic] = struct{}{}

	if c.conn == nil {
		return nil
	}
	return c.write(c.conn, streamRequest{Op: "subscribe", Epics: []string{epic}})
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) Unsubscribe(ctx context.Context, epic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subscriptions[epic]; !ok {
		return nil
	}
	delete(c.subscriptions, epic)

	if c.conn == nil {
		return nil
	}
	return c.write(c.conn, streamRequest{Op: "unsubscribe", Epics: []string{epic}})
}

// -----------------------------------------------------------------------------

// Resubscribe re-sends the subscription of epic on the wire
func (c *StreamingChannel) Resubscribe(ctx context.Context, epic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subscriptions[epic]; !ok {
		return fmt.Errorf("resubscribe %s: not subscribed", epic)
	}
	if c.conn == nil {
		return nil
	}

	if err := c.write(c.conn, streamRequest{Op: "unsubscribe", Epics: []string{epic}}); err != nil {
		return err
	}
	return c.write(c.conn, streamRequest{Op: "subscribe", Epics: []string{epic}})
}

// -----------------------------------------------------------------------------

// Subscriptions returns the subscribed epics, sorted
func (c *StreamingChannel) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epicsLocked()
}

func (c *StreamingChannel) epicsLocked() []string {
	epics := make([]string, 0, len(c.subscriptions))
	for epic := range c.subscriptions {
		epics = append(epics, epic)
	}
	sort.Strings(epics)
	return epics
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) write(conn *websocket.Conn, req streamRequest) error {
	data, err := c.Serializer.Marshal(req)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return helpers.NewNetworkError("failed to send "+req.Op, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) touch() {
	c.lastMessageAt.Store(time.Now().UnixNano())
}

// -----------------------------------------------------------------------------

// readLoop delivers frames until done is closed or reconnecting gives up
func (c *StreamingChannel) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return
			default:
			}

			c.Logger.Warning("Streaming read error: %v", err)
			next, ok := c.reconnect(done)
			if !ok {
				return
			}
			conn = next
			continue
		}

		c.touch()
		c.handleMessage(data)
	}
}

// -----------------------------------------------------------------------------

// reconnect retries the connection up to ReconnectAttempts times
func (c *StreamingChannel) reconnect(done chan struct{}) (*websocket.Conn, bool) {
	for attempt := 1; attempt <= c.ReconnectAttempts; attempt++ {
		c.Logger.Info("Attempting to reconnect (attempt %d/%d)", attempt, c.ReconnectAttempts)

		timer := time.NewTimer(c.ReconnectDelay * time.Duration(attempt))
		select {
		case <-done:
			timer.Stop()
			return nil, false
		case <-timer.C:
		}

		c.mu.Lock()
		select {
		case <-done:
			c.mu.Unlock()
			return nil, false
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := c.openLocked(ctx)
		cancel()
		if err != nil {
			c.mu.Unlock()
			c.Logger.Warning("Reconnect failed: %v", err)
			continue
		}

		if c.conn != nil {
			c.conn.Close()
		}
		c.conn = conn
		c.mu.Unlock()

		c.touch()
		c.Logger.Info("Streaming channel reconnected")
		return conn, true
	}

	c.mu.Lock()
	select {
	case <-done:
	default:
		c.connected.Store(false)
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
	}
	c.mu.Unlock()

	c.Logger.Error("Streaming channel lost after %d reconnect attempts", c.ReconnectAttempts)
	return nil, false
}

// -----------------------------------------------------------------------------

func (c *StreamingChannel) handleMessage(data []byte) {
	var msg streamMessage
	if err := c.Serializer.Unmarshal(data, &msg); err != nil {
		c.ErrorHandler.Handle(err, "StreamingChannel.decode")
		return
	}

	switch msg.Type {
	case "price":
		h := c.handler.Load()
		if h == nil || *h == nil {
			return
		}
		tick := models.MPriceTick{
			Epic:      msg.Epic,
			Timestamp: msg.Timestamp,
			Price:     msg.Price,
			Direction: models.MDirection(msg.Direction),
		}
		// Rejections are reported by the handler
		_ = (*h)(tick)
	case "heartbeat":
	case "error":
		c.Logger.Warning("Broker stream error: %s", msg.Message)
	default:
		c.Logger.Debug("Ignoring stream frame of type %q", msg.Type)
	}
}
