package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
	"feed-observer/src/serializers"
)

var _ interfaces.IStreamingChannel = (*StreamingChannel)(nil)

// fakeStream records every frame received and lets the test push frames
type fakeStream struct {
	upgrader    websocket.Upgrader
	mu          sync.Mutex
	frames      []streamRequest
	conns       []*websocket.Conn
	connections atomic.Int32
	dropFirst   bool
}

func (f *fakeStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	n := f.connections.Add(1)

	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req streamRequest
		json.Unmarshal(data, &req)

		f.mu.Lock()
		f.frames = append(f.frames, req)
		f.mu.Unlock()

		if f.dropFirst && n == 1 && req.Op == "subscribe" {
			conn.Close()
			return
		}
	}
}

func (f *fakeStream) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		out = append(out, fr.Op+":"+strings.Join(fr.Epics, ","))
	}
	return out
}

func (f *fakeStream) push(t *testing.T, frame string) {
	f.mu.Lock()
	conn := f.conns[len(f.conns)-1]
	f.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("push failed: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestChannel(t *testing.T, f *fakeStream) *StreamingChannel {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	cfg := models.MBrokerConfig{StreamingURL: "ws" + strings.TrimPrefix(srv.URL, "http"), ReconnectAttempts: 2}
	ch := NewStreamingChannel(cfg, serializers.NewJSONSerializer(), logger.NewNopLogger())
	ch.ReconnectDelay = 10 * time.Millisecond
	t.Cleanup(func() { ch.Disconnect() })
	return ch
}

func TestConnectAuthenticatesAndReplaysSubscriptions(t *testing.T) {
	f := &fakeStream{}
	ch := newTestChannel(t, f)
	ctx := context.Background()

	ch.Subscribe(ctx, "IX.D.FTSE.DAILY.IP")
	ch.Subscribe(ctx, "CS.D.EURUSD.MINI.IP")
	ch.Subscribe(ctx, "CS.D.EURUSD.MINI.IP")

	if err := ch.Connect(ctx, models.MLoginDetails{AccountID: "ABC123", CST: "c", SecurityToken: "x"}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if err := ch.Connect(ctx, models.MLoginDetails{}); err != nil {
		t.Fatalf("second connect should be a no-op: %v", err)
	}
	if !ch.IsConnected() || ch.LastMessageAt().IsZero() {
		t.Fatalf("expected connected channel")
	}

	waitFor(t, "auth and replay", func() bool { return len(f.ops()) == 2 })
	ops := f.ops()
	if ops[0] != "auth:" || ops[1] != "subscribe:CS.D.EURUSD.MINI.IP,IX.D.FTSE.DAILY.IP" {
		t.Fatalf("unexpected frames %v", ops)
	}
	if f.connections.Load() != 1 {
		t.Fatalf("expected one connection")
	}
}

func TestPriceFramesReachHandler(t *testing.T) {
	f := &fakeStream{}
	ch := newTestChannel(t, f)
	ctx := context.Background()

	var mu sync.Mutex
	var ticks []models.MPriceTick
	ch.SetTickHandler(func(tick models.MPriceTick) error {
		mu.Lock()
		defer mu.Unlock()
		ticks = append(ticks, tick)
		return nil
	})

	ch.Subscribe(ctx, "CS.D.EURUSD.MINI.IP")
	if err := ch.Connect(ctx, models.MLoginDetails{AccountID: "ABC123"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "server connection", func() bool { return f.connections.Load() == 1 && len(f.ops()) == 2 })

	f.push(t, `{"type":"heartbeat","timestamp":1}`)
	f.push(t, `not json`)
	f.push(t, `{"type":"price","epic":"CS.D.EURUSD.MINI.IP","timestamp":16000,"price":"1.0990","direction":"SELL"}`)

	waitFor(t, "tick delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ticks) == 1
	})

	mu.Lock()
	got := ticks[0]
	mu.Unlock()
	if got.Epic != "CS.D.EURUSD.MINI.IP" || got.Timestamp != 16000 || got.Price.String() != "1.099" || got.Direction != models.DirectionSell {
		t.Fatalf("unexpected tick %+v", got)
	}
	if ch.ErrorHandler.ErrorCount() != 1 {
		t.Fatalf("malformed frame should be reported once, got %d", ch.ErrorHandler.ErrorCount())
	}
}

func TestResubscribeAndUnsubscribe(t *testing.T) {
	f := &fakeStream{}
	ch := newTestChannel(t, f)
	ctx := context.Background()

	if err := ch.Connect(ctx, models.MLoginDetails{}); err != nil {
		t.Fatal(err)
	}
	ch.Subscribe(ctx, "E1")
	if err := ch.Resubscribe(ctx, "E1"); err != nil {
		t.Fatal(err)
	}
	if err := ch.Resubscribe(ctx, "E2"); err == nil {
		t.Fatalf("resubscribing an unknown epic should fail")
	}
	ch.Unsubscribe(ctx, "E1")
	ch.Unsubscribe(ctx, "E1")

	waitFor(t, "frames", func() bool { return len(f.ops()) == 5 })
	want := []string{"auth:", "subscribe:E1", "unsubscribe:E1", "subscribe:E1", "unsubscribe:E1"}
	for i, op := range f.ops() {
		if op != want[i] {
			t.Fatalf("frame %d is %s, want %s", i, op, want[i])
		}
	}
	if len(ch.Subscriptions()) != 0 {
		t.Fatalf("subscription set should be empty")
	}
}

func TestReconnectReplaysSubscriptions(t *testing.T) {
	f := &fakeStream{dropFirst: true}
	ch := newTestChannel(t, f)
	ctx := context.Background()

	ch.Subscribe(ctx, "E1")
	if err := ch.Connect(ctx, models.MLoginDetails{}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "reconnect", func() bool { return f.connections.Load() == 2 })
	waitFor(t, "replay", func() bool {
		ops := f.ops()
		return len(ops) >= 3 && ops[len(ops)-1] == "subscribe:E1"
	})
	if !ch.IsConnected() {
		t.Fatalf("channel should be connected after reconnect")
	}
}

func TestDisconnectKeepsSubscriptions(t *testing.T) {
	f := &fakeStream{}
	ch := newTestChannel(t, f)
	ctx := context.Background()

	ch.Subscribe(ctx, "E1")
	ch.Connect(ctx, models.MLoginDetails{})
	if err := ch.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Disconnect(); err != nil {
		t.Fatalf("second disconnect should be a no-op: %v", err)
	}
	if ch.IsConnected() {
		t.Fatalf("expected disconnected")
	}
	if subs := ch.Subscriptions(); len(subs) != 1 || subs[0] != "E1" {
		t.Fatalf("subscriptions lost: %v", subs)
	}
}
