package server

import (
	"sync/atomic"
	"time"

	"feed-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	hub   *DashboardServer
	conn  *websocket.Conn
	send  chan *models.MFeedUpdate
	epics atomic.Pointer[map[string]struct{}] // nil means every epic
}

// -----------------------------------------------------------------------------

func (c *Client) setEpics(epics []string) {
	if len(epics) == 0 {
		c.epics.Store(nil)
		return
	}
	set := make(map[string]struct{}, len(epics))
	for _, e := range epics {
		set[e] = struct{}{}
	}
	c.epics.Store(&set)
}

// -----------------------------------------------------------------------------

// filter keeps the prices of the epics the client subscribed to
func (c *Client) filter(update *models.MFeedUpdate) *models.MFeedUpdate {
	set := c.epics.Load()
	if set == nil {
		return update
	}

	filtered := *update
	filtered.Prices = make([]models.MFeedPrice, 0, len(*set))
	for _, p := range update.Prices {
		if _, ok := (*set)[p.Epic]; ok {
			filtered.Prices = append(filtered.Prices, p)
		}
	}
	return &filtered
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.hub.Logger.Debug("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
