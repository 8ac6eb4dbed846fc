package server

import (
	"encoding/json"
	"net/http"

	"feed-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *DashboardServer) handleWebsockets() {
	for {
		select {
		case <-s.done:
			for client := range s.clients {
				s.dropClient(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Add(1)
			// Send initial state on connect
			s.stateMutex.RLock()
			initial := *s.latestState
			s.stateMutex.RUnlock()
			initial.Type = "INITIAL"
			client.send <- client.filter(&initial)

		case client := <-s.refresh:
			if _, ok := s.clients[client]; !ok {
				continue
			}
			s.stateMutex.RLock()
			state := *s.latestState
			s.stateMutex.RUnlock()
			state.Type = "INITIAL"
			select {
			case client.send <- client.filter(&state):
			default:
			}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.dropClient(client)
			}

		case message := <-s.broadcast:
			s.stateMutex.Lock()
			s.latestState = message
			s.stateMutex.Unlock()

			for client := range s.clients {
				select {
				case client.send <- client.filter(message):
				default:
					// Slow client, drop it rather than block the hub
					s.dropClient(client)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------

// dropClient must only be called from the hub loop
func (s *DashboardServer) dropClient(client *Client) {
	delete(s.clients, client)
	close(client.send)
	s.clientCount.Add(-1)
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues an update for every client; it is dropped when the queue is full
func (s *DashboardServer) Broadcast(update *models.MFeedUpdate) {
	if update == nil {
		return
	}
	select {
	case s.broadcast <- update:
	default:
		s.Logger.Debug("Broadcast queue full, update at %d dropped", update.Timestamp)
	}
}

// -----------------------------------------------------------------------------

// LatestState returns the last broadcast update
func (s *DashboardServer) LatestState() *models.MFeedUpdate {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.latestState
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MFeedUpdate, 64),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *DashboardServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}
	client.setEpics(cmd.Epics)

	// The hub owns client.send, so the filtered state is sent from there
	select {
	case s.refresh <- client:
	case <-s.done:
	}
}
