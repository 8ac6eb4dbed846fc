package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"feed-observer/src/analysis"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
	"feed-observer/src/session"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// DashboardServer serves the prices pages, the management REST surface and
// the websocket hub.
// -----------------------------------------------------------------------------

type DashboardServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Manager interfaces.IConnectionManager
	Channel interfaces.IStreamingChannel
	Streams interfaces.IPriceStreams
	Facade  *analysis.FeedFacade
	Session *session.Session

	// Optional
	Monitor interfaces.IHealthMonitor
	DB      interfaces.IDatabase

	engine     *gin.Engine
	httpServer *http.Server
	now        func() time.Time

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MFeedUpdate
	register   chan *Client
	unregister chan *Client
	refresh    chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	clientCount atomic.Int64

	// Local cache
	latestState *models.MFeedUpdate
	stateMutex  sync.RWMutex
	hubRunning  atomic.Bool
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDashboardServer(
	cfg *models.MConfig,
	manager interfaces.IConnectionManager,
	channel interfaces.IStreamingChannel,
	streams interfaces.IPriceStreams,
	facade *analysis.FeedFacade,
	sess *session.Session,
	log *logger.Logger,
) *DashboardServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &DashboardServer{
		Config:     cfg,
		Logger:     log,
		Manager:    manager,
		Channel:    channel,
		Streams:    streams,
		Facade:     facade,
		Session:    sess,
		engine:     engine,
		now:        time.Now,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *models.MFeedUpdate, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		refresh:    make(chan *Client),
		done:       make(chan struct{}),
		latestState: &models.MFeedUpdate{
			Type:   "INITIAL",
			Prices: []models.MFeedPrice{},
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mostly for tests
func (s *DashboardServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and serves HTTP until Stop is called
func (s *DashboardServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.startHub()

	s.stateMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.stateMutex.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) startHub() {
	if s.hubRunning.Swap(true) {
		return
	}
	go s.handleWebsockets()
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP server down and releases every websocket client
func (s *DashboardServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)

		s.stateMutex.RLock()
		srv := s.httpServer
		s.stateMutex.RUnlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("http server shutdown failed: %w", shutdownErr)
		}
	})
	return err
}

// -----------------------------------------------------------------------------

// RunBroadcaster pushes a fresh feed update every interval until ctx is done
func (s *DashboardServer) RunBroadcaster(ctx context.Context, wg *sync.WaitGroup, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Broadcast(s.BuildUpdate())
			}
		}
	}()
}

// -----------------------------------------------------------------------------

// BuildUpdate classifies every stream at the current time
func (s *DashboardServer) BuildUpdate() *models.MFeedUpdate {
	nowMs := s.now().UnixMilli()
	return &models.MFeedUpdate{
		Type:      "UPDATE",
		Timestamp: nowMs,
		LoggedIn:  s.Manager.IsLoggedIn(),
		Prices:    s.Facade.BuildPrices(s.Streams.Views(), nowMs),
	}
}
