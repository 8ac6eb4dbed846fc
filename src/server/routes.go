package server

import (
	"net/http"

	"feed-observer/src/metrics"
	"feed-observer/src/models"

	"github.com/gin-gonic/gin"
)

const (
	defaultTickLimit = 100
	maxTickLimit     = 5000
)

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DashboardServer) setupRoutes() {
	api := s.engine.Group("/api")

	// Display
	api.GET("/prices", s.getPrices)
	api.GET("/feeds", s.getFeeds)
	api.GET("/history/:epic", s.getHistory)
	api.GET("/ticks/:epic", s.getTicks)
	api.GET("/health", s.getHealth)
	api.GET("/session", s.getSession)

	// Management
	api.GET("/connection/status", s.getConnectionStatus)
	api.POST("/connection/login", s.postLogin)
	api.POST("/connection/logout", s.postLogout)
	api.GET("/accounts", s.getAccounts)
	api.GET("/positions", s.getPositions)
	api.GET("/markets/:epic", s.getMarkets)
	api.GET("/navigation", s.getNavigation)
	api.GET("/navigation/:id", s.getNavigation)

	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Display handlers
// -----------------------------------------------------------------------------

func (s *DashboardServer) getPrices(c *gin.Context) {
	nowMs := s.now().UnixMilli()
	c.JSON(http.StatusOK, s.Facade.BuildPrices(s.Streams.Views(), nowMs))
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getFeeds(c *gin.Context) {
	nowMs := s.now().UnixMilli()
	prices := s.Facade.BuildPrices(s.Streams.Views(), nowMs)
	loggedIn := s.Manager.IsLoggedIn()
	withMarkets := queryBool(c, "markets") && loggedIn

	feeds := make([]models.MFeed, 0, len(prices))
	for _, p := range prices {
		feed := models.MFeed{MFeedPrice: p}
		if withMarkets {
			market, err := s.Manager.GetMarkets(c.Request.Context(), p.Epic)
			if err != nil {
				s.Logger.Warning("Market snapshot of %s unavailable: %v", p.Epic, err)
			} else {
				feed.Market = market
			}
		}
		feeds = append(feeds, feed)
	}

	info := s.Session.Info()
	c.JSON(http.StatusOK, models.MFeedsPage{
		Environment: info.Environment,
		Username:    info.Username,
		LoggedIn:    loggedIn,
		Timestamp:   nowMs,
		Feeds:       feeds,
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getHistory(c *gin.Context) {
	epic := c.Param("epic")
	view := s.Streams.View(epic)
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown epic " + epic})
		return
	}

	c.JSON(http.StatusOK, models.MHistoryPage{
		Instrument:  view.Instrument(),
		UpdateCount: view.UpdateCount(),
		History:     view.History(),
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getTicks(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tick store disabled"})
		return
	}

	epic := c.Param("epic")
	limit := queryInt(c, "limit", defaultTickLimit, maxTickLimit)
	ticks, err := s.DB.LoadRecent(epic, limit)
	if err != nil {
		s.Logger.Error("Loading ticks of %s failed: %v", epic, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"epic": epic, "ticks": ticks})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"connections":       s.clientCount.Load(),
		"latest_update":     timestamp,
		"logged_in":         s.Manager.IsLoggedIn(),
		"channel_connected": s.Channel.IsConnected(),
		"streams":           s.streamHealth(),
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.Session.Info())
}

// -----------------------------------------------------------------------------
// Management handlers
// -----------------------------------------------------------------------------

func (s *DashboardServer) connectionStatus() models.MConnectionStatus {
	status := models.MConnectionStatus{
		Status:           s.Manager.Status(),
		LoggedIn:         s.Manager.IsLoggedIn(),
		ChannelConnected: s.Channel.IsConnected(),
		Streams:          s.streamHealth(),
	}
	if details, err := s.Manager.GetLoginDetails(); err == nil {
		status.Details = &details
	}
	return status
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) streamHealth() []models.MStreamHealth {
	if s.Monitor == nil {
		return []models.MStreamHealth{}
	}
	return s.Monitor.Health()
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getConnectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.connectionStatus())
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) postLogin(c *gin.Context) {
	if !s.Manager.Login(c.Request.Context()) {
		c.JSON(http.StatusBadGateway, s.connectionStatus())
		return
	}
	c.JSON(http.StatusOK, s.connectionStatus())
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) postLogout(c *gin.Context) {
	// An explicit logout must not be undone by the health monitor
	if s.Monitor != nil {
		s.Monitor.CancelRecovery()
	}
	if !s.Manager.Logout(c.Request.Context()) {
		c.JSON(http.StatusBadGateway, s.connectionStatus())
		return
	}
	c.JSON(http.StatusOK, s.connectionStatus())
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getAccounts(c *gin.Context) {
	accounts, err := s.Manager.ListAccounts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getPositions(c *gin.Context) {
	positions, err := s.Manager.ListPositions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, positions)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getMarkets(c *gin.Context) {
	markets, err := s.Manager.GetMarkets(c.Request.Context(), c.Param("epic"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, markets)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getNavigation(c *gin.Context) {
	nav, err := s.Manager.ListMarkets(c.Request.Context(), c.Param("id"), queryBool(c, "latest"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nav)
}
