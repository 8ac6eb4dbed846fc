package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/metrics"
	"feed-observer/src/models"
	"feed-observer/src/session"
)

// sessionState is replaced as a whole on every transition.
// details is non-nil only in StatusLoggedIn.
type sessionState struct {
	status  models.MSessionStatus
	details *models.MLoginDetails
}

// -----------------------------------------------------------------------------
// ConnectionManager drives the broker session lifecycle:
// LOGGED_OUT -> LOGGING_IN -> LOGGED_IN -> LOGGED_OUT.
// -----------------------------------------------------------------------------

type ConnectionManager struct {
	Session *session.Session
	Remote  interfaces.IRemoteTradingService
	Channel interfaces.IStreamingChannel
	Logger  *logger.Logger

	mu      sync.Mutex // serializes transitions
	state   atomic.Pointer[sessionState]
	logouts atomic.Uint64 // explicit logouts so far
}

// -----------------------------------------------------------------------------

func NewConnectionManager(
	sess *session.Session,
	remote interfaces.IRemoteTradingService,
	channel interfaces.IStreamingChannel,
	log *logger.Logger,
) *ConnectionManager {
	cm := &ConnectionManager{
		Session: sess,
		Remote:  remote,
		Channel: channel,
		Logger:  log,
	}
	cm.state.Store(&sessionState{status: models.StatusLoggedOut})
	return cm
}

// -----------------------------------------------------------------------------

// Login authenticates and connects the streaming channel.
// It never panics and returns false on any failure, leaving the session logged out.
func (cm *ConnectionManager) Login(ctx context.Context) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.loginLocked(ctx)
}

// -----------------------------------------------------------------------------

// Logout is idempotent and always ends logged out.
// It returns false when the remote logout failed.
func (cm *ConnectionManager) Logout(ctx context.Context) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logouts.Add(1)
	return cm.logoutLocked(ctx)
}

// -----------------------------------------------------------------------------

// LogoutGeneration counts explicit logouts. Pass it to Relogin.
func (cm *ConnectionManager) LogoutGeneration() uint64 {
	return cm.logouts.Load()
}

// -----------------------------------------------------------------------------

// Relogin logs out and in again as one transition. It does nothing and
// returns false when an explicit logout happened after generation was read.
func (cm *ConnectionManager) Relogin(ctx context.Context, generation uint64) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.logouts.Load() != generation {
		cm.Logger.Info("Re-login skipped, session was logged out explicitly")
		return false
	}

	cm.Logger.Info("Re-login requested")
	cm.logoutLocked(ctx)
	return cm.loginLocked(ctx)
}

// -----------------------------------------------------------------------------

func (cm *ConnectionManager) loginLocked(ctx context.Context) (ok bool) {
	if cm.state.Load().status == models.StatusLoggedIn {
		cm.Logger.Debug("Login requested while logged in, nothing to do")
		return true
	}

	cm.publish(models.StatusLoggingIn, nil)

	authenticated := false
	defer func() {
		if r := recover(); r != nil {
			if authenticated {
				cm.remoteLogoutQuietly(ctx)
			}
			cm.loginFailed(helpers.NewAuthenticationError(fmt.Sprintf("login panicked: %v", r), nil))
			ok = false
		}
	}()

	details, err := cm.Remote.Login(ctx)
	if err != nil {
		cm.loginFailed(asAuthenticationError(err))
		return false
	}
	authenticated = true
	if details == nil {
		cm.remoteLogoutQuietly(ctx)
		cm.loginFailed(helpers.NewAuthenticationError("login returned no details", nil))
		return false
	}
	if details.LoggedInAt.IsZero() {
		details.LoggedInAt = time.Now()
	}

	if err := cm.Channel.Connect(ctx, *details); err != nil {
		cm.remoteLogoutQuietly(ctx)
		cm.loginFailed(helpers.NewAuthenticationError("streaming connect failed", err))
		return false
	}

	cm.publish(models.StatusLoggedIn, details)
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	metrics.SetLoggedIn(true)

	cm.Logger.Info("Logged in as %s on %s (account %s)",
		cm.Session.Username(), cm.Session.Environment(), details.AccountID)
	return true
}

// -----------------------------------------------------------------------------

// remoteLogoutQuietly closes a half-open broker session after a failed login
func (cm *ConnectionManager) remoteLogoutQuietly(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			cm.Logger.Warning("Remote logout after failed login panicked: %v", r)
		}
	}()
	if err := cm.Remote.Logout(ctx); err != nil {
		cm.Logger.Warning("Remote logout after failed login: %v", err)
	}
}

// -----------------------------------------------------------------------------

func (cm *ConnectionManager) loginFailed(err error) {
	cm.publish(models.StatusLoggedOut, nil)
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	metrics.SetLoggedIn(false)
	cm.Logger.Warning("Login failed: %v", err)
}

// -----------------------------------------------------------------------------

func (cm *ConnectionManager) logoutLocked(ctx context.Context) (ok bool) {
	if cm.state.Load().status == models.StatusLoggedOut {
		return true
	}

	cm.publish(models.StatusLoggedOut, nil)
	metrics.SetLoggedIn(false)

	ok = true
	defer func() {
		if r := recover(); r != nil {
			cm.Logger.Warning("Logout panicked: %v", r)
			ok = false
		}
	}()

	if err := cm.Channel.Disconnect(); err != nil {
		cm.Logger.Warning("Streaming disconnect failed: %v", err)
	}
	if err := cm.Remote.Logout(ctx); err != nil {
		cm.Logger.Warning("Remote logout failed: %v", err)
		ok = false
	}

	cm.Logger.Info("Logged out")
	return ok
}

// -----------------------------------------------------------------------------

func (cm *ConnectionManager) publish(status models.MSessionStatus, details *models.MLoginDetails) {
	cm.state.Store(&sessionState{status: status, details: details})
}

// -----------------------------------------------------------------------------

func asAuthenticationError(err error) error {
	var authErr *helpers.AuthenticationError
	if errors.As(err, &authErr) {
		return err
	}
	return helpers.NewAuthenticationError("login failed", err)
}

// -----------------------------------------------------------------------------
// State queries (lock free)
// -----------------------------------------------------------------------------

func (cm *ConnectionManager) IsLoggedIn() bool {
	return cm.state.Load().status == models.StatusLoggedIn
}

func (cm *ConnectionManager) Status() models.MSessionStatus {
	return cm.state.Load().status
}

// GetLoginDetails returns a copy of the current details, or ErrNotLoggedIn
func (cm *ConnectionManager) GetLoginDetails() (models.MLoginDetails, error) {
	st := cm.state.Load()
	if st.status != models.StatusLoggedIn || st.details == nil {
		return models.MLoginDetails{}, helpers.ErrNotLoggedIn
	}
	return *st.details, nil
}

// -----------------------------------------------------------------------------
// Pass-through queries. Errors are returned unchanged.
// -----------------------------------------------------------------------------

func (cm *ConnectionManager) ListAccounts(ctx context.Context) ([]models.MAccount, error) {
	return cm.Remote.GetAccountList(ctx)
}

func (cm *ConnectionManager) ListPositions(ctx context.Context) ([]models.MMarketPosition, error) {
	return cm.Remote.GetPositionList(ctx)
}

func (cm *ConnectionManager) GetMarkets(ctx context.Context, epic string) (*models.MMarkets, error) {
	return cm.Remote.GetMarkets(ctx, epic, true)
}

func (cm *ConnectionManager) ListMarkets(ctx context.Context, nodeID string, latest bool) (*models.MMarketNavigation, error) {
	return cm.Remote.GetMarketNavigation(ctx, nodeID, latest)
}
