package broker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
	"feed-observer/src/session"
)

const (
	headerAPIKey        = "X-IG-API-KEY"
	headerCST           = "CST"
	headerSecurityToken = "X-SECURITY-TOKEN"
	headerVersion       = "Version"
)

type authTokens struct {
	cst           string
	securityToken string
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	CurrentAccountID      string `json:"currentAccountId"`
	ClientID              string `json:"clientId"`
	LightstreamerEndpoint string `json:"lightstreamerEndpoint"`
}

type accountsResponse struct {
	Accounts []models.MAccount `json:"accounts"`
}

type positionsResponse struct {
	Positions []models.MMarketPosition `json:"positions"`
}

// -----------------------------------------------------------------------------
// RestTradingService implements IRemoteTradingService over the broker REST API.
// -----------------------------------------------------------------------------

type RestTradingService struct {
	Session    *session.Session
	Network    interfaces.INetworkManager
	Serializer interfaces.ISerializer
	Logger     *logger.Logger

	tokens   atomic.Pointer[authTokens]
	navMu    sync.Mutex
	navCache map[string]*models.MMarketNavigation // by node id, "" is the root
}

// -----------------------------------------------------------------------------

func NewRestTradingService(
	sess *session.Session,
	network interfaces.INetworkManager,
	serializer interfaces.ISerializer,
	log *logger.Logger,
) *RestTradingService {
	return &RestTradingService{
		Session:    sess,
		Network:    network,
		Serializer: serializer,
		Logger:     log,
		navCache:   make(map[string]*models.MMarketNavigation),
	}
}

// -----------------------------------------------------------------------------

func (s *RestTradingService) headers(version string, authenticated bool) http.Header {
	h := http.Header{}
	h.Set(headerAPIKey, s.Session.APIKey())
	h.Set("Accept", "application/json; charset=UTF-8")
	h.Set(headerVersion, version)

	if authenticated {
		if t := s.tokens.Load(); t != nil {
			h.Set(headerCST, t.cst)
			h.Set(headerSecurityToken, t.securityToken)
		}
	}
	return h
}

// -----------------------------------------------------------------------------

// Login opens a broker session. Rejected credentials return an AuthenticationError.
func (s *RestTradingService) Login(ctx context.Context) (*models.MLoginDetails, error) {
	creds := s.Session.Credentials()
	body, err := s.Serializer.Marshal(loginRequest{Identifier: creds.Username, Password: creds.Password})
	if err != nil {
		return nil, err
	}

	respHeaders, data, err := s.Network.Do(ctx, http.MethodPost, "/session", nil, s.headers("2", false), body)
	if err != nil {
		var remoteErr *helpers.RemoteCallError
		if errors.As(err, &remoteErr) && (remoteErr.StatusCode == http.StatusUnauthorized || remoteErr.StatusCode == http.StatusForbidden) {
			return nil, helpers.NewAuthenticationError("credentials rejected", err)
		}
		return nil, err
	}

	var resp loginResponse
	if err := s.Serializer.Unmarshal(data, &resp); err != nil {
		return nil, helpers.NewAuthenticationError("invalid login response", err)
	}

	tokens := &authTokens{
		cst:           respHeaders.Get(headerCST),
		securityToken: respHeaders.Get(headerSecurityToken),
	}
	if tokens.cst == "" || tokens.securityToken == "" {
		return nil, helpers.NewAuthenticationError("login response carries no session tokens", nil)
	}
	s.tokens.Store(tokens)

	s.Logger.Info("Broker session opened for account %s", resp.CurrentAccountID)

	return &models.MLoginDetails{
		AccountID:         resp.CurrentAccountID,
		ClientID:          resp.ClientID,
		StreamingEndpoint: resp.LightstreamerEndpoint,
		CST:               tokens.cst,
		SecurityToken:     tokens.securityToken,
		LoggedInAt:        time.Now(),
	}, nil
}

// -----------------------------------------------------------------------------

// Logout closes the broker session. The local tokens are dropped even on failure.
func (s *RestTradingService) Logout(ctx context.Context) error {
	if s.tokens.Load() == nil {
		return nil
	}

	headers := s.headers("1", true)
	s.tokens.Store(nil)

	if _, _, err := s.Network.Do(ctx, http.MethodDelete, "/session", nil, headers, nil); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *RestTradingService) get(ctx context.Context, path, version string, params map[string]string, out any) error {
	if s.tokens.Load() == nil {
		return helpers.ErrNotLoggedIn
	}

	_, data, err := s.Network.Do(ctx, http.MethodGet, path, params, s.headers(version, true), nil)
	if err != nil {
		return err
	}
	return s.Serializer.Unmarshal(data, out)
}

// -----------------------------------------------------------------------------

func (s *RestTradingService) GetAccountList(ctx context.Context) ([]models.MAccount, error) {
	var resp accountsResponse
	if err := s.get(ctx, "/accounts", "1", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// -----------------------------------------------------------------------------

func (s *RestTradingService) GetPositionList(ctx context.Context) ([]models.MMarketPosition, error) {
	var resp positionsResponse
	if err := s.get(ctx, "/positions", "2", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Positions, nil
}

// -----------------------------------------------------------------------------

func (s *RestTradingService) GetMarkets(ctx context.Context, epic string, includeDetail bool) (*models.MMarkets, error) {
	var params map[string]string
	if !includeDetail {
		params = map[string]string{"filter": "SNAPSHOT_ONLY"}
	}

	var markets models.MMarkets
	if err := s.get(ctx, "/markets/"+url.PathEscape(epic), "3", params, &markets); err != nil {
		return nil, err
	}
	return &markets, nil
}

// -----------------------------------------------------------------------------

// GetMarketNavigation returns a navigation node. Nodes are cached; latest refreshes the cache.
func (s *RestTradingService) GetMarketNavigation(ctx context.Context, nodeID string, latest bool) (*models.MMarketNavigation, error) {
	if !latest {
		s.navMu.Lock()
		cached, ok := s.navCache[nodeID]
		s.navMu.Unlock()
		if ok {
			return cached, nil
		}
	}

	path := "/marketnavigation"
	if nodeID != "" {
		path += "/" + url.PathEscape(nodeID)
	}

	var nav models.MMarketNavigation
	if err := s.get(ctx, path, "1", nil, &nav); err != nil {
		return nil, err
	}

	s.navMu.Lock()
	s.navCache[nodeID] = &nav
	s.navMu.Unlock()
	return &nav, nil
}
