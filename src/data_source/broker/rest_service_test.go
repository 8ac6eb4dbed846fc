package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
	"feed-observer/src/network"
	"feed-observer/src/serializers"
	"feed-observer/src/session"
)

var _ interfaces.IRemoteTradingService = (*RestTradingService)(nil)

type fakeBroker struct {
	navCalls   atomic.Int32
	logouts    atomic.Int32
	lastFilter atomic.Value
}

func (b *fakeBroker) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(headerAPIKey) != "api-key" {
			t.Errorf("missing api key header")
		}
		switch r.Method {
		case http.MethodPost:
			var req loginRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Password != "secret" {
				http.Error(w, `{"errorCode":"error.security.invalid-details"}`, http.StatusUnauthorized)
				return
			}
			w.Header().Set(headerCST, "cst-token")
			w.Header().Set(headerSecurityToken, "xst-token")
			w.Write([]byte(`{"currentAccountId":"ABC123","clientId":"42","lightstreamerEndpoint":"wss://stream.example.com"}`))
		case http.MethodDelete:
			b.logouts.Add(1)
			w.WriteHeader(http.StatusNoContent)
		}
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(headerCST) != "cst-token" || r.Header.Get(headerSecurityToken) != "xst-token" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/accounts", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[{"accountId":"ABC123","accountName":"Demo","accountType":"SPREADBET","preferred":true,"currency":"GBP","balance":{"balance":1000.5,"available":900,"profitLoss":-3.25}}]}`))
	}))
	mux.HandleFunc("/positions", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"positions":[{"position":{"dealId":"D1","direction":"BUY","size":1,"level":1.1,"currency":"USD"},"market":{"epic":"CS.D.EURUSD.MINI.IP","instrumentName":"EUR/USD","bid":1.0999,"offer":1.1001}}]}`))
	}))
	mux.HandleFunc("/markets/", authed(func(w http.ResponseWriter, r *http.Request) {
		b.lastFilter.Store(r.URL.Query().Get("filter"))
		if r.URL.Path == "/markets/MISSING" {
			http.Error(w, `{"errorCode":"error.service.marketdata.instrument.epic.unavailable"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"instrument":{"epic":"CS.D.EURUSD.MINI.IP","name":"EUR/USD","type":"CURRENCIES"},"snapshot":{"bid":1.0999,"offer":1.1001,"marketStatus":"TRADEABLE","updateTime":"10:00:00"}}`))
	}))
	mux.HandleFunc("/marketnavigation", authed(func(w http.ResponseWriter, r *http.Request) {
		b.navCalls.Add(1)
		w.Write([]byte(`{"nodes":[{"id":"264134","name":"Forex"}],"markets":null}`))
	}))
	return mux
}

func newTestService(t *testing.T, password string) (*RestTradingService, *fakeBroker) {
	b := &fakeBroker{}
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	nm := network.NewAsyncNetworkManager(srv.URL, models.MNetworkConfig{RequestTimeout: 2}, logger.NewNopLogger())
	nm.RetryDelay = time.Millisecond
	sess := session.NewSession(models.MCredentials{APIKey: "api-key", Username: "user", Password: password}, models.EnvironmentDemo)
	return NewRestTradingService(sess, nm, serializers.NewJSONSerializer(), logger.NewNopLogger()), b
}

func TestLoginReturnsDetails(t *testing.T) {
	svc, _ := newTestService(t, "secret")

	details, err := svc.Login(context.Background())
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if details.AccountID != "ABC123" || details.ClientID != "42" || details.StreamingEndpoint != "wss://stream.example.com" {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.CST != "cst-token" || details.SecurityToken != "xst-token" {
		t.Fatalf("tokens not captured")
	}
}

func TestLoginRejected(t *testing.T) {
	svc, _ := newTestService(t, "wrong")

	_, err := svc.Login(context.Background())
	var authErr *helpers.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected an authentication error, got %v", err)
	}
}

func TestQueriesRequireLogin(t *testing.T) {
	svc, _ := newTestService(t, "secret")
	if _, err := svc.GetAccountList(context.Background()); !errors.Is(err, helpers.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestAccountsPositionsAndMarkets(t *testing.T) {
	svc, b := newTestService(t, "secret")
	ctx := context.Background()
	if _, err := svc.Login(ctx); err != nil {
		t.Fatal(err)
	}

	accounts, err := svc.GetAccountList(ctx)
	if err != nil || len(accounts) != 1 || accounts[0].Balance.Balance.String() != "1000.5" {
		t.Fatalf("unexpected accounts %+v (%v)", accounts, err)
	}

	positions, err := svc.GetPositionList(ctx)
	if err != nil || len(positions) != 1 || positions[0].Market.Epic != "CS.D.EURUSD.MINI.IP" {
		t.Fatalf("unexpected positions %+v (%v)", positions, err)
	}

	markets, err := svc.GetMarkets(ctx, "CS.D.EURUSD.MINI.IP", false)
	if err != nil || markets.Snapshot.MarketStatus != "TRADEABLE" {
		t.Fatalf("unexpected markets %+v (%v)", markets, err)
	}
	if b.lastFilter.Load() != "SNAPSHOT_ONLY" {
		t.Fatalf("snapshot filter not sent")
	}
	if _, err := svc.GetMarkets(ctx, "CS.D.EURUSD.MINI.IP", true); err != nil || b.lastFilter.Load() != "" {
		t.Fatalf("detail request should not filter")
	}

	_, err = svc.GetMarkets(ctx, "MISSING", true)
	var remoteErr *helpers.RemoteCallError
	if !errors.As(err, &remoteErr) || remoteErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected a 404 remote error, got %v", err)
	}
}

func TestMarketNavigationCache(t *testing.T) {
	svc, b := newTestService(t, "secret")
	ctx := context.Background()
	svc.Login(ctx)

	for i := 0; i < 3; i++ {
		nav, err := svc.GetMarketNavigation(ctx, "", false)
		if err != nil || len(nav.Nodes) != 1 || nav.Nodes[0].Name != "Forex" {
			t.Fatalf("unexpected navigation %+v (%v)", nav, err)
		}
	}
	if b.navCalls.Load() != 1 {
		t.Fatalf("expected one remote call, got %d", b.navCalls.Load())
	}

	svc.GetMarketNavigation(ctx, "", true)
	if b.navCalls.Load() != 2 {
		t.Fatalf("latest must bypass the cache")
	}
}

func TestLogout(t *testing.T) {
	svc, b := newTestService(t, "secret")
	ctx := context.Background()

	if err := svc.Logout(ctx); err != nil || b.logouts.Load() != 0 {
		t.Fatalf("logout without session should do nothing")
	}
	svc.Login(ctx)
	if err := svc.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if b.logouts.Load() != 1 {
		t.Fatalf("expected one remote logout")
	}
	if _, err := svc.GetAccountList(ctx); !errors.Is(err, helpers.ErrNotLoggedIn) {
		t.Fatalf("tokens must be dropped after logout")
	}
}
