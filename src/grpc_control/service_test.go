package grpc_control

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"feed-observer/src/analysis"
	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
	"feed-observer/src/serializers"
	"feed-observer/src/streaming"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var _ ConnectionControlServer = (*ControlService)(nil)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeChannel struct {
	handler interfaces.TickHandler
}

func (f *fakeChannel) Connect(context.Context, models.MLoginDetails) error { return nil }
func (f *fakeChannel) Disconnect() error                                   { return nil }
func (f *fakeChannel) IsConnected() bool                                   { return false }
func (f *fakeChannel) LastMessageAt() time.Time                            { return time.Time{} }
func (f *fakeChannel) Subscribe(context.Context, string) error             { return nil }
func (f *fakeChannel) Unsubscribe(context.Context, string) error           { return nil }
func (f *fakeChannel) Resubscribe(context.Context, string) error           { return nil }
func (f *fakeChannel) SetTickHandler(h interfaces.TickHandler)             { f.handler = h }

type fakeManager struct {
	loggedIn   bool
	loginOK    bool
	remoteErr  error
	lastNodeID string
	lastLatest bool
}

func (f *fakeManager) Login(context.Context) bool {
	f.loggedIn = f.loginOK
	return f.loginOK
}

func (f *fakeManager) Logout(context.Context) bool {
	f.loggedIn = false
	return true
}

func (f *fakeManager) Relogin(ctx context.Context, _ uint64) bool { return f.Login(ctx) }
func (f *fakeManager) LogoutGeneration() uint64                   { return 0 }
func (f *fakeManager) IsLoggedIn() bool                           { return f.loggedIn }

func (f *fakeManager) Status() models.MSessionStatus {
	if f.loggedIn {
		return models.StatusLoggedIn
	}
	return models.StatusLoggedOut
}

func (f *fakeManager) GetLoginDetails() (models.MLoginDetails, error) {
	if !f.loggedIn {
		return models.MLoginDetails{}, helpers.ErrNotLoggedIn
	}
	return models.MLoginDetails{AccountID: "ABC123"}, nil
}

func (f *fakeManager) ListAccounts(context.Context) ([]models.MAccount, error) {
	if f.remoteErr != nil {
		return nil, f.remoteErr
	}
	if !f.loggedIn {
		return nil, helpers.ErrNotLoggedIn
	}
	return []models.MAccount{{AccountID: "ABC123", AccountName: "Demo CFD"}}, nil
}

func (f *fakeManager) ListPositions(context.Context) ([]models.MMarketPosition, error) {
	return nil, nil
}

func (f *fakeManager) GetMarkets(_ context.Context, epic string) (*models.MMarkets, error) {
	return &models.MMarkets{}, nil
}

func (f *fakeManager) ListMarkets(_ context.Context, nodeID string, latest bool) (*models.MMarketNavigation, error) {
	f.lastNodeID, f.lastLatest = nodeID, latest
	return &models.MMarketNavigation{}, nil
}

type fakeMonitor struct {
	cancelled bool
}

func (f *fakeMonitor) Health() []models.MStreamHealth { return []models.MStreamHealth{} }
func (f *fakeMonitor) CancelRecovery()                { f.cancelled = true }

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

var eurusd = models.MInstrument{Epic: "CS.D.EURUSD.MINI.IP", Name: "Spot EUR/USD", Precision: 4}

func startTestService(t *testing.T, manager *fakeManager, monitor *fakeMonitor) (*ConnectionControlClient, *grpc.ClientConn) {
	t.Helper()

	log := logger.NewNopLogger()
	channel := &fakeChannel{}
	streams := streaming.NewPriceStreams(channel, 16, 0, log)
	if _, err := streams.Subscribe(context.Background(), eurusd); err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2024, time.June, 12, 14, 0, 0, 0, time.UTC)
	if err := channel.handler(models.MPriceTick{Epic: eurusd.Epic, Timestamp: t0.UnixMilli(), Price: decimal.RequireFromString("1.0990")}); err != nil {
		t.Fatal(err)
	}

	control := NewControlService(manager, channel, streams, analysis.NewFeedFacade(time.Minute, log), serializers.NewJSONSerializer(), log)
	control.now = func() time.Time { return t0.Add(time.Second) }
	if monitor != nil {
		control.Monitor = monitor
	}

	lis := bufconn.Listen(1024 * 1024)
	svc := NewGRPCServiceWithListener(lis, control, log)
	if err := svc.Start(); err != nil {
		t.Fatal(err)
	}

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		svc.Stop(ctx)
	})
	return NewConnectionControlClient(conn), conn
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestLoginLogoutRoundTrip(t *testing.T) {
	manager := &fakeManager{loginOK: true}
	monitor := &fakeMonitor{}
	client, _ := startTestService(t, manager, monitor)
	ctx := context.Background()

	if v, err := client.IsLoggedIn(ctx); err != nil || v.GetValue() {
		t.Fatalf("expected logged out, got %v %v", v, err)
	}
	if v, err := client.Login(ctx); err != nil || !v.GetValue() {
		t.Fatalf("login failed: %v %v", v, err)
	}

	st, err := client.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.GetFields()["status"].GetStringValue() != string(models.StatusLoggedIn) {
		t.Fatalf("unexpected status %v", st)
	}
	if st.GetFields()["details"].GetStructValue().GetFields()["account_id"].GetStringValue() != "ABC123" {
		t.Fatalf("expected login details in status %v", st)
	}

	if v, err := client.Logout(ctx); err != nil || !v.GetValue() {
		t.Fatalf("logout failed: %v %v", v, err)
	}
	if !monitor.cancelled {
		t.Fatalf("logout must cancel monitor recovery")
	}
}

func TestLoginFailureIsNotAnError(t *testing.T) {
	client, _ := startTestService(t, &fakeManager{loginOK: false}, nil)

	v, err := client.Login(context.Background())
	if err != nil {
		t.Fatalf("a rejected login is a false result, got error %v", err)
	}
	if v.GetValue() {
		t.Fatalf("expected false")
	}
}

func TestPassThroughErrorCodes(t *testing.T) {
	manager := &fakeManager{}
	client, _ := startTestService(t, manager, nil)
	ctx := context.Background()

	_, err := client.ListAccounts(ctx)
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition while logged out, got %v", err)
	}

	manager.remoteErr = helpers.NewRemoteCallError("accounts", http.StatusInternalServerError, "")
	_, err = client.ListAccounts(ctx)
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected Unavailable for a remote failure, got %v", err)
	}

	manager.remoteErr = nil
	manager.loggedIn = true
	accounts, err := client.ListAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts.GetValues()) != 1 {
		t.Fatalf("unexpected accounts %v", accounts)
	}

	positions, err := client.ListPositions(ctx)
	if err != nil || len(positions.GetValues()) != 0 {
		t.Fatalf("expected an empty position list, got %v %v", positions, err)
	}

	if _, err := client.GetMarkets(ctx, ""); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for an empty epic, got %v", err)
	}

	if _, err := client.ListMarkets(ctx, "264134", true); err != nil {
		t.Fatal(err)
	}
	if manager.lastNodeID != "264134" || !manager.lastLatest {
		t.Fatalf("navigation arguments not forwarded: %s %v", manager.lastNodeID, manager.lastLatest)
	}
}

func TestListPrices(t *testing.T) {
	client, _ := startTestService(t, &fakeManager{}, nil)

	prices, err := client.ListPrices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(prices.GetValues()) != 1 {
		t.Fatalf("expected one price row, got %v", prices)
	}
	row := prices.GetValues()[0].GetStructValue().GetFields()
	if row["price"].GetStringValue() != "1.0990" || row["direction"].GetStringValue() != string(models.DirectionBuy) {
		t.Fatalf("unexpected row %v", row)
	}
	if row["update_count"].GetNumberValue() != 1 {
		t.Fatalf("unexpected update count %v", row["update_count"])
	}
}

func TestHealthServiceServing(t *testing.T) {
	_, conn := startTestService(t, &fakeManager{}, nil)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatal(err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected health %v", resp.GetStatus())
	}
}
