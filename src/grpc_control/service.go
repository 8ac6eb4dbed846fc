package grpc_control

import (
	"context"
	"errors"
	"time"

	"feed-observer/src/analysis"
	"feed-observer/src/helpers"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// -----------------------------------------------------------------------------
// ControlService implements ConnectionControlServer over the connection manager
// -----------------------------------------------------------------------------

type ControlService struct {
	Name       string
	Manager    interfaces.IConnectionManager
	Channel    interfaces.IStreamingChannel
	Streams    interfaces.IPriceStreams
	Facade     *analysis.FeedFacade
	Serializer interfaces.ISerializer
	Logger     *logger.Logger

	// Optional
	Monitor interfaces.IHealthMonitor

	now func() time.Time
}

// -----------------------------------------------------------------------------

// NewControlService creates a new ControlService instance
func NewControlService(
	manager interfaces.IConnectionManager,
	channel interfaces.IStreamingChannel,
	streams interfaces.IPriceStreams,
	facade *analysis.FeedFacade,
	serializer interfaces.ISerializer,
	log *logger.Logger,
) *ControlService {
	return &ControlService{
		Name:       "ConnectionControl",
		Manager:    manager,
		Channel:    channel,
		Streams:    streams,
		Facade:     facade,
		Serializer: serializer,
		Logger:     log,
		now:        time.Now,
	}
}

// -----------------------------------------------------------------------------
// Session lifecycle
// -----------------------------------------------------------------------------

func (s *ControlService) IsLoggedIn(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.Manager.IsLoggedIn()), nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) Login(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	s.Logger.Info("%s : received Login request", s.Name)
	return wrapperspb.Bool(s.Manager.Login(ctx)), nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) Logout(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	s.Logger.Info("%s : received Logout request", s.Name)

	// An explicit logout must not be undone by the health monitor
	if s.Monitor != nil {
		s.Monitor.CancelRecovery()
	}
	return wrapperspb.Bool(s.Manager.Logout(ctx)), nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := models.MConnectionStatus{
		Status:           s.Manager.Status(),
		LoggedIn:         s.Manager.IsLoggedIn(),
		ChannelConnected: s.Channel.IsConnected(),
		Streams:          []models.MStreamHealth{},
	}
	if details, err := s.Manager.GetLoginDetails(); err == nil {
		st.Details = &details
	}
	if s.Monitor != nil {
		st.Streams = s.Monitor.Health()
	}
	return s.toStruct(st)
}

// -----------------------------------------------------------------------------
// Pass-through queries
// -----------------------------------------------------------------------------

func (s *ControlService) ListAccounts(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	accounts, err := s.Manager.ListAccounts(ctx)
	if err != nil {
		return nil, s.toStatus("ListAccounts", err)
	}
	return s.toList(accounts)
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListPositions(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	positions, err := s.Manager.ListPositions(ctx)
	if err != nil {
		return nil, s.toStatus("ListPositions", err)
	}
	return s.toList(positions)
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetMarkets(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	epic := req.GetValue()
	if epic == "" {
		return nil, status.Error(codes.InvalidArgument, "epic is required")
	}

	markets, err := s.Manager.GetMarkets(ctx, epic)
	if err != nil {
		return nil, s.toStatus("GetMarkets", err)
	}
	return s.toStruct(markets)
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListMarkets(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	nodeID := fields["node_id"].GetStringValue()
	latest := fields["latest"].GetBoolValue()

	nav, err := s.Manager.ListMarkets(ctx, nodeID, latest)
	if err != nil {
		return nil, s.toStatus("ListMarkets", err)
	}
	return s.toStruct(nav)
}

// -----------------------------------------------------------------------------
// Display
// -----------------------------------------------------------------------------

func (s *ControlService) ListPrices(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	nowMs := s.now().UnixMilli()
	return s.toList(s.Facade.BuildPrices(s.Streams.Views(), nowMs))
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// toStatus maps an error to a gRPC status; the invalid state is a failed precondition
func (s *ControlService) toStatus(operation string, err error) error {
	var stateErr *helpers.InvalidStateError
	if errors.As(err, &stateErr) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	s.Logger.Warning("%s : %s failed: %v", s.Name, operation, err)
	return status.Error(codes.Unavailable, err.Error())
}

// -----------------------------------------------------------------------------

func (s *ControlService) toStruct(v any) (*structpb.Struct, error) {
	data, err := s.Serializer.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to convert result: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) toList(v any) (*structpb.ListValue, error) {
	data, err := s.Serializer.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	out := &structpb.ListValue{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to convert result: %v", err)
	}
	return out, nil
}
