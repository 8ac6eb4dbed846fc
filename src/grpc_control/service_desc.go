package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "feedobserver.ConnectionControl"

// -----------------------------------------------------------------------------
// ConnectionControlServer is the management service. Messages are protobuf
// well-known types; structured results travel as google.protobuf.Struct.
// -----------------------------------------------------------------------------

type ConnectionControlServer interface {
	IsLoggedIn(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Login(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Logout(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListAccounts(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	ListPositions(context.Context, *emptypb.Empty) (*structpb.ListValue, error)

	// GetMarkets takes the epic
	GetMarkets(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)

	// ListMarkets takes {"node_id": string, "latest": bool}, both optional
	ListMarkets(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ListPrices(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

// -----------------------------------------------------------------------------

func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newStruct() *structpb.Struct        { return new(structpb.Struct) }

// unary builds the method descriptor of a unary call
func unary[Req proto.Message, Resp proto.Message](
	name string,
	newReq func() Req,
	call func(ConnectionControlServer, context.Context, Req) (Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(ConnectionControlServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(Req))
			})
		},
	}
}

// -----------------------------------------------------------------------------

var ConnectionControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConnectionControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("IsLoggedIn", newEmpty, ConnectionControlServer.IsLoggedIn),
		unary("Login", newEmpty, ConnectionControlServer.Login),
		unary("Logout", newEmpty, ConnectionControlServer.Logout),
		unary("GetStatus", newEmpty, ConnectionControlServer.GetStatus),
		unary("ListAccounts", newEmpty, ConnectionControlServer.ListAccounts),
		unary("ListPositions", newEmpty, ConnectionControlServer.ListPositions),
		unary("GetMarkets", newString, ConnectionControlServer.GetMarkets),
		unary("ListMarkets", newStruct, ConnectionControlServer.ListMarkets),
		unary("ListPrices", newEmpty, ConnectionControlServer.ListPrices),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "feedobserver/connection_control.proto",
}

func RegisterConnectionControlServer(s grpc.ServiceRegistrar, srv ConnectionControlServer) {
	s.RegisterService(&ConnectionControlServiceDesc, srv)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type ConnectionControlClient struct {
	cc grpc.ClientConnInterface
}

func NewConnectionControlClient(cc grpc.ClientConnInterface) *ConnectionControlClient {
	return &ConnectionControlClient{cc: cc}
}

func invoke[Resp proto.Message](ctx context.Context, cc grpc.ClientConnInterface, method string, in proto.Message, out Resp, opts ...grpc.CallOption) (Resp, error) {
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		var zero Resp
		return zero, err
	}
	return out, nil
}

func (c *ConnectionControlClient) IsLoggedIn(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke(ctx, c.cc, "IsLoggedIn", newEmpty(), new(wrapperspb.BoolValue), opts...)
}

func (c *ConnectionControlClient) Login(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke(ctx, c.cc, "Login", newEmpty(), new(wrapperspb.BoolValue), opts...)
}

func (c *ConnectionControlClient) Logout(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke(ctx, c.cc, "Logout", newEmpty(), new(wrapperspb.BoolValue), opts...)
}

func (c *ConnectionControlClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "GetStatus", newEmpty(), newStruct(), opts...)
}

func (c *ConnectionControlClient) ListAccounts(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c.cc, "ListAccounts", newEmpty(), new(structpb.ListValue), opts...)
}

func (c *ConnectionControlClient) ListPositions(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c.cc, "ListPositions", newEmpty(), new(structpb.ListValue), opts...)
}

func (c *ConnectionControlClient) GetMarkets(ctx context.Context, epic string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, "GetMarkets", wrapperspb.String(epic), newStruct(), opts...)
}

func (c *ConnectionControlClient) ListMarkets(ctx context.Context, nodeID string, latest bool, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]any{"node_id": nodeID, "latest": latest})
	if err != nil {
		return nil, err
	}
	return invoke(ctx, c.cc, "ListMarkets", req, newStruct(), opts...)
}

func (c *ConnectionControlClient) ListPrices(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke(ctx, c.cc, "ListPrices", newEmpty(), new(structpb.ListValue), opts...)
}
