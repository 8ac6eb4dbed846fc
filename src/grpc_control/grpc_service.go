package grpc_control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"feed-observer/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// -----------------------------------------------------------------------------
// GRPCService handles gRPC server lifecycle
// -----------------------------------------------------------------------------

type GRPCService struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	control  ConnectionControlServer
	logger   *logger.Logger
	running  atomic.Bool
}

// -----------------------------------------------------------------------------

// NewGRPCService listens on host:port
func NewGRPCService(host string, port int, control ConnectionControlServer, log *logger.Logger) (*GRPCService, error) {
	if port == 0 {
		port = 50051
	}
	address := fmt.Sprintf("%s:%d", host, port)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return NewGRPCServiceWithListener(listener, control, log), nil
}

// -----------------------------------------------------------------------------

// NewGRPCServiceWithListener serves on an existing listener
func NewGRPCServiceWithListener(listener net.Listener, control ConnectionControlServer, log *logger.Logger) *GRPCService {
	serverOptions := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxSendMsgSize(10 * 1024 * 1024),
	}

	return &GRPCService{
		server:   grpc.NewServer(serverOptions...),
		listener: listener,
		health:   health.NewServer(),
		control:  control,
		logger:   log,
	}
}

// -----------------------------------------------------------------------------

// Start registers the services and serves in the background
func (g *GRPCService) Start() error {
	if g.running.Swap(true) {
		return fmt.Errorf("gRPC service is already running")
	}
	g.logger.Info("Starting gRPC service on %s", g.listener.Addr().String())

	RegisterConnectionControlServer(g.server, g.control)

	grpc_health_v1.RegisterHealthServer(g.server, g.health)
	g.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		if err := g.server.Serve(g.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			g.logger.Error("gRPC server failed: %v", err)
		}
		g.running.Store(false)
	}()

	return nil
}

// -----------------------------------------------------------------------------

// Stop gracefully stops the gRPC server, forcing it when ctx expires
func (g *GRPCService) Stop(ctx context.Context) error {
	g.logger.Info("Stopping gRPC service...")
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		g.logger.Warning("gRPC graceful shutdown timeout, forcing stop...")
		g.server.Stop()
	case <-done:
		g.logger.Info("gRPC service stopped gracefully")
	}

	g.running.Store(false)
	return nil
}

// -----------------------------------------------------------------------------

// IsRunning returns whether the gRPC server is running
func (g *GRPCService) IsRunning() bool {
	return g.running.Load()
}

// -----------------------------------------------------------------------------

func (g *GRPCService) Addr() net.Addr {
	return g.listener.Addr()
}
