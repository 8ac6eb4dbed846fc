package main

import (
	"context"
	"sync"

	"feed-observer/src/config"
	pb "feed-observer/src/grpc_control"
	"feed-observer/src/logger"
	"feed-observer/src/server"
)

// startServers orchestrates the startup of all server components
func startServers(ctx context.Context, wg *sync.WaitGroup, app *application, conf *config.Config, appLogger *logger.Logger) error {

	// 1. Dashboard (REST + websocket)
	dashboard := server.NewDashboardServer(conf.MConfig, app.manager, app.channel, app.streams, app.facade, app.session, appLogger.Named("DashboardServer"))
	dashboard.Monitor = app.monitor
	if app.db != nil {
		dashboard.DB = app.db
	}

	go func() {
		if err := dashboard.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()
	dashboard.RunBroadcaster(ctx, wg, conf.BroadcastInterval())
	app.dashboard = dashboard

	// 2. gRPC Control Server
	control := pb.NewControlService(app.manager, app.channel, app.streams, app.facade, app.serializer, appLogger.Named("ControlService"))
	control.Monitor = app.monitor

	grpcService, err := pb.NewGRPCService(conf.GrpcHost, conf.GrpcPort, control, appLogger.Named("GRPCService"))
	if err != nil {
		return err
	}
	app.grpc = grpcService
	return grpcService.Start()
}

// -----------------------------------------------------------------------------

// shutdown stops the servers first so no request races the logout
func shutdown(ctx context.Context, app *application, appLogger *logger.Logger) {
	app.monitor.Stop()

	if app.dashboard != nil {
		if err := app.dashboard.Stop(); err != nil {
			appLogger.Error("Dashboard shutdown failed: %v", err)
		}
	}
	if app.grpc != nil {
		app.grpc.Stop(ctx)
	}

	app.manager.Logout(ctx)
	app.streams.Close(ctx)

	if app.publisher != nil {
		if err := app.publisher.Disconnect(); err != nil {
			appLogger.Warning("NATS disconnect failed: %v", err)
		}
	}
}
