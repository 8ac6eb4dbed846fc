package main

import (
	"context"
	"fmt"
	"sync"

	"feed-observer/src/analysis"
	"feed-observer/src/config"
	"feed-observer/src/connection"
	"feed-observer/src/data_source/broker"
	pb "feed-observer/src/grpc_control"
	"feed-observer/src/interfaces"
	"feed-observer/src/logger"
	"feed-observer/src/models"
	"feed-observer/src/monitor"
	"feed-observer/src/network"
	"feed-observer/src/publisher"
	"feed-observer/src/serializers"
	"feed-observer/src/session"
	"feed-observer/src/storage"
	"feed-observer/src/streaming"
	"feed-observer/src/utils"
)

// application holds every component, wired explicitly
type application struct {
	session    *session.Session
	serializer interfaces.ISerializer
	remote     *broker.RestTradingService
	channel    *broker.StreamingChannel
	manager    *connection.ConnectionManager
	streams    *streaming.PriceStreams
	facade     *analysis.FeedFacade
	scheduler  *utils.MarketScheduler
	monitor    *monitor.ConnectionHealthMonitor

	// Optional
	db        interfaces.IDatabase
	sink      *storage.TickSink
	publisher interfaces.IPublisher

	// Servers
	dashboard interfaces.IDataExchanger
	grpc      *pb.GRPCService
}

// -----------------------------------------------------------------------------

func setupApplication(conf *config.Config, appLogger *logger.Logger) (*application, error) {
	app := &application{
		session:    session.NewSession(conf.Credentials(), models.MEnvironment(conf.Broker.Environment)),
		serializer: serializers.NewJSONSerializer(),
	}

	networkManager := network.NewAsyncNetworkManager(conf.BaseURL(), conf.Network, appLogger.Named("Network"))
	app.remote = broker.NewRestTradingService(app.session, networkManager, app.serializer, appLogger.Named("RestTradingService"))
	app.channel = broker.NewStreamingChannel(conf.Broker, app.serializer, appLogger.Named("StreamingChannel"))
	app.manager = connection.NewConnectionManager(app.session, app.remote, app.channel, appLogger.Named("ConnectionManager"))

	app.streams = streaming.NewPriceStreams(app.channel, conf.Streaming.HistorySize, conf.Retention(), appLogger.Named("PriceStreams"))
	app.facade = analysis.NewFeedFacade(conf.VolumeWindow(), appLogger.Named("FeedFacade"))
	app.scheduler = utils.NewMarketScheduler(conf.Instruments, appLogger.Named("MarketScheduler"))
	app.monitor = monitor.NewConnectionHealthMonitor(conf.Monitor, app.manager, app.channel, app.streams, app.scheduler, appLogger.Named("HealthMonitor"))

	if err := setupDatabase(app, conf.Storage, appLogger); err != nil {
		return nil, err
	}
	setupPublisher(app, conf.Publisher, appLogger)
	return app, nil
}

// -----------------------------------------------------------------------------

func setupDatabase(app *application, cfg models.MStorageConfig, appLogger *logger.Logger) error {
	if !cfg.Enabled {
		appLogger.Info("Tick store disabled")
		return nil
	}

	db, err := storage.NewDatabase(cfg, appLogger.Named("Storage"))
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Initialize(); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	app.db = db
	app.sink = storage.NewTickSink(db, cfg, appLogger.Named("TickSink"))
	app.streams.Register(app.sink)
	return nil
}

// -----------------------------------------------------------------------------

func setupPublisher(app *application, cfg models.MPublisherConfig, appLogger *logger.Logger) {
	if !cfg.Enabled {
		return
	}

	app.publisher = publisher.NewNATSPublisher(cfg, app.serializer, appLogger.Named("NATSPublisher"))
	if err := app.publisher.Connect(); err != nil {
		// The client keeps retrying in the background
		appLogger.Warning("NATS publisher not connected yet: %v", err)
	}
	app.streams.Register(app.publisher)
}

// -----------------------------------------------------------------------------

func startWorkers(ctx context.Context, wg *sync.WaitGroup, app *application) error {
	if app.sink != nil {
		if err := app.sink.Start(ctx, wg); err != nil {
			return err
		}
	}
	if app.publisher != nil {
		if err := app.publisher.Start(ctx, wg); err != nil {
			return err
		}
	}
	return nil
}
