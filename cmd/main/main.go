package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"feed-observer/src/config"
	"feed-observer/src/helpers"
	"feed-observer/src/logger"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	memLimit := helpers.RecommendedMemoryLimitMB()
	debug.SetMemoryLimit(int64(memLimit) << 20)
	appLogger.Info("Memory Limit set to: %d MB", memLimit)

	// 4. Setup Components
	app, err := setupApplication(conf, appLogger)
	if err != nil {
		appLogger.Critical("Setup failed: %v", err)
	}

	// Lifecycle Management
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	// 5. Background workers (tick sink, publisher)
	if err := startWorkers(ctx, &wg, app); err != nil {
		appLogger.Critical("Failed to start workers: %v", err)
	}

	// 6. Subscribe and log in
	bootstrap(ctx, app, conf, appLogger)

	// 7. Monitor and servers
	if err := app.monitor.Start(ctx, &wg); err != nil {
		appLogger.Critical("Failed to start health monitor: %v", err)
	}
	if err := startServers(ctx, &wg, app, conf, appLogger); err != nil {
		appLogger.Critical("Failed to start servers: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	shutdown(shutdownCtx, app, appLogger)
	cancel()  // Signal workers to stop
	wg.Wait() // Wait for the last flush

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			appLogger.Error("Closing database failed: %v", err)
		}
	}
	appLogger.Info("Shutdown complete.")
}
