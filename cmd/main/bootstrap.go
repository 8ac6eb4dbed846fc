package main

import (
	"context"

	"feed-observer/src/config"
	"feed-observer/src/logger"
)

// bootstrap subscribes every configured instrument and logs in.
// Subscriptions made while logged out are replayed when the channel connects.
func bootstrap(ctx context.Context, app *application, conf *config.Config, appLogger *logger.Logger) {
	if app.db != nil {
		if err := app.db.RegisterInstruments(conf.Instruments); err != nil {
			appLogger.Warning("Registering instruments failed: %v", err)
		}
	}

	for _, inst := range conf.Instruments {
		if _, err := app.streams.Subscribe(ctx, inst); err != nil {
			appLogger.Error("Subscribing %s failed: %v", inst.Epic, err)
		}
	}

	info := app.session.Info()
	appLogger.Info("Logging in as %s on %s...", info.Username, info.Environment)
	if !app.manager.Login(ctx) {
		// The health monitor only retries sessions it saw alive
		appLogger.Warning("Initial login failed, use the management API to retry")
		return
	}
	appLogger.Info("Initialization complete, %d instruments subscribed.", len(conf.Instruments))
}
