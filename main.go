package main

import (
	"context"
	"net/http"

	"game-bid-war/server"
	"game-bid-war/server/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {

	app := fx.New(
		fx.Provide(
			http.NewServeMux,
			config.NewConfiguration,
			config.NewLogger,
			config.NewGameDB,
			config.NewGameStore,
			config.NewRedisClient,
			config.NewCounter,
			config.NewLedgerClient,
			config.NewWebSocket,
			config.NewTokenVerifier,
			config.NewMetricsRegistry,
			config.NewMetrics,
			config.NewHub,
			config.NewRegistry,
			config.NewDashboardService,
			config.NewServerConfig,
			server.NewGateway,
			server.NewHTTPServer),
		fx.Invoke(server.NewServeMux, func(*http.Server) {}),

		fx.WithLogger(
			func(logger *zap.Logger) fxevent.Logger {
				return &fxevent.ZapLogger{Logger: logger.Named("fx")}
			},
		),
	)

	if err := app.Start(context.Background()); err != nil {
		panic(err)
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}
