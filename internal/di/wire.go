//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"TickChart/pkg/config"
	"TickChart/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,
		ProvideCache,

		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Repositories
		ProvideLocation,
		ProvideDataRequester,
		ProvideEventPublisher,

		// Use cases
		ProvideScheduler,
		ProvideChartSession,
		ProvideCandlesUseCase,

		// Transport
		ProvideRateLimiter,
		ProvideHub,
		ProvideChartHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
