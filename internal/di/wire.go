//go:build wireinject
// +build wireinject

package di

import (
	"AlphaPipe/internal/usecase"
	"AlphaPipe/pkg/config"
	"AlphaPipe/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Engine and extensions
		ProvideStatistics,
		ProvideCharting,
		ProvideEngine,

		// Storage and sinks
		ProvideSecurityStore,
		ProvideClickHouseClient,
		ProvidePersistenceSink,
		ProvideKafkaProducer,
		ProvideMessagingSink,

		// Pipeline and producers
		ProvidePipeline,
		wire.Bind(new(usecase.PipelineController), new(*usecase.InsightPipeline)),
		ProvideRunner,
		ProvideFeedGuard,
		ProvideMarketFeed,
		ProvideCollector,

		// Inbound Kafka bridge
		ProvideKafkaConsumer,
		ProvideKafkaInsightsHandler,

		// HTTP surface
		ProvideCache,
		ProvideHTTPHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
