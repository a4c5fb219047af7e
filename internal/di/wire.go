//go:build wireinject
// +build wireinject

package di

import (
	"Agora/pkg/config"
	"Agora/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideClickHouseClient,

		// Repositories
		ProvideDecisionPublisher,
		ProvideDecisionJournal,
		ProvideStateStore,

		// Domain services
		ProvideTracker,
		ProvideCouncilEngine,
		ProvideScorer,
		ProvideConflictDetector,
		ProvideRiskGate,

		// Use cases and transports
		ProvideDecisionUseCase,
		ProvideKafkaConsumer,
		ProvideCheckpointer,
		ProvideDecisionHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
