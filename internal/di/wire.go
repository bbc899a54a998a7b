//go:build wireinject
// +build wireinject

package di

import (
	"EquitySchema/pkg/app"
	"EquitySchema/pkg/config"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*app.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Inputs
		ProvideRegistry,
		ProvideOverrides,

		// Vendor client
		ProvideHTTPClient,
		ProvideRateLimiter,
		ProvideMarketSource,

		// Storage and downstream
		ProvideFactStore,
		ProvideAuditPublisher,

		// Use case
		ProvidePipelineRunner,

		// Application
		ProvideApp,
	)
	return &app.App{}, nil
}
