//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"askingwho-backend/application/services"
	"askingwho-backend/infrastructure/config"
	"askingwho-backend/interfaces/http/rest"
)

// InfrastructureSet provides logging, AWS clients and storage
var InfrastructureSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideErrorHandler,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideStores,
)

// ObservabilitySet provides metrics and tracing
var ObservabilitySet = wire.NewSet(
	ProvideCollector,
	ProvideCloudWatchRecorder,
	ProvideTracing,
)

// ServiceSet provides the application services
var ServiceSet = wire.NewSet(
	ProvideCache,
	ProvideWatcher,
	ProvideLimits,
	ProvideHub,
	ProvidePublisher,
	ProvideDependencies,
	services.NewNotificationDispatcher,
	services.NewSocialGraphService,
	services.NewEngagementService,
	services.NewMessagingService,
	ProvideAggregateService,
)

// HTTPSet provides the router
var HTTPSet = wire.NewSet(
	ProvideJWTValidator,
	wire.Struct(new(rest.Services), "*"),
	ProvideRouter,
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(
		InfrastructureSet,
		ObservabilitySet,
		ServiceSet,
		HTTPSet,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil
}

// InitializeEventsContainer creates the dependencies of the websocket Lambda
func InitializeEventsContainer(ctx context.Context, cfg *config.Config) (*EventsContainer, error) {
	wire.Build(
		ProvideLogLevel,
		ProvideLogger,
		ProvideAWSConfig,
		ProvideDynamoDBClient,
		ProvideJWTValidator,
		ProvideRegistry,
		wire.Struct(new(EventsContainer), "*"),
	)
	return nil, nil
}
