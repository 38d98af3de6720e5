package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"askingwho-backend/application/ports"
	"askingwho-backend/application/services"
	"askingwho-backend/infrastructure/cache"
	"askingwho-backend/infrastructure/config"
	"askingwho-backend/infrastructure/messaging/apigw"
	"askingwho-backend/infrastructure/messaging/eventbridge"
	"askingwho-backend/infrastructure/persistence/dynamodb"
	"askingwho-backend/infrastructure/persistence/memory"
	"askingwho-backend/interfaces/http/rest"
	"askingwho-backend/interfaces/http/rest/middleware"
	"askingwho-backend/interfaces/websocket"
	"askingwho-backend/pkg/auth"
	pkgerrors "askingwho-backend/pkg/errors"
	"askingwho-backend/pkg/observability"
)

// developmentSecret signs tokens when no JWT_SECRET is set outside production
const developmentSecret = "askingwho-development-secret"

// ProvideLogLevel creates the level the config watcher adjusts at runtime
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.Dynamic.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level: %w", err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() || cfg.IsLambda {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", cfg.ServiceName)), nil
}

// ProvideErrorHandler creates the HTTP error responder
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client, pointed at
// DYNAMODB_ENDPOINT when one is configured
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideStores selects the repository implementation
func ProvideStores(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (*Stores, error) {
	switch cfg.Store {
	case config.StoreMemory:
		m := memory.New()
		logger.Warn("Using the in-memory store; data is lost on restart")
		return &Stores{
			Profiles:      m.Profiles,
			Questions:     m.Questions,
			Notifications: m.Notifications,
			Conversations: m.Conversations,
			Messages:      m.Messages,
			Ping:          func(context.Context) error { return nil },
		}, nil
	case config.StoreDynamoDB:
		s := dynamodb.NewStore(client, dynamodb.Config{
			TableName: cfg.DynamoDBTable,
			GSI1Name:  cfg.GSI1Index,
			GSI2Name:  cfg.GSI2Index,
		}, logger)
		return &Stores{
			Profiles:      s.Profiles,
			Questions:     s.Questions,
			Notifications: s.Notifications,
			Conversations: s.Conversations,
			Messages:      s.Messages,
			Ping:          s.Ping,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector(cfg *config.Config) *observability.Collector {
	return observability.NewCollector(cfg.MetricsNamespace)
}

// ProvideCloudWatchRecorder creates the Lambda request recorder. It is
// disabled unless CLOUDWATCH_NAMESPACE is set.
func ProvideCloudWatchRecorder(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.CloudWatchRecorder {
	if cfg.CloudWatchNamespace == "" {
		return observability.NewCloudWatchRecorder("", nil, logger)
	}
	return observability.NewCloudWatchRecorder(cfg.CloudWatchNamespace, client, logger)
}

// ProvideTracing creates the tracer provider
func ProvideTracing(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	endpoint := ""
	if cfg.EnableTracing {
		endpoint = cfg.TracingEndpoint
	}
	return observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, endpoint)
}

// ProvideCache creates the aggregate cache
func ProvideCache(cfg *config.Config, collector *observability.Collector, logger *zap.Logger) (ports.Cache, error) {
	return cache.New("aggregates", cfg.CacheSize,
		cache.WithStats(collector),
		cache.WithLogger(logger),
	)
}

// ProvideWatcher watches CONFIG_FILE for dynamic changes. It returns nil when
// no file is configured.
func ProvideWatcher(cfg *config.Config, level zap.AtomicLevel, logger *zap.Logger) (*config.Watcher, error) {
	if cfg.ConfigFile == "" {
		return nil, nil
	}
	return config.NewWatcher(cfg.ConfigFile, cfg.Dynamic, level, logger)
}

// ProvideLimits serves text limits from the watcher when there is one
func ProvideLimits(cfg *config.Config, watcher *config.Watcher) ports.LimitSource {
	if watcher != nil {
		return watcher
	}
	return ports.StaticLimits(cfg.Dynamic.Limits)
}

// ProvideHub creates the in-process live channel hub
func ProvideHub(collector *observability.Collector, logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(collector, logger)
}

// ProvidePublisher pushes through EventBridge on Lambda, where connections
// live in API Gateway, and through the hub otherwise
func ProvidePublisher(cfg *config.Config, hub *websocket.Hub, client *awseventbridge.Client, collector *observability.Collector, logger *zap.Logger) ports.LivePublisher {
	if cfg.IsLambda {
		return eventbridge.NewPublisher(client, cfg.EventBusName, collector, logger)
	}
	return hub
}

// ProvideDependencies collects the ports shared by every service
func ProvideDependencies(
	stores *Stores,
	publisher ports.LivePublisher,
	aggregateCache ports.Cache,
	limits ports.LimitSource,
	logger *zap.Logger,
) services.Dependencies {
	return services.Dependencies{
		Profiles:      stores.Profiles,
		Questions:     stores.Questions,
		Notifications: stores.Notifications,
		Conversations: stores.Conversations,
		Messages:      stores.Messages,
		Publisher:     publisher,
		Cache:         aggregateCache,
		Limits:        limits,
		Clock:         ports.SystemClock{},
		IDs:           ports.UUIDGenerator{},
		Logger:        logger,
	}
}

// ProvideAggregateService creates the cached aggregate service
func ProvideAggregateService(cfg *config.Config, deps services.Dependencies, engagement *services.EngagementService) *services.AggregateService {
	return services.NewAggregateService(deps, engagement, cfg.CacheTTL)
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET is not set; using the development secret")
		secret = developmentSecret
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		Expiry:    cfg.JWTExpiry,
	})
}

// ProvideRouter creates the HTTP router with every optional layer the
// configuration enables
func ProvideRouter(
	cfg *config.Config,
	svc rest.Services,
	validator *auth.JWTValidator,
	errHandler *pkgerrors.ErrorHandler,
	stores *Stores,
	hub *websocket.Hub,
	collector *observability.Collector,
	cw *observability.CloudWatchRecorder,
	tracing *observability.TracerProvider,
	logger *zap.Logger,
) *rest.Router {
	breaker := middleware.DefaultCircuitBreakerConfig("api")
	breaker.MaxFailures = cfg.BreakerMaxFailures
	breaker.Timeout = cfg.BreakerTimeout

	router := rest.NewRouter(svc, validator, errHandler, rest.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Breaker:        breaker,
	}, logger).
		WithCloudWatch(cw).
		WithReadiness(stores.Ping)

	if cfg.EnableMetrics {
		router.WithMetrics(collector)
	}
	if cfg.EnableTracing {
		router.WithTracer(tracing.Tracer())
	}
	if !cfg.IsLambda {
		router.WithWebSocket(websocket.NewServer(hub, validator, cfg.CORSAllowedOrigins, logger))
	}
	return router
}

// ProvideRegistry creates the API Gateway connection registry
func ProvideRegistry(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) *apigw.Registry {
	return apigw.NewRegistry(client, cfg.DynamoDBTable, cfg.ConnectionTTL, logger)
}
