package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"

	"askingwho-backend/application/ports"
	"askingwho-backend/application/services"
	"askingwho-backend/infrastructure/config"
	"askingwho-backend/infrastructure/messaging/apigw"
	"askingwho-backend/interfaces/http/rest"
	"askingwho-backend/interfaces/websocket"
	"askingwho-backend/pkg/auth"
	pkgerrors "askingwho-backend/pkg/errors"
	"askingwho-backend/pkg/observability"
)

// Stores is the repository set selected by the STORE setting
type Stores struct {
	Profiles      ports.ProfileRepository
	Questions     ports.QuestionRepository
	Notifications ports.NotificationRepository
	Conversations ports.ConversationRepository
	Messages      ports.MessageRepository
	Ping          rest.ReadinessCheck
}

// Container holds all dependencies of the HTTP API
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Level         zap.AtomicLevel
	ErrorHandler  *pkgerrors.ErrorHandler
	Stores        *Stores
	Collector     *observability.Collector
	Tracing       *observability.TracerProvider
	Hub           *websocket.Hub
	Publisher     ports.LivePublisher
	Graph         *services.SocialGraphService
	Engagement    *services.EngagementService
	Notifications *services.NotificationDispatcher
	Messaging     *services.MessagingService
	Aggregates    *services.AggregateService
	Watcher       *config.Watcher
	Router        *rest.Router
}

// Start begins watching the config file, when there is one
func (c *Container) Start() {
	if c.Watcher != nil {
		c.Watcher.Start()
	}
}

// Shutdown releases background resources in reverse order of creation
func (c *Container) Shutdown(ctx context.Context) {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}
	c.Hub.Close()
	if err := c.Tracing.Shutdown(ctx); err != nil {
		c.Logger.Warn("Failed to flush traces", zap.Error(err))
	}
	_ = c.Logger.Sync()
}

// EventsContainer holds the dependencies of the API Gateway websocket Lambda
type EventsContainer struct {
	Config    *config.Config
	Logger    *zap.Logger
	AWS       aws.Config
	Validator *auth.JWTValidator
	Registry  *apigw.Registry
}
