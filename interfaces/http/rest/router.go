package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"askingwho-backend/application/services"
	"askingwho-backend/interfaces/http/rest/handlers"
	"askingwho-backend/interfaces/http/rest/middleware"
	"askingwho-backend/pkg/auth"
	"askingwho-backend/pkg/common"
	pkgerrors "askingwho-backend/pkg/errors"
	"askingwho-backend/pkg/observability"
)

// Services are the application services exposed over HTTP
type Services struct {
	Graph         *services.SocialGraphService
	Engagement    *services.EngagementService
	Notifications *services.NotificationDispatcher
	Messaging     *services.MessagingService
	Aggregates    *services.AggregateService
}

// Options tune the router's cross-cutting behaviour
type Options struct {
	AllowedOrigins []string
	Breaker        middleware.CircuitBreakerConfig
}

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Router creates and configures the HTTP router
type Router struct {
	services   Services
	validator  *auth.JWTValidator
	errHandler *pkgerrors.ErrorHandler
	options    Options
	logger     *zap.Logger

	collector  *observability.Collector
	cloudwatch *observability.CloudWatchRecorder
	tracer     trace.Tracer
	websocket  http.Handler
	readiness  ReadinessCheck
}

// NewRouter creates a new router instance
func NewRouter(
	svc Services,
	validator *auth.JWTValidator,
	errHandler *pkgerrors.ErrorHandler,
	options Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		services:   svc,
		validator:  validator,
		errHandler: errHandler,
		options:    options,
		logger:     logger,
	}
}

// WithMetrics exposes collector on /metrics and records every request in it
func (rt *Router) WithMetrics(collector *observability.Collector) *Router {
	rt.collector = collector
	return rt
}

// WithCloudWatch records per-route metrics in CloudWatch
func (rt *Router) WithCloudWatch(recorder *observability.CloudWatchRecorder) *Router {
	rt.cloudwatch = recorder
	return rt
}

// WithTracer starts a span for every request
func (rt *Router) WithTracer(tracer trace.Tracer) *Router {
	rt.tracer = tracer
	return rt
}

// WithWebSocket mounts the live channel on /ws
func (rt *Router) WithWebSocket(handler http.Handler) *Router {
	rt.websocket = handler
	return rt
}

// WithReadiness makes /ready fail while check returns an error
func (rt *Router) WithReadiness(check ReadinessCheck) *Router {
	rt.readiness = check
	return rt
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.tracer != nil {
		router.Use(middleware.Tracing(rt.tracer))
	}
	if rt.collector != nil {
		router.Use(middleware.Metrics(rt.collector))
	}
	if rt.cloudwatch.Enabled() {
		router.Use(middleware.CloudWatch(rt.cloudwatch))
	}

	origins := rt.options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}
	if rt.websocket != nil {
		router.Method(http.MethodGet, "/ws", rt.websocket)
	}

	userHandler := handlers.NewUserHandler(rt.services.Graph, rt.services.Aggregates, rt.errHandler, rt.logger)
	questionHandler := handlers.NewQuestionHandler(rt.services.Engagement, rt.errHandler, rt.logger)
	notificationHandler := handlers.NewNotificationHandler(rt.services.Notifications, rt.errHandler, rt.logger)
	globalHandler := handlers.NewGlobalHandler(rt.services.Aggregates, rt.errHandler)
	conversationHandler := handlers.NewConversationHandler(rt.services.Messaging, rt.errHandler, rt.logger)

	breaker := rt.options.Breaker
	if breaker.Name == "" {
		breaker = middleware.DefaultCircuitBreakerConfig("api")
	}
	var breakerRecorder middleware.BreakerRecorder
	if rt.collector != nil {
		breakerRecorder = rt.collector
	}

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.CircuitBreaker(breaker, breakerRecorder, rt.errHandler, rt.logger))

		// Public and optionally authenticated reads
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(rt.validator))
			r.Get("/users/search", userHandler.Search)
			r.Get("/users/{username}", userHandler.GetProfile)
			r.Get("/questions/answered/{username}", questionHandler.ListAnswered)
			r.Get("/global/leaderboard", globalHandler.Leaderboard)
			r.Get("/global/feed", globalHandler.Feed)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.validator, rt.errHandler, rt.logger))

			r.Get("/users/me", userHandler.Me)
			r.Post("/users/{username}/follow", userHandler.Follow)
			r.Post("/users/{username}/unfollow", userHandler.Unfollow)

			r.Route("/questions", func(r chi.Router) {
				r.Post("/send", questionHandler.SendQuestion)
				r.Get("/unanswered", questionHandler.ListUnanswered)
				r.Get("/{id}", questionHandler.Get)
				r.Patch("/{id}/answer", questionHandler.Answer)
				r.Post("/{id}/like", questionHandler.Like)
				r.Post("/{id}/unlike", questionHandler.Unlike)
				r.Post("/{id}/comment", questionHandler.Comment)
				r.Delete("/{id}", questionHandler.Delete)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Patch("/clear", notificationHandler.MarkAllRead)
				r.Delete("/clear", notificationHandler.DeleteAll)
				r.Patch("/{id}/read", notificationHandler.MarkRead)
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", conversationHandler.List)
				r.Post("/start", conversationHandler.Start)
				r.Get("/{id}/messages", conversationHandler.Messages)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Post("/send", conversationHandler.SendMessage)
				r.Patch("/{id}/read", conversationHandler.MarkRead)
			})
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.readiness != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.readiness(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			rt.errHandler.Handle(w, req, pkgerrors.NewUnavailableError("store"))
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
