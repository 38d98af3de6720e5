package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"askingwho-backend/infrastructure/config"
	"askingwho-backend/infrastructure/messaging/eventbridge"
	"askingwho-backend/interfaces/websocket"
	"askingwho-backend/pkg/observability"
)

func TestProvideStores(t *testing.T) {
	cfg := config.Default()

	stores, err := ProvideStores(cfg, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, stores.Profiles)
	assert.NoError(t, stores.Ping(context.Background()))

	cfg.Store = "sqlite"
	_, err = ProvideStores(cfg, nil, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestProvideLimits(t *testing.T) {
	cfg := config.Default()
	cfg.Dynamic.Limits.Question = 42

	limits := ProvideLimits(cfg, nil)
	assert.Equal(t, 42, limits.TextLimits().Question)
}

func TestProvidePublisher(t *testing.T) {
	cfg := config.Default()
	logger := zaptest.NewLogger(t)
	collector := observability.NewCollector("test")
	hub := websocket.NewHub(collector, logger)

	assert.Same(t, hub, ProvidePublisher(cfg, hub, nil, collector, logger).(*websocket.Hub))

	cfg.IsLambda = true
	_, ok := ProvidePublisher(cfg, hub, nil, collector, logger).(*eventbridge.Publisher)
	assert.True(t, ok)
}

func TestInitializeContainer(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"

	c, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.Nil(t, c.Watcher)
	assert.Same(t, c.Hub, c.Publisher.(*websocket.Hub))

	handler := c.Router.Setup()
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
