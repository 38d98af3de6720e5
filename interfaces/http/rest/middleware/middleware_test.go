package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"askingwho-backend/pkg/auth"
	pkgerrors "askingwho-backend/pkg/errors"
	"askingwho-backend/pkg/observability"
)

func testValidator(t *testing.T) (*auth.JWTValidator, *auth.JWTGenerator) {
	t.Helper()
	cfg := auth.JWTConfig{SecretKey: "middleware-secret", Expiry: time.Hour}
	v, err := auth.NewJWTValidator(cfg)
	require.NoError(t, err)
	g, err := auth.NewJWTGenerator(cfg)
	require.NoError(t, err)
	return v, g
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.GetUserFromContext(r.Context()); ok {
		_, _ = w.Write([]byte(user.UserID))
		return
	}
	_, _ = w.Write([]byte("guest"))
}

func TestAuthenticate(t *testing.T) {
	validator, generator := testValidator(t)
	mw := Authenticate(validator, pkgerrors.NewErrorHandler(zap.NewNop(), false), zap.NewNop())
	h := mw(http.HandlerFunc(echoUser))

	t.Run("Should store the caller", func(t *testing.T) {
		token, err := generator.GenerateToken("u-1", "alice")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u-1", rec.Body.String())
	})

	t.Run("Should reject a missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Missing authorization header")
	})
}

func TestOptionalAuth(t *testing.T) {
	validator, generator := testValidator(t)
	h := OptionalAuth(validator)(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "Should pass guests through", header: "", want: "guest"},
		{name: "Should ignore invalid tokens", header: "Bearer junk", want: "guest"},
	}
	token, err := generator.GenerateToken("u-2", "bob")
	require.NoError(t, err)
	tests = append(tests, struct {
		name   string
		header string
		want   string
	}{name: "Should store a valid caller", header: "Bearer " + token, want: "u-2"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestLoggerRecordsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "/brew", fields["path"])
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	collector := observability.NewCollector("mw")
	router := chi.NewRouter()
	router.Use(Metrics(collector))
	router.Get("/api/questions/{id}", func(w http.ResponseWriter, r *http.Request) {})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/questions/q-1", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/questions/q-2", nil))

	got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("GET", "/api/questions/{id}", "200"))
	assert.Equal(t, float64(2), got)
}

func TestTracingMarksServerErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	router := chi.NewRouter()
	router.Use(Tracing(provider.Tracer("test")))
	router.Get("/boom/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom/1", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /boom/{id}", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}
