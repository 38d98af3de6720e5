package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector("askingwho")

	c.RecordHTTPRequest("GET", "/api/global/feed", "200", 20*time.Millisecond)
	c.CacheHit("aggregates")
	c.CacheHit("aggregates")
	c.CacheMiss("aggregates")
	c.LivePush("newMessage", nil)
	c.LivePush("newMessage", errors.New("gone"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheHits.WithLabelValues("aggregates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheMisses.WithLabelValues("aggregates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LivePushes.WithLabelValues("newMessage", "failed")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "askingwho_http_requests_total"))

	// Collectors are independent.
	other := NewCollector("askingwho")
	assert.Equal(t, 0.0, testutil.ToFloat64(other.CacheHits.WithLabelValues("aggregates")))
}

type fakeMetricsAPI struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeMetricsAPI) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestCloudWatchRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("Should skip without a client", func(t *testing.T) {
		r := NewCloudWatchRecorder("AskingWho", nil, nil)
		assert.False(t, r.Enabled())
		r.RecordRequest(ctx, "/api/global/feed", 200, time.Millisecond)
	})

	t.Run("Should publish latency and count", func(t *testing.T) {
		api := &fakeMetricsAPI{}
		r := NewCloudWatchRecorder("AskingWho", api, nil)
		r.RecordRequest(ctx, "/api/questions/{id}", 404, 5*time.Millisecond)

		require.Len(t, api.inputs, 1)
		in := api.inputs[0]
		assert.Equal(t, "AskingWho", *in.Namespace)
		require.Len(t, in.MetricData, 2)
		assert.Equal(t, "RequestLatency", *in.MetricData[0].MetricName)
		assert.Equal(t, "client_error", *in.MetricData[0].Dimensions[1].Value)
	})
}

func TestInitTracingDisabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), "askingwho", "test", "")
	require.NoError(t, err)
	_, span := tp.Tracer().Start(context.Background(), "noop")
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}
