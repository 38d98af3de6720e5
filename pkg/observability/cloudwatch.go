package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// MetricsAPI is the part of the CloudWatch client the recorder needs
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder publishes per-route request metrics to CloudWatch.
// It is used in the Lambda deployment where there is no scraper.
type CloudWatchRecorder struct {
	namespace string
	client    MetricsAPI
	logger    *zap.Logger
}

// NewCloudWatchRecorder creates a recorder. A nil client disables it.
func NewCloudWatchRecorder(namespace string, client MetricsAPI, logger *zap.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloudWatchRecorder{namespace: namespace, client: client, logger: logger}
}

// Enabled reports whether metrics are sent anywhere
func (m *CloudWatchRecorder) Enabled() bool {
	return m != nil && m.client != nil
}

// RecordRequest records the latency and outcome of one API request
func (m *CloudWatchRecorder) RecordRequest(ctx context.Context, route string, status int, duration time.Duration) {
	if !m.Enabled() {
		return
	}

	outcome := "success"
	switch {
	case status >= 500:
		outcome = "server_error"
	case status >= 400:
		outcome = "client_error"
	}
	dims := []types.Dimension{
		{Name: aws.String("Route"), Value: aws.String(route)},
		{Name: aws.String("Outcome"), Value: aws.String(outcome)},
	}
	now := time.Now()

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String("RequestLatency"),
				Dimensions: dims,
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       types.StandardUnitMilliseconds,
				Timestamp:  aws.Time(now),
			},
			{
				MetricName: aws.String("RequestCount"),
				Dimensions: dims,
				Value:      aws.Float64(1),
				Unit:       types.StandardUnitCount,
				Timestamp:  aws.Time(now),
			},
		},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Warn("Failed to publish CloudWatch metrics", zap.String("route", route), zap.Error(err))
	}
}
