package broadcast

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// DispatchMetrics records dispatch outcomes. Implementations must never fail
// the dispatch they are measuring.
type DispatchMetrics interface {
	RecordDispatch(ctx context.Context, provider types.Provider, result string)
	RecordLatency(ctx context.Context, provider types.Provider, d time.Duration)
	RecordLinkTestFailure(ctx context.Context, provider types.Provider)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ DispatchMetrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics publishes dispatch metrics to CloudWatch.
//
// Metrics emitted:
//   - DispatchAttempt: Dims {Provider, Result}
//   - DispatchLatency: Dims {Provider}, milliseconds
//   - LinkTestFailure: Dims {Provider}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics. An empty namespace falls
// back to types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchMetrics) RecordDispatch(ctx context.Context, provider types.Provider, result string) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimProvider), Value: aws.String(string(provider))},
			{Name: aws.String(types.DimResult), Value: aws.String(result)},
		},
	})
}

func (m *CloudWatchMetrics) RecordLatency(ctx context.Context, provider types.Provider, d time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchLatency),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimProvider), Value: aws.String(string(provider))},
		},
	})
}

func (m *CloudWatchMetrics) RecordLinkTestFailure(ctx context.Context, provider types.Provider) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricLinkTestFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimProvider), Value: aws.String(string(provider))},
		},
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(datum.MetricName),
		)
	}
}

// NoopMetrics discards everything. Used when METRICS_ENABLED is false.
type NoopMetrics struct{}

func (NoopMetrics) RecordDispatch(context.Context, types.Provider, string)       {}
func (NoopMetrics) RecordLatency(context.Context, types.Provider, time.Duration) {}
func (NoopMetrics) RecordLinkTestFailure(context.Context, types.Provider)        {}
