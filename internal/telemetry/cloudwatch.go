package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	// maxDatumsPerPut is the PutMetricData batch limit.
	maxDatumsPerPut = 1000

	briefingSent = "sent"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchCollector buffers datums in memory and ships them on Flush.
// Recording never blocks on the network.
//
// Metrics emitted:
//   - APIRequest / APILatency: Dims {Method, Endpoint, Status}
//   - SourceResult / SourceLatency: Dims {Source, Outcome}
//   - FallbackStage: Dims {Stage}
//   - BriefingSent / BriefingFailed: no dims
type CloudWatchCollector struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger

	mu      sync.Mutex
	pending []cwtypes.MetricDatum
	now     func() time.Time
}

var _ Collector = (*CloudWatchCollector)(nil)

// NewCloudWatchCollector creates a collector publishing to namespace. An
// empty namespace uses types.MetricNamespace.
func NewCloudWatchCollector(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchCollector {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchCollector{
		client:    client,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

func (c *CloudWatchCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := dimensions(types.DimMethod, method, types.DimEndpoint, endpoint, types.DimStatus, status)
	c.add(
		c.count(types.MetricAPIRequest, dims),
		c.millis(types.MetricAPILatency, duration, dims),
	)
}

func (c *CloudWatchCollector) RecordSource(source types.DataType, outcome string, duration time.Duration) {
	dims := dimensions(types.DimSource, string(source), types.DimOutcome, outcome)
	c.add(
		c.count(types.MetricSourceResult, dims),
		c.millis(types.MetricSourceLatency, duration, dims),
	)
}

func (c *CloudWatchCollector) RecordFallbackStage(stage types.FallbackStage) {
	c.add(c.count(types.MetricFallbackStage, dimensions(types.DimStage, string(stage))))
}

func (c *CloudWatchCollector) RecordBriefing(outcome string) {
	name := types.MetricBriefingSent
	if outcome != briefingSent {
		name = types.MetricBriefingFailed
	}
	c.add(c.count(name, nil))
}

// Pending reports how many datums are waiting for Flush.
func (c *CloudWatchCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Flush sends buffered datums in batches. Datums from a failed batch are
// dropped after logging; metrics are best effort.
func (c *CloudWatchCollector) Flush(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	var firstErr error
	for len(batch) > 0 {
		n := min(len(batch), maxDatumsPerPut)
		input := &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(c.namespace),
			MetricData: batch[:n],
		}
		if _, err := c.client.PutMetricData(ctx, input); err != nil {
			c.logger.ErrorContext(ctx, "failed to publish metrics",
				"error", err.Error(),
				"datums", n,
			)
			if firstErr == nil {
				firstErr = err
			}
		}
		batch = batch[n:]
	}
	return firstErr
}

// Run flushes every interval until ctx is done, then flushes once more
// with a short grace period.
func (c *CloudWatchCollector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Flush(flushCtx)
			cancel()
			return
		case <-ticker.C:
			_ = c.Flush(ctx)
		}
	}
}

func (c *CloudWatchCollector) add(datums ...cwtypes.MetricDatum) {
	c.mu.Lock()
	c.pending = append(c.pending, datums...)
	c.mu.Unlock()
}

func (c *CloudWatchCollector) count(name string, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
		Timestamp:  aws.Time(c.now()),
	}
}

func (c *CloudWatchCollector) millis(name string, d time.Duration, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: dims,
		Timestamp:  aws.Time(c.now()),
	}
}

// dimensions builds CloudWatch dimensions from name/value pairs.
func dimensions(kv ...string) []cwtypes.Dimension {
	dims := make([]cwtypes.Dimension, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		dims = append(dims, cwtypes.Dimension{
			Name:  aws.String(kv[i]),
			Value: aws.String(kv[i+1]),
		})
	}
	return dims
}
