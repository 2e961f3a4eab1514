// Package observe holds the OpenTelemetry instruments recorded by the tuner
// loop. Instruments are created from a [metric.MeterProvider]. Commands build
// one with [InitProvider] and scrape it over /metrics; tests pass an SDK
// provider with a manual reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all tuner metrics.
const meterName = "github.com/metalblueberry/bard"

// Metrics holds the metric instruments for the capture/estimate/display loop.
type Metrics struct {
	// Frames counts processed frames. Use with attribute:
	//   attribute.Bool("voiced", ...)
	Frames metric.Int64Counter

	// SourceErrors counts frames that could not be read from the source.
	SourceErrors metric.Int64Counter

	// EstimateDuration tracks the time spent in the pitch estimator.
	EstimateDuration metric.Float64Histogram
}

// estimateBuckets (seconds) cover the interactive range of a 60 Hz tick.
var estimateBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167, 0.025, 0.05,
}

// NewMetrics creates all instruments using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("tuner.frames",
		metric.WithDescription("Frames passed through the pitch estimator."),
	); err != nil {
		return nil, err
	}
	if met.SourceErrors, err = m.Int64Counter("tuner.source.errors",
		metric.WithDescription("Frames the sample source failed to deliver."),
	); err != nil {
		return nil, err
	}
	if met.EstimateDuration, err = m.Float64Histogram("tuner.estimate.duration",
		metric.WithDescription("Latency of a single pitch estimate."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(estimateBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built from
// [otel.GetMeterProvider]. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordFrame records one processed frame and the estimator latency.
func (m *Metrics) RecordFrame(ctx context.Context, voiced bool, took time.Duration) {
	m.Frames.Add(ctx, 1, metric.WithAttributes(attribute.Bool("voiced", voiced)))
	m.EstimateDuration.Record(ctx, took.Seconds())
}

// RecordSourceError counts a failed read.
func (m *Metrics) RecordSourceError(ctx context.Context) {
	m.SourceErrors.Add(ctx, 1)
}
