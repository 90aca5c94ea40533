// Package observe provides the observability primitives for voxrecap:
// OpenTelemetry metrics, tracing, trace-aware logging, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// scraping through the Prometheus exporter bridge set up by [InitProvider].
// [DefaultMetrics] returns a package-level instance bound to the global
// provider; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxrecap metrics.
const meterName = "github.com/MrWong99/voxrecap"

// Metrics holds all OpenTelemetry instruments for the application. The
// underlying OTel types handle their own synchronisation.
type Metrics struct {
	// --- Stage latency histograms ---

	// TranscodeDuration tracks the ffmpeg conversion of one raw file.
	TranscodeDuration metric.Float64Histogram

	// RecognizeDuration tracks speech recognition of one waveform file.
	RecognizeDuration metric.Float64Histogram

	// SummaryDuration tracks summary generation across all tiers.
	SummaryDuration metric.Float64Histogram

	// --- Counters ---

	// CaptureBytes counts raw PCM bytes written to disk.
	CaptureBytes metric.Int64Counter

	// CaptureErrors counts participant capture failures. Use with attribute:
	//   attribute.String("op", ...) (create|write|decode)
	CaptureErrors metric.Int64Counter

	// FileErrors counts per-file failures in the post-capture pipeline. Use
	// with attribute:
	//   attribute.String("stage", ...) (transcode|recognize)
	FileErrors metric.Int64Counter

	// SummaryTiers counts produced summaries by tier. Use with attribute:
	//   attribute.String("tier", ...)
	SummaryTiers metric.Int64Counter

	// ProviderRequests counts remote provider calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes:
	//   attribute.String("name", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks live capture sessions. Use with attribute:
	//   attribute.String("mode", ...)
	ActiveSessions metric.Int64UpDownCounter

	// ActiveSpeakers tracks participant capture tasks across all sessions.
	ActiveSpeakers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time, labelled by
	// "method", "route" (the ServeMux pattern) and "status".
	HTTPRequestDuration metric.Float64Histogram
}

// stageBuckets are histogram boundaries (in seconds) for offline processing
// stages, which range from a short ffmpeg run to a long recognition pass.
var stageBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscodeDuration, err = m.Float64Histogram("voxrecap.transcode.duration",
		metric.WithDescription("Latency of converting one raw capture to a waveform file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecognizeDuration, err = m.Float64Histogram("voxrecap.recognize.duration",
		metric.WithDescription("Latency of speech recognition of one waveform file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummaryDuration, err = m.Float64Histogram("voxrecap.summary.duration",
		metric.WithDescription("Latency of summary generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CaptureBytes, err = m.Int64Counter("voxrecap.capture.bytes",
		metric.WithDescription("Raw PCM bytes written by participant capture."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("voxrecap.capture.errors",
		metric.WithDescription("Participant capture failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.FileErrors, err = m.Int64Counter("voxrecap.file.errors",
		metric.WithDescription("Files skipped by the post-capture pipeline, by stage."),
	); err != nil {
		return nil, err
	}
	if met.SummaryTiers, err = m.Int64Counter("voxrecap.summary.tiers",
		metric.WithDescription("Produced summaries by tier."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("voxrecap.provider.requests",
		metric.WithDescription("Remote provider requests by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("voxrecap.circuit_breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voxrecap.active_sessions",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSpeakers, err = m.Int64UpDownCounter("voxrecap.active_speakers",
		metric.WithDescription("Number of participant capture tasks across all sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxrecap.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails, which does not happen with the global provider.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records one remote provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordSummaryTier records one produced summary.
func (m *Metrics) RecordSummaryTier(ctx context.Context, tier string) {
	m.SummaryTiers.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordCaptureError records one participant capture failure.
func (m *Metrics) RecordCaptureError(ctx context.Context, op string) {
	m.CaptureErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordFileError records one file dropped from the post-capture pipeline.
func (m *Metrics) RecordFileError(ctx context.Context, stage string) {
	m.FileErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordBreakerTransition records a circuit breaker moving to a new state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("name", name),
			attribute.String("to", to),
		),
	)
}
