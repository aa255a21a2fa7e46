package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	JobsProcessed    metric.Int64Counter
	JobsFailed       metric.Int64Counter
	JobsRetried      metric.Int64Counter
	AnalysisDuration metric.Float64Histogram
	DedupHitCount    metric.Int64Counter
	DedupMissCount   metric.Int64Counter
}

// Setup initializes OpenTelemetry
func Setup(ctx context.Context, serviceName, serviceVersion, endpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	// Set up trace provider
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Shutdown function
	shutdown := func(ctx context.Context) error {
		return tracerProvider.Shutdown(ctx)
	}

	return shutdown, nil
}

// InitMetrics initializes pipeline metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("github.com/zatekoja/Chartreviewautomation")

	jobsProcessed, err := meter.Int64Counter(
		"pipeline.jobs.processed",
		metric.WithDescription("Number of queue jobs processed"),
	)
	if err != nil {
		return nil, err
	}

	jobsFailed, err := meter.Int64Counter(
		"pipeline.jobs.failed",
		metric.WithDescription("Number of queue jobs that failed"),
	)
	if err != nil {
		return nil, err
	}

	jobsRetried, err := meter.Int64Counter(
		"pipeline.jobs.retried",
		metric.WithDescription("Number of queue jobs re-enqueued with backoff"),
	)
	if err != nil {
		return nil, err
	}

	analysisDuration, err := meter.Float64Histogram(
		"pipeline.analysis.duration",
		metric.WithDescription("Documentation analysis duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	dedupHitCount, err := meter.Int64Counter(
		"pipeline.dedup.hit.count",
		metric.WithDescription("Number of analyses served from a stored fingerprint match"),
	)
	if err != nil {
		return nil, err
	}

	dedupMissCount, err := meter.Int64Counter(
		"pipeline.dedup.miss.count",
		metric.WithDescription("Number of analyses that ran the full check set"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		JobsProcessed:    jobsProcessed,
		JobsFailed:       jobsFailed,
		JobsRetried:      jobsRetried,
		AnalysisDuration: analysisDuration,
		DedupHitCount:    dedupHitCount,
		DedupMissCount:   dedupMissCount,
	}, nil
}

// StartSpan starts a new trace span
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/zatekoja/Chartreviewautomation")
	return tracer.Start(ctx, spanName)
}

// RecordError records an error in the current span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
}

// RecordJobMetric records the outcome of one processed job
func RecordJobMetric(ctx context.Context, metrics *Metrics, jobType string, failed bool) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("job.type", jobType),
	}
	metrics.JobsProcessed.Add(ctx, 1, metric.WithAttributes(attrs...))
	if failed {
		metrics.JobsFailed.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRetryMetric records a backoff re-enqueue
func RecordRetryMetric(ctx context.Context, metrics *Metrics, jobType string, attempt int) {
	if metrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("job.type", jobType),
		attribute.Int("job.attempt", attempt),
	}
	metrics.JobsRetried.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAnalysisMetric records one analysis run
func RecordAnalysisMetric(ctx context.Context, metrics *Metrics, duration time.Duration, dedupHit bool) {
	if metrics == nil {
		return
	}
	metrics.AnalysisDuration.Record(ctx, float64(duration.Milliseconds()))
	if dedupHit {
		metrics.DedupHitCount.Add(ctx, 1)
	} else {
		metrics.DedupMissCount.Add(ctx, 1)
	}
}
