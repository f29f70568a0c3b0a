// Package tracing provides OpenTelemetry-based distributed tracing infrastructure.
// It supports multiple exporters (stdout, OTLP) and provides domain-specific
// span helpers for sync cycles, queue drains and remote store requests.
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the name used for the yardsync tracer.
	TracerName = "github.com/jbctechsolutions/yardsync"

	// Version is the semantic version of the tracer.
	Version = "1.0.0"
)

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	Enabled      bool         // Whether tracing is enabled
	ExporterType ExporterType // Type of exporter to use
	OTLPEndpoint string       // OTLP collector endpoint (for OTLP exporter)
	ServiceName  string       // Service name for traces
	Environment  string       // Deployment environment (development, production)
	SampleRate   float64      // Sampling rate (0.0 to 1.0)
	Output       io.Writer    // Output for stdout exporter (defaults to os.Stdout)
}

// DefaultConfig returns sensible default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ExporterType: ExporterNone,
		ServiceName:  "yardsync",
		Environment:  "development",
		SampleRate:   1.0,
	}
}

// Tracer wraps an OpenTelemetry tracer with domain-specific functionality.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   Config
}

// global is the package-level default tracer.
var (
	global     *Tracer
	globalOnce sync.Once
)

// Init initializes the global tracer with the provided configuration.
func Init(ctx context.Context, cfg Config) (*Tracer, error) {
	var err error
	globalOnce.Do(func() {
		global, err = New(ctx, cfg)
	})
	return global, err
}

// Default returns the global tracer, or a no-op tracer if not initialized.
func Default() *Tracer {
	if global == nil {
		return &Tracer{
			tracer: otel.Tracer(TracerName),
			config: DefaultConfig(),
		}
	}
	return global
}

// New creates a new Tracer with the provided configuration.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(TracerName),
			config: cfg,
		}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	// Create resource without merging with Default() to avoid schema URL conflicts.
	// The default resource's schema URL may conflict with our semconv version.
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(Version),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0.0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(Version)),
		provider: provider,
		config:   cfg,
	}, nil
}

// createExporter creates the appropriate exporter based on configuration.
func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		opts := []stdouttrace.Option{
			stdouttrace.WithPrettyPrint(),
		}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithInsecure(),
		}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown gracefully shuts down the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// Start starts a new span with the given name.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// --- Domain-specific span helpers ---

// SyncSpan represents one fetch-and-merge cycle.
type SyncSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartSyncSpan starts a span for a sync cycle.
func (t *Tracer) StartSyncSpan(ctx context.Context, trigger string) (context.Context, *SyncSpan) {
	ctx, span := t.tracer.Start(ctx, "sync.cycle",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("sync.trigger", trigger),
		),
	)

	return ctx, &SyncSpan{span: span, ctx: ctx}
}

// SetMergeCounts records how many remote records were adopted or kept
// local.
func (ss *SyncSpan) SetMergeCounts(adopted, skipped int) {
	ss.span.SetAttributes(
		attribute.Int("sync.merge.adopted", adopted),
		attribute.Int("sync.merge.skipped", skipped),
	)
}

// SetRemoteHash records the content hash observed on the remote.
func (ss *SyncSpan) SetRemoteHash(hash string) {
	ss.span.SetAttributes(attribute.String("sync.remote_hash", hash))
}

// End ends the sync span with success status.
func (ss *SyncSpan) End() {
	ss.span.SetStatus(codes.Ok, "sync cycle completed")
	ss.span.End()
}

// EndWithError ends the sync span with error status.
func (ss *SyncSpan) EndWithError(err error) {
	ss.span.RecordError(err)
	ss.span.SetStatus(codes.Error, err.Error())
	ss.span.End()
}

// DrainSpan represents one queue drain run.
type DrainSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartDrainSpan starts a span for a queue drain.
func (t *Tracer) StartDrainSpan(ctx context.Context, pending int) (context.Context, *DrainSpan) {
	ctx, span := t.tracer.Start(ctx, "queue.drain",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("queue.pending", pending),
		),
	)

	return ctx, &DrainSpan{span: span, ctx: ctx}
}

// SetOutcome records how many operations were pushed and how many
// failed during this drain.
func (ds *DrainSpan) SetOutcome(pushed, failed int) {
	ds.span.SetAttributes(
		attribute.Int("queue.pushed", pushed),
		attribute.Int("queue.failed", failed),
	)
}

// End ends the drain span with success status.
func (ds *DrainSpan) End() {
	ds.span.SetStatus(codes.Ok, "queue drain completed")
	ds.span.End()
}

// EndWithError ends the drain span with error status.
func (ds *DrainSpan) EndWithError(err error) {
	ds.span.RecordError(err)
	ds.span.SetStatus(codes.Error, err.Error())
	ds.span.End()
}

// RemoteSpan represents a remote store request.
type RemoteSpan struct {
	span trace.Span
	ctx  context.Context
}

// StartRemoteSpan starts a span for a remote store request.
func (t *Tracer) StartRemoteSpan(ctx context.Context, method, path string) (context.Context, *RemoteSpan) {
	ctx, span := t.tracer.Start(ctx, "remote.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("remote.method", method),
			attribute.String("remote.path", path),
		),
	)

	return ctx, &RemoteSpan{span: span, ctx: ctx}
}

// SetStatusCode records the HTTP status code of the response.
func (rs *RemoteSpan) SetStatusCode(code int) {
	rs.span.SetAttributes(attribute.Int("remote.status_code", code))
}

// SetAttempts records how many write attempts the request took.
func (rs *RemoteSpan) SetAttempts(attempts int) {
	rs.span.SetAttributes(attribute.Int("remote.attempts", attempts))
}

// End ends the remote span with success status.
func (rs *RemoteSpan) End() {
	rs.span.SetStatus(codes.Ok, "remote request completed")
	rs.span.End()
}

// EndWithError ends the remote span with error status.
func (rs *RemoteSpan) EndWithError(err error) {
	rs.span.RecordError(err)
	rs.span.SetStatus(codes.Error, err.Error())
	rs.span.End()
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
}

// SetAttribute sets an attribute on the current span.
func SetAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	}
}
