package tracing

import (
	"context"
	"fmt"
	"time"

	"chitchat/internal/models"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "chitchat"

const flushTimeout = 5 * time.Second

// Provider owns the process-wide tracer provider. A disabled Provider
// leaves the otel no-op provider installed.
type Provider struct {
	cfg      models.TracingConfig
	logger   *logrus.Logger
	provider *sdktrace.TracerProvider
}

func NewProvider(cfg models.TracingConfig, logger *logrus.Logger) *Provider {
	return &Provider{cfg: cfg, logger: logger}
}

// Start builds the exporter and installs the tracer provider globally.
func (p *Provider) Start(ctx context.Context) error {
	if !p.cfg.Enabled {
		p.logger.Debug("Tracing disabled")
		return nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(p.cfg.ServiceName),
		semconv.ServiceVersionKey.String(p.cfg.ServiceVersion),
		semconv.DeploymentEnvironmentKey.String(p.cfg.Environment),
	))
	if err != nil {
		return fmt.Errorf("failed to build trace resource: %w", err)
	}

	exporter, err := p.exporter(ctx)
	if err != nil {
		return err
	}

	p.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.cfg.SampleRate))),
	)
	otel.SetTracerProvider(p.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	p.logger.WithFields(logrus.Fields{
		"service":     p.cfg.ServiceName,
		"sample_rate": p.cfg.SampleRate,
		"stdout":      p.cfg.UseStdout,
	}).Info("Tracing started")
	return nil
}

func (p *Provider) exporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if p.cfg.UseStdout || p.cfg.OTLPEndpoint == "" {
		exp, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout span exporter: %w", err)
		}
		return exp, nil
	}

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(p.cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP span exporter for %s: %w", p.cfg.OTLPEndpoint, err)
	}
	return exp, nil
}

// Stop flushes buffered spans. Safe to call on a disabled Provider.
func (p *Provider) Stop(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := p.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to flush spans: %w", err)
	}
	return nil
}

func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	span := oteltrace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, oteltrace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// TraceID returns the active span's trace id, or "" outside a span.
func TraceID(ctx context.Context) string {
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
