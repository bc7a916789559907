// Package tracing provides optional OpenTelemetry tracing for runs.
// Spans wrap stage execution and task finalization; without a tracing
// section in the configuration everything is a no-op.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/wehubfusion/Severn/pkg/config"
)

// TracerName is the instrumentation scope for run spans.
const TracerName = "github.com/wehubfusion/Severn"

// Setup initializes OpenTelemetry tracing with an OTLP HTTP exporter.
// It returns a shutdown function to call when the run finishes. A nil
// configuration returns a no-op shutdown.
func Setup(ctx context.Context, conf *config.TracingConfig, logger *zap.Logger) (func(context.Context) error, error) {
	if conf == nil {
		return func(context.Context) error { return nil }, nil
	}

	endpoint := conf.Endpoint
	if endpoint == "" {
		endpoint = "127.0.0.1:4318"
	}
	ratio := conf.SampleRatio
	if ratio <= 0 {
		ratio = 1.0
	}

	logger.Info("setting up tracing",
		zap.String("service", conf.ServiceName()),
		zap.String("endpoint", endpoint),
		zap.Float64("sample_ratio", ratio))

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(conf.ServiceName()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tracing resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(ratio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Shutdown flushes and stops the tracer provider with a bounded
// timeout.
func Shutdown(shutdown func(context.Context) error, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
}
