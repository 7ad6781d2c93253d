// Package trace wires OpenTelemetry for the API. Exporting is opt-in via
// GREED_OTLP_ENDPOINT; without it a no-op provider is installed so the
// middleware stays cheap.
package trace

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.25.0"
)

const prodSampleRatio = 0.1

func InitTracer(serviceName, env string) (func(context.Context) error, error) {
	endpoint := os.Getenv("GREED_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(env)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// samplerFor keeps every span in dev and test; production traffic is sampled
// to keep the collector bill flat under the rate-limited auth burst.
func samplerFor(env string) sdktrace.Sampler {
	if env == "dev" || env == "test" {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(prodSampleRatio))
}
