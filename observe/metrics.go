// Package observe records OpenTelemetry metrics for the relay and exports
// them for Prometheus scraping.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/a-h/alex"

type Metrics struct {
	// RelayDuration is the time taken to relay a reply, from request to the
	// last byte of text or audio. Attribute "mode" is "text" or "audio".
	RelayDuration metric.Float64Histogram

	// ProviderRequests counts calls to the completion and synthesis providers.
	// Attributes: "kind" ("llm" or "tts") and "status" ("ok" or "error").
	ProviderRequests metric.Int64Counter

	// AudioBytes counts synthesized audio bytes written to clients.
	AudioBytes metric.Int64Counter

	// HTTPRequestDuration is recorded by Middleware with "method" and "route".
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}
	if met.RelayDuration, err = m.Float64Histogram("alex.relay.duration",
		metric.WithDescription("Time taken to relay a reply."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("alex.provider.requests",
		metric.WithDescription("Calls to completion and synthesis providers."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytes, err = m.Int64Counter("alex.audio.bytes",
		metric.WithDescription("Synthesized audio bytes written to clients."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("alex.http.request.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// Discard returns Metrics that record nothing.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic(err)
	}
	return m
}

// RecordProvider counts a provider call with its outcome.
func (m *Metrics) RecordProvider(ctx context.Context, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordRelay(ctx context.Context, mode string, since time.Time) {
	m.RelayDuration.Record(ctx, time.Since(since).Seconds(), metric.WithAttributes(
		attribute.String("mode", mode),
	))
}
