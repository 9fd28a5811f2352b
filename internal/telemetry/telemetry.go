// Package telemetry wires OpenTelemetry metrics behind a Prometheus exporter.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry holds the meter provider and the pipeline's instruments. The zero
// value (telemetry disabled) is safe to call; every recorder is nil-checked.
type Telemetry struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter

	downloadsTotal   metric.Int64Counter
	downloadBytes    metric.Int64Counter
	downloadDuration metric.Float64Histogram
	listingRowsTotal metric.Int64Counter
	matchesTotal     metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool
	ServiceName string
}

// New creates a telemetry instance backed by a Prometheus exporter.
func New(cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(cfg.ServiceName),
	}

	if err := t.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initInstruments() error {
	var err error

	if t.downloadsTotal, err = t.meter.Int64Counter("downloads_total",
		metric.WithDescription("Download attempts by terminal status")); err != nil {
		return err
	}

	if t.downloadBytes, err = t.meter.Int64Counter("download_bytes_total",
		metric.WithDescription("Bytes received, including partial transfers"),
		metric.WithUnit("By")); err != nil {
		return err
	}

	if t.downloadDuration, err = t.meter.Float64Histogram("download_duration_seconds",
		metric.WithDescription("Wall-clock duration of completed transfers"),
		metric.WithUnit("s")); err != nil {
		return err
	}

	if t.listingRowsTotal, err = t.meter.Int64Counter("listing_rows_total",
		metric.WithDescription("Listing rows parsed, by accepted/skipped")); err != nil {
		return err
	}

	if t.matchesTotal, err = t.meter.Int64Counter("matches_total",
		metric.WithDescription("Title match results by outcome")); err != nil {
		return err
	}

	return nil
}

// DownloadFinished records the terminal state of one transfer. Status is a
// bounded set: "downloaded", "failed", "unmatched".
func (t *Telemetry) DownloadFinished(ctx context.Context, status string, bytes int64, duration time.Duration) {
	if t == nil {
		return
	}

	if t.downloadsTotal != nil {
		t.downloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}

	if t.downloadBytes != nil && bytes > 0 {
		t.downloadBytes.Add(ctx, bytes)
	}

	if t.downloadDuration != nil {
		t.downloadDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(attribute.String("status", status)))
	}
}

// RecordListingParse records how many rows the listing parse accepted and
// skipped.
func (t *Telemetry) RecordListingParse(ctx context.Context, accepted, skipped int) {
	if t == nil || t.listingRowsTotal == nil {
		return
	}

	t.listingRowsTotal.Add(ctx, int64(accepted), metric.WithAttributes(attribute.String("result", "accepted")))
	t.listingRowsTotal.Add(ctx, int64(skipped), metric.WithAttributes(attribute.String("result", "skipped")))
}

// RecordMatches records the match pass split.
func (t *Telemetry) RecordMatches(ctx context.Context, matched, unmatched int) {
	if t == nil || t.matchesTotal == nil {
		return
	}

	t.matchesTotal.Add(ctx, int64(matched), metric.WithAttributes(attribute.String("result", "matched")))
	t.matchesTotal.Add(ctx, int64(unmatched), metric.WithAttributes(attribute.String("result", "unmatched")))
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HTTPTransport wraps base with OpenTelemetry instrumentation so outbound
// listing and download requests show up in the metrics.
func HTTPTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base)
}

// Shutdown flushes the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	provider, ok := t.meterProvider.(*sdkmetric.MeterProvider)
	if !ok || provider == nil {
		return nil
	}

	return provider.Shutdown(ctx)
}
