package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/corvidvoice/corvid/pkg/metrics"
)

// metricsAddr is the listen address for the Prometheus scrape endpoint,
// following MrWong99-glyphoxa's internal/observe.InitProvider shape
// (Prometheus-exporter-backed MeterProvider), trimmed to metrics only —
// this module has no tracing spans to export.
const metricsAddr = ":9090"

// initTelemetry wires collector's OTel bridge to a Prometheus exporter and
// serves /metrics over HTTP when enabled. The returned shutdown func must
// be called on exit; it is a no-op when telemetry is disabled.
func initTelemetry(enabled bool, collector *metrics.Collector) (shutdown func(context.Context) error, err error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))

	if err := collector.WithOTel(mp); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: metricsAddr, Handler: mux}
	go srv.ListenAndServe()

	return func(ctx context.Context) error {
		srv.Shutdown(ctx)
		return mp.Shutdown(ctx)
	}, nil
}
