// Package otel binds careauth store metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per store counter.
// The latency histogram becomes a careauth_remote_latency_seconds_bucket
// gauge with one data point per le bound, plus a _count gauge. One callback
// reads [careauth.Store.MetricsSnapshot] through internaldefs.Read on each
// collection cycle, so the series match the Prometheus exporter.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate store state.
package otel
