// Package prometheus exposes careauth store metrics through
// prometheus/client_golang.
//
// [NewPrometheusExporter] wraps a [careauth.Store] in a [prometheus.Collector]
// that reads [careauth.Store.MetricsSnapshot] on every scrape. Counter names
// are prefixed careauth_*_total; the single histogram is
// careauth_remote_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything in the global Prometheus registry. Handler serves a
//     private registry; callers wanting the default one register Collector
//     themselves.
//   - Mutate store state.
package prometheus
