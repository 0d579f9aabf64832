// Package prometheus exposes shopAuth engine metrics through
// client_golang.
//
// [Collector] implements prometheus.Collector and builds const metrics from
// one [shopAuth.Engine.MetricsSnapshot] per scrape. Counter names use the
// shopauth_*_total form; latency histograms are shopauth_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry. Callers register the
//     Collector or mount Handler.
//   - Mutate engine state.
package prometheus
