// Package otel mirrors shopAuth counters and histograms into OpenTelemetry
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and
// one Int64ObservableGauge per histogram bucket. Callers own the
// MeterProvider and pass a Meter.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider.
//   - Mutate engine state.
package otel
