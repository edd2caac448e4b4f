// Package otel publishes hubauth engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter for each engine
// counter and, for the directory latency histogram, one bucket gauge keyed
// by an "le" attribute plus a count gauge. A single callback reads
// [hubauth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
