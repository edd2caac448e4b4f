// Package prometheus exposes hubauth engine metrics to Prometheus.
//
// [PrometheusExporter] is a prometheus.Collector registered in its own
// registry; mount [PrometheusExporter.Handler] or register the exporter in
// a registry of your own. Counter names are prefixed hubauth_*_total; the
// single histogram is hubauth_directory_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
