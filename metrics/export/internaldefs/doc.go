// Package internaldefs holds the metric names, help text and bucket bounds
// shared by the Prometheus and OpenTelemetry exporters, so both publish
// identical series.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
