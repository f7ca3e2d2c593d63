// Package prometheus exposes gateway auth metrics as a prometheus.Collector.
//
// Counter names are gatewayauth_*_total; the single histogram is
// gatewayauth_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the
//     Collector or mount [Handler].
package prometheus
