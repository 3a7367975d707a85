// Package otel binds identityauth engine metrics to OpenTelemetry observable
// instruments. Counters become Int64ObservableCounters; the validation
// latency histogram is flattened into per-bucket gauges plus _count and
// _sum. Callers own the MeterProvider and pass in a Meter.
package otel
