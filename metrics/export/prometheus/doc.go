// Package prometheus serves identityauth engine metrics in the Prometheus
// text exposition format (version 0.0.4). Nothing is registered globally;
// callers mount [PrometheusExporter.Handler] wherever they like.
package prometheus
