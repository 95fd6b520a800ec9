// Package metrics records pipeline activity as Prometheus metrics.
//
// Metrics implements pipeline.Observer, so it is attached to a run the same
// way as the logging observer. Collectors live on a private registry which
// Handler serves; Server runs that handler on its own listener when the
// metrics endpoint is enabled.
package metrics
