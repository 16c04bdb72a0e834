// Package metrics implements the session telemetry aggregator (latency
// reservoirs with p95, underrun counter, CPU gauge) plus the Prometheus
// export mirroring it for scraping.
package metrics
