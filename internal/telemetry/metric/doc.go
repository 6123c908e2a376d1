// Package metric provides Prometheus metrics for ringchat.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry, counters and the /metrics handler
//   - collector.go: scrape-time gauges read from the running node
//
// Metrics include:
//
//   - Session, ring size, Lamport clock and leadership gauges
//   - Broadcast, login and send failure counters
//   - Election and heartbeat counters
//   - RPC request counters and latency histograms
//
// Metrics are exposed at /metrics on the admin listener.
package metric
