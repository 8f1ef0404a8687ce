// Package prometheus exposes authcore engine metrics through a client_golang Collector.
//
// [NewCollector] reads an engine snapshot on every scrape and emits the authcore_*_total
// counters and the authcore_session_verify_latency_seconds histogram. [Handler] serves a
// dedicated registry that also carries the Go runtime and process collectors.
//
// # What this package must NOT do
//
//   - Register into the global default registry.
//   - Mutate engine state.
package prometheus
