// Package otel publishes authcore engine metrics through OpenTelemetry asynchronous
// instruments. Counters map to Int64ObservableCounter; the verification latency histogram is
// exposed as one cumulative gauge per bucket plus a count gauge.
package otel
