// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the discovery pipeline end to end using the Prometheus
client library, exposing metrics for refresh throughput, generation backend
health, lane quality, and API performance.

# Overview

The package provides metrics for:
  - Refresh cycle duration and outcomes
  - Per-lane generation counts, provenance, and shortfalls
  - Generation backend calls, retries, and dropped records
  - History backend request latency and errors
  - Metadata lookup hit rates
  - Store operation performance and on-disk size
  - HTTP API latency and throughput
  - Circuit breaker state transitions

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:7470/metrics

# Available Metrics

Refresh Metrics:
  - refresh_cycle_duration_seconds: Full refresh cycle duration (histogram)
    Labels: trigger (scheduled, forced, initial)
    Buckets: 1, 5, 10, 30, 60, 120, 300, 600
  - refresh_cycles_total: Completed cycles (counter)
    Labels: trigger, outcome (success, degraded, failed)
  - refresh_last_success_timestamp: Unix timestamp of last clean cycle (gauge)
  - refresh_active_cycles: Cycles currently in flight (gauge)

Lane Metrics:
  - lane_generation_duration_seconds: Single-lane generation time (histogram)
    Labels: source (remote, local, fallback)
  - lane_generations_total: Generated lanes (counter)
    Labels: lane, source
  - lane_items_served: Items per published lane (histogram)
  - lane_shortfalls_total: Lanes published under target (counter)
    Labels: lane
  - lane_dedup_drops_total: Candidates dropped by deduplication (counter)
    Labels: lane, reason (history, cross_lane, intra_lane)

Generation Backend Metrics:
  - generation_requests_total: Backend calls (counter)
    Labels: mode (remote, local), outcome (ok, transient, malformed, exhausted, no_data)
  - generation_request_duration_seconds: Backend call latency (histogram)
    Labels: mode
  - generation_retries_total: Retry attempts (counter)
    Labels: mode
  - generation_records_dropped_total: Discarded candidate records (counter)
    Labels: reason (malformed, duplicate, filtered)

History Metrics:
  - history_request_duration_seconds: Request latency (histogram)
    Labels: endpoint
  - history_records_fetched_total: Records retrieved (counter)
  - history_errors_total: Failed requests (counter)
    Labels: endpoint, error_type

Store Metrics:
  - store_operation_duration_seconds: Operation latency (histogram)
    Labels: operation (get, set, delete, scan)
  - store_errors_total: Failed operations (counter)
    Labels: operation
  - store_size_bytes: On-disk size (gauge)
    Labels: segment (lsm, vlog)
  - store_gc_runs_total: Value log GC runs (counter)
    Labels: outcome (reclaimed, noop, error)

API Metrics:
  - api_requests_total: HTTP requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
    Buckets: .001, .005, .01, .05, .1, .5, 1, 5, 10
  - api_active_requests: In-flight requests (gauge)
  - api_rate_limit_hits_total: Rate-limited requests (counter)
    Labels: endpoint

Circuit Breaker Metrics:
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total: Requests through breaker (counter)
    Labels: name, result
  - circuit_breaker_state_transitions_total: State transitions (counter)
    Labels: name, from_state, to_state

# Alerting Examples

Useful Prometheus alerting rules:

	- alert: RefreshCyclesDegraded
	  expr: rate(refresh_cycles_total{outcome="degraded"}[1h]) > 0.5
	  for: 30m
	  annotations:
	    summary: "More than half of refresh cycles are degraded"

	- alert: GenerationBackendExhausted
	  expr: rate(generation_requests_total{outcome="exhausted"}[15m]) > 0
	  for: 15m
	  annotations:
	    summary: "Generation backend exhausting retry budget"

	- alert: CircuitBreakerOpen
	  expr: circuit_breaker_state == 2
	  for: 5m
	  annotations:
	    summary: "Circuit breaker open for {{ $labels.name }}"

# Best Practices

When adding new metrics:

 1. Use appropriate metric types:
    - Counter: Monotonically increasing values (requests, errors)
    - Gauge: Point-in-time values (active cycles, cache entries)
    - Histogram: Distribution of values (latency, lane sizes)

 2. Minimize cardinality:
    - Never label by profile ID
    - Lane keys are a fixed 20-entry set and safe to label on
    - Use fixed outcome and reason constants

 3. Follow Prometheus naming conventions:
    - Underscore separation, units in the name (_seconds, _bytes, _total)

# See Also

  - internal/api: HTTP middleware with metrics integration
  - internal/discovery: Refresh cycle metrics recording
  - internal/generate: Generation backend metrics
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
*/
package metrics
