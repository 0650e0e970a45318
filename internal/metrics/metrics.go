// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh cycle metrics
var (
	// RefreshDuration tracks how long a full refresh cycle takes per profile
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refresh_cycle_duration_seconds",
			Help:    "Duration of a full per-profile refresh cycle in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"trigger"}, // trigger: "scheduled", "forced", "initial"
	)

	// RefreshCyclesTotal counts completed refresh cycles by outcome
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_cycles_total",
			Help: "Total number of refresh cycles by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // outcome: "success", "degraded", "failed"
	)

	// RefreshLastSuccess tracks the timestamp of the last fully successful cycle
	RefreshLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refresh_last_success_timestamp",
			Help: "Unix timestamp of the last refresh cycle that completed without degraded lanes",
		},
	)

	// RefreshActive tracks refresh cycles currently in flight
	RefreshActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refresh_active_cycles",
			Help: "Number of refresh cycles currently in flight",
		},
	)
)

// Lane generation metrics
var (
	// LaneGenerationDuration tracks per-lane generation time by provenance
	LaneGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lane_generation_duration_seconds",
			Help:    "Duration of single-lane candidate generation in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source"}, // source: "remote", "local", "fallback"
	)

	// LaneGenerationsTotal counts generated lanes by key and provenance
	LaneGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lane_generations_total",
			Help: "Total number of lane generations by lane key and source",
		},
		[]string{"lane", "source"},
	)

	// LaneItemsServed tracks how many items each published lane carried
	LaneItemsServed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lane_items_served",
			Help:    "Number of items in each published lane",
			Buckets: []float64{1, 2, 4, 6, 8, 12, 16, 24, 50, 100},
		},
	)

	// LaneShortfallsTotal counts lanes published below their item target
	LaneShortfallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lane_shortfalls_total",
			Help: "Total number of lanes published with fewer items than their target",
		},
		[]string{"lane"},
	)

	// DedupDropsTotal counts candidates removed during deduplication
	DedupDropsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lane_dedup_drops_total",
			Help: "Total number of candidates dropped during deduplication",
		},
		[]string{"lane", "reason"}, // reason: "history", "cross_lane", "intra_lane"
	)
)

// Generation backend metrics
var (
	// GenerationRequestsTotal counts backend generation calls by outcome
	GenerationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_requests_total",
			Help: "Total number of generation backend calls by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: "ok", "transient", "malformed", "exhausted", "no_data"
	)

	// GenerationRequestDuration tracks backend call latency per mode
	GenerationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_request_duration_seconds",
			Help:    "Duration of generation backend calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"}, // mode: "remote", "local"
	)

	// GenerationRetriesTotal counts retry attempts after failed backend calls
	GenerationRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_retries_total",
			Help: "Total number of generation retry attempts",
		},
		[]string{"mode"},
	)

	// GenerationRecordsDropped counts individual candidate records discarded
	GenerationRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_records_dropped_total",
			Help: "Total number of candidate records discarded from backend responses",
		},
		[]string{"reason"}, // reason: "malformed", "duplicate", "filtered"
	)
)

// History backend metrics
var (
	// HistoryRequestDuration tracks history backend call latency per endpoint
	HistoryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "history_request_duration_seconds",
			Help:    "Duration of history backend requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// HistoryRecordsFetched counts history records retrieved from the backend
	HistoryRecordsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_records_fetched_total",
			Help: "Total number of watch history records fetched",
		},
	)

	// HistoryErrors counts failed history backend requests
	HistoryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_errors_total",
			Help: "Total number of failed history backend requests",
		},
		[]string{"endpoint", "error_type"},
	)
)

// Metadata resolution metrics
var (
	// MetadataLookupsTotal counts metadata lookups by result
	MetadataLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_lookups_total",
			Help: "Total number of metadata lookups by result",
		},
		[]string{"result"}, // result: "matched", "unmatched", "error"
	)

	// MetadataLookupDuration tracks metadata lookup latency
	MetadataLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "metadata_lookup_duration_seconds",
			Help:    "Duration of metadata lookups in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// Store metrics
var (
	// StoreOperationDuration tracks persistence operation latency
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"}, // operation: "get", "set", "delete", "scan"
	)

	// StoreErrors counts failed store operations
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of failed store operations",
		},
		[]string{"operation"},
	)

	// StoreSizeBytes tracks on-disk store size per segment
	StoreSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_size_bytes",
			Help: "Current store size in bytes per storage segment",
		},
		[]string{"segment"}, // segment: "lsm", "vlog"
	)

	// StoreGCRuns counts value log garbage collection runs
	StoreGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Total number of value log garbage collection runs",
		},
		[]string{"outcome"}, // outcome: "reclaimed", "noop", "error"
	)
)

// Response cache metrics
var (
	// CacheHits counts cache hits per cache type
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	// CacheMisses counts cache misses per cache type
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// CacheEntries tracks current entry counts per cache type
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	// CacheEvictions counts evicted entries per cache type
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache_type"},
	)
)

// API metrics
var (
	// APIRequestsTotal counts HTTP API requests
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// APIRequestDuration tracks API request latency
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// APIActiveRequests tracks in-flight API requests
	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// APIRateLimitHits counts rate-limited requests
	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate-limited API requests",
		},
		[]string{"endpoint"},
	)

	// AuthLoginAttempts counts login attempts by result
	AuthLoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Total number of login attempts by result",
		},
		[]string{"result"}, // result: "success", "failure"
	)
)

// Circuit breaker metrics
var (
	// CircuitBreakerState tracks the current state per breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// CircuitBreakerRequests counts requests passing through each breaker
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through each circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// CircuitBreakerTransitions counts state transitions per breaker
	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// Profile metrics
var (
	// ProfilesByState tracks known profiles per lifecycle state
	ProfilesByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "profiles_by_state",
			Help: "Number of known profiles per lifecycle state",
		},
		[]string{"state"}, // state: "idle", "refreshing", "degraded"
	)
)

// Application metrics
var (
	// AppInfo exposes build information as labels
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application build information",
		},
		[]string{"version", "build_date", "go_version"},
	)

	// AppUptime tracks seconds since process start
	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRefreshCycle records a completed refresh cycle. A cycle with
// degraded lanes counts as "degraded"; only clean cycles advance the
// last-success timestamp.
func RecordRefreshCycle(trigger string, duration time.Duration, degradedLanes int, err error) {
	RefreshDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	outcome := "success"
	switch {
	case err != nil:
		outcome = "failed"
	case degradedLanes > 0:
		outcome = "degraded"
	default:
		RefreshLastSuccess.Set(float64(time.Now().Unix()))
	}
	RefreshCyclesTotal.WithLabelValues(trigger, outcome).Inc()
}

// TrackActiveRefresh tracks refresh cycles currently in flight
func TrackActiveRefresh(inc bool) {
	if inc {
		RefreshActive.Inc()
	} else {
		RefreshActive.Dec()
	}
}

// RecordLaneGeneration records a single generated lane
func RecordLaneGeneration(lane, source string, duration time.Duration, items int) {
	LaneGenerationDuration.WithLabelValues(source).Observe(duration.Seconds())
	LaneGenerationsTotal.WithLabelValues(lane, source).Inc()
	LaneItemsServed.Observe(float64(items))
}

// RecordLaneShortfall records a lane published below its item target
func RecordLaneShortfall(lane string) {
	LaneShortfallsTotal.WithLabelValues(lane).Inc()
}

// RecordDedupDrops records candidates removed during deduplication
func RecordDedupDrops(lane, reason string, count int) {
	if count <= 0 {
		return
	}
	DedupDropsTotal.WithLabelValues(lane, reason).Add(float64(count))
}

// RecordGenerationRequest records a generation backend call
func RecordGenerationRequest(mode, outcome string, duration time.Duration) {
	GenerationRequestsTotal.WithLabelValues(mode, outcome).Inc()
	GenerationRequestDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordGenerationRetry records a retry attempt against the generation backend
func RecordGenerationRetry(mode string) {
	GenerationRetriesTotal.WithLabelValues(mode).Inc()
}

// RecordDroppedRecords records candidate records discarded from a response
func RecordDroppedRecords(reason string, count int) {
	if count <= 0 {
		return
	}
	GenerationRecordsDropped.WithLabelValues(reason).Add(float64(count))
}

// RecordHistoryRequest records a history backend request, categorizing
// failures by error class
func RecordHistoryRequest(endpoint string, duration time.Duration, err error) {
	HistoryRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	if err == nil {
		return
	}
	errorType := "other"
	errorMsg := err.Error()
	switch {
	case strings.Contains(errorMsg, "timeout"), strings.Contains(errorMsg, "deadline"):
		errorType = "timeout"
	case strings.Contains(errorMsg, "connection"):
		errorType = "connection"
	case strings.Contains(errorMsg, "status"):
		errorType = "upstream_status"
	case strings.Contains(errorMsg, "decode"), strings.Contains(errorMsg, "unmarshal"):
		errorType = "decode"
	}
	HistoryErrors.WithLabelValues(endpoint, errorType).Inc()
}

// AddHistoryRecords adds fetched history records to the running total
func AddHistoryRecords(count int) {
	if count <= 0 {
		return
	}
	HistoryRecordsFetched.Add(float64(count))
}

// RecordMetadataLookup records a metadata lookup
func RecordMetadataLookup(result string, duration time.Duration) {
	MetadataLookupsTotal.WithLabelValues(result).Inc()
	MetadataLookupDuration.Observe(duration.Seconds())
}

// RecordStoreOperation records a store operation
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// UpdateStoreSize updates the on-disk size gauges
func UpdateStoreSize(lsmBytes, vlogBytes int64) {
	StoreSizeBytes.WithLabelValues("lsm").Set(float64(lsmBytes))
	StoreSizeBytes.WithLabelValues("vlog").Set(float64(vlogBytes))
}

// RecordStoreGC records a value log garbage collection run
func RecordStoreGC(outcome string) {
	StoreGCRuns.WithLabelValues(outcome).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordCacheEviction records an evicted cache entry
func RecordCacheEviction(cacheType string) {
	CacheEvictions.WithLabelValues(cacheType).Inc()
}

// UpdateCacheEntries updates the entry count gauge for a cache
func UpdateCacheEntries(cacheType string, count int) {
	CacheEntries.WithLabelValues(cacheType).Set(float64(count))
}

// RecordLoginAttempt records a login attempt
func RecordLoginAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	AuthLoginAttempts.WithLabelValues(result).Inc()
}

// UpdateProfileStates updates the per-state profile gauges
func UpdateProfileStates(idle, refreshing, degraded int) {
	ProfilesByState.WithLabelValues("idle").Set(float64(idle))
	ProfilesByState.WithLabelValues("refreshing").Set(float64(refreshing))
	ProfilesByState.WithLabelValues("degraded").Set(float64(degraded))
}

// SetAppInfo sets the build information gauge
func SetAppInfo(version, buildDate, goVersion string) {
	AppInfo.WithLabelValues(version, buildDate, goVersion).Set(1)
}

// UpdateUptime updates the uptime gauge from the process start time
func UpdateUptime(start time.Time) {
	AppUptime.Set(time.Since(start).Seconds())
}
