package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coach_gateway_active_sessions",
		Help: "Number of connected narration sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_sessions_total",
		Help: "Total number of narration sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_gateway_session_duration_seconds",
		Help:    "Duration of narration sessions in seconds",
		Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200},
	})

	// Narration queue metrics
	narrationEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_narration_enqueued_total",
		Help: "Coaching messages offered to the narration queue by result",
	}, []string{"result"})

	narrationFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_narration_flushes_total",
		Help: "Total number of narration queue flushes",
	})

	narrationDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_narration_dropped_total",
		Help: "Pending messages discarded by flushes",
	})

	// Synthesis metrics
	synthesisRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_synthesis_requests_total",
		Help: "Total number of synthesis requests",
	}, []string{"status", "cache"})

	synthesisLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_gateway_synthesis_latency_seconds",
		Help:    "Synthesis latency for cache misses in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0},
	})

	audioCacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coach_gateway_audio_cache_entries",
		Help: "Clips held by the audio cache",
	}, []string{"cache"})

	// Playback metrics
	playbackEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_playback_events_total",
		Help: "Playback lifecycle events by outcome",
	}, []string{"outcome"}) // started, completed, failed, stopped

	// Relay metrics
	relayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_relay_requests_total",
		Help: "Total number of /api/tts requests",
	}, []string{"status"})

	relayLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_gateway_relay_latency_seconds",
		Help:    "Relay latency until the upstream body is fully forwarded",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	relayBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_gateway_relay_audio_bytes_total",
		Help: "Total audio bytes relayed to clients",
	})

	// Backend metrics
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_backend_requests_total",
		Help: "Total number of backend requests",
	}, []string{"endpoint", "status"})

	backendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coach_gateway_backend_latency_seconds",
		Help:    "Backend request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"endpoint"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "coach_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single narration session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordError records an error for this session
func (m *SessionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordEnqueue records the outcome of an enqueue attempt
func RecordEnqueue(result string) {
	narrationEnqueued.WithLabelValues(result).Inc()
}

// RecordFlush records a queue flush and the number of pending messages it dropped
func RecordFlush(dropped int) {
	narrationFlushes.Inc()
	narrationDropped.Add(float64(dropped))
}

// RecordSynthesis records a synthesis attempt. Latency is only observed for cache misses.
func RecordSynthesis(success, cacheHit bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	} else {
		synthesisLatency.Observe(latency.Seconds())
	}
	synthesisRequests.WithLabelValues(status, cache).Inc()
}

// SetAudioCacheEntries publishes the current size of a named audio cache
func SetAudioCacheEntries(cache string, entries int) {
	audioCacheEntries.WithLabelValues(cache).Set(float64(entries))
}

// RecordPlayback records a playback lifecycle event
func RecordPlayback(outcome string) {
	playbackEvents.WithLabelValues(outcome).Inc()
}

// RecordRelay records a finished /api/tts request
func RecordRelay(status int, latency time.Duration, bytes int64) {
	relayRequests.WithLabelValues(statusLabel(status)).Inc()
	relayLatency.Observe(latency.Seconds())
	if bytes > 0 {
		relayBytes.Add(float64(bytes))
	}
}

// RecordBackend records a backend call
func RecordBackend(endpoint string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	backendRequests.WithLabelValues(endpoint, status).Inc()
	backendLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
