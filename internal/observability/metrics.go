package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_analyzer_requests_total",
		Help: "Total number of pipeline requests by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inquiry_analyzer_request_duration_seconds",
		Help:    "Duration of pipeline operations in seconds",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"operation"})

	// Audio metrics
	audioBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inquiry_analyzer_audio_bytes_total",
		Help: "Total encoded audio bytes received",
	})

	audioDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inquiry_analyzer_audio_duration_seconds",
		Help:    "Duration of preprocessed audio in seconds",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 3600},
	})

	// Segmentation metrics
	tierSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_analyzer_tier_selections_total",
		Help: "Segmentation tier chosen per transcription",
	}, []string{"tier"})

	segmentResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_analyzer_segments_total",
		Help: "Transcribed segments by outcome",
	}, []string{"status"})

	segmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inquiry_analyzer_segment_latency_seconds",
		Help:    "Speech model latency per segment in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Remote inference metrics
	tokenExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_analyzer_token_exchanges_total",
		Help: "Credential exchanges against the IAM endpoint",
	}, []string{"status"})

	remoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_analyzer_remote_calls_total",
		Help: "Remote chat attempts by outcome",
	}, []string{"outcome"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inquiry_analyzer_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inquiry_analyzer_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RequestTimer tracks one pipeline operation
type RequestTimer struct {
	operation string
	startTime time.Time
}

// StartRequest starts timing an operation such as "transcribe" or "analyze"
func StartRequest(operation string) *RequestTimer {
	return &RequestTimer{operation: operation, startTime: time.Now()}
}

// Done records the outcome and latency of the operation
func (r *RequestTimer) Done(err error) {
	requestDuration.WithLabelValues(r.operation).Observe(time.Since(r.startTime).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	requestsTotal.WithLabelValues(r.operation, status).Inc()
}

// RecordAudio records the size of an upload and the duration it decoded to
func RecordAudio(bytes int, duration time.Duration) {
	audioBytesReceived.Add(float64(bytes))
	audioDuration.Observe(duration.Seconds())
}

// RecordTier records the tier chosen for a transcription
func RecordTier(tier string) {
	tierSelections.WithLabelValues(tier).Inc()
}

// RecordSegment records one segment outcome and its model latency
func RecordSegment(success bool, latency time.Duration) {
	segmentLatency.Observe(latency.Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	segmentResults.WithLabelValues(status).Inc()
}

// RecordTokenExchange records a credential exchange attempt
func RecordTokenExchange(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	tokenExchanges.WithLabelValues(status).Inc()
}

// RecordRemoteCall records one remote chat attempt. outcome is one of
// "success", "unauthorized", "api_error", "network_error".
func RecordRemoteCall(outcome string) {
	remoteCalls.WithLabelValues(outcome).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
