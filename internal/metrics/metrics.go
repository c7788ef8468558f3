package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "thermal_worker_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	streamConnections  *prometheus.CounterVec
	streamBlocks       *prometheus.CounterVec
	reconnectFailures  prometheus.Gauge
	lastMaxTemperature prometheus.Gauge
	breaches           prometheus.Counter

	eventsTotal     *prometheus.CounterVec
	eventDuration   prometheus.Histogram
	captureFailures *prometheus.CounterVec

	isapiRequests *prometheus.CounterVec
	isapiLatency  *prometheus.HistogramVec

	notifications *prometheus.CounterVec
	framesRead    *prometheus.CounterVec
)

// Init registers the worker metrics with the default registry. Calls after
// the first are no-ops.
func Init() {
	registerOnce.Do(func() {
		streamConnections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_connections_total",
				Help: "Thermometry stream connection attempts by result",
			},
			[]string{"result"},
		)
		streamBlocks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_blocks_total",
				Help: "Multipart blocks read from the thermometry stream by kind and result",
			},
			[]string{"kind", "result"},
		)
		reconnectFailures = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_consecutive_failures",
				Help: "Consecutive failed thermometry stream sessions",
			},
		)
		lastMaxTemperature = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "max_temperature_celsius",
				Help: "Last reported maximum temperature of the primary rule",
			},
		)
		breaches = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "threshold_breaches_total",
				Help: "Telemetry records at or above the alarm temperature",
			},
		)

		eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_total",
				Help: "Anomaly events by result",
			},
			[]string{"result"},
		)
		eventDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "event_capture_seconds",
				Help:    "Duration of evidence capture in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
		)
		captureFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "capture_step_failures_total",
				Help: "Failed evidence capture steps by step",
			},
			[]string{"step"},
		)

		isapiRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "isapi_requests_total",
				Help: "Camera ISAPI requests by operation and result",
			},
			[]string{"operation", "result"},
		)
		isapiLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "isapi_latency_seconds",
				Help:    "Camera ISAPI request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		notifications = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Event notifications by sink and result",
			},
			[]string{"sink", "result"},
		)
		framesRead = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "frames_read_total",
				Help: "Video frames read by the live preview tasks",
			},
			[]string{"stream", "result"},
		)

		prometheus.MustRegister(
			streamConnections,
			streamBlocks,
			reconnectFailures,
			lastMaxTemperature,
			breaches,
			eventsTotal,
			eventDuration,
			captureFailures,
			isapiRequests,
			isapiLatency,
			notifications,
			framesRead,
		)
	})
}

// IncStreamConnection counts a stream connection attempt.
func IncStreamConnection(result string) {
	if result == "" {
		result = resultSuccess
	}
	if streamConnections != nil {
		streamConnections.WithLabelValues(result).Inc()
	}
}

// IncStreamBlock counts a parsed multipart block.
func IncStreamBlock(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if streamBlocks != nil {
		streamBlocks.WithLabelValues(kind, result).Inc()
	}
}

// SetConsecutiveFailures sets the number of consecutive failed sessions.
func SetConsecutiveFailures(n int) {
	if reconnectFailures != nil {
		reconnectFailures.Set(float64(n))
	}
}

// ObserveMaxTemperature records the latest maximum temperature reading.
func ObserveMaxTemperature(celsius float64) {
	if lastMaxTemperature != nil {
		lastMaxTemperature.Set(celsius)
	}
}

// IncBreach counts a threshold breach.
func IncBreach() {
	if breaches != nil {
		breaches.Inc()
	}
}

// ObserveEvent records the outcome and duration of an evidence capture.
func ObserveEvent(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if eventsTotal != nil {
		eventsTotal.WithLabelValues(result).Inc()
	}
	if eventDuration != nil {
		eventDuration.Observe(duration.Seconds())
	}
}

// IncCaptureFailure counts a failed capture step.
func IncCaptureFailure(step string) {
	if step == "" {
		step = "unknown"
	}
	if captureFailures != nil {
		captureFailures.WithLabelValues(step).Inc()
	}
}

// ObserveISAPI records a camera request.
func ObserveISAPI(operation, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if isapiRequests != nil {
		isapiRequests.WithLabelValues(operation, result).Inc()
	}
	if isapiLatency != nil {
		isapiLatency.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// IncNotification counts a notification delivery attempt.
func IncNotification(sink, result string) {
	if result == "" {
		result = resultSuccess
	}
	if notifications != nil {
		notifications.WithLabelValues(sink, result).Inc()
	}
}

// IncFrame counts a live preview frame read.
func IncFrame(stream, result string) {
	if result == "" {
		result = resultSuccess
	}
	if framesRead != nil {
		framesRead.WithLabelValues(stream, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	ResultMalformed = "malformed"
	ResultIgnored   = "ignored"
	ResultPartial   = "partial"
	ResultPanic     = "panic"
	ResultStatus    = "status"
)
