package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ferrumfix",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ferrumfix",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	messagesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ferrumfix",
			Subsystem: "codec",
			Name:      "messages_decoded_total",
			Help:      "Messages decoded, by BeginString and MsgType.",
		},
		[]string{"begin_string", "msg_type"},
	)
	messagesEncoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ferrumfix",
			Subsystem: "codec",
			Name:      "messages_encoded_total",
			Help:      "Messages encoded, by BeginString and MsgType.",
		},
		[]string{"begin_string", "msg_type"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ferrumfix",
			Subsystem: "codec",
			Name:      "decode_errors_total",
			Help:      "Frames rejected by the decoder, by error kind.",
		},
		[]string{"kind"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ferrumfix",
			Subsystem: "codec",
			Name:      "frame_bytes",
			Help:      "Size of decoded and encoded frames in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"direction"},
	)
	activeConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ferrumfix",
			Subsystem: "transport",
			Name:      "active_connections",
			Help:      "Connections currently running a read loop.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, messagesDecoded, messagesEncoded, decodeErrors, frameBytes, activeConns)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordDecoded(beginString, msgType string, size int) {
	RegisterMetrics()
	messagesDecoded.WithLabelValues(beginString, msgType).Inc()
	frameBytes.WithLabelValues("in").Observe(float64(size))
}

func RecordEncoded(beginString, msgType string, size int) {
	RegisterMetrics()
	messagesEncoded.WithLabelValues(beginString, msgType).Inc()
	frameBytes.WithLabelValues("out").Observe(float64(size))
}

func RecordDecodeError(kind string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(kind).Inc()
}

// ConnOpened increments the active connection gauge and returns the
// matching decrement.
func ConnOpened() func() {
	RegisterMetrics()
	activeConns.Inc()
	var once sync.Once
	return func() {
		once.Do(activeConns.Dec)
	}
}
