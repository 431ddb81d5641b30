package runtime

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drblury/faultline/internal/runtime/event"
	"github.com/drblury/faultline/transport"
)

// ClientMetrics tracks capture and delivery statistics.
type ClientMetrics struct {
	mu sync.RWMutex

	captured   map[event.Type]uint64
	dropped    map[DropReason]uint64
	sent       uint64
	sendErrors map[transport.Status]uint64
	lastSentAt time.Time

	// Prometheus collectors
	capturedTotal   *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	sentTotal       *prometheus.CounterVec
	sendErrorsTotal *prometheus.CounterVec
	pipelineSeconds *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// ClientMetricsSnapshot provides a point-in-time view of client metrics.
type ClientMetricsSnapshot struct {
	Captured    map[event.Type]uint64       `json:"captured"`
	Dropped     map[DropReason]uint64       `json:"dropped"`
	Sent        uint64                      `json:"sent"`
	SendErrors  map[transport.Status]uint64 `json:"send_errors"`
	LastSentAt  time.Time                   `json:"last_sent_at,omitempty"`
	CollectedAt time.Time                   `json:"collected_at"`
}

// TotalCaptured sums captures over every event type.
func (s ClientMetricsSnapshot) TotalCaptured() uint64 {
	var total uint64
	for _, n := range s.Captured {
		total += n
	}
	return total
}

// newClientCounterVec creates a new counter vec with standard faultline/client namespace.
func newClientCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "faultline",
			Subsystem: "client",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newClientHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "faultline",
			Subsystem: "client",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewClientMetrics creates a new metrics collector. A nil registerer selects
// prometheus.DefaultRegisterer.
func NewClientMetrics(registerer prometheus.Registerer) *ClientMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ClientMetrics{
		captured:        make(map[event.Type]uint64),
		dropped:         make(map[DropReason]uint64),
		sendErrors:      make(map[transport.Status]uint64),
		registerer:      registerer,
		capturedTotal:   newClientCounterVec("events_captured_total", "Total number of events handed to the pipeline", []string{"type"}),
		droppedTotal:    newClientCounterVec("events_dropped_total", "Total number of events intentionally dropped", []string{"type", "reason"}),
		sentTotal:       newClientCounterVec("events_sent_total", "Total number of events delivered by the transport", []string{"type"}),
		sendErrorsTotal: newClientCounterVec("send_errors_total", "Total number of failed deliveries", []string{"status"}),
		pipelineSeconds: newClientHistogramVec("pipeline_duration_seconds", "Time spent running the middleware pipeline, delivery included", []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, 1}, []string{"type"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *ClientMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.capturedTotal,
		m.droppedTotal,
		m.sentTotal,
		m.sendErrorsTotal,
		m.pipelineSeconds,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordCaptured counts an event entering the pipeline.
func (m *ClientMetrics) RecordCaptured(typ event.Type) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.captured[typ]++
	m.capturedTotal.WithLabelValues(string(typ)).Inc()
}

// RecordDropped counts an intentional drop.
func (m *ClientMetrics) RecordDropped(typ event.Type, reason DropReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dropped[reason]++
	m.droppedTotal.WithLabelValues(string(typ), string(reason)).Inc()
}

// RecordResult counts a delivery outcome. Skipped results are not counted as
// sent.
func (m *ClientMetrics) RecordResult(typ event.Type, res transport.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case res.Status == transport.StatusSuccess:
		m.sent++
		m.lastSentAt = time.Now()
		m.sentTotal.WithLabelValues(string(typ)).Inc()
	case !res.OK():
		m.sendErrors[res.Status]++
		m.sendErrorsTotal.WithLabelValues(string(res.Status)).Inc()
	}
}

// ObservePipeline records how long one pass over the stack took.
func (m *ClientMetrics) ObservePipeline(typ event.Type, d time.Duration) {
	m.pipelineSeconds.WithLabelValues(string(typ)).Observe(d.Seconds())
}

// Snapshot returns a point-in-time copy of the counters.
func (m *ClientMetrics) Snapshot() ClientMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := ClientMetricsSnapshot{
		Captured:    make(map[event.Type]uint64, len(m.captured)),
		Dropped:     make(map[DropReason]uint64, len(m.dropped)),
		Sent:        m.sent,
		SendErrors:  make(map[transport.Status]uint64, len(m.sendErrors)),
		LastSentAt:  m.lastSentAt,
		CollectedAt: time.Now(),
	}
	for k, v := range m.captured {
		snapshot.Captured[k] = v
	}
	for k, v := range m.dropped {
		snapshot.Dropped[k] = v
	}
	for k, v := range m.sendErrors {
		snapshot.SendErrors[k] = v
	}
	return snapshot
}

// Handler exposes the registered collectors over HTTP. When the registerer
// is not also a gatherer the default gatherer is served.
func (m *ClientMetrics) Handler() http.Handler {
	if g, ok := m.registerer.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Reset resets all metrics (useful for testing).
func (m *ClientMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.captured = make(map[event.Type]uint64)
	m.dropped = make(map[DropReason]uint64)
	m.sendErrors = make(map[transport.Status]uint64)
	m.sent = 0
	m.lastSentAt = time.Time{}
	m.capturedTotal.Reset()
	m.droppedTotal.Reset()
	m.sentTotal.Reset()
	m.sendErrorsTotal.Reset()
	m.pipelineSeconds.Reset()
}
