// Package observability exposes relay telemetry as Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chat_relay"

// Metrics holds the relay collectors.
// A nil *Metrics is valid and records nothing, so components can be built without a registry.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	disconnections    *prometheus.CounterVec
	eventsReceived    *prometheus.CounterVec
	messagesPersisted prometheus.Counter
	deliveries        *prometheus.CounterVec
	broadcastDuration *prometheus.HistogramVec
	storeDuration     *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
	workerRestarts    *prometheus.CounterVec
	historyLength     prometheus.Histogram
	processRSS        prometheus.Gauge
	processCPU        prometheus.Gauge
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		return nil
	}
	m := &Metrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently registered connections",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total registered connections",
		}),
		disconnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnections_total",
			Help:      "Total unregistered connections",
		}, []string{"reason"}),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound events by name",
		}, []string{"event"}),
		messagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Messages appended to the store",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound deliveries by result",
		}, []string{"result"}),
		broadcastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "broadcast_duration_seconds",
			Help:      "Time to fan a message out to its recipients",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"mode"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_duration_seconds",
			Help:      "Message store latency by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors reported to clients or suppressed, by kind",
		}, []string{"kind"}),
		workerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Supervised worker restarts",
		}, []string{"worker"}),
		historyLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_length",
			Help:      "Number of messages returned per history request",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000},
		}),
		processRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Resident memory of the relay process",
		}),
		processCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage of the relay process",
		}),
	}
	registerer.MustRegister(
		m.connectionsActive,
		m.connectionsTotal,
		m.disconnections,
		m.eventsReceived,
		m.messagesPersisted,
		m.deliveries,
		m.broadcastDuration,
		m.storeDuration,
		m.errorsTotal,
		m.workerRestarts,
		m.historyLength,
		m.processRSS,
		m.processCPU,
	)
	return m
}

func (m *Metrics) ConnectionOpened(active int) {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Set(float64(active))
}

func (m *Metrics) ConnectionClosed(reason string, active int) {
	if m == nil {
		return
	}
	m.disconnections.WithLabelValues(reason).Inc()
	m.connectionsActive.Set(float64(active))
}

func (m *Metrics) EventReceived(name string) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(name).Inc()
}

func (m *Metrics) MessagePersisted() {
	if m == nil {
		return
	}
	m.messagesPersisted.Inc()
}

func (m *Metrics) Delivery(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveBroadcast(mode string, since time.Time) {
	if m == nil {
		return
	}
	m.broadcastDuration.WithLabelValues(mode).Observe(time.Since(since).Seconds())
}

func (m *Metrics) ObserveStore(operation string, since time.Time) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(time.Since(since).Seconds())
}

func (m *Metrics) ObserveHistory(length int) {
	if m == nil {
		return
	}
	m.historyLength.Observe(float64(length))
}

func (m *Metrics) Error(kind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) WorkerRestarted(worker string) {
	if m == nil {
		return
	}
	m.workerRestarts.WithLabelValues(worker).Inc()
}

func (m *Metrics) ObserveProcess(rss uint64, cpuPercent float64) {
	if m == nil {
		return
	}
	m.processRSS.Set(float64(rss))
	m.processCPU.Set(cpuPercent)
}
