package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector on Prometheus metrics.
type PrometheusCollector struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge

	authAttemptsTotal *prometheus.CounterVec

	messagesRoutedTotal *prometheus.CounterVec
	callEventsTotal     *prometheus.CounterVec
	fanoutSkippedTotal  prometheus.Counter

	filesReceivedTotal prometheus.Counter
	fileSizeBytes      prometheus.Histogram

	udpRelayedTotal prometheus.Counter
	udpDroppedTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexusd_connections_total",
			Help: "Total number of TCP sessions opened.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexusd_connections_active",
			Help: "Number of currently active TCP sessions.",
		}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexusd_auth_attempts_total",
			Help: "Total number of token verifications.",
		}, []string{"result"}),

		messagesRoutedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexusd_messages_routed_total",
			Help: "Total number of messages fanned out.",
		}, []string{"secret"}),
		callEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexusd_call_events_total",
			Help: "Total number of call-signalling events fanned out.",
		}, []string{"index"}),
		fanoutSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexusd_fanout_skipped_total",
			Help: "Total number of fan-outs to users with no live session.",
		}),

		filesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexusd_files_received_total",
			Help: "Total number of completed file transfers.",
		}),
		fileSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexusd_file_size_bytes",
			Help:    "Size of received files in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 104857600},
		}),

		udpRelayedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexusd_udp_relayed_total",
			Help: "Total number of media frames relayed.",
		}),
		udpDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nexusd_udp_dropped_total",
			Help: "Total number of media frames dropped.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.authAttemptsTotal,
		c.messagesRoutedTotal,
		c.callEventsTotal,
		c.fanoutSkippedTotal,
		c.filesReceivedTotal,
		c.fileSizeBytes,
		c.udpRelayedTotal,
		c.udpDroppedTotal,
	)

	return c
}

// ConnectionOpened increments the connection counter and active gauge.
func (c *PrometheusCollector) ConnectionOpened() {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
}

// ConnectionClosed decrements the active connections gauge.
func (c *PrometheusCollector) ConnectionClosed() {
	c.connectionsActive.Dec()
}

// AuthAttempt increments the token verification counter.
func (c *PrometheusCollector) AuthAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(result).Inc()
}

// MessageRouted increments the routed message counter.
func (c *PrometheusCollector) MessageRouted(secret bool) {
	label := "false"
	if secret {
		label = "true"
	}
	c.messagesRoutedTotal.WithLabelValues(label).Inc()
}

// CallEvent increments the call event counter.
func (c *PrometheusCollector) CallEvent(index string) {
	c.callEventsTotal.WithLabelValues(index).Inc()
}

// FanoutSkipped increments the skipped fan-out counter.
func (c *PrometheusCollector) FanoutSkipped() {
	c.fanoutSkippedTotal.Inc()
}

// FileReceived increments the file counter and observes the size.
func (c *PrometheusCollector) FileReceived(sizeBytes int64) {
	c.filesReceivedTotal.Inc()
	c.fileSizeBytes.Observe(float64(sizeBytes))
}

// UDPRelayed increments the relayed frame counter.
func (c *PrometheusCollector) UDPRelayed() {
	c.udpRelayedTotal.Inc()
}

// UDPDropped increments the dropped frame counter.
func (c *PrometheusCollector) UDPDropped(reason string) {
	c.udpDroppedTotal.WithLabelValues(reason).Inc()
}
