package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics Prometheus 指标，使用独立 registry，测试时互不干扰
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived  prometheus.Counter
	MessagesApplied   prometheus.Counter
	MessagesDiscarded prometheus.Counter
	WindowLength      prometheus.Gauge
	SubscriberUp      prometheus.Gauge
	MirrorErrors      prometheus.Counter
}

// New 创建并注册所有指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbin_telemetry_messages_received_total",
			Help: "Total number of MQTT messages received on the telemetry topic",
		}),
		MessagesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbin_telemetry_messages_applied_total",
			Help: "Total number of messages decoded and applied to the rolling window",
		}),
		MessagesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbin_telemetry_messages_discarded_total",
			Help: "Total number of messages discarded because they could not be decoded",
		}),
		WindowLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartbin_telemetry_window_length",
			Help: "Number of readings currently held in the rolling window",
		}),
		SubscriberUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartbin_telemetry_subscriber_connected",
			Help: "1 while the MQTT subscriber is connected, 0 otherwise",
		}),
		MirrorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartbin_telemetry_mirror_errors_total",
			Help: "Total number of failed Redis snapshot mirror writes",
		}),
	}

	m.registry.MustRegister(
		m.MessagesReceived,
		m.MessagesApplied,
		m.MessagesDiscarded,
		m.WindowLength,
		m.SubscriberUp,
		m.MirrorErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// SetConnected records the subscriber connection state.
func (m *Metrics) SetConnected(up bool) {
	if up {
		m.SubscriberUp.Set(1)
		return
	}
	m.SubscriberUp.Set(0)
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
