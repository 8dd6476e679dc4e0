package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one process on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	Ticks             prometheus.Counter
	Dispatches        *prometheus.CounterVec
	SelectorFailures  *prometheus.CounterVec
	SinkFailures      *prometheus.CounterVec
	SensorValue       *prometheus.GaugeVec
	SensorSeverity    *prometheus.GaugeVec
	DeviceConnected   prometheus.Gauge
	WebsocketClients  prometheus.Gauge
	SelectorDecisions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquamonitor_ticks_total",
			Help: "Telemetry loop ticks processed.",
		}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquamonitor_alerts_dispatched_total",
			Help: "Alert dispatch attempts by outcome.",
		}, []string{"kind", "severity", "outcome"}),
		SelectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquamonitor_selector_failures_total",
			Help: "Channel selector calls that failed.",
		}, []string{"kind"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquamonitor_sink_failures_total",
			Help: "Reading or alert sink errors.",
		}, []string{"sink"}),
		SensorValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aquamonitor_sensor_value",
			Help: "Latest reading per sensor kind.",
		}, []string{"kind"}),
		SensorSeverity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aquamonitor_sensor_severity",
			Help: "Latest severity per sensor kind (0 safe, 1 warning, 2 danger).",
		}, []string{"kind"}),
		DeviceConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aquamonitor_device_connected",
			Help: "1 while the live loop is running.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aquamonitor_websocket_clients",
			Help: "Connected dashboard clients.",
		}),
		SelectorDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquamonitor_selector_decisions_total",
			Help: "Channel decisions by channel.",
		}, []string{"channel"}),
	}
	m.Registry.MustRegister(
		m.Ticks, m.Dispatches, m.SelectorFailures, m.SinkFailures,
		m.SensorValue, m.SensorSeverity, m.DeviceConnected, m.WebsocketClients,
		m.SelectorDecisions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
