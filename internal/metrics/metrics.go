package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPBytesReceived prometheus.Counter
	ActiveConns      prometheus.Gauge
	ExchangeTotal    *prometheus.CounterVec // labels: command, result
	EnvelopeErrors   *prometheus.CounterVec // labels: reason
	HandlerDuration  prometheus.Histogram
	DatagramTotal    *prometheus.CounterVec // labels: result=ok|invalid
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdcp_accept_total",
			Help: "Total accepted SDCP connections.",
		}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdcp_bytes_received_total",
			Help: "Total bytes received over SDCP connections.",
		}),
		ActiveConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sdcp_active_connections",
			Help: "Connections currently being served.",
		}),
		ExchangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdcp_exchange_total",
			Help: "Completed request/response exchanges by command and result.",
		}, []string{"command", "result"}),
		EnvelopeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdcp_envelope_errors_total",
			Help: "Connections closed because the request envelope could not be read.",
		}, []string{"reason"}),
		HandlerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sdcp_handler_duration_seconds",
			Help:    "Time spent in the request handler.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		DatagramTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sdcpu_datagrams_total",
			Help: "Received SDCPU datagrams by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.TCPAccepted, m.TCPBytesReceived, m.ActiveConns, m.ExchangeTotal,
		m.EnvelopeErrors, m.HandlerDuration, m.DatagramTotal)
	return m
}

// ObserveDatagram 适配 sdcpu.WithDatagramCallback
func (m *AppMetrics) ObserveDatagram(result string) {
	if m == nil {
		return
	}
	m.DatagramTotal.WithLabelValues(result).Inc()
}
