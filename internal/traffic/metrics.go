package traffic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports poll results as Prometheus series
type Metrics struct {
	download     *prometheus.GaugeVec
	upload       *prometheus.GaugeVec
	rxBytes      *prometheus.GaugeVec
	txBytes      *prometheus.GaugeVec
	pollsTotal   *prometheus.CounterVec
	pollDuration prometheus.Histogram
}

// NewMetrics registers the traffic series with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		download: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netbill_router_download_mbps",
			Help: "Receive rate of a router interface in megabits per second",
		}, []string{"interface"}),
		upload: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netbill_router_upload_mbps",
			Help: "Transmit rate of a router interface in megabits per second",
		}, []string{"interface"}),
		rxBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netbill_router_rx_bytes",
			Help: "Receive byte counter of a router interface",
		}, []string{"interface"}),
		txBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "netbill_router_tx_bytes",
			Help: "Transmit byte counter of a router interface",
		}, []string{"interface"}),
		pollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netbill_router_polls_total",
			Help: "Traffic polls by result",
		}, []string{"result"}),
		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "netbill_router_poll_duration_seconds",
			Help:    "Duration of traffic polls against the router",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) observe(iface string, rate Rate, rx, tx uint64) {
	if m == nil {
		return
	}
	m.download.WithLabelValues(iface).Set(rate.Download)
	m.upload.WithLabelValues(iface).Set(rate.Upload)
	m.rxBytes.WithLabelValues(iface).Set(float64(rx))
	m.txBytes.WithLabelValues(iface).Set(float64(tx))
}

func (m *Metrics) poll(seconds float64, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.pollsTotal.WithLabelValues(result).Inc()
	m.pollDuration.Observe(seconds)
}
