// Package prometheus exports the statistics of coremqtt Contexts as prometheus metrics.
package prometheus

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DrmagicE/coremqtt"
	"github.com/DrmagicE/coremqtt/pkg/packets"
)

var _ prometheus.Collector = (*Collector)(nil)

const (
	Name         = "prometheus"
	metricPrefix = "coremqtt_"
)

var log *zap.Logger

var (
	packetsReceivedBytesDesc = prometheus.NewDesc(metricPrefix+"packets_received_bytes_total", "", []string{"type"}, nil)
	packetsReceivedDesc      = prometheus.NewDesc(metricPrefix+"packets_received_total", "", []string{"type"}, nil)
	packetsSentBytesDesc     = prometheus.NewDesc(metricPrefix+"packets_sent_bytes_total", "", []string{"type"}, nil)
	packetsSentDesc          = prometheus.NewDesc(metricPrefix+"packets_sent_total", "", []string{"type"}, nil)
	publishSentDesc          = prometheus.NewDesc(metricPrefix+"publish_sent_total", "", []string{"version"}, nil)
	publishFailedDesc        = prometheus.NewDesc(metricPrefix+"publish_failed_total", "", nil, nil)
	stateUpdateFailedDesc    = prometheus.NewDesc(metricPrefix+"publish_state_update_failed_total", "", nil, nil)
	ackFailureDesc           = prometheus.NewDesc(metricPrefix+"ack_failure_total", "", nil, nil)
	inflightDesc             = prometheus.NewDesc(metricPrefix+"inflight_current", "", nil, nil)
)

// Collector collects the statistics read from a coremqtt.StatsReader.
type Collector struct {
	statsReader coremqtt.StatsReader
}

// NewCollector returns a Collector reading from r.
func NewCollector(r coremqtt.StatsReader) *Collector {
	return &Collector{statsReader: r}
}

func (c *Collector) Describe(desc chan<- *prometheus.Desc) {
	desc <- packetsReceivedBytesDesc
	desc <- packetsReceivedDesc
	desc <- packetsSentBytesDesc
	desc <- packetsSentDesc
	desc <- publishSentDesc
	desc <- publishFailedDesc
	desc <- stateUpdateFailedDesc
	desc <- ackFailureDesc
	desc <- inflightDesc
}

func (c *Collector) Collect(m chan<- prometheus.Metric) {
	st := c.statsReader.GetStats()
	collectPacketStats(&st.PacketStats, m)
	collectPublishStats(&st.PublishStats, m)
}

func counter(desc *prometheus.Desc, v uint64, labelValues ...string) prometheus.Metric {
	return prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labelValues...)
}

func collectPacketStats(ps *coremqtt.PacketStats, m chan<- prometheus.Metric) {
	for i := byte(packets.CONNECT); i <= packets.AUTH; i++ {
		// skip packet types that never went through the Context
		if ps.SentTotal[i] == 0 && ps.ReceivedTotal[i] == 0 {
			continue
		}
		typ := packets.PacketTypeName(i)
		m <- counter(packetsReceivedBytesDesc, ps.BytesReceived[i], typ)
		m <- counter(packetsReceivedDesc, ps.ReceivedTotal[i], typ)
		m <- counter(packetsSentBytesDesc, ps.BytesSent[i], typ)
		m <- counter(packetsSentDesc, ps.SentTotal[i], typ)
	}
}

func collectPublishStats(ps *coremqtt.PublishStats, m chan<- prometheus.Metric) {
	m <- counter(publishSentDesc, ps.V5Total, "5")
	m <- counter(publishSentDesc, ps.V311Total, "3.1.1")
	m <- counter(publishFailedDesc, ps.FailedTotal)
	m <- counter(stateUpdateFailedDesc, ps.StateUpdateFailedTotal)
	m <- counter(ackFailureDesc, ps.AckFailureTotal)
	m <- prometheus.MustNewConstMetric(inflightDesc, prometheus.GaugeValue, float64(ps.InflightCurrent))
}

// Exporter serves the metrics of a Collector over http.
type Exporter struct {
	registry   *prometheus.Registry
	httpServer *http.Server
}

// NewExporter registers a Collector reading from r and returns an Exporter for it.
func NewExporter(cfg Config, r coremqtt.StatsReader) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(r)); err != nil {
		return nil, err
	}
	mu := http.NewServeMux()
	mu.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Exporter{
		registry: reg,
		httpServer: &http.Server{
			Addr:    cfg.ListenAddress,
			Handler: mu,
		},
	}, nil
}

// Handler returns the http handler of the exporter.
func (e *Exporter) Handler() http.Handler {
	return e.httpServer.Handler
}

// Start starts serving in a new goroutine.
func (e *Exporter) Start() {
	log = coremqtt.LoggerWithField(zap.String("plugin", Name))
	go func() {
		err := e.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error("prometheus exporter stopped", zap.Error(err))
		}
	}()
}

func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.httpServer.Shutdown(ctx)
}
