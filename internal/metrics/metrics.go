// Package metrics holds the gossipnode Prometheus collectors, registered on
// an isolated registry so they never collide with the default one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all gossipnode Prometheus metrics.
type Metrics struct {
	Registry *prometheus.Registry

	// Transport metrics
	ConnectionsTotal  *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	SendsTotal        *prometheus.CounterVec
	StreamBytesTotal  *prometheus.CounterVec

	// Engine metrics
	GossipTicksTotal     prometheus.Counter
	InboundTotal         *prometheus.CounterVec
	FanOutSize           prometheus.Histogram
	NodesPrunedTotal     prometheus.Counter
	NodeInfoCount        prometheus.Gauge

	// Feed metrics
	FeedSubscribers  prometheus.Gauge
	FeedDeltasTotal  *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

// New creates a Metrics instance with all collectors registered on a fresh
// registry. version and goVersion are recorded as labels on the info gauge.
func New(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		ConnectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipnode_connections_total",
				Help: "Total QUIC connections established or accepted, by direction and result.",
			},
			[]string{"direction", "result"},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gossipnode_active_connections",
				Help: "Number of connections currently cached by the transport.",
			},
		),
		SendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipnode_sends_total",
				Help: "Total SendMessage attempts, by result.",
			},
			[]string{"result"},
		),
		StreamBytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipnode_stream_bytes_total",
				Help: "Total bytes moved over unidirectional streams, by direction.",
			},
			[]string{"direction"},
		),

		GossipTicksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gossipnode_gossip_ticks_total",
				Help: "Total self-emit gossip ticks handled by the engine.",
			},
		),
		InboundTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipnode_inbound_messages_total",
				Help: "Total inbound messages handled by the engine, by result.",
			},
			[]string{"result"},
		),
		FanOutSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gossipnode_fanout_size",
				Help:    "Number of peers selected per fan-out.",
				Buckets: prometheus.LinearBuckets(0, 1, 8),
			},
		),
		NodesPrunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gossipnode_nodes_pruned_total",
				Help: "Total node_info entries removed by the cleanup tick.",
			},
		),
		NodeInfoCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gossipnode_node_info_count",
				Help: "Current number of entries in the engine's node_info table.",
			},
		),

		FeedSubscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gossipnode_feed_subscribers",
				Help: "Number of currently connected observation feed subscribers.",
			},
		),
		FeedDeltasTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gossipnode_feed_deltas_total",
				Help: "Total delta events sent to observation feed subscribers, by event type.",
			},
			[]string{"event"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gossipnode_info",
				Help: "Build information for the running gossipnode instance.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.ConnectionsTotal,
		m.ActiveConnections,
		m.SendsTotal,
		m.StreamBytesTotal,
		m.GossipTicksTotal,
		m.InboundTotal,
		m.FanOutSize,
		m.NodesPrunedTotal,
		m.NodeInfoCount,
		m.FeedSubscribers,
		m.FeedDeltasTotal,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Handler returns an http.Handler serving the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
