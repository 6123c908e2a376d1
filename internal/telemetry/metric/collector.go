package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Source reports live node state at scrape time.
type Source interface {
	SessionCount() int
	RingSize() int
	LamportTime() int64
	IsLeader() bool
}

// Collector reads gauges from a Source on every scrape, so callers never
// have to keep gauges in sync by hand.
type Collector struct {
	src Source

	sessions *prometheus.Desc
	members  *prometheus.Desc
	lamport  *prometheus.Desc
	leader   *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		sessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "chat", "sessions_active"),
			"Logged-in client sessions on this node", nil, nil),
		members: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ring", "members"),
			"Nodes in this node's ring view, including itself", nil, nil),
		lamport: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "clock", "lamport_time"),
			"Current Lamport clock value", nil, nil),
		leader: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "election", "is_leader"),
			"1 if this node is the acting leader", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessions
	ch <- c.members
	ch <- c.lamport
	ch <- c.leader
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	leader := 0.0
	if c.src.IsLeader() {
		leader = 1
	}
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(c.src.SessionCount()))
	ch <- prometheus.MustNewConstMetric(c.members, prometheus.GaugeValue, float64(c.src.RingSize()))
	ch <- prometheus.MustNewConstMetric(c.lamport, prometheus.GaugeValue, float64(c.src.LamportTime()))
	ch <- prometheus.MustNewConstMetric(c.leader, prometheus.GaugeValue, leader)
}
