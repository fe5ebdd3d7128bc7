package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/robotalks/panel.go/pkg/l0/stats"
)

const namespace = "panel"

var (
	counterDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "counter_total"),
		"Statistics counters of the node.",
		[]string{"node", "counter"}, nil)
	errorStateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "error_state"),
		"1 while the node is in error state.",
		[]string{"node", "type"}, nil)
	uptimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "uptime_seconds"),
		"Time since the node started.",
		[]string{"node"}, nil)
	stageRunTimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "stage", "run_time_microseconds"),
		"Accumulated busy time of a stage. Wraps at 32 bits.",
		[]string{"node", "stage"}, nil)
	stagePercentDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "stage", "busy_percent"),
		"Share of uptime spent in a stage.",
		[]string{"node", "stage"}, nil)
	stageHighWaterDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "stage", "high_water"),
		"Deepest input queue seen by a stage, minimum free heap for idle.",
		[]string{"node", "stage"}, nil)
	stageIterationsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "stage", "iterations_total"),
		"Units of work done by a stage.",
		[]string{"node", "stage"}, nil)
)

// Collector exposes a Source as prometheus metrics.
type Collector struct {
	Source *Source
}

// NewCollector creates a Collector.
func NewCollector(src *Source) *Collector {
	return &Collector{Source: src}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- counterDesc
	ch <- errorStateDesc
	ch <- uptimeDesc
	ch <- stageRunTimeDesc
	ch <- stagePercentDesc
	ch <- stageHighWaterDesc
	ch <- stageIterationsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.Source.Snapshot()
	node := strconv.Itoa(int(s.Node))
	for _, cnt := range s.Counters {
		ch <- prometheus.MustNewConstMetric(counterDesc, prometheus.CounterValue, float64(cnt.Value), node, cnt.Name)
	}
	var inError float64
	if s.ErrorState {
		inError = 1
	}
	ch <- prometheus.MustNewConstMetric(errorStateDesc, prometheus.GaugeValue, inError, node, stats.ErrorType(s.ErrorType).String())
	if c.Source.Metrics == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, float64(s.UptimeMs)/1000, node)
	for _, st := range s.Stages {
		ch <- prometheus.MustNewConstMetric(stageRunTimeDesc, prometheus.GaugeValue, float64(st.RunTimeUs), node, st.Name)
		ch <- prometheus.MustNewConstMetric(stagePercentDesc, prometheus.GaugeValue, float64(st.Percent), node, st.Name)
		ch <- prometheus.MustNewConstMetric(stageHighWaterDesc, prometheus.GaugeValue, float64(st.HighWater), node, st.Name)
		ch <- prometheus.MustNewConstMetric(stageIterationsDesc, prometheus.CounterValue, float64(st.Iterations), node, st.Name)
	}
}
