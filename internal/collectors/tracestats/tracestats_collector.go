// Package tracestats exposes per-trace analysis summaries as Prometheus
// metrics. The collector reads finished evaluations from the runner's
// result registry on each scrape; it never recomputes anything.
package tracestats

import (
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"

	"traceidle/internal/logger"
	"traceidle/internal/runner"
)

// ResultSource is the view of the result registry the collector needs.
// *runner.Runner satisfies it.
type ResultSource interface {
	Range(f func(path string, res *runner.Result) bool)
}

// Collector implements prometheus.Collector over analyzed traces. Metrics
// are built fresh on each scrape from the registry, following Prometheus
// custom-collector conventions. Cardinality is one series per trace.
type Collector struct {
	source ResultSource
	log    log.Logger

	hostEventsDesc    *prometheus.Desc
	deviceEventsDesc  *prometheus.Desc
	idleTimeDesc      *prometheus.Desc
	maxQueueDepthDesc *prometheus.Desc
	candidatesDesc    *prometheus.Desc
}

// NewCollector creates a collector reading from the given result source.
func NewCollector(source ResultSource) *Collector {
	return &Collector{
		source: source,
		log:    logger.NewLoggerCtx("tracestats_collector"),

		hostEventsDesc: prometheus.NewDesc(
			"traceidle_host_events",
			"Number of host events analyzed in the trace",
			[]string{"trace"}, nil,
		),
		deviceEventsDesc: prometheus.NewDesc(
			"traceidle_device_events",
			"Number of device-side events in the trace",
			[]string{"trace"}, nil,
		),
		idleTimeDesc: prometheus.NewDesc(
			"traceidle_idle_time_nanoseconds",
			"Total device idle time attributed over the trace's host activity span",
			[]string{"trace"}, nil,
		),
		maxQueueDepthDesc: prometheus.NewDesc(
			"traceidle_max_queue_depth",
			"Highest device queue depth observed on the trace timeline",
			[]string{"trace"}, nil,
		),
		candidatesDesc: prometheus.NewDesc(
			"traceidle_optimizable_events",
			"Number of host events matching the drain-pattern ranking heuristic",
			[]string{"trace"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hostEventsDesc
	ch <- c.deviceEventsDesc
	ch <- c.idleTimeDesc
	ch <- c.maxQueueDepthDesc
	ch <- c.candidatesDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.source.Range(func(path string, res *runner.Result) bool {
		eval := res.Eval

		ch <- prometheus.MustNewConstMetric(
			c.hostEventsDesc, prometheus.GaugeValue,
			float64(eval.HostEventCount()), path)
		ch <- prometheus.MustNewConstMetric(
			c.deviceEventsDesc, prometheus.GaugeValue,
			float64(len(res.Trace.DeviceEvents)), path)
		ch <- prometheus.MustNewConstMetric(
			c.idleTimeDesc, prometheus.GaugeValue,
			float64(eval.TotalIdleTimeNs()), path)
		ch <- prometheus.MustNewConstMetric(
			c.maxQueueDepthDesc, prometheus.GaugeValue,
			float64(eval.MaxQueueDepth()), path)
		ch <- prometheus.MustNewConstMetric(
			c.candidatesDesc, prometheus.GaugeValue,
			float64(len(eval.RankedCandidates())), path)
		return true
	})
}
