package pipeline

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is anything reporting worker counters under a name.
type StatsSource interface {
	Name() string
	Stats() Stats
}

// Collector exports the counters of a set of workers as Prometheus metrics.
type Collector struct {
	mtx      sync.RWMutex
	sources  []StatsSource
	batches  *prometheus.Desc
	records  *prometheus.Desc
	pending  *prometheus.Desc
	capacity *prometheus.Desc
}

func NewCollector(sources ...StatsSource) *Collector {
	labels := []string{"worker"}
	return &Collector{
		sources:  sources,
		batches:  prometheus.NewDesc("acqlog_pipeline_batches_total", "Non-empty batches dispatched by the worker.", labels, nil),
		records:  prometheus.NewDesc("acqlog_pipeline_records_total", "Records dispatched by the worker.", labels, nil),
		pending:  prometheus.NewDesc("acqlog_pipeline_pending_records", "Records waiting in the queue.", labels, nil),
		capacity: prometheus.NewDesc("acqlog_pipeline_queue_capacity", "Capacity reserved for the queue.", labels, nil),
	}
}

// Add registers another worker, for pipelines started after the collector.
func (c *Collector) Add(src StatsSource) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.sources = append(c.sources, src)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.batches
	ch <- c.records
	ch <- c.pending
	ch <- c.capacity
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for _, src := range c.sources {
		s := src.Stats()
		name := src.Name()
		ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(s.Batches), name)
		ch <- prometheus.MustNewConstMetric(c.records, prometheus.CounterValue, float64(s.Records), name)
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.Pending), name)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), name)
	}
}
