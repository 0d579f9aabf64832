package prometheus

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	shopAuth "github.com/MrEthical07/shopAuth"
	"github.com/MrEthical07/shopAuth/metrics/export/internaldefs"
)

// MetricsSource is the read side of an engine. *shopAuth.Engine satisfies it.
type MetricsSource interface {
	MetricsSnapshot() shopAuth.MetricsSnapshot
	AuditDropped() uint64
}

type counterDesc struct {
	id   shopAuth.MetricID
	desc *prom.Desc
}

// Collector exposes engine metrics as const metrics built from one snapshot
// per scrape.
type Collector struct {
	source       MetricsSource
	counters     []counterDesc
	histograms   []counterDesc
	auditDropped *prom.Desc
}

// NewCollector creates a Collector reading from engine.
func NewCollector(engine *shopAuth.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource creates a Collector reading from a custom source.
func NewCollectorFromSource(source MetricsSource) *Collector {
	c := &Collector{
		source:       source,
		counters:     make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms:   make([]counterDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prom.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return c
}

// Describe implements prom.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.histograms {
		ch <- d.desc
	}
	ch <- c.auditDropped
}

// Collect implements prom.Collector. Nothing is emitted while engine metrics
// are disabled.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	dropped := c.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, d := range c.counters {
		ch <- prom.MustNewConstMetric(d.desc, prom.CounterValue, float64(snapshot.Counters[d.id]))
	}

	for _, d := range c.histograms {
		raw, ok := snapshot.Histograms[d.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, le := range internaldefs.HistogramUpperBounds {
			buckets[le] = cumulative[i]
		}
		// Snapshots carry no sum.
		ch <- prom.MustNewConstHistogram(d.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prom.MustNewConstMetric(c.auditDropped, prom.CounterValue, float64(dropped))
}

// Handler registers c on a private registry and serves it in the Prometheus
// exposition format.
func (c *Collector) Handler() (http.Handler, error) {
	reg := prom.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
