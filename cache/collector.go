package cache

import "github.com/prometheus/client_golang/prometheus"

// StatsSource is anything that can report Stats, typically a *Pooled.
type StatsSource interface {
	Stats() Stats
}

// Collector exports a cache's Stats as Prometheus metrics.
// Values are read on every scrape, so no background goroutine is needed.
type Collector struct {
	src StatsSource

	entries    *prometheus.Desc
	pooled     *prometheus.Desc
	bytes      *prometheus.Desc
	budget     *prometheus.Desc
	waiters    *prometheus.Desc
	lookups    *prometheus.Desc
	puts       *prometheus.Desc
	polls      *prometheus.Desc
	waits      *prometheus.Desc
	offers     *prometheus.Desc
	evictions  *prometheus.Desc
	discards   *prometheus.Desc
	degenerate *prometheus.Desc
}

// NewCollector creates a collector for src. namespace prefixes every metric
// name; constLabels are attached to all of them.
func NewCollector(namespace string, src StatsSource, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "cache", name), help, labels, constLabels)
	}
	return &Collector{
		src:        src,
		entries:    desc("entries", "Number of keyed cache entries"),
		pooled:     desc("pooled", "Number of values in the free list"),
		bytes:      desc("bytes", "Accounted bytes of live plus pooled values"),
		budget:     desc("budget_bytes", "Configured byte budget (0 = unbounded)"),
		waiters:    desc("poll_waiters", "Goroutines blocked in Poll"),
		lookups:    desc("lookups_total", "Get lookups by result", "result"),
		puts:       desc("puts_total", "Put calls"),
		polls:      desc("polls_total", "Poll calls by result", "result"),
		waits:      desc("poll_waits_total", "Times a Poll caller blocked"),
		offers:     desc("offers_total", "Values placed in the free list"),
		evictions:  desc("evictions_total", "Values discarded to satisfy the budget"),
		discards:   desc("discards_total", "Non-reusable values dropped on reclaim"),
		degenerate: desc("degenerate_sizes_total", "Size measurements that returned <= 0"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.entries, c.pooled, c.bytes, c.budget, c.waiters, c.lookups, c.puts,
		c.polls, c.waits, c.offers, c.evictions, c.discards, c.degenerate,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	gauge(c.entries, float64(s.Len))
	gauge(c.pooled, float64(s.Pooled))
	gauge(c.bytes, float64(s.Bytes))
	gauge(c.budget, float64(s.Budget))
	gauge(c.waiters, float64(s.Waiters))
	counter(c.lookups, s.Hits, "hit")
	counter(c.lookups, s.Misses, "miss")
	counter(c.puts, s.Puts)
	counter(c.polls, s.Polls, "hit")
	counter(c.polls, s.PollMisses, "miss")
	counter(c.waits, s.Waits)
	counter(c.offers, s.Offers)
	counter(c.evictions, s.Evictions)
	counter(c.discards, s.Discards)
	counter(c.degenerate, s.Degenerate)
}
