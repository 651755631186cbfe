// Package metrics counts served quotes per protocol and exports the counters in
// Prometheus text format.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

const latencyWindow = 1000

type protocolCounters struct {
	served     atomic.Int64
	errors     atomic.Int64
	bytesTotal atomic.Int64
	latencies  *CircularBuffer
}

// Collector is the core metrics collector. All methods are safe for concurrent use.
// A nil *Collector ignores every call, so responders can run without metrics.
type Collector struct {
	mu        sync.RWMutex
	protocols map[Protocol]*protocolCounters

	quotesLoaded atomic.Int64
	loadSource   atomic.Value // string
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	c := &Collector{}
	c.reset()
	return c
}

func (c *Collector) reset() {
	protocols := make(map[Protocol]*protocolCounters, len(Protocols))
	for _, p := range Protocols {
		protocols[p] = &protocolCounters{latencies: NewCircularBuffer(latencyWindow)}
	}
	c.mu.Lock()
	c.protocols = protocols
	c.mu.Unlock()
	c.quotesLoaded.Store(0)
	c.loadSource.Store("")
}

func (c *Collector) counters(p Protocol) *protocolCounters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.protocols[p]
}

// RecordServed records one quote delivered over p.
func (c *Collector) RecordServed(p Protocol, bytes int, latency time.Duration) {
	if c == nil {
		return
	}
	pc := c.counters(p)
	if pc == nil {
		return
	}
	pc.served.Add(1)
	pc.bytesTotal.Add(int64(bytes))
	pc.latencies.Add(float64(latency) / float64(time.Millisecond))
}

// RecordError records a failed accept, read or write on p.
func (c *Collector) RecordError(p Protocol) {
	if c == nil {
		return
	}
	if pc := c.counters(p); pc != nil {
		pc.errors.Add(1)
	}
}

// SetQuotesLoaded records the store size and the loader that produced it.
func (c *Collector) SetQuotesLoaded(count int, source string) {
	if c == nil {
		return
	}
	c.quotesLoaded.Store(int64(count))
	c.loadSource.Store(source)
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	snapshot := &Snapshot{
		Protocols:    make(map[Protocol]ProtocolStats, len(Protocols)),
		QuotesLoaded: c.quotesLoaded.Load(),
		LoadSource:   c.loadSource.Load().(string),
		Timestamp:    time.Now(),
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for p, pc := range c.protocols {
		snapshot.Protocols[p] = ProtocolStats{
			Served:       pc.served.Load(),
			Errors:       pc.errors.Load(),
			BytesTotal:   pc.bytesTotal.Load(),
			LatencyP50:   pc.latencies.Percentile(50),
			LatencyP95:   pc.latencies.Percentile(95),
			LatencyP99:   pc.latencies.Percentile(99),
			LatencyCount: pc.latencies.Len(),
		}
	}
	return snapshot
}

// Reset clears all metrics.
func (c *Collector) Reset() {
	c.reset()
}
