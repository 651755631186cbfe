package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Protocol identifies the responder a metric belongs to.
type Protocol string

const (
	ProtocolStream   Protocol = "tcp"
	ProtocolDatagram Protocol = "udp"
)

// Protocols lists every protocol in export order.
var Protocols = []Protocol{ProtocolStream, ProtocolDatagram}

// ProtocolStats is the per-protocol part of a Snapshot.
type ProtocolStats struct {
	Served       int64
	Errors       int64
	BytesTotal   int64
	LatencyP50   float64
	LatencyP95   float64
	LatencyP99   float64
	LatencyCount int
}

// Snapshot represents a point-in-time snapshot of all metrics.
type Snapshot struct {
	Protocols map[Protocol]ProtocolStats

	// QuotesLoaded is the size of the quote store.
	QuotesLoaded int64

	// LoadSource is "index" or "legacy".
	LoadSource string

	// Timestamp of snapshot
	Timestamp time.Time
}

// CircularBuffer stores a fixed number of values in FIFO order.
type CircularBuffer struct {
	mu     sync.RWMutex
	values []float64
	pos    int
	full   bool
}

// NewCircularBuffer creates a new circular buffer with given capacity.
func NewCircularBuffer(capacity int) *CircularBuffer {
	return &CircularBuffer{
		values: make([]float64, capacity),
	}
}

// Add appends a value to the buffer, overwriting the oldest once full.
func (cb *CircularBuffer) Add(val float64) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.values[cb.pos] = val
	cb.pos++
	if cb.pos >= len(cb.values) {
		cb.pos = 0
		cb.full = true
	}
}

// Len returns the number of buffered values.
func (cb *CircularBuffer) Len() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	if cb.full {
		return len(cb.values)
	}
	return cb.pos
}

// Percentile returns the nearest-rank percentile (0-100) of the buffered values.
func (cb *CircularBuffer) Percentile(p float64) float64 {
	cb.mu.RLock()
	var values []float64
	if cb.full {
		values = append(values, cb.values...)
	} else {
		values = append(values, cb.values[:cb.pos]...)
	}
	cb.mu.RUnlock()

	return calculatePercentile(values, p)
}

func calculatePercentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)

	rank := int(math.Ceil(p / 100.0 * float64(len(values))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(values) {
		rank = len(values)
	}
	return values[rank-1]
}
