package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	// reservoirCapacity caps each latency reservoir used for p95.
	reservoirCapacity = 1000

	// p95MinSamples is the minimum reservoir size before p95 is reported.
	p95MinSamples = 20

	// CPUSampleInterval is the fixed cadence of the CPU gauge.
	CPUSampleInterval = 2 * time.Second
)

// EventKind identifies an aggregator event.
type EventKind int

const (
	EventUnderrun EventKind = iota
	EventCPUSample
)

// Event is emitted by the aggregator on underrun increments and CPU
// gauge updates, for consumption by logs or a host callback.
type Event struct {
	Kind  EventKind
	Value float64 // underrun count or CPU percent
}

// Snapshot is a point-in-time view of the aggregated statistics.
type Snapshot struct {
	FrameLatencyAvgMs  float64  `json:"frame_latency_avg_ms"`
	FrameLatencyP95Ms  *float64 `json:"frame_latency_p95_ms,omitempty"`
	FrameLatencyCount  uint64   `json:"frame_latency_count"`
	ChunkLatencyAvgMs  float64  `json:"chunk_latency_avg_ms"`
	ChunkLatencyP95Ms  *float64 `json:"chunk_latency_p95_ms,omitempty"`
	ChunkLatencyCount  uint64   `json:"chunk_latency_count"`
	Underruns          uint64   `json:"underruns"`
	CPUPercent         float64  `json:"cpu_percent"`
}

// reservoir holds a capped sample window for p95 plus running totals for
// the all-time average. Once full, new samples overwrite the oldest.
type reservoir struct {
	samples []float64
	next    int
	sum     float64
	count   uint64
}

func (r *reservoir) record(v float64) {
	if len(r.samples) < reservoirCapacity {
		r.samples = append(r.samples, v)
	} else {
		r.samples[r.next] = v
		r.next = (r.next + 1) % reservoirCapacity
	}
	r.sum += v
	r.count++
}

func (r *reservoir) average() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}

// p95 sorts a snapshot of the reservoir. Reported only once the window
// holds enough samples to be meaningful.
func (r *reservoir) p95() (float64, bool) {
	if len(r.samples) < p95MinSamples {
		return 0, false
	}
	sorted := make([]float64, len(r.samples))
	copy(sorted, r.samples)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx], true
}

// Aggregator is the thread-safe rolling statistics collector for one
// capture session: frame and chunk latency reservoirs, a monotonic
// underrun counter, and a CPU-percent gauge. A single mutex is the only
// serialization point.
type Aggregator struct {
	mu sync.Mutex

	frame reservoir
	chunk reservoir

	underruns  uint64
	cpuPercent float64

	notify func(Event)
}

// NewAggregator creates an aggregator. notify, when non-nil, is invoked
// outside the lock for every underrun increment and CPU sample.
func NewAggregator(notify func(Event)) *Aggregator {
	return &Aggregator{notify: notify}
}

// RecordFrameLatency appends one frame hand-off latency sample.
func (a *Aggregator) RecordFrameLatency(d time.Duration) {
	a.mu.Lock()
	a.frame.record(float64(d.Microseconds()) / 1000.0)
	a.mu.Unlock()
}

// RecordChunkLatency appends one chunk emission latency sample.
func (a *Aggregator) RecordChunkLatency(d time.Duration) {
	a.mu.Lock()
	a.chunk.record(float64(d.Microseconds()) / 1000.0)
	a.mu.Unlock()
}

// RecordUnderrun increments the monotonic underrun counter and emits an
// event for every increment.
func (a *Aggregator) RecordUnderrun() {
	a.mu.Lock()
	a.underruns++
	count := a.underruns
	a.mu.Unlock()

	if a.notify != nil {
		a.notify(Event{Kind: EventUnderrun, Value: float64(count)})
	}
}

// SetCPUPercent updates the CPU gauge, clamped to [0,100], and emits an
// event carrying the stored value.
func (a *Aggregator) SetCPUPercent(pct float64) {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}

	a.mu.Lock()
	a.cpuPercent = pct
	a.mu.Unlock()

	if a.notify != nil {
		a.notify(Event{Kind: EventCPUSample, Value: pct})
	}
}

// Underruns returns the current underrun count.
func (a *Aggregator) Underruns() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.underruns
}

// GetSnapshot returns the current aggregated statistics. The p95 fields
// are nil until the relevant reservoir holds at least 20 samples.
func (a *Aggregator) GetSnapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		FrameLatencyAvgMs: a.frame.average(),
		FrameLatencyCount: a.frame.count,
		ChunkLatencyAvgMs: a.chunk.average(),
		ChunkLatencyCount: a.chunk.count,
		Underruns:         a.underruns,
		CPUPercent:        a.cpuPercent,
	}

	if p, ok := a.frame.p95(); ok {
		snap.FrameLatencyP95Ms = &p
	}
	if p, ok := a.chunk.p95(); ok {
		snap.ChunkLatencyP95Ms = &p
	}

	return snap
}
