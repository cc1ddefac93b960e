// Package perf keeps a bounded in-memory history of request, remote call and query timings.
package perf

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRingSize is the default capacity of the ring buffer.
const DefaultRingSize = 10000

// EntryKind distinguishes inbound requests, outbound remote calls and database queries.
type EntryKind uint8

const (
	KindRequest EntryKind = iota
	KindCall
	KindQuery
)

// Entry is a single timing record.
type Entry struct {
	Kind EntryKind
	// Path groups entries: "GET /members/table", "memberapi.readall" or "SELECT member".
	Path       string
	StatusCode int // HTTP status; 0 for queries and for calls that never got a response
	DurationMs float64
	Timestamp  time.Time
}

// failed reports whether the entry counts against its path.
// Requests fail on 5xx; remote calls fail on anything but 2xx.
func (e Entry) failed() bool {
	switch e.Kind {
	case KindRequest:
		return e.StatusCode >= 500
	case KindCall:
		return e.StatusCode < 200 || e.StatusCode > 299
	default:
		return false
	}
}

// Collector is a fixed-size ring of entries. When full the oldest entry is overwritten.
// Aggregation only happens in Snapshot.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	total   atomic.Int64
}

// NewCollector creates a collector holding the last size entries.
// POST: size <= 0 selects DefaultRingSize
func NewCollector(size int) *Collector {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Collector{entries: make([]Entry, size)}
}

// Record stores e, overwriting the oldest entry when the ring is full.
func (c *Collector) Record(e Entry) {
	c.mu.Lock()
	c.entries[c.next] = e
	c.next = (c.next + 1) % len(c.entries)
	c.mu.Unlock()
	c.total.Add(1)
}

// TotalRecorded returns the number of entries ever recorded, including overwritten ones.
func (c *Collector) TotalRecorded() int64 {
	return c.total.Load()
}

// Snapshot is the /debug/perf document.
type Snapshot struct {
	TotalRecorded  int64      `json:"total_recorded"`
	RequestP50Ms   float64    `json:"request_p50_ms"`
	RequestP95Ms   float64    `json:"request_p95_ms"`
	RequestP99Ms   float64    `json:"request_p99_ms"`
	CallP95Ms      float64    `json:"call_p95_ms"`
	CallFailures   int        `json:"call_failures"`
	SlowestPaths   []PathStat `json:"slowest_paths"`
	SlowestCalls   []PathStat `json:"slowest_calls"`
	SlowestQueries []PathStat `json:"slowest_queries"`
}

// PathStat aggregates the entries sharing one Path.
type PathStat struct {
	Path     string  `json:"path"`
	AvgMs    float64 `json:"avg_ms"`
	MaxMs    float64 `json:"max_ms"`
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	TotalMs  float64 `json:"total_ms"`
}

// group accumulates one kind of entry.
type group struct {
	stats     map[string]*PathStat
	durations []float64
	failures  int
}

func (g *group) add(e Entry) {
	if g.stats == nil {
		g.stats = make(map[string]*PathStat)
	}
	s, ok := g.stats[e.Path]
	if !ok {
		s = &PathStat{Path: e.Path}
		g.stats[e.Path] = s
	}
	s.Count++
	s.TotalMs += e.DurationMs
	s.MaxMs = max(s.MaxMs, e.DurationMs)
	s.AvgMs = s.TotalMs / float64(s.Count)
	if e.failed() {
		s.Failures++
		g.failures++
	}
	g.durations = append(g.durations, e.DurationMs)
}

// top returns the n paths with the highest average duration, ties by path.
func (g *group) top(n int) []PathStat {
	list := make([]PathStat, 0, len(g.stats))
	for _, s := range g.stats {
		list = append(list, *s)
	}
	slices.SortFunc(list, func(a, b PathStat) int {
		if c := cmp.Compare(b.AvgMs, a.AvgMs); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if len(list) > n {
		list = list[:n]
	}
	return list
}

// Snapshot aggregates entries recorded at or after since.
// POST: Each top list holds at most topN paths
func (c *Collector) Snapshot(since time.Time, topN int) Snapshot {
	c.mu.Lock()
	buf := slices.Clone(c.entries)
	c.mu.Unlock()

	var requests, calls, queries group
	for _, e := range buf {
		if e.Timestamp.IsZero() || e.Timestamp.Before(since) {
			continue
		}
		switch e.Kind {
		case KindRequest:
			requests.add(e)
		case KindCall:
			calls.add(e)
		case KindQuery:
			queries.add(e)
		}
	}

	slices.Sort(requests.durations)
	slices.Sort(calls.durations)
	return Snapshot{
		TotalRecorded:  c.TotalRecorded(),
		RequestP50Ms:   percentile(requests.durations, 50),
		RequestP95Ms:   percentile(requests.durations, 95),
		RequestP99Ms:   percentile(requests.durations, 99),
		CallP95Ms:      percentile(calls.durations, 95),
		CallFailures:   calls.failures,
		SlowestPaths:   requests.top(topN),
		SlowestCalls:   calls.top(topN),
		SlowestQueries: queries.top(topN),
	}
}

// percentile interpolates the p-th percentile of a sorted slice; 0 when empty.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p / 100) * float64(len(sorted)-1)
	lower, upper := int(math.Floor(idx)), int(math.Ceil(idx))
	if lower == upper {
		return sorted[lower]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
