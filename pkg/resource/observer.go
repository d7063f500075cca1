package resource

import (
	"log/slog"
	"sync"
	"time"
)

// Observer receives a callback after every bridge operation. Implementations
// must be safe for concurrent use.
type Observer interface {
	OnCreate(set string, key int64, duration time.Duration)
	OnRead(set string, key int64, duration time.Duration)
	OnList(set string, count int, duration time.Duration)
	OnUpdate(set string, key int64, duration time.Duration)
	OnDelete(set string, key int64, duration time.Duration)
	OnLink(set string, key int64, navigation string, duration time.Duration)
	OnError(set string, action Action, err error)
}

// NoopObserver is a no-op implementation of Observer for when metrics are disabled.
type NoopObserver struct{}

func (NoopObserver) OnCreate(string, int64, time.Duration)       {}
func (NoopObserver) OnRead(string, int64, time.Duration)         {}
func (NoopObserver) OnList(string, int, time.Duration)           {}
func (NoopObserver) OnUpdate(string, int64, time.Duration)       {}
func (NoopObserver) OnDelete(string, int64, time.Duration)       {}
func (NoopObserver) OnLink(string, int64, string, time.Duration) {}
func (NoopObserver) OnError(string, Action, error)               {}

// MetricsObserver tallies operations per entity set. It backs the /$stats
// endpoint.
type MetricsObserver struct {
	mu      sync.Mutex
	sets    map[string]*SetCounts
	latency time.Duration
}

// SetCounts are the operation counters of one entity set. Errors counts
// failed operations of any action; the rest count successes.
type SetCounts struct {
	Created int64 `json:"created"`
	Read    int64 `json:"read"`
	Listed  int64 `json:"listed"`
	Updated int64 `json:"updated"`
	Deleted int64 `json:"deleted"`
	Linked  int64 `json:"linked"`
	Errors  int64 `json:"errors"`
}

// Total is the number of successful operations.
func (c SetCounts) Total() int64 {
	return c.Created + c.Read + c.Listed + c.Updated + c.Deleted + c.Linked
}

// NewMetricsObserver returns an observer with every counter at zero.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{sets: make(map[string]*SetCounts)}
}

func (m *MetricsObserver) record(set string, d time.Duration, bump func(*SetCounts)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sets[set]
	if !ok {
		c = &SetCounts{}
		m.sets[set] = c
	}
	bump(c)
	m.latency += d
}

func (m *MetricsObserver) OnCreate(set string, _ int64, d time.Duration) {
	m.record(set, d, func(c *SetCounts) { c.Created++ })
}

func (m *MetricsObserver) OnRead(set string, _ int64, d time.Duration) {
	m.record(set, d, func(c *SetCounts) { c.Read++ })
}

func (m *MetricsObserver) OnList(set string, _ int, d time.Duration) {
	m.record(set, d, func(c *SetCounts) { c.Listed++ })
}

func (m *MetricsObserver) OnUpdate(set string, _ int64, d time.Duration) {
	m.record(set, d, func(c *SetCounts) { c.Updated++ })
}

func (m *MetricsObserver) OnDelete(set string, _ int64, d time.Duration) {
	m.record(set, d, func(c *SetCounts) { c.Deleted++ })
}

func (m *MetricsObserver) OnLink(set string, _ int64, _ string, d time.Duration) {
	m.record(set, d, func(c *SetCounts) { c.Linked++ })
}

func (m *MetricsObserver) OnError(set string, _ Action, _ error) {
	m.record(set, 0, func(c *SetCounts) { c.Errors++ })
}

// Snapshot copies the current counters.
func (m *MetricsObserver) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		Sets:         make(map[string]SetCounts, len(m.sets)),
		TotalLatency: m.latency,
	}
	for set, c := range m.sets {
		snap.Sets[set] = *c
	}
	return snap
}

// Reset sets every counter back to zero.
func (m *MetricsObserver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.sets)
	m.latency = 0
}

// MetricsSnapshot is a point-in-time copy of a MetricsObserver.
type MetricsSnapshot struct {
	Sets map[string]SetCounts `json:"sets"`

	// TotalLatency sums the durations of successful operations.
	TotalLatency time.Duration `json:"totalLatencyNs"`
}

// Totals adds up the counters of every set.
func (s MetricsSnapshot) Totals() SetCounts {
	var t SetCounts
	for _, c := range s.Sets {
		t.Created += c.Created
		t.Read += c.Read
		t.Listed += c.Listed
		t.Updated += c.Updated
		t.Deleted += c.Deleted
		t.Linked += c.Linked
		t.Errors += c.Errors
	}
	return t
}

// LogObserver writes one debug record per operation and one warning per
// failed operation.
type LogObserver struct {
	Log *slog.Logger
}

func (o LogObserver) OnCreate(set string, key int64, d time.Duration) {
	o.Log.Debug("entity created", "set", set, "key", key, "duration", d)
}

func (o LogObserver) OnRead(set string, key int64, d time.Duration) {
	o.Log.Debug("entity read", "set", set, "key", key, "duration", d)
}

func (o LogObserver) OnList(set string, count int, d time.Duration) {
	o.Log.Debug("collection listed", "set", set, "count", count, "duration", d)
}

func (o LogObserver) OnUpdate(set string, key int64, d time.Duration) {
	o.Log.Debug("entity updated", "set", set, "key", key, "duration", d)
}

func (o LogObserver) OnDelete(set string, key int64, d time.Duration) {
	o.Log.Debug("entity deleted", "set", set, "key", key, "duration", d)
}

func (o LogObserver) OnLink(set string, key int64, navigation string, d time.Duration) {
	o.Log.Debug("entity linked", "set", set, "key", key, "navigation", navigation, "duration", d)
}

func (o LogObserver) OnError(set string, action Action, err error) {
	o.Log.Warn("operation failed", "set", set, "action", string(action), "error", err)
}

// MultiObserver fans every callback out to each of its observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnCreate(set string, key int64, d time.Duration) {
	for _, o := range m {
		o.OnCreate(set, key, d)
	}
}

func (m MultiObserver) OnRead(set string, key int64, d time.Duration) {
	for _, o := range m {
		o.OnRead(set, key, d)
	}
}

func (m MultiObserver) OnList(set string, count int, d time.Duration) {
	for _, o := range m {
		o.OnList(set, count, d)
	}
}

func (m MultiObserver) OnUpdate(set string, key int64, d time.Duration) {
	for _, o := range m {
		o.OnUpdate(set, key, d)
	}
}

func (m MultiObserver) OnDelete(set string, key int64, d time.Duration) {
	for _, o := range m {
		o.OnDelete(set, key, d)
	}
}

func (m MultiObserver) OnLink(set string, key int64, navigation string, d time.Duration) {
	for _, o := range m {
		o.OnLink(set, key, navigation, d)
	}
}

func (m MultiObserver) OnError(set string, action Action, err error) {
	for _, o := range m {
		o.OnError(set, action, err)
	}
}
