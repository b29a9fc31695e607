package metrics

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// timerWindow bounds the samples kept per timer for percentiles.
const timerWindow = 1024

// Metric is the exported view of a counter or gauge.
type Metric struct {
	Name        string            `json:"name"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// TimerStats summarises a timer in milliseconds. Percentiles cover the
// most recent samples only.
type TimerStats struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum_ms"`
	Min   float64 `json:"min_ms"`
	Max   float64 `json:"max_ms"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
}

type timer struct {
	stats   TimerStats
	samples []float64
	next    int
}

func (t *timer) observe(ms float64) {
	if t.stats.Count == 0 || ms < t.stats.Min {
		t.stats.Min = ms
	}
	t.stats.Max = max(t.stats.Max, ms)
	t.stats.Count++
	t.stats.Sum += ms
	t.stats.Mean = t.stats.Sum / float64(t.stats.Count)

	if len(t.samples) < timerWindow {
		t.samples = append(t.samples, ms)
		return
	}
	t.samples[t.next] = ms
	t.next = (t.next + 1) % timerWindow
}

func (t *timer) snapshot() TimerStats {
	out := t.stats
	sorted := slices.Clone(t.samples)
	slices.Sort(sorted)
	out.P50 = percentile(sorted, 0.50)
	out.P95 = percentile(sorted, 0.95)
	out.P99 = percentile(sorted, 0.99)
	return out
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)) * p)
	return sorted[min(i, len(sorted)-1)]
}

// Registry keeps every metric of the process in memory. The zero value is
// not usable; call NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Metric
	gauges   map[string]*Metric
	timers   map[string]*timer
	started  time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters: map[string]*Metric{},
		gauges:   map[string]*Metric{},
		timers:   map[string]*timer{},
		started:  time.Now(),
	}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the process-wide registry.
func GetRegistry() *Registry {
	return globalRegistry
}

func (r *Registry) IncrementCounter(name string, labels map[string]string, description string) {
	r.Add(name, 1, labels, description)
}

// Add increases a counter by delta, creating it on first use.
func (r *Registry) Add(name string, delta float64, labels map[string]string, description string) {
	key := seriesKey(name, labels)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[key]
	if !ok {
		c = &Metric{Name: name, Labels: maps.Clone(labels), Description: description}
		r.counters[key] = c
	}
	c.Value += delta
	c.UpdatedAt = now
}

func (r *Registry) SetGauge(name string, value float64, labels map[string]string, description string) {
	key := seriesKey(name, labels)
	g := &Metric{Name: name, Value: value, Labels: maps.Clone(labels), Description: description, UpdatedAt: time.Now()}

	r.mu.Lock()
	r.gauges[key] = g
	r.mu.Unlock()
}

func (r *Registry) RecordTimer(name string, d time.Duration, labels map[string]string, _ string) {
	key := seriesKey(name, labels)
	ms := float64(d.Microseconds()) / 1000

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[key]
	if !ok {
		t = &timer{}
		r.timers[key] = t
	}
	t.observe(ms)
}

// Snapshot is a detached copy of a registry, safe to serialise.
type Snapshot struct {
	Counters  map[string]Metric     `json:"counters"`
	Timers    map[string]TimerStats `json:"timers"`
	Gauges    map[string]Metric     `json:"gauges"`
	UptimeMs  int64                 `json:"uptime_ms"`
	Timestamp int64                 `json:"timestamp"`
}

func (r *Registry) GetAllMetrics() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deref := func(m *Metric) Metric {
		out := *m
		out.Labels = maps.Clone(m.Labels)
		return out
	}
	return Snapshot{
		Counters:  lo.MapValues(r.counters, func(m *Metric, _ string) Metric { return deref(m) }),
		Gauges:    lo.MapValues(r.gauges, func(m *Metric, _ string) Metric { return deref(m) }),
		Timers:    lo.MapValues(r.timers, func(t *timer, _ string) TimerStats { return t.snapshot() }),
		UptimeMs:  time.Since(r.started).Milliseconds(),
		Timestamp: time.Now().Unix(),
	}
}

// CounterValue returns a counter's value, or 0 when it was never touched.
func (r *Registry) CounterValue(name string, labels map[string]string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.counters[seriesKey(name, labels)]; ok {
		return c.Value
	}
	return 0
}

// GaugeValue returns a gauge's value and whether it was ever set.
func (r *Registry) GaugeValue(name string, labels map[string]string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.gauges[seriesKey(name, labels)]; ok {
		return g.Value, true
	}
	return 0, false
}

func (r *Registry) TimerCount(name string, labels map[string]string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.timers[seriesKey(name, labels)]; ok {
		return t.stats.Count
	}
	return 0
}

// seriesKey renders name{k1=v1,k2=v2} with label keys sorted, so the same
// label set always maps to the same series.
func seriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := lo.Keys(labels)
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
