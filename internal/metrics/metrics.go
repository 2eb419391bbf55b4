// Package metrics provides lock-free counters and gauges plus simple
// histograms, exposed in Prometheus text format or JSON.
//
// Counters and gauges are single atomics so they can be updated from the
// keyboard hook thread without blocking it.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	}
	return "untyped"
}

// Labels are constant labels attached to one metric.
type Labels map[string]string

// String renders the labels as {k="v",...}, sorted by key.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, l[k])
	}
	b.WriteByte('}')
	return b.String()
}

// Metric is anything a Registry can export.
type Metric interface {
	Name() string
	Type() MetricType
}

type desc struct {
	name   string
	help   string
	labels Labels
}

// Name returns the fully qualified metric name.
func (d *desc) Name() string { return d.name }

// Counter only goes up.
type Counter struct {
	desc
	value atomic.Uint64
}

// NewCounter creates an unregistered counter.
func NewCounter(name, help string, labels Labels) *Counter {
	return &Counter{desc: desc{name, help, labels}}
}

func (c *Counter) Inc()             { c.value.Add(1) }
func (c *Counter) Add(v uint64)     { c.value.Add(v) }
func (c *Counter) Value() uint64    { return c.value.Load() }
func (c *Counter) Type() MetricType { return TypeCounter }

// Gauge holds a value that can go up and down.
type Gauge struct {
	desc
	value atomic.Int64
}

// NewGauge creates an unregistered gauge.
func NewGauge(name, help string, labels Labels) *Gauge {
	return &Gauge{desc: desc{name, help, labels}}
}

func (g *Gauge) Set(v int64)      { g.value.Store(v) }
func (g *Gauge) Add(v int64)      { g.value.Add(v) }
func (g *Gauge) Dec()             { g.value.Add(-1) }
func (g *Gauge) Value() int64     { return g.value.Load() }
func (g *Gauge) Type() MetricType { return TypeGauge }

// SetBool stores 1 for true and 0 for false.
func (g *Gauge) SetBool(b bool) {
	var v int64
	if b {
		v = 1
	}
	g.Set(v)
}

// LatencyBuckets suit keystroke-path timings, in seconds. Anything past 50ms
// is a noticeably sluggish keyboard.
var LatencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25,
}

// Histogram counts observations into buckets.
type Histogram struct {
	desc
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last is +Inf
	sum    float64
	count  uint64
}

// NewHistogram creates an unregistered histogram. nil bounds means
// LatencyBuckets.
func NewHistogram(name, help string, labels Labels, bounds []float64) *Histogram {
	if bounds == nil {
		bounds = LatencyBuckets
	}
	sorted := append([]float64(nil), bounds...)
	sort.Float64s(sorted)
	return &Histogram{
		desc:   desc{name, help, labels},
		bounds: sorted,
		counts: make([]uint64, len(sorted)+1),
	}
}

func (h *Histogram) Type() MetricType { return TypeHistogram }

// Observe records v.
func (h *Histogram) Observe(v float64) {
	i := sort.SearchFloat64s(h.bounds, v)
	h.mu.Lock()
	h.counts[i]++
	h.sum += v
	h.count++
	h.mu.Unlock()
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// histogramState is a consistent copy of a histogram with cumulative
// bucket counts.
type histogramState struct {
	cumulative []uint64
	sum        float64
	count      uint64
}

func (h *Histogram) state() histogramState {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := histogramState{cumulative: make([]uint64, len(h.counts)), sum: h.sum, count: h.count}
	var acc uint64
	for i, n := range h.counts {
		acc += n
		st.cumulative[i] = acc
	}
	return st
}

func (s histogramState) mean() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

func (h *Histogram) Count() uint64 { return h.state().count }
func (h *Histogram) Sum() float64  { return h.state().sum }
func (h *Histogram) Mean() float64 { return h.state().mean() }

// Registry holds metrics under a common name prefix.
type Registry struct {
	prefix string

	mu      sync.RWMutex
	metrics map[string]Metric
}

// NewRegistry creates a registry whose metric names are prefixed with
// namespace_subsystem_ (empty parts are skipped).
func NewRegistry(namespace, subsystem string) *Registry {
	var parts []string
	for _, p := range []string{namespace, subsystem} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	prefix := strings.Join(parts, "_")
	if prefix != "" {
		prefix += "_"
	}
	return &Registry{prefix: prefix, metrics: make(map[string]Metric)}
}

// register returns the metric already registered under name when its type
// matches, or stores the one built by mk.
func register[M Metric](r *Registry, name string, mk func(full string) M) M {
	full := r.prefix + name
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[full].(M); ok {
		return m
	}
	m := mk(full)
	r.metrics[full] = m
	return m
}

// RegisterCounter registers a counter, or returns the existing one.
func (r *Registry) RegisterCounter(name, help string, labels Labels) *Counter {
	return register(r, name, func(full string) *Counter { return NewCounter(full, help, labels) })
}

// RegisterGauge registers a gauge, or returns the existing one.
func (r *Registry) RegisterGauge(name, help string, labels Labels) *Gauge {
	return register(r, name, func(full string) *Gauge { return NewGauge(full, help, labels) })
}

// RegisterHistogram registers a histogram, or returns the existing one.
func (r *Registry) RegisterHistogram(name, help string, labels Labels, bounds []float64) *Histogram {
	return register(r, name, func(full string) *Histogram { return NewHistogram(full, help, labels, bounds) })
}

// Lookup returns the metric registered under name (without prefix).
func (r *Registry) Lookup(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[r.prefix+name]
}

// sorted returns the metrics ordered by name.
func (r *Registry) sorted() []Metric {
	r.mu.RLock()
	out := make([]Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// WritePrometheus writes every metric in the Prometheus text format, sorted
// by name.
func (r *Registry) WritePrometheus(w io.Writer) error {
	for _, m := range r.sorted() {
		if err := writePrometheus(w, m); err != nil {
			return err
		}
	}
	return nil
}

func writePrometheus(w io.Writer, m Metric) error {
	var d *desc
	switch m := m.(type) {
	case *Counter:
		d = &m.desc
	case *Gauge:
		d = &m.desc
	case *Histogram:
		d = &m.desc
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", d.name, d.help, d.name, m.Type()); err != nil {
		return err
	}

	labels := d.labels.String()
	var err error
	switch m := m.(type) {
	case *Counter:
		_, err = fmt.Fprintf(w, "%s%s %d\n", d.name, labels, m.Value())
	case *Gauge:
		_, err = fmt.Fprintf(w, "%s%s %d\n", d.name, labels, m.Value())
	case *Histogram:
		st := m.state()
		open := "{"
		if labels != "" {
			open = labels[:len(labels)-1] + ","
		}
		for i, bound := range m.bounds {
			fmt.Fprintf(w, "%s_bucket%sle=\"%g\"} %d\n", d.name, open, bound, st.cumulative[i])
		}
		fmt.Fprintf(w, "%s_bucket%sle=\"+Inf\"} %d\n", d.name, open, st.count)
		fmt.Fprintf(w, "%s_sum%s %g\n", d.name, labels, st.sum)
		_, err = fmt.Fprintf(w, "%s_count%s %d\n", d.name, labels, st.count)
	}
	return err
}

// jsonMetric is one entry of WriteJSON's output.
type jsonMetric struct {
	Type    string            `json:"type"`
	Help    string            `json:"help,omitempty"`
	Labels  Labels            `json:"labels,omitempty"`
	Value   any               `json:"value,omitempty"`
	Buckets map[string]uint64 `json:"buckets,omitempty"`
	Sum     *float64          `json:"sum,omitempty"`
	Count   *uint64           `json:"count,omitempty"`
	Mean    *float64          `json:"mean,omitempty"`
}

// WriteJSON writes every metric as one JSON object keyed by name.
func (r *Registry) WriteJSON(w io.Writer) error {
	out := make(map[string]jsonMetric)
	for _, m := range r.sorted() {
		switch m := m.(type) {
		case *Counter:
			out[m.name] = jsonMetric{Type: "counter", Help: m.help, Labels: m.labels, Value: m.Value()}
		case *Gauge:
			out[m.name] = jsonMetric{Type: "gauge", Help: m.help, Labels: m.labels, Value: m.Value()}
		case *Histogram:
			st := m.state()
			buckets := make(map[string]uint64, len(st.cumulative))
			for i, bound := range m.bounds {
				buckets[fmt.Sprintf("%g", bound)] = st.cumulative[i]
			}
			buckets["+Inf"] = st.count
			mean := st.mean()
			out[m.name] = jsonMetric{
				Type: "histogram", Help: m.help, Labels: m.labels,
				Buckets: buckets, Sum: &st.sum, Count: &st.count, Mean: &mean,
			}
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// HTTPHandler serves the registry. Clients asking for JSON get WriteJSON,
// everyone else the Prometheus text format.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.Header.Get("Accept"), "application/json") || req.URL.Query().Get("format") == "json" {
			w.Header().Set("Content-Type", "application/json")
			r.WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}

var (
	defaultMu       sync.RWMutex
	defaultRegistry = NewRegistry("ucliu", "")
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRegistry
}

// SetDefault replaces the process-wide registry.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defaultRegistry = r
	defaultMu.Unlock()
}
