// Package metrics aggregates counters and cardinalities between flushes and
// ships them to statsd. It also exposes the pipeline's own Prometheus
// collectors.
package metrics

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"firestige.xyz/sniffer/internal/log"
)

// Sink receives one flushed value per metric.
type Sink interface {
	Count(name string, value int64, tags map[string]string) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) Count(string, int64, map[string]string) error { return nil }

// Sample is a flushed metric value.
type Sample struct {
	Name  string
	Value int64
	Tags  map[string]string
}

type metric interface {
	flush() int64
	id() (string, map[string]string)
}

// Counter is a monotonically increasing count reset on every flush.
type Counter struct {
	name  string
	tags  map[string]string
	value atomic.Int64
}

// Add increments the counter and returns the value before the increment.
func (c *Counter) Add(n int64) int64 {
	return c.value.Add(n) - n
}

func (c *Counter) Inc() { c.value.Inc() }

func (c *Counter) Value() int64 { return c.value.Load() }

func (c *Counter) flush() int64 { return c.value.Swap(0) }

func (c *Counter) id() (string, map[string]string) { return c.name, c.tags }

// Cardinality counts distinct keys seen between flushes.
type Cardinality struct {
	name string
	tags map[string]string

	mu  sync.Mutex
	set map[string]struct{}
}

// Add records key and reports whether it was new since the last flush.
func (c *Cardinality) Add(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.set[key]; ok {
		return false
	}
	c.set[key] = struct{}{}
	return true
}

func (c *Cardinality) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.set)
}

func (c *Cardinality) flush() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.set)
	c.set = make(map[string]struct{}, n)
	return int64(n)
}

func (c *Cardinality) id() (string, map[string]string) { return c.name, c.tags }

// Registry hands out metrics by name and tag set. Asking twice for the same
// name and tags returns the same metric.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]metric
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]metric)}
}

// Counter returns the counter for name and tags, creating it on first use.
// It panics if the same key is already registered as a Cardinality.
func (r *Registry) Counter(name string, tags map[string]string) *Counter {
	m := r.getOrCreate(metricKey(name, tags), func() metric {
		return &Counter{name: name, tags: copyTags(tags)}
	})
	return m.(*Counter)
}

// Cardinality returns the cardinality tracker for name and tags, creating it
// on first use. It panics if the same key is already registered as a Counter.
func (r *Registry) Cardinality(name string, tags map[string]string) *Cardinality {
	m := r.getOrCreate(metricKey(name, tags), func() metric {
		return &Cardinality{name: name, tags: copyTags(tags), set: make(map[string]struct{})}
	})
	return m.(*Cardinality)
}

func (r *Registry) getOrCreate(key string, create func() metric) metric {
	r.mu.RLock()
	m, ok := r.metrics[key]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[key]; ok {
		return m
	}
	m = create()
	r.metrics[key] = m
	r.order = append(r.order, key)
	return m
}

// Flush resets every metric and returns the values it held, in registration
// order.
func (r *Registry) Flush() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	samples := make([]Sample, 0, len(r.order))
	for _, key := range r.order {
		m := r.metrics[key]
		name, tags := m.id()
		samples = append(samples, Sample{Name: name, Value: m.flush(), Tags: tags})
	}
	return samples
}

// Send flushes the registry into sink. Every sample is attempted; failures
// are logged and returned together.
func (r *Registry) Send(sink Sink) error {
	var errs error
	for _, s := range r.Flush() {
		if err := sink.Count(s.Name, s.Value, s.Tags); err != nil {
			log.GetLogger().WithError(err).WithField("metric", s.Name).Warn("failed to send metric")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func metricKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
