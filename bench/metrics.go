package main

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cschleiden/go-tracepool/metrics"
)

type store struct {
	mu       sync.Mutex
	counters map[string]int64
	timers   map[string][]time.Duration
}

type memMetrics struct {
	tags metrics.Tags
	s    *store
}

func newMemMetrics() *memMetrics {
	return &memMetrics{
		tags: make(metrics.Tags),
		s: &store{
			counters: make(map[string]int64),
			timers:   make(map[string][]time.Duration),
		},
	}
}

func (m *memMetrics) Print() {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, k := range sortedKeys(m.s.counters) {
		fmt.Printf("%s: %d\n", k, m.s.counters[k])
	}

	for _, k := range sortedKeys(m.s.timers) {
		durations := m.s.timers[k]
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

		var total time.Duration
		for _, d := range durations {
			total += d
		}

		fmt.Printf("%s: n=%d avg=%v p50=%v p99=%v\n", k, len(durations),
			total/time.Duration(len(durations)),
			durations[len(durations)/2],
			durations[len(durations)*99/100],
		)
	}
}

// Counter implements metrics.Client
func (m *memMetrics) Counter(name string, tags metrics.Tags, value int64) {
	k := key(name, mergeTags(m.tags, tags))

	m.s.mu.Lock()
	m.s.counters[k] += value
	m.s.mu.Unlock()
}

// Distribution implements metrics.Client
func (m *memMetrics) Distribution(name string, tags metrics.Tags, value float64) {
}

// Gauge implements metrics.Client
func (m *memMetrics) Gauge(name string, tags metrics.Tags, value int64) {
}

// Timing implements metrics.Client
func (m *memMetrics) Timing(name string, tags metrics.Tags, duration time.Duration) {
	k := key(name, mergeTags(m.tags, tags))

	m.s.mu.Lock()
	m.s.timers[k] = append(m.s.timers[k], duration)
	m.s.mu.Unlock()
}

// WithTags implements metrics.Client
func (m *memMetrics) WithTags(tags metrics.Tags) metrics.Client {
	return &memMetrics{
		s:    m.s,
		tags: mergeTags(m.tags, tags),
	}
}

func mergeTags(a, b metrics.Tags) metrics.Tags {
	tags := make(metrics.Tags)
	for k, v := range a {
		tags[k] = v
	}

	for k, v := range b {
		tags[k] = v
	}

	return tags
}

func key(name string, tags metrics.Tags) string {
	t := make([]struct{ Key, Value string }, 0, len(tags))
	for k, v := range tags {
		t = append(t, struct{ Key, Value string }{k, v})
	}

	sort.Slice(t, func(i, j int) bool {
		return t[i].Key < t[j].Key
	})

	var buf bytes.Buffer

	buf.WriteString(name)
	buf.WriteString("[")

	for i, tag := range t {
		if i > 0 {
			buf.WriteString(",")
		}

		buf.WriteString(tag.Key)
		buf.WriteString(":")
		buf.WriteString(tag.Value)
	}

	buf.WriteString("]")

	return buf.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

var _ metrics.Client = (*memMetrics)(nil)
