package debug

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Profiler collects timing statistics per named section. The filter session uses one
// section per selector.
type Profiler struct {
	mu           sync.RWMutex
	measurements map[string]*Measurement
	enabled      atomic.Bool
	maxSamples   int
}

// Measurement holds timing statistics for a profiled section.
type Measurement struct {
	Name      string
	Count     uint64
	Total     time.Duration
	Min       time.Duration
	Max       time.Duration
	Last      time.Duration
	samples   []time.Duration
	nextIndex int
}

// NewProfiler creates a profiler keeping up to maxSamples recent samples per section.
func NewProfiler(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = 1
	}
	p := &Profiler{
		measurements: make(map[string]*Measurement),
		maxSamples:   maxSamples,
	}
	p.enabled.Store(true)
	return p
}

func (p *Profiler) SetEnabled(enabled bool) { p.enabled.Store(enabled) }
func (p *Profiler) IsEnabled() bool         { return p.enabled.Load() }

// Start begins timing a named section and returns the function that stops it.
func (p *Profiler) Start(name string) func() {
	if p == nil || !p.enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.record(name, time.Since(start))
	}
}

// Time measures the execution time of fn.
func (p *Profiler) Time(name string, fn func()) {
	stop := p.Start(name)
	defer stop()
	fn()
}

func (p *Profiler) record(name string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.measurements[name]
	if !ok {
		m = &Measurement{
			Name:    name,
			Min:     elapsed,
			Max:     elapsed,
			samples: make([]time.Duration, 0, p.maxSamples),
		}
		p.measurements[name] = m
	}

	m.Count++
	m.Total += elapsed
	m.Last = elapsed
	if elapsed < m.Min {
		m.Min = elapsed
	}
	if elapsed > m.Max {
		m.Max = elapsed
	}

	if len(m.samples) < p.maxSamples {
		m.samples = append(m.samples, elapsed)
	} else {
		m.samples[m.nextIndex] = elapsed
	}
	m.nextIndex = (m.nextIndex + 1) % p.maxSamples
}

// Measurement returns a copy of the statistics for name.
func (p *Profiler) Measurement(name string) (Measurement, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, ok := p.measurements[name]
	if !ok {
		return Measurement{}, false
	}
	c := *m
	c.samples = append([]time.Duration(nil), m.samples...)
	return c, true
}

// Names returns the recorded section names in sorted order.
func (p *Profiler) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.measurements))
	for name := range p.measurements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all measurements.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.measurements = make(map[string]*Measurement)
}

// Report renders every section, sorted by name.
func (p *Profiler) Report() string {
	names := p.Names()
	if len(names) == 0 {
		return "No measurements recorded"
	}

	var sb strings.Builder
	sb.WriteString("Selector timings:\n")
	for _, name := range names {
		m, _ := p.Measurement(name)
		fmt.Fprintf(&sb, "  %-12s count=%d total=%v avg=%v min=%v max=%v p95=%v\n",
			name, m.Count, m.Total, m.Average(), m.Min, m.Max, m.Percentile(95))
	}
	return sb.String()
}

// Average returns the mean duration.
func (m Measurement) Average() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.Total / time.Duration(m.Count)
}

// Percentile calculates the given percentile from the retained samples.
func (m Measurement) Percentile(pct float64) time.Duration {
	if len(m.samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), m.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * pct / 100.0)
	return sorted[index]
}
