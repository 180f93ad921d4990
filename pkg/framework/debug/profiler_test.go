package debug

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler(t *testing.T) {
	t.Run("BasicProfiling", func(t *testing.T) {
		p := NewProfiler(100)

		stop := p.Start("start")
		time.Sleep(2 * time.Millisecond)
		stop()

		m, ok := p.Measurement("start")
		require.True(t, ok)
		assert.Equal(t, uint64(1), m.Count)
		assert.GreaterOrEqual(t, m.Last, 2*time.Millisecond)
	})

	t.Run("MultipleRuns", func(t *testing.T) {
		p := NewProfiler(3)
		for i := 0; i < 5; i++ {
			p.Time("continue", func() { time.Sleep(time.Millisecond) })
		}

		m, ok := p.Measurement("continue")
		require.True(t, ok)
		assert.Equal(t, uint64(5), m.Count)
		assert.Len(t, m.samples, 3)

		avg := m.Average()
		assert.LessOrEqual(t, m.Min, avg)
		assert.LessOrEqual(t, avg, m.Max)
		assert.LessOrEqual(t, m.Percentile(95), m.Max)
	})

	t.Run("Disabled", func(t *testing.T) {
		p := NewProfiler(10)
		p.SetEnabled(false)
		p.Start("prepare")()
		_, ok := p.Measurement("prepare")
		assert.False(t, ok)
		assert.False(t, p.IsEnabled())
	})

	t.Run("NilProfiler", func(t *testing.T) {
		var p *Profiler
		assert.NotPanics(t, func() { p.Start("x")() })
	})

	t.Run("Report", func(t *testing.T) {
		p := NewProfiler(10)
		assert.Equal(t, "No measurements recorded", p.Report())

		p.Start("finish")()
		p.Start("about")()
		assert.Equal(t, []string{"about", "finish"}, p.Names())
		assert.Contains(t, p.Report(), "finish")

		p.Reset()
		assert.Empty(t, p.Names())
	})
}
