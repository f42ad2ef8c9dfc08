package capi

import (
	"sync/atomic"
	"time"
)

// CounterMetric is an int64 counter safe for concurrent use.
type CounterMetric struct {
	count int64
}

func (c *CounterMetric) Inc() {
	atomic.AddInt64(&c.count, 1)
}

func (c *CounterMetric) Dec() {
	atomic.AddInt64(&c.count, -1)
}

func (c *CounterMetric) Count() int64 {
	return atomic.LoadInt64(&c.count)
}

// MeanMetric accumulates elapsed times and exposes their count, sum and mean. Used to
// track per-endpoint latency for the stats surface.
type MeanMetric struct {
	count int64
	sumMs int64
}

func (m *MeanMetric) Add(elapsed time.Duration) {
	atomic.AddInt64(&m.count, 1)
	atomic.AddInt64(&m.sumMs, elapsed.Milliseconds())
}

func (m *MeanMetric) Count() int64 {
	return atomic.LoadInt64(&m.count)
}

func (m *MeanMetric) SumMs() int64 {
	return atomic.LoadInt64(&m.sumMs)
}

func (m *MeanMetric) Mean() float64 {
	count := m.Count()
	if count == 0 {
		return 0
	}
	return float64(m.SumMs()) / float64(count)
}
