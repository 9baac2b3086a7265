// Package pacer provides the cooperative yield point used by every blocking
// wait and by the search loop.
package pacer

import (
	"runtime"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is how often the yield callback runs while a worker is busy.
const DefaultInterval = 100 * time.Millisecond

// Pacer runs a yield callback at most once per interval. A Pacer belongs to a
// single worker goroutine.
type Pacer struct {
	interval time.Duration
	yield    func()
	every    rate.Sometimes
}

// New creates a pacer. A nil yield falls back to runtime.Gosched.
func New(interval time.Duration, yield func()) *Pacer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if yield == nil {
		yield = runtime.Gosched
	}
	return &Pacer{
		interval: interval,
		yield:    yield,
		every:    rate.Sometimes{Interval: interval},
	}
}

// Tick runs the yield callback if the interval has elapsed since it last ran
// and reports whether it did. The first Tick always fires.
func (p *Pacer) Tick() bool {
	fired := false
	p.every.Do(func() {
		p.yield()
		fired = true
	})
	return fired
}

// Interval returns the yield cadence.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
