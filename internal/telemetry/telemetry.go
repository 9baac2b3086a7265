// Package telemetry holds the only state shared between mining workers.
// Every slot is atomic, so workers never lose each other's updates.
package telemetry

import (
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/djkazic/ducominer/internal/metrics"
)

// Shared is the process-wide telemetry written by all workers.
type Shared struct {
	hashrates  []atomic.Uint64 // float64 bits, one slot per core
	found      atomic.Uint64
	accepted   atomic.Uint64
	pingNanos  atomic.Int64
	difficulty atomic.Uint64
	node       atomic.Pointer[string]
}

// New creates telemetry with one hashrate slot per core.
func New(cores int) *Shared {
	s := &Shared{hashrates: make([]atomic.Uint64, cores)}
	empty := ""
	s.node.Store(&empty)
	return s
}

// Cores returns the number of hashrate slots.
func (s *Shared) Cores() int {
	return len(s.hashrates)
}

// SetHashrate records core's hashrate in H/s.
func (s *Shared) SetHashrate(core int, hashrate float64) {
	if core < 0 || core >= len(s.hashrates) {
		return
	}
	s.hashrates[core].Store(math.Float64bits(hashrate))
	metrics.Hashrate.WithLabelValues(strconv.Itoa(core)).Set(hashrate)
}

// Hashrate returns core's last recorded hashrate.
func (s *Shared) Hashrate(core int) float64 {
	if core < 0 || core >= len(s.hashrates) {
		return 0
	}
	return math.Float64frombits(s.hashrates[core].Load())
}

// TotalHashrate sums every core's hashrate.
func (s *Shared) TotalHashrate() float64 {
	var total float64
	for i := range s.hashrates {
		total += s.Hashrate(i)
	}
	return total
}

// AddFound counts a found share and returns the new total.
func (s *Shared) AddFound() uint64 {
	metrics.SharesFound.Inc()
	return s.found.Add(1)
}

// AddAccepted counts an accepted share and returns the new total.
func (s *Shared) AddAccepted() uint64 {
	metrics.SharesAccepted.Inc()
	return s.accepted.Add(1)
}

func (s *Shared) Found() uint64    { return s.found.Load() }
func (s *Shared) Accepted() uint64 { return s.accepted.Load() }

// SetPing records the last submission round trip.
func (s *Shared) SetPing(d time.Duration) {
	s.pingNanos.Store(int64(d))
	metrics.PingSeconds.Set(d.Seconds())
}

func (s *Shared) Ping() time.Duration { return time.Duration(s.pingNanos.Load()) }

// SetDifficulty records the search bound of the latest job.
func (s *Shared) SetDifficulty(d uint64) {
	s.difficulty.Store(d)
	metrics.JobDifficulty.Set(float64(d))
}

func (s *Shared) Difficulty() uint64 { return s.difficulty.Load() }

// SetNode records the label of the coordinator node in use.
func (s *Shared) SetNode(label string) {
	s.node.Store(&label)
}

func (s *Shared) Node() string { return *s.node.Load() }

// Snapshot is a point-in-time copy of the shared telemetry.
type Snapshot struct {
	Hashrates     []float64 `json:"hashrates" cbor:"1,keyasint"`
	TotalHashrate float64   `json:"total_hashrate" cbor:"2,keyasint"`
	Found         uint64    `json:"found" cbor:"3,keyasint"`
	Accepted      uint64    `json:"accepted" cbor:"4,keyasint"`
	PingMillis    int64     `json:"ping_ms" cbor:"5,keyasint"`
	Difficulty    uint64    `json:"difficulty" cbor:"6,keyasint"`
	Node          string    `json:"node" cbor:"7,keyasint"`
}

// Snapshot reads every slot. Slots are read independently, so a snapshot
// taken during an update may mix old and new values across slots.
func (s *Shared) Snapshot() Snapshot {
	snap := Snapshot{
		Hashrates:  make([]float64, len(s.hashrates)),
		Found:      s.Found(),
		Accepted:   s.Accepted(),
		PingMillis: s.Ping().Milliseconds(),
		Difficulty: s.Difficulty(),
		Node:       s.Node(),
	}
	for i := range s.hashrates {
		snap.Hashrates[i] = s.Hashrate(i)
		snap.TotalHashrate += snap.Hashrates[i]
	}
	return snap
}
