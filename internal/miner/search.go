package miner

import (
	"context"
	"time"

	"github.com/djkazic/ducominer/internal/pacer"
	"github.com/djkazic/ducominer/internal/protocol"
	"github.com/djkazic/ducominer/pkg/util"

	"github.com/benbjohnson/clock"
)

const (
	// yieldCheckMask limits pacer checks to one every 64 nonces.
	yieldCheckMask = 0x3F

	// minElapsed stands in for a zero elapsed time when computing hashrate.
	minElapsed = time.Microsecond
)

// Hasher is the incremental digest the search runs on. Prime absorbs the
// fixed prefix once; Sum must start from the primed state every time.
type Hasher interface {
	Prime(prefix []byte)
	Sum(suffix []byte, out *[util.HashSize]byte)
}

// ShareResult is a matching nonce with the work it took to find it.
type ShareResult struct {
	Nonce    uint64
	Hashrate float64
	Elapsed  time.Duration
}

// Search enumerates nonces against a job.
type Search struct {
	hasher Hasher
	pacer  *pacer.Pacer
	probe  func() error
	clock  clock.Clock
}

// NewSearch creates a search. probe is called at every yield point and aborts
// the search when it returns an error.
func NewSearch(h Hasher, p *pacer.Pacer, probe func() error, clk clock.Clock) *Search {
	return &Search{
		hasher: h,
		pacer:  p,
		probe:  probe,
		clock:  clk,
	}
}

// Mine tries nonces 0..job.Difficulty-1 and stops at the first whose digest
// equals the job's expected hash. found is false when the range is exhausted.
func (s *Search) Mine(ctx context.Context, job *protocol.Job) (res ShareResult, found bool, err error) {
	s.hasher.Prime([]byte(job.LastBlockHash))

	var digest [util.HashSize]byte
	counter := util.NewCounter()
	start := s.clock.Now()

	for ; counter.Value() < job.Difficulty; counter.Inc() {
		if counter.Value()&yieldCheckMask == 0 && s.pacer.Tick() {
			if err := ctx.Err(); err != nil {
				return ShareResult{}, false, err
			}
			if s.probe != nil {
				if err := s.probe(); err != nil {
					return ShareResult{}, false, err
				}
			}
		}

		s.hasher.Sum(counter.Bytes(), &digest)
		if digest == job.ExpectedHash {
			elapsed := s.clock.Since(start)
			nonce := counter.Value()
			return ShareResult{
				Nonce:    nonce,
				Hashrate: hashrate(nonce+1, elapsed),
				Elapsed:  elapsed,
			}, true, nil
		}
	}

	return ShareResult{}, false, nil
}

func hashrate(attempts uint64, elapsed time.Duration) float64 {
	if elapsed < minElapsed {
		elapsed = minElapsed
	}
	return float64(attempts) / elapsed.Seconds()
}
