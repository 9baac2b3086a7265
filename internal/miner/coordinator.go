package miner

import (
	"context"
	"time"

	"github.com/djkazic/ducominer/internal/affinity"
	"github.com/djkazic/ducominer/internal/config"
	"github.com/djkazic/ducominer/internal/metrics"
	"github.com/djkazic/ducominer/internal/telemetry"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// retryBase is the pause after the first failed round.
	retryBase = time.Second

	// retryMax caps the pause between failed rounds.
	retryMax = 30 * time.Second
)

// Coordinator runs one worker per core. Workers share nothing but telemetry,
// the indicator and the link driver.
type Coordinator struct {
	workers []*Worker
	shared  *telemetry.Shared
	pin     bool
	logger  *zap.Logger
}

// NewCoordinator creates cfg.Cores workers. A nil deps.Shared is replaced by
// fresh telemetry sized to the core count.
func NewCoordinator(cfg *config.Config, deps Deps) *Coordinator {
	if deps.Shared == nil {
		deps.Shared = telemetry.New(cfg.Cores)
	}

	c := &Coordinator{
		shared: deps.Shared,
		pin:    cfg.PinCores,
		logger: deps.Logger,
	}
	for core := 0; core < cfg.Cores; core++ {
		c.workers = append(c.workers, NewWorker(core, cfg, deps))
	}
	return c
}

// Workers returns the coordinator's workers.
func (c *Coordinator) Workers() []*Worker {
	return c.workers
}

// Shared returns the telemetry the workers write to.
func (c *Coordinator) Shared() *telemetry.Shared {
	return c.shared
}

// Run drives every worker's rounds until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("starting workers", zap.Int("cores", len(c.workers)))

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range c.workers {
		g.Go(func() error {
			c.runWorker(ctx, w)
			return nil
		})
	}
	err := g.Wait()

	c.logger.Info("workers stopped",
		zap.Uint64("found", c.shared.Found()),
		zap.Uint64("accepted", c.shared.Accepted()),
	)
	return err
}

// runWorker invokes Round repeatedly, backing off after consecutive failures.
func (c *Coordinator) runWorker(ctx context.Context, w *Worker) {
	if c.pin {
		if err := affinity.Pin(w.core); err != nil {
			w.logger.Warn("cpu pinning failed", zap.Error(err))
		}
	}
	defer w.Close()

	var consecutiveFailures int
	for ctx.Err() == nil {
		err := w.Round(ctx)
		if err == nil {
			if consecutiveFailures > 0 {
				w.logger.Info("rounds recovered", zap.Int("after_failures", consecutiveFailures))
				consecutiveFailures = 0
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}

		consecutiveFailures++
		reason := Reason(err)
		metrics.RoundsAborted.WithLabelValues(reason).Inc()
		w.logger.Warn("round aborted",
			zap.String("reason", reason),
			zap.Error(err),
			zap.Int("consecutive_failures", consecutiveFailures),
			zap.Duration("next_retry", backoffDuration(consecutiveFailures)),
		)

		t := time.NewTimer(backoffDuration(consecutiveFailures))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// backoffDuration computes exponential backoff capped at retryMax.
func backoffDuration(failures int) time.Duration {
	if failures <= 0 {
		return retryBase
	}
	d := retryBase
	for i := 1; i < failures; i++ {
		d *= 2
		if d > retryMax {
			return retryMax
		}
	}
	return d
}
