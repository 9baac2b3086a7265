package miner

import (
	"context"
	"time"

	"github.com/djkazic/ducominer/internal/config"
	"github.com/djkazic/ducominer/internal/indicator"
	"github.com/djkazic/ducominer/internal/link"
	"github.com/djkazic/ducominer/internal/metrics"
	"github.com/djkazic/ducominer/internal/pacer"
	"github.com/djkazic/ducominer/internal/session"
	"github.com/djkazic/ducominer/internal/telemetry"
	"github.com/djkazic/ducominer/pkg/util"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Timeouts bounds every blocking stage of a round.
type Timeouts struct {
	Link     time.Duration
	Connect  time.Duration
	Greeting time.Duration
	Job      time.Duration
	Verdict  time.Duration

	// Stale is how long a session may go without a submit before the
	// staleness guard forces a reconnect.
	Stale time.Duration
}

// DefaultTimeouts returns the production round bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Link:     15 * time.Second,
		Connect:  30 * time.Second,
		Greeting: session.DefaultGreetingTimeout,
		Job:      12 * time.Second,
		Verdict:  8 * time.Second,
		Stale:    5 * time.Minute,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Link <= 0 {
		t.Link = d.Link
	}
	if t.Connect <= 0 {
		t.Connect = d.Connect
	}
	if t.Greeting <= 0 {
		t.Greeting = d.Greeting
	}
	if t.Job <= 0 {
		t.Job = d.Job
	}
	if t.Verdict <= 0 {
		t.Verdict = d.Verdict
	}
	if t.Stale <= 0 {
		t.Stale = d.Stale
	}
	return t
}

// Deps are the collaborators a worker is built from. Shared, Link and
// Indicator are common to all workers; everything else a worker owns.
type Deps struct {
	Link      link.Driver
	Shared    *telemetry.Shared
	Indicator indicator.Indicator
	DeviceID  string

	// Yield is the embedding application's maintenance callback.
	Yield func()

	Clock    clock.Clock
	Timeouts Timeouts
	Logger   *zap.Logger
}

// Worker runs mining rounds for one core. It is not safe for concurrent use.
type Worker struct {
	core     int
	cfg      *config.Config
	timeouts Timeouts

	link       *link.Health
	session    *session.Session
	negotiator *Negotiator
	search     *Search
	reporter   *Reporter

	shared    *telemetry.Shared
	indicator indicator.Indicator
	clock     clock.Clock
	logger    *zap.Logger

	lastSubmit time.Time
}

// NewWorker creates the round pipeline for core.
func NewWorker(core int, cfg *config.Config, deps Deps) *Worker {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	ind := deps.Indicator
	if ind == nil {
		ind = indicator.Nop{}
	}
	timeouts := deps.Timeouts.withDefaults()
	logger := deps.Logger.With(zap.Int("core", core))

	p := pacer.New(cfg.YieldInterval, deps.Yield)
	sess := session.New(p, logger)
	sess.GreetingTimeout = timeouts.Greeting

	w := &Worker{
		core:      core,
		cfg:       cfg,
		timeouts:  timeouts,
		link:      link.NewHealth(deps.Link, p, logger),
		session:   sess,
		shared:    deps.Shared,
		indicator: ind,
		clock:     clk,
		logger:    logger,
	}
	w.negotiator = &Negotiator{
		session: sess,
		cfg:     cfg,
		shared:  deps.Shared,
		timeout: timeouts.Job,
		logger:  logger,
	}
	w.search = NewSearch(util.NewEngine(), p, w.probe, clk)
	w.reporter = &Reporter{
		session:  sess,
		cfg:      cfg,
		deviceID: deps.DeviceID,
		shared:   deps.Shared,
		clock:    clk,
		timeout:  timeouts.Verdict,
		logger:   logger,
	}
	return w
}

// Core returns the core index this worker reports under.
func (w *Worker) Core() int {
	return w.core
}

// Round runs one link check, connect, job, search and submit cycle. The first
// failing stage aborts the round and its error is returned; the caller
// decides when to run the next round.
func (w *Worker) Round(ctx context.Context) error {
	if err := w.link.Ensure(ctx, w.timeouts.Link); err != nil {
		w.session.Close()
		return err
	}

	dialed, err := w.session.Connect(ctx, w.cfg.Host, w.cfg.Port, w.timeouts.Connect)
	if err != nil {
		return err
	}
	if dialed {
		w.indicator.Blink(indicator.BlinkClientConnect, w.cfg.RigID)
	}

	job, err := w.negotiator.AskForJob(ctx)
	if err != nil {
		return err
	}

	// A coordinator can keep accepting connections while no longer serving
	// them; a long gap since the last submit forces a fresh connection.
	if !w.lastSubmit.IsZero() && w.clock.Since(w.lastSubmit) > w.timeouts.Stale {
		w.logger.Warn("no submit within staleness window, reconnecting",
			zap.Duration("since_last_submit", w.clock.Since(w.lastSubmit)),
		)
		w.session.Close()
		w.lastSubmit = w.clock.Now()
		return ErrStaleSession
	}

	w.indicator.Searching(w.core, true)
	res, found, err := w.search.Mine(ctx, job)
	w.indicator.Searching(w.core, false)
	if err != nil {
		w.logger.Warn("search aborted", zap.Error(err))
		w.session.Close()
		return err
	}
	if !found {
		w.logger.Debug("no share in range", zap.Uint64("difficulty", job.Difficulty))
		metrics.RoundsCompleted.WithLabelValues("no_share").Inc()
		return nil
	}

	w.shared.AddFound()
	w.shared.SetHashrate(w.core, res.Hashrate)

	verdict, err := w.reporter.Submit(ctx, res)
	if err != nil {
		return err
	}
	w.lastSubmit = w.clock.Now()

	outcome := "rejected"
	if verdict.Accepted() {
		outcome = "accepted"
	}
	metrics.RoundsCompleted.WithLabelValues(outcome).Inc()
	return nil
}

// Close releases the worker's connection.
func (w *Worker) Close() {
	w.session.Close()
}

// probe is the search loop's liveness check.
func (w *Worker) probe() error {
	if !w.link.Connected() {
		return link.ErrLinkDown
	}
	if !w.session.Alive() {
		return session.ErrConnectionDropped
	}
	return nil
}
