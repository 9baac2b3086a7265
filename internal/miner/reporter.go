package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/djkazic/ducominer/internal/config"
	"github.com/djkazic/ducominer/internal/metrics"
	"github.com/djkazic/ducominer/internal/protocol"
	"github.com/djkazic/ducominer/internal/session"
	"github.com/djkazic/ducominer/internal/telemetry"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Reporter submits found shares and records the verdicts.
type Reporter struct {
	session  *session.Session
	cfg      *config.Config
	deviceID string
	shared   *telemetry.Shared
	clock    clock.Clock
	timeout  time.Duration
	logger   *zap.Logger
}

// Submit reports res and waits for the verdict. A non-accept verdict is not
// an error. A missing verdict closes the session and returns ErrSubmitTimeout.
func (r *Reporter) Submit(ctx context.Context, res ShareResult) (protocol.Verdict, error) {
	sub := protocol.Submission{
		Nonce:    res.Nonce,
		Hashrate: res.Hashrate,
		Banner:   r.cfg.Banner,
		Version:  r.cfg.Version,
		RigID:    r.cfg.RigID,
		DeviceID: r.deviceID,
		WalletID: r.cfg.WalletID,
	}
	if err := r.session.Send(sub.Line()); err != nil {
		r.session.Close()
		return protocol.Verdict{}, fmt.Errorf("send share: %w", err)
	}

	start := r.clock.Now()
	line, err := r.session.WaitForLine(ctx, r.timeout)
	if err != nil {
		r.session.Close()
		return protocol.Verdict{}, fmt.Errorf("%w: %w", ErrSubmitTimeout, err)
	}
	ping := r.clock.Since(start)
	r.shared.SetPing(ping)

	verdict := protocol.ParseVerdict(line)
	accepted := r.shared.Accepted()
	if verdict.Accepted() {
		accepted = r.shared.AddAccepted()
	} else {
		metrics.SharesRejected.Inc()
	}

	r.logger.Info("share submitted",
		zap.String("verdict", verdict.Raw),
		zap.Uint64("nonce", res.Nonce),
		zap.Uint64("found", r.shared.Found()),
		zap.Uint64("accepted", accepted),
		zap.Float64("khs", res.Hashrate/1000),
		zap.Duration("elapsed", res.Elapsed),
		zap.Duration("ping", ping),
		zap.String("node", r.shared.Node()),
	)
	return verdict, nil
}
