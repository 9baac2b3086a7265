package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/djkazic/ducominer/internal/config"
	"github.com/djkazic/ducominer/internal/protocol"
	"github.com/djkazic/ducominer/internal/session"
	"github.com/djkazic/ducominer/internal/telemetry"

	"go.uber.org/zap"
)

// Negotiator requests work from the coordinator and validates the reply.
type Negotiator struct {
	session *session.Session
	cfg     *config.Config
	shared  *telemetry.Shared
	timeout time.Duration
	logger  *zap.Logger
}

// AskForJob sends a job request and parses the reply. Any failure closes the
// session; there is no partial job.
func (n *Negotiator) AskForJob(ctx context.Context) (*protocol.Job, error) {
	n.logger.Debug("asking for job", zap.String("user", n.cfg.User))

	if err := n.session.Send(protocol.JobRequest(n.cfg.User, n.cfg.StartDiff, n.cfg.MinerKey)); err != nil {
		n.session.Close()
		return nil, fmt.Errorf("send job request: %w", err)
	}

	line, err := n.session.WaitForLine(ctx, n.timeout)
	if err != nil {
		n.session.Close()
		return nil, fmt.Errorf("wait for job: %w", err)
	}

	job, err := protocol.ParseJob(line)
	if err != nil {
		n.logger.Warn("discarding malformed job",
			zap.Int("bytes", len(line)),
			zap.Error(err),
		)
		n.session.Close()
		return nil, err
	}

	n.shared.SetDifficulty(job.Difficulty)
	n.logger.Debug("received job",
		zap.String("last_block_hash", job.LastBlockHash),
		zap.Uint64("difficulty", job.Difficulty),
	)
	return job, nil
}
