package miner

import (
	"context"
	"errors"

	"github.com/djkazic/ducominer/internal/link"
	"github.com/djkazic/ducominer/internal/protocol"
	"github.com/djkazic/ducominer/internal/session"
)

var (
	// ErrSubmitTimeout is returned when no verdict arrived for a submitted share.
	ErrSubmitTimeout = errors.New("submit timeout")

	// ErrStaleSession is returned when the staleness guard forced a reconnect.
	ErrStaleSession = errors.New("no submit within staleness window")
)

// Reason labels a round failure for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "shutdown"
	case errors.Is(err, link.ErrLinkDown):
		return "link_down"
	case errors.Is(err, session.ErrConnectTimeout):
		return "connect_timeout"
	case errors.Is(err, session.ErrHandshakeTimeout):
		return "handshake_timeout"
	case errors.Is(err, ErrSubmitTimeout):
		return "submit_timeout"
	case errors.Is(err, ErrStaleSession):
		return "stale_session"
	case errors.Is(err, protocol.ErrJobFormat):
		return "job_format"
	case errors.Is(err, protocol.ErrHashDecode):
		return "hash_decode"
	case errors.Is(err, protocol.ErrDifficultyInvalid):
		return "difficulty_invalid"
	case errors.Is(err, session.ErrLineTimeout):
		return "job_timeout"
	case errors.Is(err, session.ErrConnectionDropped), errors.Is(err, session.ErrLineTooLong):
		return "connection_dropped"
	default:
		return "other"
	}
}
