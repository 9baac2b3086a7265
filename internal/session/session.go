// Package session owns the TCP connection to the coordinator and provides the
// bounded line read and fire-and-forget write the protocol is built on.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/djkazic/ducominer/internal/metrics"
	"github.com/djkazic/ducominer/internal/pacer"

	"go.uber.org/zap"
)

const (
	// DefaultGreetingTimeout bounds the wait for the coordinator's first line.
	DefaultGreetingTimeout = 8 * time.Second

	// writeTimeout is the maximum time to wait for a write to complete.
	writeTimeout = 10 * time.Second

	// dialAttemptTimeout caps a single dial inside the connect window.
	dialAttemptTimeout = 5 * time.Second

	// dialRetryPause separates failed dial attempts.
	dialRetryPause = 100 * time.Millisecond

	// maxLineSize is the maximum length of a single protocol line.
	maxLineSize = 16 * 1024

	// aliveWindow is how long Alive waits for the socket to report a close.
	aliveWindow = time.Millisecond
)

var (
	ErrConnectTimeout    = errors.New("connect timeout")
	ErrHandshakeTimeout  = errors.New("handshake timeout")
	ErrConnectionDropped = errors.New("connection dropped")
	ErrLineTimeout       = errors.New("line timeout")
	ErrLineTooLong       = errors.New("line too long")
)

// Session is one connection to the coordinator. It is not safe for
// concurrent use; each worker owns its own.
type Session struct {
	pacer  *pacer.Pacer
	logger *zap.Logger
	dialer net.Dialer

	// GreetingTimeout bounds the wait for the greeting line after dialing.
	GreetingTimeout time.Duration

	conn     net.Conn
	reader   *bufio.Reader
	pending  []byte
	greeting string
}

// New creates a disconnected session.
func New(p *pacer.Pacer, logger *zap.Logger) *Session {
	return &Session{
		pacer:           p,
		logger:          logger,
		GreetingTimeout: DefaultGreetingTimeout,
	}
}

// Connect reuses a live connection or dials a new one, retrying until timeout.
// A fresh connection is only usable once the coordinator's greeting line has
// arrived. dialed reports whether a new connection was made.
func (s *Session) Connect(ctx context.Context, host string, port int, timeout time.Duration) (dialed bool, err error) {
	if s.Alive() {
		return false, nil
	}
	s.Close()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	s.logger.Info("connecting to coordinator", zap.String("addr", addr))

	start := time.Now()
	var conn net.Conn
	for {
		remaining := timeout - time.Since(start)
		if remaining <= 0 {
			s.logger.Warn("connect timed out", zap.String("addr", addr), zap.Duration("timeout", timeout))
			return false, ErrConnectTimeout
		}

		attemptCtx, cancel := context.WithTimeout(ctx, min(remaining, dialAttemptTimeout))
		conn, err = s.dialer.DialContext(attemptCtx, "tcp", addr)
		cancel()
		if err == nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}

		s.logger.Debug("dial failed", zap.String("addr", addr), zap.Error(err))
		s.pacer.Tick()
		if err := sleep(ctx, min(dialRetryPause, max(timeout-time.Since(start), 0))); err != nil {
			return false, err
		}
	}

	s.conn = conn
	s.reader = bufio.NewReaderSize(conn, 4096)
	s.pending = s.pending[:0]

	greeting, err := s.WaitForLine(ctx, s.GreetingTimeout)
	if err != nil {
		s.Close()
		if errors.Is(err, ErrLineTimeout) {
			return false, fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
		}
		return false, fmt.Errorf("greeting: %w", err)
	}
	s.greeting = greeting
	metrics.Connects.Inc()

	s.logger.Info("connected to coordinator",
		zap.String("addr", addr),
		zap.String("version", greeting),
	)
	return true, nil
}

// WaitForLine blocks until a newline-terminated line arrives, the connection
// drops or timeout elapses. Every '\r' is stripped from the returned line.
func (s *Session) WaitForLine(ctx context.Context, timeout time.Duration) (string, error) {
	if s.conn == nil {
		return "", ErrConnectionDropped
	}

	s.pending = s.pending[:0]
	deadline := time.Now().Add(timeout)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		slice := min(time.Until(deadline), s.pacer.Interval())
		if slice <= 0 {
			s.logger.Debug("line wait timed out", zap.Duration("timeout", timeout))
			return "", ErrLineTimeout
		}
		s.conn.SetReadDeadline(time.Now().Add(slice))

		chunk, err := s.reader.ReadSlice('\n')
		s.pending = append(s.pending, chunk...)
		if len(s.pending) > maxLineSize {
			return "", ErrLineTooLong
		}

		switch {
		case err == nil:
			line := strings.ReplaceAll(string(s.pending[:len(s.pending)-1]), "\r", "")
			s.pending = s.pending[:0]
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case isTimeout(err):
			s.pacer.Tick()
			continue
		default:
			return "", fmt.Errorf("%w: %v", ErrConnectionDropped, err)
		}
	}
}

// Send writes text without waiting for any acknowledgement.
func (s *Session) Send(text string) error {
	if s.conn == nil {
		return ErrConnectionDropped
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := io.WriteString(s.conn, text); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnectionDropped, err)
	}
	return nil
}

// Alive reports whether the connection is open, without blocking. Data the
// peer already sent stays buffered for the next WaitForLine.
func (s *Session) Alive() bool {
	if s.conn == nil {
		return false
	}
	if s.reader.Buffered() > 0 {
		return true
	}

	// A deadline already in the past fails before any read is issued, so
	// the peek gets a short window to observe EOF or a reset.
	s.conn.SetReadDeadline(time.Now().Add(aliveWindow))
	_, err := s.reader.Peek(1)
	s.conn.SetReadDeadline(time.Time{})
	return err == nil || isTimeout(err)
}

// Connected reports whether a connection is held, alive or not.
func (s *Session) Connected() bool {
	return s.conn != nil
}

// Greeting returns the greeting line of the current connection.
func (s *Session) Greeting() string {
	return s.greeting
}

// Close tears the connection down and discards any buffered input.
func (s *Session) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.logger.Debug("connection closed")
	}
	s.conn = nil
	s.reader = nil
	s.pending = nil
	s.greeting = ""
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
