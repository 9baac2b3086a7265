// Package link keeps the network link up before each mining round.
package link

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/djkazic/ducominer/internal/metrics"
	"github.com/djkazic/ducominer/internal/pacer"

	"go.uber.org/zap"
)

const (
	// settleDelay separates the forced disconnect from the reconnect.
	settleDelay = 80 * time.Millisecond

	// pollInterval is how often link state is polled while reconnecting.
	pollInterval = 50 * time.Millisecond
)

// ErrLinkDown is returned when the link did not come back within the timeout.
var ErrLinkDown = errors.New("link down")

// Driver is the network link as seen by the miner. Implementations must be
// safe for concurrent use; every worker polls the same link.
type Driver interface {
	Connected() bool
	Disconnect() error
	Reconnect() error
}

// Health ensures the link is connected before a round starts.
type Health struct {
	driver Driver
	pacer  *pacer.Pacer
	logger *zap.Logger
}

// NewHealth creates a link health checker for one worker.
func NewHealth(driver Driver, p *pacer.Pacer, logger *zap.Logger) *Health {
	return &Health{
		driver: driver,
		pacer:  p,
		logger: logger,
	}
}

// Connected reports the current link state without trying to repair it.
func (h *Health) Connected() bool {
	return h.driver.Connected()
}

// Ensure returns immediately if the link is up. Otherwise it forces a
// disconnect/reconnect cycle and polls until the link is back, the timeout
// expires (ErrLinkDown) or ctx is done.
func (h *Health) Ensure(ctx context.Context, timeout time.Duration) error {
	if h.driver.Connected() {
		return nil
	}

	h.logger.Warn("link down, reconnecting")
	metrics.LinkReconnects.Inc()

	if err := h.driver.Disconnect(); err != nil {
		h.logger.Debug("link disconnect failed", zap.Error(err))
	}
	if err := sleep(ctx, settleDelay); err != nil {
		return err
	}
	if err := h.driver.Reconnect(); err != nil {
		h.logger.Debug("link reconnect failed", zap.Error(err))
	}

	start := time.Now()
	for !h.driver.Connected() {
		h.pacer.Tick()
		if time.Since(start) > timeout {
			h.logger.Warn("link reconnect timed out", zap.Duration("timeout", timeout))
			return ErrLinkDown
		}
		if err := sleep(ctx, pollInterval); err != nil {
			return err
		}
	}

	h.logger.Info("link restored", zap.Duration("after", time.Since(start)))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HostDriver reports the link state of a hosted OS network interface.
// Reconnecting is left to the OS network manager.
type HostDriver struct {
	// Interface restricts the check to one interface. Empty means any
	// non-loopback interface.
	Interface string
}

// Connected reports whether the interface is up and carries an address.
func (d HostDriver) Connected() bool {
	if d.Interface != "" {
		iface, err := net.InterfaceByName(d.Interface)
		if err != nil {
			return false
		}
		return usable(*iface)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if usable(iface) {
			return true
		}
	}
	return false
}

func (HostDriver) Disconnect() error { return nil }
func (HostDriver) Reconnect() error  { return nil }

func usable(iface net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 {
		return false
	}
	addrs, err := iface.Addrs()
	return err == nil && len(addrs) > 0
}
