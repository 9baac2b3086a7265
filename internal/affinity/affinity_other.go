//go:build !linux

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread. CPU binding is only
// supported on Linux.
func Pin(int) error {
	runtime.LockOSThread()
	return nil
}
