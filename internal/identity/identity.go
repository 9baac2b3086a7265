// Package identity resolves the device identity used in share submissions
// and auto-generated rig names.
package identity

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/denisbrodbeck/machineid"
)

const (
	appID = "ducominer"

	// idLen is the number of hex characters kept from the machine id.
	idLen = 16
)

// DeviceID returns an uppercase hex identifier unique to this machine. The
// raw machine id is never exposed; it is hashed with the application id.
func DeviceID() (string, error) {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return "", fmt.Errorf("machine id: %w", err)
	}
	return Normalize(id), nil
}

// Normalize trims and upper-cases a raw identifier to idLen characters.
func Normalize(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if len(id) > idLen {
		id = id[:idLen]
	}
	return id
}

// RigName builds the auto-generated rig identifier for a device.
func RigName(deviceID string) string {
	return strings.ToUpper(runtime.GOOS + "-" + deviceID)
}
