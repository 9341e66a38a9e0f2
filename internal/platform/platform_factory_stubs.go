//go:build !windows
// +build !windows

package platform

import "fmt"

// NewPlatform creates the platform implementation for the current OS. On
// platforms without an input hook implementation the engine degrades: the
// caller should fall back to the Noop platform.
func NewPlatform() (Platform, error) {
	return nil, fmt.Errorf("no platform implementation for this OS")
}
