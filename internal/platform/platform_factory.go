//go:build windows
// +build windows

package platform

// NewPlatform creates the platform implementation for the current OS.
func NewPlatform() (Platform, error) {
	return newWindowsPlatform()
}
