package platform

import "time"

// Platform defines the interface for platform-specific operations.
type Platform interface {
	// GetForegroundWindow returns information about the currently focused
	// window, including whether it covers the whole screen.
	GetForegroundWindow() (*WindowInfo, error)

	// StartInputMonitoring starts monitoring mouse and keyboard input and
	// invokes the callback for every event. Only metadata is reported; key
	// content is never captured.
	StartInputMonitoring(callback func(InputEvent)) error

	// StopInputMonitoring stops the input monitoring.
	StopInputMonitoring() error
}

// WindowInfo describes the foreground window.
type WindowInfo struct {
	Title        string
	Application  string
	ProcessID    int
	IsFullscreen bool
	Timestamp    time.Time
}

// InputEvent is a single user input event.
type InputEvent struct {
	Type      InputType
	X         int
	Y         int
	Timestamp time.Time
}

// InputType represents the kind of input event.
type InputType string

const (
	InputMouseMove   InputType = "mouse_move"
	InputMouseClick  InputType = "mouse_click"
	InputMouseScroll InputType = "mouse_scroll"
	InputKeyPress    InputType = "key_press"
)
