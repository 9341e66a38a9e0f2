package platform

// Noop is a Platform that reports no window and produces no input events.
// Used where OS integration is unavailable so the engine keeps ticking with
// empty metrics instead of failing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) GetForegroundWindow() (*WindowInfo, error) {
	return &WindowInfo{}, nil
}

func (n *Noop) StartInputMonitoring(callback func(InputEvent)) error {
	return nil
}

func (n *Noop) StopInputMonitoring() error {
	return nil
}
