//go:build !windows && !linux

package keystroke

import "context"

// StubSource is used on platforms without a keyboard source.
type StubSource struct {
	BaseSource
}

func newPlatformSource() Source {
	return &StubSource{}
}

// Available returns false on unsupported platforms.
func (s *StubSource) Available() (bool, string) {
	return false, "keyboard interception not implemented for this platform"
}

// Start returns ErrNotAvailable.
func (s *StubSource) Start(ctx context.Context, h Handler) error {
	return ErrNotAvailable
}

// Stop is a no-op.
func (s *StubSource) Stop() error {
	return nil
}
