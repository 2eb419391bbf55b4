//go:build !windows

package delivery

// Without SendInput the text is left on the clipboard. Linux sessions
// deliver through the IBus engine instead.
func platformInjector() Injector { return nil }
