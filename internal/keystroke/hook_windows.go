//go:build windows

package keystroke

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL = 13
	hcAction     = 0

	wmQuit       = 0x0012
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105

	llkhfExtended = 0x01
	llkhfInjected = 0x10

	hookInstallTimeout = 2 * time.Second
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

// Hook is the WH_KEYBOARD_LL keyboard source. The hook procedure and the
// message loop that drives it run on one locked OS thread.
type Hook struct {
	BaseSource

	threadID atomic.Uint32
	// callback is created once; the runtime keeps a fixed number of them.
	callback uintptr
}

func newPlatformSource() Source {
	return NewHook()
}

// NewHook creates an uninstalled low-level keyboard hook.
func NewHook() *Hook {
	h := &Hook{}
	h.callback = windows.NewCallback(h.proc)
	return h
}

// Available reports whether the hook DLL entry points exist.
func (h *Hook) Available() (bool, string) {
	if err := procSetWindowsHookExW.Find(); err != nil {
		return false, err.Error()
	}
	return true, "WH_KEYBOARD_LL"
}

// Start installs the hook and returns once the OS has accepted it. A refused
// registration is returned as ErrHookRefused.
func (h *Hook) Start(ctx context.Context, handler Handler) error {
	if err := h.begin(handler); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go h.run(errCh)

	select {
	case err := <-errCh:
		if err != nil {
			h.end()
			return err
		}
	case <-time.After(hookInstallTimeout):
		h.Stop()
		return fmt.Errorf("%w: timed out after %s", ErrHookRefused, hookInstallTimeout)
	}

	done := h.Done()
	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-done:
		}
	}()
	return nil
}

// Stop asks the hook thread to leave its message loop. It does not wait, so
// it is safe to call from inside a handler.
func (h *Hook) Stop() error {
	tid := h.threadID.Load()
	if tid == 0 {
		return nil
	}
	r, _, err := procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	if r == 0 {
		return fmt.Errorf("post quit to hook thread: %w", err)
	}
	return nil
}

func (h *Hook) run(errCh chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	h.threadID.Store(windows.GetCurrentThreadId())
	defer h.threadID.Store(0)

	hook, _, callErr := procSetWindowsHookExW.Call(whKeyboardLL, h.callback, 0, 0)
	if hook == 0 {
		errCh <- fmt.Errorf("%w: %v", ErrHookRefused, callErr)
		return
	}
	errCh <- nil

	defer h.end()
	defer procUnhookWindowsHookEx.Call(hook)

	var m winMsg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 an error.
		if int32(r) <= 0 {
			return
		}
	}
}

func (h *Hook) proc(nCode, wParam, lParam uintptr) uintptr {
	if int32(nCode) == hcAction {
		if ev, ok := decodeLowLevel(wParam, lParam); ok {
			if h.dispatch(ev) == Consume {
				return 1
			}
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return r
}

// decodeLowLevel is the only place that reads the native hook structure.
func decodeLowLevel(wParam, lParam uintptr) (Event, bool) {
	var down bool
	switch wParam {
	case wmKeyDown, wmSysKeyDown:
		down = true
	case wmKeyUp, wmSysKeyUp:
	default:
		return Event{}, false
	}
	if lParam == 0 {
		return Event{}, false
	}
	k := (*kbdllHookStruct)(unsafe.Pointer(lParam))
	if k.VkCode > 0xFF {
		return Event{}, false
	}
	return Event{
		VK:       uint16(k.VkCode),
		ScanCode: k.ScanCode,
		Down:     down,
		Injected: k.Flags&llkhfInjected != 0 || k.DwExtraInfo == InjectedMarker,
		Extended: k.Flags&llkhfExtended != 0,
		Time:     time.Now(),
	}, true
}
