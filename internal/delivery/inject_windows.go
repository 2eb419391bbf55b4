//go:build windows

package delivery

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"ucliu/internal/keystroke"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	inputKeyboard  = 1
	keyEventfKeyUp = 0x0002
)

type keybdInput struct {
	vk    uint16
	scan  uint16
	flags uint32
	time  uint32
	extra uintptr
}

// input mirrors INPUT; the trailing pad covers the larger MOUSEINPUT arm.
type input struct {
	typ uint32
	ki  keybdInput
	_   [8]byte
}

type sendInputInjector struct{}

func platformInjector() Injector { return sendInputInjector{} }

// PasteChord sends Ctrl down, V down, V up, Ctrl up in one SendInput call.
// Each event carries the marker so our own hook lets it through.
func (sendInputInjector) PasteChord() error {
	key := func(vk uint16, up bool) input {
		in := input{typ: inputKeyboard}
		in.ki.vk = vk
		in.ki.extra = keystroke.InjectedMarker
		if up {
			in.ki.flags = keyEventfKeyUp
		}
		return in
	}
	inputs := []input{
		key(keystroke.VKControl, false),
		key(keystroke.VKV, false),
		key(keystroke.VKV, true),
		key(keystroke.VKControl, true),
	}
	n, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(n) != len(inputs) {
		return fmt.Errorf("SendInput inserted %d of %d events: %w", n, len(inputs), err)
	}
	return nil
}
