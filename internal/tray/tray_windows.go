//go:build windows

package tray

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	shell32  = windows.NewLazySystemDLL("shell32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procRegisterClassExW    = user32.NewProc("RegisterClassExW")
	procUnregisterClassW    = user32.NewProc("UnregisterClassW")
	procCreateWindowExW     = user32.NewProc("CreateWindowExW")
	procDefWindowProcW      = user32.NewProc("DefWindowProcW")
	procDestroyWindow       = user32.NewProc("DestroyWindow")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procPostMessageW        = user32.NewProc("PostMessageW")
	procPostQuitMessage     = user32.NewProc("PostQuitMessage")
	procLoadImageW          = user32.NewProc("LoadImageW")
	procLoadIconW           = user32.NewProc("LoadIconW")
	procDestroyIcon         = user32.NewProc("DestroyIcon")
	procCreatePopupMenu     = user32.NewProc("CreatePopupMenu")
	procAppendMenuW         = user32.NewProc("AppendMenuW")
	procTrackPopupMenu      = user32.NewProc("TrackPopupMenu")
	procDestroyMenu         = user32.NewProc("DestroyMenu")
	procGetCursorPos        = user32.NewProc("GetCursorPos")
	procSetForegroundWindow = user32.NewProc("SetForegroundWindow")
	procGetModuleHandleW    = kernel32.NewProc("GetModuleHandleW")

	procShellNotifyIconW = shell32.NewProc("Shell_NotifyIconW")
)

const (
	wmNull        = 0x0000
	wmDestroy     = 0x0002
	wmClose       = 0x0010
	wmCommand     = 0x0111
	wmLButtonUp   = 0x0202
	wmRButtonUp   = 0x0205
	wmApp         = 0x8000
	wmTrayIcon    = wmApp + 1
	wmTrayRefresh = wmApp + 2

	nimAdd    = 0x00000000
	nimModify = 0x00000001
	nimDelete = 0x00000002

	nifMessage = 0x00000001
	nifIcon    = 0x00000002
	nifTip     = 0x00000004

	imageIcon      = 1
	lrLoadFromFile = 0x00000010
	idiApplication = 32512

	mfString    = 0x00000000
	mfGrayed    = 0x00000001
	mfSeparator = 0x00000800

	tpmBottomAlign = 0x0020
	tpmNoNotify    = 0x0080
	tpmReturnCmd   = 0x0100

	menuIDBase = 1000
)

type wndClassEx struct {
	Size       uint32
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       windows.Handle
	Cursor     windows.Handle
	Background windows.Handle
	MenuName   *uint16
	ClassName  *uint16
	IconSm     windows.Handle
}

type notifyIconData struct {
	Size            uint32
	Wnd             uintptr
	ID              uint32
	Flags           uint32
	CallbackMessage uint32
	Icon            windows.Handle
	Tip             [128]uint16
	State           uint32
	StateMask       uint32
	Info            [256]uint16
	TimeoutVersion  uint32
	InfoTitle       [64]uint16
	InfoFlags       uint32
	GuidItem        windows.GUID
	BalloonIcon     windows.Handle
}

type point struct {
	X, Y int32
}

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type win32Tray struct {
	cfg      Config
	instance windows.Handle
	class    *uint16
	hwnd     uintptr
	icon     windows.Handle
	ownIcon  bool
	nid      notifyIconData
	tip      string
	items    []MenuItem
}

// run owns a locked OS thread: the window, its icon and the message loop
// must all live on the thread that created them.
func run(ctx context.Context, cfg Config) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t := &win32Tray{cfg: cfg}
	if err := t.create(); err != nil {
		return err
	}
	defer t.destroy()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(cfg.Poll)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				procPostMessageW.Call(t.hwnd, wmClose, 0, 0)
				return
			case <-stop:
				return
			case <-ticker.C:
				procPostMessageW.Call(t.hwnd, wmTrayRefresh, 0, 0)
			}
		}
	}()

	var m winMsg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
	return nil
}

func (t *win32Tray) create() error {
	h, _, _ := procGetModuleHandleW.Call(0)
	t.instance = windows.Handle(h)

	class, err := windows.UTF16PtrFromString("UcliuTrayClass")
	if err != nil {
		return err
	}
	t.class = class
	wc := wndClassEx{
		Size:      uint32(unsafe.Sizeof(wndClassEx{})),
		WndProc:   windows.NewCallback(t.wndProc),
		Instance:  t.instance,
		ClassName: class,
	}
	if ret, _, err := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
		return fmt.Errorf("register tray window class: %w", err)
	}

	title, _ := windows.UTF16PtrFromString(t.cfg.Name)
	hwnd, _, err := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(class)),
		uintptr(unsafe.Pointer(title)),
		0, 0, 0, 0, 0,
		0, 0, uintptr(t.instance), 0,
	)
	if hwnd == 0 {
		procUnregisterClassW.Call(uintptr(unsafe.Pointer(class)), uintptr(t.instance))
		return fmt.Errorf("create tray window: %w", err)
	}
	t.hwnd = hwnd

	t.loadIcon()
	t.nid.Size = uint32(unsafe.Sizeof(t.nid))
	t.nid.Wnd = hwnd
	t.nid.ID = 1
	t.nid.Flags = nifIcon | nifMessage | nifTip
	t.nid.CallbackMessage = wmTrayIcon
	t.nid.Icon = t.icon
	t.setTip(Tooltip(t.cfg.Name, t.cfg.State()))

	if ret, _, err := procShellNotifyIconW.Call(nimAdd, uintptr(unsafe.Pointer(&t.nid))); ret == 0 {
		t.destroy()
		return fmt.Errorf("add tray icon: %w", err)
	}
	t.cfg.Logger.Debug("tray icon added")
	return nil
}

func (t *win32Tray) loadIcon() {
	if t.cfg.IconPath != "" {
		if _, err := os.Stat(t.cfg.IconPath); err == nil {
			path, _ := windows.UTF16PtrFromString(t.cfg.IconPath)
			h, _, _ := procLoadImageW.Call(0, uintptr(unsafe.Pointer(path)), imageIcon, 0, 0, lrLoadFromFile)
			if h != 0 {
				t.icon = windows.Handle(h)
				t.ownIcon = true
				return
			}
		}
		t.cfg.Logger.Warn("tray icon not loaded, using stock icon", "path", t.cfg.IconPath)
	}
	h, _, _ := procLoadIconW.Call(0, idiApplication)
	t.icon = windows.Handle(h)
}

func (t *win32Tray) destroy() {
	if t.nid.Wnd != 0 {
		procShellNotifyIconW.Call(nimDelete, uintptr(unsafe.Pointer(&t.nid)))
		t.nid.Wnd = 0
	}
	if t.ownIcon {
		procDestroyIcon.Call(uintptr(t.icon))
		t.ownIcon = false
	}
	if t.hwnd != 0 {
		procDestroyWindow.Call(t.hwnd)
		t.hwnd = 0
	}
	if t.class != nil {
		procUnregisterClassW.Call(uintptr(unsafe.Pointer(t.class)), uintptr(t.instance))
		t.class = nil
	}
}

func (t *win32Tray) setTip(tip string) {
	t.tip = tip
	u := windows.StringToUTF16(tip)
	if len(u) > len(t.nid.Tip) {
		u = u[:len(t.nid.Tip)-1]
		u = append(u, 0)
	}
	t.nid.Tip = [128]uint16{}
	copy(t.nid.Tip[:], u)
}

func (t *win32Tray) refresh() {
	tip := Tooltip(t.cfg.Name, t.cfg.State())
	if tip == t.tip {
		return
	}
	t.setTip(tip)
	procShellNotifyIconW.Call(nimModify, uintptr(unsafe.Pointer(&t.nid)))
}

func (t *win32Tray) wndProc(hwnd, msg, wParam, lParam uintptr) uintptr {
	switch msg {
	case wmTrayIcon:
		switch lParam & 0xffff {
		case wmLButtonUp:
			t.activate(ActionToggleMode)
		case wmRButtonUp:
			t.showMenu()
		}
	case wmTrayRefresh:
		t.refresh()
	case wmClose:
		procDestroyWindow.Call(hwnd)
		t.hwnd = 0
	case wmDestroy:
		if t.nid.Wnd != 0 {
			procShellNotifyIconW.Call(nimDelete, uintptr(unsafe.Pointer(&t.nid)))
			t.nid.Wnd = 0
		}
		procPostQuitMessage.Call(0)
	default:
		ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wParam, lParam)
		return ret
	}
	return 0
}

func (t *win32Tray) activate(a Action) {
	t.cfg.Logger.Debug("tray action", "action", a.String())
	t.cfg.OnAction(a)
	t.refresh()
}

func (t *win32Tray) showMenu() {
	menu, _, _ := procCreatePopupMenu.Call()
	if menu == 0 {
		return
	}
	defer procDestroyMenu.Call(menu)

	t.items = Menu(t.cfg.State())
	for i, item := range t.items {
		if item.Separator {
			procAppendMenuW.Call(menu, mfSeparator, 0, 0)
			continue
		}
		flags := uintptr(mfString)
		if item.Disabled {
			flags |= mfGrayed
		}
		label, _ := windows.UTF16PtrFromString(item.Label)
		procAppendMenuW.Call(menu, flags, uintptr(menuIDBase+i), uintptr(unsafe.Pointer(label)))
	}

	var pt point
	procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	// The menu only closes on an outside click if our window is foreground.
	procSetForegroundWindow.Call(t.hwnd)
	id, _, _ := procTrackPopupMenu.Call(
		menu,
		tpmBottomAlign|tpmReturnCmd|tpmNoNotify,
		uintptr(pt.X), uintptr(pt.Y),
		0,
		t.hwnd,
		0,
	)
	procPostMessageW.Call(t.hwnd, wmNull, 0, 0)

	idx := int(id) - menuIDBase
	if id == 0 || idx < 0 || idx >= len(t.items) {
		return
	}
	if a := t.items[idx].Action; a != ActionNone {
		t.activate(a)
	}
}
