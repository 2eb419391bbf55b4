//go:build linux

package keystroke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// IBus D-Bus names.
const (
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusFactoryPath      = "/org/freedesktop/IBus/Factory"
	IBusBusName          = "org.freedesktop.IBus.UCLIU"
	IBusEngineName       = "ucliu"
)

// IBus key event state masks.
const (
	IBusShiftMask   uint32 = 1 << 0
	IBusControlMask uint32 = 1 << 2
	IBusMod1Mask    uint32 = 1 << 3 // Alt
	IBusReleaseMask uint32 = 1 << 30
)

// IBusConfig configures the IBus source.
type IBusConfig struct {
	BusName    string
	EngineName string
	Logger     *slog.Logger
}

// IBus is a keyboard source for Linux desktops. It registers an input method
// engine; IBus then routes every key of a focused text field through
// ProcessKeyEvent. Text is delivered with CommitText.
type IBus struct {
	BaseSource

	cfg IBusConfig
	log *slog.Logger

	mu       sync.Mutex
	conn     *dbus.Conn
	path     dbus.ObjectPath
	engineID uint32
	focused  bool
}

func newPlatformSource() Source {
	return NewIBus(IBusConfig{})
}

// NewIBus creates an unregistered IBus source.
func NewIBus(cfg IBusConfig) *IBus {
	if cfg.BusName == "" {
		cfg.BusName = IBusBusName
	}
	if cfg.EngineName == "" {
		cfg.EngineName = IBusEngineName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IBus{cfg: cfg, log: logger}
}

// Available reports whether a session bus is reachable.
func (e *IBus) Available() (bool, string) {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" && os.Getenv("XDG_RUNTIME_DIR") == "" {
		return false, "no D-Bus session bus"
	}
	return true, "IBus engine " + e.cfg.EngineName
}

// Start connects to the session bus and exports the factory and engine.
func (e *IBus) Start(ctx context.Context, h Handler) error {
	if err := e.begin(h); err != nil {
		return err
	}
	if err := e.register(); err != nil {
		e.end()
		return err
	}

	done := e.Done()
	go func() {
		select {
		case <-ctx.Done():
			e.Stop()
		case <-done:
		}
	}()
	e.log.Info("ibus engine registered", "bus_name", e.cfg.BusName, "engine", e.cfg.EngineName)
	return nil
}

func (e *IBus) register() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("%w: connect session bus: %v", ErrNotAvailable, err)
	}

	reply, err := conn.RequestName(e.cfg.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return errors.New("ibus bus name already taken")
	}

	factory := &ibusFactory{engine: e}
	if err := conn.Export(factory, IBusFactoryPath, IBusFactoryInterface); err != nil {
		conn.Close()
		return fmt.Errorf("export factory: %w", err)
	}

	path := dbus.ObjectPath("/org/freedesktop/IBus/Engine/" + e.cfg.EngineName)
	if err := conn.Export(e, path, IBusEngineInterface); err != nil {
		conn.Close()
		return fmt.Errorf("export engine: %w", err)
	}

	e.mu.Lock()
	e.conn = conn
	e.path = path
	e.mu.Unlock()
	return nil
}

// Stop releases the bus connection.
func (e *IBus) Stop() error {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.mu.Unlock()

	e.end()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// ProcessKeyEvent is called by IBus for every key while the engine is
// active. Returning true swallows the key.
func (e *IBus) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	ev := Event{
		VK:       keysymToVK(keyval),
		ScanCode: keycode,
		Down:     state&IBusReleaseMask == 0,
		Rune:     keysymToRune(keyval),
		Time:     time.Now(),
	}
	return e.dispatch(ev) == Consume, nil
}

// Deliver commits text to the focused client.
func (e *IBus) Deliver(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	conn, path := e.conn, e.path
	e.mu.Unlock()
	if conn == nil {
		return ErrNotAvailable
	}
	return conn.Emit(path, IBusEngineInterface+".CommitText", dbus.MakeVariant(newIBusText(text)))
}

// FocusIn is called when a text field gains focus.
func (e *IBus) FocusIn() *dbus.Error {
	e.mu.Lock()
	e.focused = true
	e.mu.Unlock()
	e.log.Debug("focus in")
	return nil
}

// FocusOut is called when the text field loses focus.
func (e *IBus) FocusOut() *dbus.Error {
	e.mu.Lock()
	e.focused = false
	e.mu.Unlock()
	e.log.Debug("focus out")
	return nil
}

// Focused reports whether a client text field has focus.
func (e *IBus) Focused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.focused
}

func (e *IBus) Enable() *dbus.Error { return nil }
func (e *IBus) Disable() *dbus.Error { return nil }
func (e *IBus) Reset() *dbus.Error { return nil }
func (e *IBus) SetCapabilities(caps uint32) *dbus.Error { return nil }
func (e *IBus) SetContentType(purpose, hints uint32) *dbus.Error { return nil }
func (e *IBus) SetCursorLocation(x, y, w, h int32) *dbus.Error { return nil }
func (e *IBus) PropertyActivate(name string, state uint32) *dbus.Error {
	return nil
}

// The IBus page and cursor methods are driven by the candidate panel, which
// this engine does not use.
func (e *IBus) PageUp() *dbus.Error { return nil }
func (e *IBus) PageDown() *dbus.Error { return nil }
func (e *IBus) CursorUp() *dbus.Error { return nil }
func (e *IBus) CursorDown() *dbus.Error { return nil }
func (e *IBus) CandidateClicked(index, button, state uint32) *dbus.Error {
	return nil
}

type ibusFactory struct {
	engine *IBus
}

// CreateEngine exports the engine under a fresh path.
func (f *ibusFactory) CreateEngine(name string) (dbus.ObjectPath, *dbus.Error) {
	e := f.engine
	if name != e.cfg.EngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine", []interface{}{"unknown engine: " + name})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return "", dbus.NewError("org.freedesktop.IBus.Error", []interface{}{"engine stopped"})
	}
	e.engineID++
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", e.engineID))
	if err := e.conn.Export(e, path, IBusEngineInterface); err != nil {
		return "", dbus.MakeFailedError(err)
	}
	e.path = path
	e.log.Info("ibus engine created", "path", path)
	return path, nil
}

// IBus serializes its text objects as (name, attachments, fields...).
type ibusAttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attributes  []dbus.Variant
}

type ibusText struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	AttrList    dbus.Variant
}

func newIBusText(s string) ibusText {
	return ibusText{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        s,
		AttrList: dbus.MakeVariant(ibusAttrList{
			Name:        "IBusAttrList",
			Attachments: map[string]dbus.Variant{},
			Attributes:  []dbus.Variant{},
		}),
	}
}

// X keysyms handled by the dispatcher.
const (
	xkBackSpace = 0xff08
	xkTab       = 0xff09
	xkReturn    = 0xff0d
	xkEscape    = 0xff1b
	xkHome      = 0xff50
	xkLeft      = 0xff51
	xkUp        = 0xff52
	xkRight     = 0xff53
	xkDown      = 0xff54
	xkPrior     = 0xff55
	xkNext      = 0xff56
	xkEnd       = 0xff57
	xkInsert    = 0xff63
	xkKPEnter   = 0xff8d
	xkKPDecimal = 0xffae
	xkF1        = 0xffbe
	xkF24       = 0xffd5
	xkShiftL    = 0xffe1
	xkShiftR    = 0xffe2
	xkControlL  = 0xffe3
	xkControlR  = 0xffe4
	xkCapsLock  = 0xffe5
	xkAltL      = 0xffe9
	xkAltR      = 0xffea
	xkDelete    = 0xffff
)

var keysymVK = map[uint32]uint16{
	xkBackSpace: VKBack,
	xkTab:       VKTab,
	xkReturn:    VKReturn,
	xkKPEnter:   VKReturn,
	xkEscape:    VKEscape,
	xkHome:      VKHome,
	xkLeft:      VKLeft,
	xkUp:        VKUp,
	xkRight:     VKRight,
	xkDown:      VKDown,
	xkPrior:     VKPrior,
	xkNext:      VKNext,
	xkEnd:       VKEnd,
	xkInsert:    VKInsert,
	xkKPDecimal: VKDecimal,
	xkShiftL:    VKLShift,
	xkShiftR:    VKRShift,
	xkControlL:  VKLControl,
	xkControlR:  VKRControl,
	xkCapsLock:  VKCapital,
	xkAltL:      VKLMenu,
	xkAltR:      VKRMenu,
	xkDelete:    VKDelete,
}

// keysymToVK maps an X keysym to the equivalent virtual-key code, or 0.
func keysymToVK(keysym uint32) uint16 {
	if keysym >= 0x20 && keysym <= 0x7e {
		vk, _ := VKForRune(rune(keysym))
		return vk
	}
	if keysym >= xkF1 && keysym <= xkF24 {
		return VKF1 + uint16(keysym-xkF1)
	}
	return keysymVK[keysym]
}

// keysymToRune converts a keysym to the character it types, or 0.
func keysymToRune(keysym uint32) rune {
	switch {
	case keysym >= 0x20 && keysym <= 0x7e, keysym >= 0xa0 && keysym <= 0xff:
		return rune(keysym)
	case keysym >= 0x01000000:
		return rune(keysym - 0x01000000)
	}
	return 0
}
