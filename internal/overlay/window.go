package overlay

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"ucliu/internal/ime"
	"ucliu/internal/keystroke"
)

// WindowConfig configures Window.
type WindowConfig struct {
	Title    string
	Width    unit.Dp
	Height   unit.Dp
	Snapshot SnapshotFunc
	Pad      *Pad
	Dirty    *Dirty
	Poll     time.Duration
	Logger   *slog.Logger
}

// Window is the candidate window. While it has focus, keys typed into it
// go to the Pad.
type Window struct {
	visibility

	cfg   WindowConfig
	log   *slog.Logger
	theme *Theme

	mu  sync.Mutex
	win *app.Window
}

// NewWindow creates a hidden window. Run opens it.
func NewWindow(cfg WindowConfig) *Window {
	if cfg.Title == "" {
		cfg.Title = "ucliu"
	}
	if cfg.Width == 0 {
		cfg.Width = unit.Dp(520)
	}
	if cfg.Height == 0 {
		cfg.Height = unit.Dp(130)
	}
	if cfg.Dirty == nil {
		cfg.Dirty = &Dirty{}
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 16 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{cfg: cfg, log: logger, theme: NewTheme(material.NewTheme())}
}

// Toggle shows or hides the window.
func (w *Window) Toggle() {
	shown := w.flip()
	w.cfg.Dirty.Mark()

	w.mu.Lock()
	win := w.win
	w.mu.Unlock()
	if win == nil {
		return
	}
	if shown {
		win.Option(app.Windowed.Option())
		win.Perform(system.ActionRaise)
	} else {
		win.Perform(system.ActionMinimize)
	}
	w.log.Info("overlay toggled", "visible", shown)
}

// Run opens the window and processes its events until ctx is done or the
// window is closed. On some platforms the caller must also run app.Main.
func (w *Window) Run(ctx context.Context) error {
	win := new(app.Window)
	win.Option(app.Title(w.cfg.Title), app.Size(w.cfg.Width, w.cfg.Height))
	if !w.Visible() {
		win.Option(app.Minimized.Option())
	}
	w.mu.Lock()
	w.win = win
	w.mu.Unlock()

	stop := make(chan struct{})
	defer close(stop)
	go w.poll(ctx, win, stop)

	var ops op.Ops
	for {
		switch e := win.Event().(type) {
		case app.DestroyEvent:
			w.mu.Lock()
			w.win = nil
			w.mu.Unlock()
			w.focused.Store(false)
			return e.Err
		case app.ConfigEvent:
			w.focused.Store(e.Config.Focused)
			w.shown.Store(e.Config.Mode != app.Minimized)
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			w.handleKeys(gtx)
			w.layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (w *Window) poll(ctx context.Context, win *app.Window, stop <-chan struct{}) {
	t := time.NewTicker(w.cfg.Poll)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			win.Perform(system.ActionClose)
			return
		case <-t.C:
			if w.cfg.Dirty.Take() {
				win.Invalidate()
			}
		}
	}
}

func (w *Window) handleKeys(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(
			key.FocusFilter{Target: w},
			key.Filter{Focus: w, Optional: key.ModCtrl | key.ModShift},
		)
		if !ok {
			break
		}
		ke, ok := ev.(key.Event)
		if !ok || ke.State != key.Press || w.cfg.Pad == nil {
			continue
		}
		if kev, ok := translateKey(ke); ok {
			w.cfg.Pad.HandleKey(kev, ke.Modifiers.Contain(key.ModCtrl))
		}
	}

	area := clip.Rect{Max: gtx.Constraints.Max}.Push(gtx.Ops)
	event.Op(gtx.Ops, w)
	area.Pop()
	if !gtx.Focused(w) {
		gtx.Execute(key.FocusCmd{Tag: w})
	}
}

var namedKeys = map[key.Name]uint16{
	key.NameSpace:          keystroke.VKSpace,
	key.NameReturn:         keystroke.VKReturn,
	key.NameEnter:          keystroke.VKReturn,
	key.NameDeleteBackward: keystroke.VKBack,
	key.NameEscape:         keystroke.VKEscape,
	key.NamePageUp:         keystroke.VKPrior,
	key.NamePageDown:       keystroke.VKNext,
	key.NameTab:            keystroke.VKTab,
}

// translateKey converts a Gio key press to an Event. Modifier keys and
// keys with no text are dropped.
func translateKey(ke key.Event) (keystroke.Event, bool) {
	ev := keystroke.Event{Down: true, Time: time.Now()}
	if vk, ok := namedKeys[ke.Name]; ok {
		ev.VK = vk
		return ev, true
	}
	name := string(ke.Name)
	if utf8.RuneCountInString(name) != 1 {
		return ev, false
	}
	r, _ := utf8.DecodeRuneInString(name)
	if !ke.Modifiers.Contain(key.ModShift) {
		r = unicode.ToLower(r)
	}
	ev.Rune = r
	ev.VK, _ = keystroke.VKForRune(r)
	return ev, true
}

func (w *Window) layout(gtx layout.Context) layout.Dimensions {
	th := w.theme
	paint.Fill(gtx.Ops, th.Palette.Background)

	var s ime.Snapshot
	padText := ""
	switch {
	case w.HasFocus() && w.cfg.Pad != nil:
		s = w.cfg.Pad.Snapshot()
		padText = w.cfg.Pad.Text()
	case w.cfg.Snapshot != nil:
		s = w.cfg.Snapshot()
	}
	lines := Format(s)

	codeColor := th.Palette.Primary
	if s.HasPending {
		codeColor = th.Palette.Pending
	}
	children := []layout.FlexChild{
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			l := material.Label(th.Theme, th.Metrics.FontCode, lines.Code)
			l.Color = codeColor
			return l.Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: th.Metrics.Spacing}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			l := material.Label(th.Theme, th.Metrics.FontCandidate, lines.Candidates)
			l.Color = th.Palette.Text
			return l.Layout(gtx)
		}),
	}
	if padText != "" {
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			l := material.Label(th.Theme, th.Metrics.FontCandidate, padText)
			l.Color = th.Palette.PadText
			return l.Layout(gtx)
		}))
	}
	children = append(children,
		layout.Rigid(layout.Spacer{Height: th.Metrics.Spacing}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			l := material.Label(th.Theme, th.Metrics.FontStatus, lines.Status)
			l.Color = th.Palette.TextMuted
			return l.Layout(gtx)
		}),
	)

	return layout.UniformInset(th.Metrics.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
	})
}
