package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ucliu/internal/config"
	"ucliu/internal/delivery"
	"ucliu/internal/dispatch"
	"ucliu/internal/ime"
	"ucliu/internal/keystroke"
	"ucliu/internal/logging"
	"ucliu/internal/overlay"
)

// TryCmd runs the dispatcher against keys typed in the terminal. Nothing is
// hooked and nothing is pasted: committed text lands in an on-screen buffer.
type TryCmd struct {
	Dictionary DictionaryFlags `embed:"" prefix:"dictionary."`

	Type string `help:"Feed TEXT through the engine, print the result and exit." placeholder:"TEXT"`
}

// Run loads the dictionaries and starts the terminal UI.
func (t *TryCmd) Run(cfg *config.Config, logger *logging.Logger) error {
	dc := cfg.Dictionary
	if t.Dictionary.Path != "" {
		dc.Path = t.Dictionary.Path
	}
	if t.Dictionary.CustomPath != "" {
		dc.CustomPath = t.Dictionary.CustomPath
	}
	dict, err := loadDictionary(dc)
	if err != nil {
		return err
	}

	m, err := newTryModel(dict, logger.Component("try"))
	if err != nil {
		return err
	}
	defer m.close()

	if t.Type != "" {
		if err := m.typeText(t.Type); err != nil {
			return err
		}
		fmt.Println(m.Text())
		return nil
	}
	_, err = tea.NewProgram(m).Run()
	return err
}

type tryStyles struct {
	title lipgloss.Style
	box   lipgloss.Style
	help  lipgloss.Style
}

func newTryStyles() tryStyles {
	return tryStyles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0A84FF")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3A3A3C")).
			Padding(0, 1),
		help: lipgloss.NewStyle().Faint(true),
	}
}

// tryModel plays both sides: it is the keyboard (a Simulated source) and the
// focused application (text receives passed keys and delivered candidates).
type tryModel struct {
	src     *keystroke.Simulated
	disp    *dispatch.Dispatcher
	rec     *delivery.Recorder
	console *overlay.Console
	styles  tryStyles
	cancel  context.CancelFunc

	text  []rune
	seen  int
	width int
	quit  bool
}

func newTryModel(dict ime.Dictionary, logger *slog.Logger) (*tryModel, error) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &tryModel{
		src:    keystroke.NewSimulated(),
		rec:    delivery.NewRecorder(),
		styles: newTryStyles(),
		cancel: cancel,
	}
	m.disp = dispatch.New(dispatch.Options{
		Dictionary:   dict,
		Deliverer:    m.rec,
		Hotkeys:      dispatch.DefaultHotkeys(),
		Intercepting: true,
		Context:      ctx,
		OnQuit:       func() { m.quit = true },
		Logger:       logger,
	})
	m.console = overlay.NewConsole(os.Stdout, m.disp.Snapshot, nil)
	if err := m.src.Start(ctx, m.disp); err != nil {
		cancel()
		return nil, err
	}
	return m, nil
}

func (m *tryModel) close() {
	m.src.Stop()
	m.cancel()
}

// Text returns what the application has received so far.
func (m *tryModel) Text() string { return string(m.text) }

// press taps vk and applies the outcome to the buffer.
func (m *tryModel) press(vk uint16, r rune) {
	v := m.src.Feed(keystroke.Event{VK: vk, Down: true, Rune: r})
	m.src.Feed(keystroke.Event{VK: vk, Rune: r})

	texts := m.rec.Texts()
	for _, s := range texts[m.seen:] {
		m.text = append(m.text, []rune(s)...)
	}
	m.seen = len(texts)

	if v == keystroke.Pass {
		m.receive(vk, r)
	}
}

// receive is what a text field does with a key that passed through.
func (m *tryModel) receive(vk uint16, r rune) {
	switch {
	case vk == keystroke.VKBack:
		if n := len(m.text); n > 0 {
			m.text = m.text[:n-1]
		}
	case vk == keystroke.VKReturn:
		m.text = append(m.text, '\n')
	case r >= ' ':
		m.text = append(m.text, r)
	}
}

// shiftTap is a solitary shift press, which flips the mode.
func (m *tryModel) shiftTap() {
	m.src.Tap(keystroke.VKLShift)
}

func (m *tryModel) typeText(s string) error {
	for _, r := range s {
		vk, ok := keystroke.VKForRune(r)
		if !ok {
			return fmt.Errorf("no key for %q", r)
		}
		m.press(vk, r)
	}
	return nil
}

var teaKeys = map[tea.KeyType]uint16{
	tea.KeySpace:     keystroke.VKSpace,
	tea.KeyEnter:     keystroke.VKReturn,
	tea.KeyBackspace: keystroke.VKBack,
	tea.KeyEsc:       keystroke.VKEscape,
	tea.KeyPgUp:      keystroke.VKPrior,
	tea.KeyPgDown:    keystroke.VKNext,
	tea.KeyF4:        keystroke.VKF4,
}

// keyFromTea maps a terminal key to a virtual key and the character it
// types.
func keyFromTea(msg tea.KeyMsg) (uint16, rune, bool) {
	if msg.Type == tea.KeyRunes {
		if len(msg.Runes) != 1 {
			return 0, 0, false
		}
		r := msg.Runes[0]
		vk, ok := keystroke.VKForRune(r)
		return vk, r, ok
	}
	vk, ok := teaKeys[msg.Type]
	var r rune
	switch msg.Type {
	case tea.KeySpace:
		r = ' '
	case tea.KeyEnter:
		r = '\n'
	}
	return vk, r, ok
}

func (m *tryModel) Init() tea.Cmd { return nil }

func (m *tryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab:
			m.shiftTap()
			return m, nil
		}
		if vk, r, ok := keyFromTea(msg); ok {
			m.press(vk, r)
		}
		if m.quit {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *tryModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("ucliu try"))
	b.WriteString("\n")

	box := m.styles.box
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(box.Render(m.Text() + "▏"))
	b.WriteString("\n")
	b.WriteString(m.console.Render(overlay.Format(m.disp.Snapshot())))
	b.WriteString("\n\n")
	b.WriteString(m.styles.help.Render("tab: switch mode (solitary shift)  space: first candidate  1-6: pick  pgup/pgdn: page  f4/ctrl+c: quit"))
	b.WriteString("\n")
	return b.String()
}
