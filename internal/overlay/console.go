package overlay

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Console renders the overlay as a status line on a terminal.
type Console struct {
	shown atomic.Bool

	out      io.Writer
	snapshot SnapshotFunc
	dirty    *Dirty
	interval time.Duration
	tty      bool

	codeStyle    lipgloss.Style
	pendingStyle lipgloss.Style
	candStyle    lipgloss.Style
	statusStyle  lipgloss.Style

	mu   sync.Mutex
	last string
}

// NewConsole creates a console overlay writing to out. It starts shown.
func NewConsole(out io.Writer, snapshot SnapshotFunc, dirty *Dirty) *Console {
	if out == nil {
		out = os.Stdout
	}
	if dirty == nil {
		dirty = &Dirty{}
	}
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}

	r := lipgloss.NewRenderer(out)
	c := &Console{
		out:          out,
		snapshot:     snapshot,
		dirty:        dirty,
		interval:     30 * time.Millisecond,
		tty:          tty,
		codeStyle:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#0A84FF")),
		pendingStyle: r.NewStyle().Foreground(lipgloss.Color("#30D158")),
		candStyle:    r.NewStyle().Foreground(lipgloss.Color("#F5F5F7")),
		statusStyle:  r.NewStyle().Faint(true),
	}
	c.shown.Store(true)
	return c
}

// Visible is always false: the status line never takes keys, so the
// dispatcher keeps handling them.
func (c *Console) Visible() bool { return false }

// HasFocus is always false.
func (c *Console) HasFocus() bool { return false }

// Shown reports whether the status line is drawn.
func (c *Console) Shown() bool { return c.shown.Load() }

// Toggle shows or hides the status line.
func (c *Console) Toggle() {
	for {
		old := c.shown.Load()
		if c.shown.CompareAndSwap(old, !old) {
			break
		}
	}
	c.dirty.Mark()
}

// Render formats lines for the terminal on one row.
func (c *Console) Render(l Lines) string {
	code := c.codeStyle.Render(l.Code)
	if l.Code == "" {
		code = c.statusStyle.Render("·")
	}
	return fmt.Sprintf("%s  %s  %s", code, c.candStyle.Render(l.Candidates), c.statusStyle.Render("["+l.Status+"]"))
}

// Redraw writes the current state if it changed since the last draw.
func (c *Console) Redraw() error {
	line := ""
	if c.Shown() && c.snapshot != nil {
		line = c.Render(Format(c.snapshot()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if line == c.last {
		return nil
	}
	c.last = line

	var err error
	if c.tty {
		_, err = fmt.Fprintf(c.out, "\r\x1b[K%s", line)
	} else if line != "" {
		_, err = fmt.Fprintln(c.out, line)
	}
	return err
}

// Run polls the dirty flag and redraws until ctx is done.
func (c *Console) Run(ctx context.Context) error {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if c.tty {
				fmt.Fprintln(c.out)
			}
			return nil
		case <-t.C:
			if c.dirty.Take() {
				if err := c.Redraw(); err != nil {
					return err
				}
			}
		}
	}
}
