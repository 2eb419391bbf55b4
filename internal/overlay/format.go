package overlay

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"ucliu/internal/ime"
)

// Lines is a snapshot rendered to text.
type Lines struct {
	Code       string
	Candidates string
	Status     string
}

// Label returns the digit key that selects page slot i.
func Label(i int) string {
	if i == 9 {
		return "0"
	}
	return fmt.Sprint(i + 1)
}

// Format renders s. Candidate cells are padded to the widest cell on the
// page, counting East Asian wide characters as two columns.
func Format(s ime.Snapshot) Lines {
	var l Lines

	l.Code = s.Code
	if s.HasPending {
		l.Code += " → " + s.Pending
	}

	cells := make([]string, len(s.Candidates))
	width := 0
	for i, c := range s.Candidates {
		cells[i] = Label(i) + "." + c
		if w := runewidth.StringWidth(cells[i]); w > width {
			width = w
		}
	}
	for i := range cells[:max(len(cells)-1, 0)] {
		cells[i] = runewidth.FillRight(cells[i], width)
	}
	l.Candidates = strings.Join(cells, " ")

	mode := "pass-through"
	if s.Intercepting {
		mode = "intercept"
	}
	if page, pages := s.Page(); pages > 1 {
		l.Status = fmt.Sprintf("%s  %d/%d", mode, page, pages)
	} else {
		l.Status = mode
	}
	return l
}

// String joins the non-empty lines.
func (l Lines) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Code, l.Candidates, l.Status} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
