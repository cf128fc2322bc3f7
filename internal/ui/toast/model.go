// Package toast renders the stacked toast container.
package toast

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/internal/theme"
)

// maxWidth bounds a single toast box.
const maxWidth = 48

// Model renders toasts newest first.
type Model struct {
	toasts []model.Toast
	width  int
}

// New creates an empty container.
func New(width int) Model {
	return Model{width: width}
}

// SetToasts replaces the rendered toasts. They arrive oldest first.
func (m *Model) SetToasts(toasts []model.Toast) {
	m.toasts = toasts
}

// Newest returns the most recent dismissible toast.
func (m Model) Newest() (model.Toast, bool) {
	for i := len(m.toasts) - 1; i >= 0; i-- {
		if m.toasts[i].Dismissible {
			return m.toasts[i], true
		}
	}
	return model.Toast{}, false
}

// Empty reports whether there is nothing to show.
func (m Model) Empty() bool {
	return len(m.toasts) == 0
}

// View renders the stack right-aligned to the container width.
func (m Model) View() string {
	if len(m.toasts) == 0 {
		return ""
	}

	width := min(maxWidth, m.width-2)
	boxes := make([]string, 0, len(m.toasts))
	for i := len(m.toasts) - 1; i >= 0; i-- {
		boxes = append(boxes, renderToast(m.toasts[i], width))
	}

	stack := lipgloss.JoinVertical(lipgloss.Right, boxes...)
	return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, stack)
}

func renderToast(t model.Toast, width int) string {
	head := theme.ToastIcon(t.Type)
	if t.Title != "" {
		head += " " + lipgloss.NewStyle().Bold(true).Render(t.Title)
	}
	if t.Dismissible {
		head += theme.HelpStyle.Render("  x")
	}

	lines := []string{head}
	if t.Message != "" {
		lines = append(lines, t.Message)
	}

	return theme.ToastStyle(t.Type).
		Width(width).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the container width.
func (m *Model) SetSize(width int) {
	m.width = width
}
