// Package permission is the modal asking whether notifications may be
// shown on this device.
package permission

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/rihigo/notify/internal/push"
	"github.com/rihigo/notify/internal/theme"
)

// AnswerMsg carries the user's decision. Escaping the modal yields
// push.PermissionDefault so the question can be asked again later.
type AnswerMsg struct {
	Permission push.Permission
}

// Model is the confirm modal.
type Model struct {
	form  *huh.Form
	allow *bool
	width int
}

// New creates the modal.
func New(width int) Model {
	return Model{width: width}
}

// Ask resets the modal and returns its init command.
func (m *Model) Ask() tea.Cmd {
	m.allow = new(bool)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Allow notifications?").
				Description("Rihigo will show booking, payment and support updates\neven while you are looking elsewhere.").
				Affirmative("Allow").
				Negative("Block").
				Value(m.allow),
		),
	).WithWidth(m.formWidth())
	return m.form.Init()
}

// Update forwards messages to the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.form = nil
		return m, answer(push.PermissionDefault)
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		perm := push.PermissionDenied
		if *m.allow {
			perm = push.PermissionGranted
		}
		m.form = nil
		return m, answer(perm)
	case huh.StateAborted:
		m.form = nil
		return m, answer(push.PermissionDefault)
	}

	return m, cmd
}

// View renders the modal.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return theme.PanelStyle.Width(m.formWidth() + 4).Render(m.form.View())
}

// SetSize updates the modal width.
func (m *Model) SetSize(width int) {
	m.width = width
}

func (m Model) formWidth() int {
	if m.width <= 0 {
		return 50
	}
	return min(m.width-8, 60)
}

func answer(p push.Permission) tea.Cmd {
	return func() tea.Msg { return AnswerMsg{Permission: p} }
}
