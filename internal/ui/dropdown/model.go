// Package dropdown is the notification panel opened from the bell.
package dropdown

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rihigo/notify/internal/keys"
	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/internal/notify"
	"github.com/rihigo/notify/internal/theme"
)

// MarkReadMsg asks the app to mark one notification as read.
type MarkReadMsg struct{ ID string }

// DeleteMsg asks the app to delete one notification.
type DeleteMsg struct{ ID string }

// MarkAllReadMsg asks the app to mark every notification as read.
type MarkAllReadMsg struct{}

// LoadMoreMsg asks the app to fetch the next page.
type LoadMoreMsg struct{}

// OpenMsg is sent when the user opens a notification.
type OpenMsg struct {
	Notification model.Notification
}

// CloseMsg is sent when the user closes the panel.
type CloseMsg struct{}

// Model is the notification panel.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	state  notify.State
	loaded bool
	width  int
	height int
}

// New creates an empty panel.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height-2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetState replaces the rendered notifications, keeping the cursor on the
// same notification when it is still present.
func (m *Model) SetState(s notify.State) tea.Cmd {
	selected := ""
	if it, ok := m.list.SelectedItem().(Item); ok {
		selected = it.Notification.ID
	}

	m.state = s
	m.loaded = true

	items := make([]list.Item, len(s.Items))
	for i, n := range s.Items {
		items[i] = Item{Notification: n}
	}
	cmd := m.list.SetItems(items)

	if selected != "" {
		m.Select(selected)
	}
	return cmd
}

// Select moves the cursor to the notification with id.
func (m *Model) Select(id string) bool {
	for i, it := range m.list.Items() {
		if it.(Item).Notification.ID == id {
			m.list.Select(i)
			return true
		}
	}
	return false
}

// SelectURL moves the cursor to the first notification whose deep link
// matches target. The match ignores a trailing slash.
func (m *Model) SelectURL(target string) bool {
	want := strings.TrimRight(target, "/")
	for i, it := range m.list.Items() {
		n := it.(Item).Notification
		if n.ActionURL != "" && strings.TrimRight(n.ActionURL, "/") == want {
			m.list.Select(i)
			return true
		}
	}
	return false
}

// SelectedItem returns the notification under the cursor.
func (m Model) SelectedItem() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(keyMsg, m.keys.Back), key.Matches(keyMsg, m.keys.Toggle):
		return m, emit(CloseMsg{})

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		if m.state.UnreadCount == 0 {
			return m, nil
		}
		return m, emit(MarkAllReadMsg{})

	case key.Matches(keyMsg, m.keys.LoadMore):
		return m, m.loadMore()

	case key.Matches(keyMsg, m.keys.MarkRead):
		if n, ok := m.SelectedItem(); ok && !n.IsRead {
			return m, emit(MarkReadMsg{ID: n.ID})
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Delete):
		if n, ok := m.SelectedItem(); ok {
			return m, emit(DeleteMsg{ID: n.ID})
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Open):
		if n, ok := m.SelectedItem(); ok {
			return m, emit(OpenMsg{Notification: n})
		}
		return m, nil

	case key.Matches(keyMsg, m.keys.Down):
		// Scrolling past the last row pulls the next page.
		if m.list.Index() == len(m.list.Items())-1 {
			return m, m.loadMore()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) loadMore() tea.Cmd {
	if !m.state.HasMore || m.state.IsLoading {
		return nil
	}
	return emit(LoadMoreMsg{})
}

// View renders the panel.
func (m Model) View() string {
	header := m.headerLine()

	var body string
	switch {
	case len(m.state.Items) == 0 && (m.state.IsLoading || !m.loaded):
		body = theme.HelpStyle.Render("Loading notifications...")
	case len(m.state.Items) == 0:
		body = theme.HelpStyle.Render("You're all caught up. No notifications yet.")
	default:
		body = m.list.View()
	}

	footer := ""
	switch {
	case m.state.IsLoading && len(m.state.Items) > 0:
		footer = theme.HelpStyle.Render("loading more...")
	case m.state.HasMore:
		footer = theme.HelpStyle.Render("L load more")
	}

	content := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

func (m Model) headerLine() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Notifications")
	if m.state.UnreadCount > 0 {
		title += " " + theme.BadgeStyle.Render(strconv.Itoa(m.state.UnreadCount)+" unread")
	}
	return title
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width-6, height-6)
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
