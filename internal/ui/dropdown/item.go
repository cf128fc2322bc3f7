package dropdown

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	parts := []string{
		typeLabel(i.Notification.Type),
		string(i.Notification.Priority),
		relativeTime(i.Notification.CreatedAt, time.Now()),
	}
	return strings.Join(parts, " | ")
}

// Delegate implements list.ItemDelegate for notification rows. Each row
// takes two lines: the title line and a dimmed body preview.
type Delegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d Delegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d Delegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d Delegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification.
func (d Delegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}

	n := it.Notification
	now := time.Now()
	if d.now != nil {
		now = d.now()
	}

	marker := " "
	if !n.IsRead {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	}

	typeBadge := theme.TypeStyle(n.Type).Render(typeLabel(n.Type))
	priBadge := ""
	if n.Priority == model.PriorityUrgent || n.Priority == model.PriorityHigh {
		priBadge = theme.PriorityStyle(n.Priority).Render(strings.ToUpper(string(n.Priority))) + " "
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.CreatedAt, now))

	title := n.Title
	if !n.IsRead {
		title = lipgloss.NewStyle().Bold(true).Render(title)
	}

	width := m.Width() - 4
	body := truncate(strings.ReplaceAll(n.Body, "\n", " "), width)
	if n.ActionLabel != "" {
		body = truncate(body+"  → "+n.ActionLabel, width)
	}

	line := fmt.Sprintf("%s %s %s%s  %s", marker, typeBadge, priBadge, title, timeStr)
	preview := "  " + theme.DimmedStyle.Render(body)

	if n.IsRead {
		line = theme.DimmedStyle.Render(line)
	}

	row := lipgloss.JoinVertical(lipgloss.Left, line, preview)
	if index == m.Index() {
		row = theme.SelectedItemStyle.Render(row)
	} else {
		row = theme.ListItemStyle.Render(row)
	}

	fmt.Fprint(w, row)
}

// typeLabel returns a short label for the notification type.
func typeLabel(t model.NotificationType) string {
	switch t {
	case model.TypeBookingCreated, model.TypeBookingConfirmed,
		model.TypeBookingCancelled, model.TypeBookingCompleted:
		return "BOOKING"
	case model.TypePaymentReceived, model.TypePaymentFailed:
		return "PAYMENT"
	case model.TypeTicketReply, model.TypeTicketStatus:
		return "TICKET"
	case model.TypeSystem:
		return "SYSTEM"
	default:
		return "INFO"
	}
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		runes = runes[:width-1]
	}
	return string(runes) + "…"
}
