// Package bell renders the notification bell shown in the header.
package bell

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/rihigo/notify/internal/theme"
)

// Glyph is the bell symbol.
const Glyph = "🔔"

// maxBadge is the largest count shown before the badge reads "99+".
const maxBadge = 99

// BadgeText returns the text inside the unread badge, or "" when there is
// nothing unread.
func BadgeText(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > maxBadge:
		return strconv.Itoa(maxBadge) + "+"
	default:
		return strconv.Itoa(unread)
	}
}

// View renders the bell, its badge and a warning marker while the live
// connection is down.
func View(unread int, connected bool, open bool) string {
	glyph := Glyph
	if open {
		glyph = lipgloss.NewStyle().Underline(true).Render(glyph)
	}

	parts := []string{glyph}
	if text := BadgeText(unread); text != "" {
		parts = append(parts, theme.BadgeStyle.Render(text))
	}
	if !connected {
		parts = append(parts, theme.WarningStyle.Render("⚠ offline"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Center, joinSpaced(parts)...)
}

func joinSpaced(parts []string) []string {
	out := make([]string, 0, len(parts)*2-1)
	for i, p := range parts {
		if i > 0 {
			out = append(out, " ")
		}
		out = append(out, p)
	}
	return out
}
