package app

import (
	"context"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/internal/push"
	"github.com/rihigo/notify/internal/toast"
)

// notifyChangedMsg is sent when the notification store changes.
type notifyChangedMsg struct{}

// toastsChangedMsg is sent when the toast list changes.
type toastsChangedMsg struct{}

// sessionExpiredMsg fires when the session token lapses.
type sessionExpiredMsg struct{}

// realtimeStartedMsg reports the outcome of the initial fetch.
type realtimeStartedMsg struct {
	err error
}

// actionDoneMsg reports a user-triggered store action.
type actionDoneMsg struct {
	action string
	err    error
}

// pushResultMsg reports a push command.
type pushResultMsg struct {
	action   string
	ok       bool
	endpoint string
}

// waitForSignal returns a tea.Cmd that delivers msg on the next signal.
// A closed channel ends the listener.
func waitForSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

func (m Model) startRealtime() tea.Cmd {
	conn := m.deps.Realtime
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return realtimeStartedMsg{err: conn.Start(ctx)}
	}
}

// feedAction runs fn against the store off the UI goroutine. The store
// signals its own changes; the result only matters for logging.
func (m Model) feedAction(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx)}
	}
}

// open marks n as read and shows its deep link.
func (m *Model) open(n model.Notification) tea.Cmd {
	if n.ActionURL != "" {
		label := n.ActionLabel
		if label == "" {
			label = "Open"
		}
		m.statusMsg = label + ": " + m.resolve(n.ActionURL)
	} else {
		m.statusMsg = n.Title
	}

	if n.IsRead {
		return nil
	}
	id := n.ID
	return m.feedAction("mark read", func(ctx context.Context) error {
		return m.deps.Feed.MarkAsRead(ctx, id)
	})
}

// resolve turns a relative deep link into an absolute URL on the origin.
func (m Model) resolve(target string) string {
	base, err := url.Parse(m.deps.Origin)
	if err != nil || m.deps.Origin == "" {
		return target
	}
	ref, err := url.Parse(target)
	if err != nil {
		return target
	}
	return base.ResolveReference(ref).String()
}

func (m *Model) refresh() tea.Cmd {
	if m.deps.Poller == nil {
		return nil
	}
	m.statusMsg = "refreshing..."
	return m.deps.Poller.Refresh()
}

// clickLatestPush acts as a click on the push notification on screen.
func (m Model) clickLatestPush() tea.Cmd {
	if m.deps.Displayed == nil || m.deps.Clicker == nil {
		return nil
	}
	n, ok := m.deps.Displayed.Latest()
	if !ok {
		return nil
	}

	clicker := m.deps.Clicker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: "open push", err: clicker.HandleClick(ctx, n, push.ActionView)}
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "read-all", "read all", "mark all read":
		return m.feedAction("mark all read", m.deps.Feed.MarkAllAsRead)
	case "refresh", "sync":
		return m.refresh()
	case "reconnect":
		if m.expired {
			return nil
		}
		m.deps.Realtime.Connect()
		m.statusMsg = "reconnecting..."
		return nil
	case "push on", "subscribe":
		return m.pushCommand("push on")
	case "push off", "unsubscribe":
		return m.pushCommand("push off")
	case "test push":
		return m.pushCommand("test push")
	case "quit", "q":
		m.teardown()
		return tea.Quit
	default:
		m.statusMsg = "unknown command: " + cmd
		return nil
	}
}

func (m *Model) pushCommand(action string) tea.Cmd {
	p := m.deps.Push
	if p == nil || !p.IsSupported() {
		m.deps.Toasts.Push(model.ToastWarning, "Push notifications are not available here.")
		return nil
	}

	vapid := m.deps.VAPIDKey
	if action == "push on" && strings.TrimSpace(vapid) == "" {
		m.deps.Toasts.Push(model.ToastError, "No VAPID public key is configured.",
			toast.WithTitle("Push notifications"))
		return nil
	}

	logger := m.logger
	return func() tea.Msg {
		// Long enough for the user to answer the permission prompt.
		ctx, cancel := context.WithTimeout(context.Background(), 5*actionTimeout)
		defer cancel()

		switch action {
		case "push on":
			endpoint, ok := p.Subscribe(ctx, vapid)
			return pushResultMsg{action: action, ok: ok, endpoint: endpoint}
		case "push off":
			return pushResultMsg{action: action, ok: p.Unsubscribe(ctx)}
		default:
			if p.Permission() != push.PermissionGranted {
				logger.Debug("test push skipped without permission")
				return pushResultMsg{action: action, ok: false}
			}
			p.ShowLocalNotification(ctx, "Rihigo", model.DisplayNotification{
				Body: "Push notifications are working.",
				Tag:  "rihigo-test",
			})
			return pushResultMsg{action: action, ok: true}
		}
	}
}

// reportPush turns a push command outcome into a toast.
func (m *Model) reportPush(msg pushResultMsg) tea.Cmd {
	title := toast.WithTitle("Push notifications")

	switch {
	case msg.action == "push on" && msg.ok:
		m.logger.Info("push enabled", zap.String("endpoint", msg.endpoint))
		m.deps.Toasts.Push(model.ToastSuccess, "This device will receive notifications.", title)
	case msg.action == "push on":
		m.deps.Toasts.Push(model.ToastError, "Could not enable notifications.", title)
	case msg.action == "push off" && msg.ok:
		m.deps.Toasts.Push(model.ToastSuccess, "Notifications turned off for this device.", title)
	case msg.action == "push off":
		m.deps.Toasts.Push(model.ToastInfo, "This device had no active subscription.", title)
	case msg.action == "test push" && !msg.ok:
		m.deps.Toasts.Push(model.ToastWarning, "Allow notifications first with \"push on\".", title)
	}
	return nil
}
