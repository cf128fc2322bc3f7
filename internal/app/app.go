package app

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/rihigo/notify/internal/api"
	"github.com/rihigo/notify/internal/credential"
	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/internal/notify"
	"github.com/rihigo/notify/internal/push"
	appsync "github.com/rihigo/notify/internal/sync"
	"github.com/rihigo/notify/internal/theme"
	"github.com/rihigo/notify/internal/toast"
	"github.com/rihigo/notify/internal/ui"
	"github.com/rihigo/notify/internal/ui/bell"
	"github.com/rihigo/notify/internal/ui/command"
	"github.com/rihigo/notify/internal/ui/dropdown"
	helpview "github.com/rihigo/notify/internal/ui/help"
	"github.com/rihigo/notify/internal/ui/permission"
	toastview "github.com/rihigo/notify/internal/ui/toast"
)

// actionTimeout bounds a single user-triggered backend call.
const actionTimeout = 15 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewHome ViewState = iota
	ViewDropdown
	ViewHelp
	ViewCommand
	ViewPermission
)

// Feed is the notification store as used by the UI.
type Feed interface {
	Snapshot() notify.State
	Subscribe() (<-chan struct{}, func())
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	LoadMore(ctx context.Context) error
}

// Connection is the realtime socket lifecycle.
type Connection interface {
	Start(ctx context.Context) error
	Connect()
	Stop()
}

// Pusher manages the device push subscription.
type Pusher interface {
	IsSupported() bool
	Permission() push.Permission
	Subscribe(ctx context.Context, vapidPublicKey string) (string, bool)
	Unsubscribe(ctx context.Context) bool
	ShowLocalNotification(ctx context.Context, title string, n model.DisplayNotification)
}

// Clicker handles clicks on displayed push notifications.
type Clicker interface {
	HandleClick(ctx context.Context, n model.DisplayNotification, action string) error
}

// Displayed exposes the push notification currently on screen.
type Displayed interface {
	Latest() (model.DisplayNotification, bool)
}

// Deps is everything the root model drives. Push fields may be nil when
// push is unavailable.
type Deps struct {
	Session  credential.Session
	Origin   string
	VAPIDKey string

	Feed     Feed
	Toasts   *toast.Store
	Realtime Connection
	Poller   *appsync.Poller

	Bridge    *Bridge
	Push      Pusher
	Clicker   Clicker
	Displayed Displayed

	Logger *zap.Logger
	Now    func() time.Time
}

// Model is the root Bubble Tea model. It routes store change signals into
// messages and owns the session lifecycle.
type Model struct {
	deps Deps

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *KeyMap

	dropdown    dropdown.Model
	toasts      toastview.Model
	helpView    helpview.Model
	commandView command.Model
	permission  permission.Model

	state       notify.State
	notifyCh    <-chan struct{}
	toastCh     <-chan struct{}
	unsubscribe []func()

	pendingPrompt chan push.Permission
	statusMsg     string
	expired       bool
	stopped       bool
	ready         bool
	logger        *zap.Logger
}

// New creates the root model. It subscribes to the stores immediately so
// no change between construction and Init is missed.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Bridge == nil {
		deps.Bridge = NewBridge(deps.Origin)
	}

	keys := DefaultKeyMap()

	m := Model{
		deps:        deps,
		currentView: ViewHome,
		keys:        keys,
		dropdown:    dropdown.New(keys, 80, 24),
		toasts:      toastview.New(80),
		helpView:    helpview.New(keys, 80, 24),
		commandView: command.New(80, 24),
		permission:  permission.New(80),
		logger:      deps.Logger.Named("app"),
	}

	var cancel func()
	m.notifyCh, cancel = deps.Feed.Subscribe()
	m.unsubscribe = append(m.unsubscribe, cancel)
	m.toastCh, cancel = deps.Toasts.Subscribe()
	m.unsubscribe = append(m.unsubscribe, cancel)

	m.state = deps.Feed.Snapshot()
	m.dropdown.SetState(m.state)
	m.toasts.SetToasts(deps.Toasts.List())

	return m
}

// Init starts the realtime connection, the fallback poller, the change
// listeners and the session expiry timer.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.startRealtime(),
		waitForSignal(m.notifyCh, notifyChangedMsg{}),
		waitForSignal(m.toastCh, toastsChangedMsg{}),
		m.deps.Bridge.wait(),
	}
	if m.deps.Poller != nil {
		cmds = append(cmds, m.deps.Poller.Start())
	}
	if left, ok := m.deps.Session.Remaining(m.deps.Now()); ok {
		cmds = append(cmds, tea.Tick(left, func(time.Time) tea.Msg {
			return sessionExpiredMsg{}
		}))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.dropdown.SetSize(contentWidth, contentHeight)
		m.toasts.SetSize(contentWidth)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.permission.SetSize(contentWidth)
		return m.updateActiveView(msg)

	case notifyChangedMsg:
		m.state = m.deps.Feed.Snapshot()
		cmd := m.dropdown.SetState(m.state)
		return m, tea.Batch(cmd, waitForSignal(m.notifyCh, notifyChangedMsg{}))

	case toastsChangedMsg:
		m.toasts.SetToasts(m.deps.Toasts.List())
		return m, waitForSignal(m.toastCh, toastsChangedMsg{})

	case realtimeStartedMsg:
		// Background sync failures stay silent; the bell shows offline.
		if api.IsAuthError(msg.err) {
			return m, m.endSession("Your session is no longer valid.")
		}
		return m, nil

	case appsync.SyncResultMsg:
		if api.IsAuthError(msg.Error) {
			return m, m.endSession("Your session is no longer valid.")
		}
		if msg.Forced && msg.Error == nil {
			m.statusMsg = "refreshed"
		}
		if m.stopped {
			return m, nil
		}
		return m, m.deps.Poller.WaitForNextResult()

	case sessionExpiredMsg:
		return m, m.endSession("Your session has expired.")

	case actionDoneMsg:
		if msg.err != nil {
			m.logger.Warn("action failed", zap.String("action", msg.action), zap.Error(msg.err))
		}
		return m, nil

	case pushResultMsg:
		return m, m.reportPush(msg)

	case promptRequestMsg:
		if m.pendingPrompt != nil {
			// A newer request supersedes the open one.
			m.pendingPrompt <- push.PermissionDefault
		}
		m.pendingPrompt = msg.reply
		if m.currentView != ViewPermission {
			m.previousView = m.currentView
		}
		m.currentView = ViewPermission
		return m, tea.Batch(m.permission.Ask(), m.deps.Bridge.wait())

	case permission.AnswerMsg:
		if m.pendingPrompt != nil {
			m.pendingPrompt <- msg.Permission
			m.pendingPrompt = nil
		}
		m.currentView = m.previousView
		return m, nil

	case focusMsg:
		if m.currentView == ViewHome {
			m.currentView = ViewDropdown
		}
		return m, m.deps.Bridge.wait()

	case navigateMsg:
		if !m.dropdown.SelectURL(msg.target) {
			m.dropdown.SelectURL(m.localPath(msg.target))
		}
		m.statusMsg = "→ " + msg.target
		return m, m.deps.Bridge.wait()

	case dropdown.CloseMsg:
		m.currentView = ViewHome
		return m, nil

	case dropdown.MarkReadMsg:
		return m, m.feedAction("mark read", func(ctx context.Context) error {
			return m.deps.Feed.MarkAsRead(ctx, msg.ID)
		})

	case dropdown.MarkAllReadMsg:
		return m, m.feedAction("mark all read", m.deps.Feed.MarkAllAsRead)

	case dropdown.DeleteMsg:
		return m, m.feedAction("delete", func(ctx context.Context) error {
			return m.deps.Feed.DeleteNotification(ctx, msg.ID)
		})

	case dropdown.LoadMoreMsg:
		return m, m.feedAction("load more", m.deps.Feed.LoadMore)

	case dropdown.OpenMsg:
		return m, m.open(msg.Notification)

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.teardown()
			return m, tea.Quit
		}

		// The modal owns every key while it is open.
		if m.currentView == ViewPermission {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit) && m.currentView != ViewCommand:
			m.teardown()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewCommand {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Back) && (m.currentView == ViewHelp || m.currentView == ViewCommand):
			m.currentView = m.previousView
			return m, nil

		case key.Matches(msg, m.keys.DismissToast) && m.currentView != ViewCommand:
			if t, ok := m.toasts.Newest(); ok {
				m.deps.Toasts.Remove(t.ID)
			}
			return m, nil

		case key.Matches(msg, m.keys.ViewPush) && m.currentView != ViewCommand:
			return m, m.clickLatestPush()

		case key.Matches(msg, m.keys.Refresh) && m.currentView != ViewCommand:
			return m, m.refresh()

		case key.Matches(msg, m.keys.Toggle) && m.currentView == ViewHome:
			m.currentView = ViewDropdown
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewDropdown:
		m.dropdown, cmd = m.dropdown.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewPermission:
		m.permission, cmd = m.permission.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(
		"Rihigo",
		bell.View(m.state.UnreadCount, m.state.IsConnected, m.currentView == ViewDropdown),
	)

	content := m.renderContent()
	if !m.toasts.Empty() {
		content = lipgloss.JoinVertical(lipgloss.Left, m.toasts.View(), content)
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDropdown:
		return m.dropdown.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewPermission:
		return m.permission.View()
	default:
		return m.homeView()
	}
}

func (m Model) homeView() string {
	style := lipgloss.NewStyle().Padding(1, 2)

	if m.expired {
		return style.Render(theme.WarningStyle.Render("Signed out.") + "\n\n" +
			theme.HelpStyle.Render("Restart to sign in again. Press q to quit."))
	}

	var summary string
	switch {
	case m.state.UnreadCount == 1:
		summary = "You have 1 unread notification."
	case m.state.UnreadCount > 1:
		summary = fmt.Sprintf("You have %d unread notifications.", m.state.UnreadCount)
	default:
		summary = "You're all caught up."
	}

	lines := []string{summary}
	if len(m.state.Items) > 0 {
		latest := m.state.Items[0]
		lines = append(lines, "",
			theme.HelpStyle.Render("Latest:")+" "+theme.PriorityStyle(latest.Priority).Render(latest.Title))
	}
	lines = append(lines, "", theme.HelpStyle.Render("Press b to open notifications, ? for help."))

	return style.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.statusMsg != "" && (m.currentView == ViewHome || m.currentView == ViewDropdown) {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewPermission:
		return "←/→ choose | enter confirm | esc not now"
	case ViewDropdown:
		return "m read | M read all | d delete | enter open | L more | esc close"
	default:
		return "q quit | ? help | b notifications | r refresh | : command"
	}
}

// localPath strips the origin from target so it can be compared with
// relative deep links.
func (m Model) localPath(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	u.Scheme = ""
	u.Host = ""
	return u.String()
}

// teardown stops everything bound to the session. Safe to call twice.
func (m *Model) teardown() {
	if m.stopped {
		return
	}
	m.stopped = true

	m.deps.Realtime.Stop()
	if m.deps.Poller != nil {
		m.deps.Poller.Stop()
	}
	for _, cancel := range m.unsubscribe {
		cancel()
	}
	if m.pendingPrompt != nil {
		m.pendingPrompt <- push.PermissionDefault
		m.pendingPrompt = nil
	}
}

// endSession tears the session down and tells the user.
func (m *Model) endSession(reason string) tea.Cmd {
	if m.expired {
		return nil
	}
	m.logger.Info("session ended", zap.String("reason", reason))
	m.expired = true
	m.statusMsg = reason
	m.currentView = ViewHome
	m.teardown()
	return nil
}
