package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rihigo/notify/internal/push"
)

// promptRequestMsg asks the UI to show the permission modal. The answer is
// sent on reply.
type promptRequestMsg struct {
	reply chan push.Permission
}

// focusMsg brings the notification panel to the front.
type focusMsg struct{}

// navigateMsg selects the notification whose deep link is target.
type navigateMsg struct {
	target string
}

// Bridge carries requests from background goroutines (the push platform
// and worker) into the running program. The terminal UI is the only
// application window, so it implements both push.Prompter and
// push.Clients.
type Bridge struct {
	origin string
	events chan tea.Msg
}

// NewBridge creates a bridge for the application served at origin.
func NewBridge(origin string) *Bridge {
	return &Bridge{
		origin: origin,
		events: make(chan tea.Msg, 16),
	}
}

// Prompt implements push.Prompter. It blocks until the user answers the
// modal or ctx ends.
func (b *Bridge) Prompt(ctx context.Context) (push.Permission, error) {
	reply := make(chan push.Permission, 1)
	if err := b.send(ctx, promptRequestMsg{reply: reply}); err != nil {
		return push.PermissionDefault, err
	}

	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return push.PermissionDefault, ctx.Err()
	}
}

// Windows implements push.Clients.
func (b *Bridge) Windows(context.Context) ([]push.Window, error) {
	return []push.Window{window{bridge: b}}, nil
}

// OpenWindow implements push.Clients. There is no second window to open,
// so the running UI is focused and navigated instead.
func (b *Bridge) OpenWindow(ctx context.Context, target string) error {
	if err := b.send(ctx, focusMsg{}); err != nil {
		return err
	}
	return b.send(ctx, navigateMsg{target: target})
}

func (b *Bridge) send(ctx context.Context, msg tea.Msg) error {
	select {
	case b.events <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait returns a tea.Cmd delivering the next bridged message.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-b.events
		if !ok {
			return nil
		}
		return msg
	}
}

// window is the running UI as seen by the push worker.
type window struct {
	bridge *Bridge
}

func (w window) URL() string { return w.bridge.origin }

func (w window) Focus(ctx context.Context) error {
	return w.bridge.send(ctx, focusMsg{})
}

func (w window) Navigate(ctx context.Context, target string) error {
	return w.bridge.send(ctx, navigateMsg{target: target})
}
