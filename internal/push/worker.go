package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/rihigo/notify/internal/model"
)

const (
	DefaultTitle = "Rihigo"
	DefaultIcon  = "/icons/icon-192x192.png"
	DefaultBadge = "/icons/badge-72x72.png"
	DefaultTag   = "rihigo-notification"
	DefaultURL   = "/"

	ActionView    = "view"
	ActionDismiss = "dismiss"
)

// Payload is the JSON body of a push message.
type Payload struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Message     string         `json:"message"`
	Icon        string         `json:"icon"`
	Badge       string         `json:"badge"`
	Priority    model.Priority `json:"priority"`
	ActionURL   string         `json:"action_url"`
	ActionLabel string         `json:"action_label"`
}

// DecodePush turns a push payload into the notification to display. A body
// that is not JSON is shown as plain text under the default title.
func DecodePush(payload []byte) model.DisplayNotification {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		p = Payload{Body: strings.TrimSpace(string(payload))}
	}

	n := model.DisplayNotification{
		Title:          p.Title,
		Body:           p.Body,
		Icon:           p.Icon,
		Badge:          p.Badge,
		Tag:            DefaultTag,
		URL:            p.ActionURL,
		NotificationID: p.ID,
		Priority:       p.Priority,
	}

	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Body == "" {
		n.Body = p.Message
	}
	if n.Icon == "" {
		n.Icon = DefaultIcon
	}
	if n.Badge == "" {
		n.Badge = DefaultBadge
	}
	if p.ID != "" {
		// Pushes for the same notification replace each other.
		n.Tag = "notification-" + p.ID
	}
	if n.URL == "" {
		n.URL = DefaultURL
	}
	n.RequireInteraction = p.Priority == model.PriorityUrgent || p.Priority == model.PriorityHigh

	viewLabel := p.ActionLabel
	if viewLabel == "" {
		viewLabel = "View"
	}
	n.Actions = []model.NotificationAction{
		{Action: ActionView, Title: viewLabel},
		{Action: ActionDismiss, Title: "Dismiss"},
	}

	return n
}

// Window is an open client of the application.
type Window interface {
	URL() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, target string) error
}

// Clients enumerates and opens application windows.
type Clients interface {
	Windows(ctx context.Context) ([]Window, error)
	OpenWindow(ctx context.Context, target string) error
}

// Worker handles push receipt and notification clicks.
type Worker struct {
	origin  *url.URL
	display Displayer
	clients Clients
	logger  *zap.Logger
}

// NewWorker creates a worker for the application at origin.
func NewWorker(origin string, display Displayer, clients Clients, logger *zap.Logger) (*Worker, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("parsing origin %q: %w", origin, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		origin:  u,
		display: display,
		clients: clients,
		logger:  logger.Named("push.worker"),
	}, nil
}

// HandlePush displays the notification carried by payload.
func (w *Worker) HandlePush(ctx context.Context, payload []byte) (model.DisplayNotification, error) {
	n := DecodePush(payload)
	if err := w.display.ShowNotification(ctx, n); err != nil {
		return n, fmt.Errorf("showing push notification: %w", err)
	}
	return n, nil
}

// HandleClick closes n and, unless the dismiss action was chosen, focuses an
// existing same-origin window on the deep link or opens a new one.
func (w *Worker) HandleClick(ctx context.Context, n model.DisplayNotification, action string) error {
	if err := w.display.CloseNotification(ctx, n.Tag); err != nil {
		w.logger.Debug("closing notification failed", zap.String("tag", n.Tag), zap.Error(err))
	}

	if action == ActionDismiss {
		return nil
	}

	target := w.resolve(n.URL)

	windows, err := w.clients.Windows(ctx)
	if err != nil {
		return fmt.Errorf("listing windows: %w", err)
	}

	for _, win := range windows {
		if !w.sameOrigin(win.URL()) {
			continue
		}
		if err := win.Focus(ctx); err != nil {
			return fmt.Errorf("focusing window: %w", err)
		}
		if err := win.Navigate(ctx, target); err != nil {
			return fmt.Errorf("navigating window: %w", err)
		}
		return nil
	}

	if err := w.clients.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("opening window: %w", err)
	}
	return nil
}

func (w *Worker) resolve(target string) string {
	if target == "" {
		target = DefaultURL
	}
	ref, err := url.Parse(target)
	if err != nil {
		return w.origin.String()
	}
	return w.origin.ResolveReference(ref).String()
}

func (w *Worker) sameOrigin(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, w.origin.Scheme) && strings.EqualFold(u.Host, w.origin.Host)
}
