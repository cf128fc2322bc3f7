package push

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rihigo/notify/internal/model"
)

// Manager is the best-effort push facade used by the UI. Apart from
// RequestPermission it never returns errors: push is an enhancement and
// failures are logged.
type Manager struct {
	platform Platform
	sink     Sink
	logger   *zap.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithSink forwards subscription changes to s.
func WithSink(s Sink) ManagerOption {
	return func(m *Manager) { m.sink = s }
}

// NewManager creates a manager over platform.
func NewManager(platform Platform, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{platform: platform, logger: logger.Named("push")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsSupported reports whether the platform can receive pushes.
func (m *Manager) IsSupported() bool {
	return m.platform != nil && m.platform.Supported()
}

// Permission returns the current permission without prompting.
func (m *Manager) Permission() Permission {
	if !m.IsSupported() {
		return PermissionDenied
	}
	return m.platform.Permission()
}

// RequestPermission prompts the user.
func (m *Manager) RequestPermission(ctx context.Context) (Permission, error) {
	if !m.IsSupported() {
		return PermissionDenied, ErrUnsupported
	}
	return m.platform.RequestPermission(ctx)
}

// Subscribe ensures the device holds a subscription for vapidPublicKey and
// returns its endpoint. ok is false on any failure.
func (m *Manager) Subscribe(ctx context.Context, vapidPublicKey string) (endpoint string, ok bool) {
	if !m.IsSupported() {
		return "", false
	}

	perm, err := m.RequestPermission(ctx)
	if err != nil {
		m.logger.Warn("requesting permission failed", zap.Error(err))
		return "", false
	}
	if perm != PermissionGranted {
		m.logger.Info("push permission not granted", zap.String("permission", string(perm)))
		return "", false
	}

	reg, err := m.platform.Ready(ctx)
	if err != nil {
		m.logger.Warn("push registration unavailable", zap.Error(err))
		return "", false
	}

	sub, err := reg.Subscription(ctx)
	if err != nil {
		m.logger.Warn("reading push subscription failed", zap.Error(err))
		return "", false
	}

	if sub == nil {
		key, err := DecodeApplicationServerKey(vapidPublicKey)
		if err != nil {
			m.logger.Warn("invalid application server key", zap.Error(err))
			return "", false
		}
		sub, err = reg.Subscribe(ctx, key)
		if err != nil {
			m.logger.Warn("creating push subscription failed", zap.Error(err))
			return "", false
		}
	}

	if m.sink != nil {
		if err := m.sink.RegisterPush(ctx, *sub); err != nil {
			m.logger.Warn("registering push subscription failed",
				zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}

	return sub.Endpoint, true
}

// Unsubscribe removes the device subscription. It returns false when there
// was nothing to remove or the platform failed.
func (m *Manager) Unsubscribe(ctx context.Context) bool {
	if !m.IsSupported() {
		return false
	}

	reg, err := m.platform.Ready(ctx)
	if err != nil {
		m.logger.Warn("push registration unavailable", zap.Error(err))
		return false
	}

	sub, err := reg.Subscription(ctx)
	if err != nil || sub == nil {
		return false
	}

	ok, err := reg.Unsubscribe(ctx)
	if err != nil {
		m.logger.Warn("removing push subscription failed", zap.Error(err))
		return false
	}

	if ok && m.sink != nil {
		if err := m.sink.UnregisterPush(ctx, sub.Endpoint); err != nil {
			m.logger.Warn("unregistering push subscription failed",
				zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}

	return ok
}

// ShowLocalNotification displays n with the given title. It does nothing
// unless permission was granted.
func (m *Manager) ShowLocalNotification(ctx context.Context, title string, n model.DisplayNotification) {
	if m.Permission() != PermissionGranted {
		return
	}

	reg, err := m.platform.Ready(ctx)
	if err != nil {
		m.logger.Warn("push registration unavailable", zap.Error(err))
		return
	}

	n.Title = title
	if err := reg.ShowNotification(ctx, n); err != nil {
		m.logger.Warn("showing local notification failed", zap.Error(err))
	}
}

// DecodeApplicationServerKey decodes a URL-safe base64 VAPID public key and
// checks that it is an uncompressed P-256 point.
func DecodeApplicationServerKey(key string) ([]byte, error) {
	key = strings.TrimRight(strings.TrimSpace(key), "=")
	if key == "" {
		return nil, errors.New("application server key is empty")
	}

	raw, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("decoding application server key: %w", err)
	}

	if _, err := ecdh.P256().NewPublicKey(raw); err != nil {
		return nil, fmt.Errorf("application server key is not a P-256 point: %w", err)
	}

	return raw, nil
}
