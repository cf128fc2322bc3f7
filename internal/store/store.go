package store

import (
	"context"

	"github.com/rihigo/notify/internal/model"
)

// Store defines the local persistence used to show stale data while the
// backend is unreachable and to remember the device push registration.
type Store interface {
	// === Notification feed cache ===

	SaveFeed(ctx context.Context, items []model.Notification, unread int) error
	LoadFeed(ctx context.Context, limit int) ([]model.Notification, int, error)

	// === Push registration ===

	SaveSubscription(ctx context.Context, sub model.PushSubscription) error
	GetSubscription(ctx context.Context) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context) error

	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}
