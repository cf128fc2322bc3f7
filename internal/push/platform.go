// Package push manages the device push subscription and turns push payloads
// into user-visible notifications.
package push

import (
	"context"
	"errors"

	"github.com/rihigo/notify/internal/model"
)

// ErrUnsupported is returned when the platform cannot receive pushes.
var ErrUnsupported = errors.New("push notifications are not supported")

// Permission is the user's decision about showing notifications.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Platform is the host capability set needed for push: a permission prompt
// and a registration that owns the subscription.
type Platform interface {
	// Supported is a pure capability probe.
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)

	// Ready waits for the active registration.
	Ready(ctx context.Context) (Registration, error)
}

// Registration owns the device subscription and displays notifications.
type Registration interface {
	// Subscription returns the current subscription or nil.
	Subscription(ctx context.Context) (*model.PushSubscription, error)
	Subscribe(ctx context.Context, applicationServerKey []byte) (*model.PushSubscription, error)
	Unsubscribe(ctx context.Context) (bool, error)
	Displayer
}

// Displayer shows and closes OS-level notifications.
type Displayer interface {
	ShowNotification(ctx context.Context, n model.DisplayNotification) error
	CloseNotification(ctx context.Context, tag string) error
}

// Sink receives subscription changes, normally the backend.
type Sink interface {
	RegisterPush(ctx context.Context, sub model.PushSubscription) error
	UnregisterPush(ctx context.Context, endpoint string) error
}
