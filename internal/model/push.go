package model

import "time"

// PushSubscription is the device-level push channel obtained from the
// platform push service. The backend stores it to target this device.
type PushSubscription struct {
	// Endpoint is the opaque URL the backend posts push messages to.
	Endpoint string `json:"endpoint"`

	// P256DH is the URL-safe base64 client public key.
	P256DH string `json:"p256dh"`

	// Auth is the URL-safe base64 authentication secret.
	Auth string `json:"auth"`

	// ApplicationServerKey is the VAPID public key the subscription is
	// scoped to.
	ApplicationServerKey string `json:"application_server_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NotificationAction is a button shown on an OS notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// DisplayNotification describes an OS-level notification derived from a
// push payload.
type DisplayNotification struct {
	Title              string               `json:"title"`
	Body               string               `json:"body"`
	Icon               string               `json:"icon"`
	Badge              string               `json:"badge"`
	Tag                string               `json:"tag"`
	RequireInteraction bool                 `json:"require_interaction"`
	Actions            []NotificationAction `json:"actions,omitempty"`

	// URL is the deep link opened when the notification is clicked.
	URL string `json:"url"`

	// NotificationID is the backend notification id, when known.
	NotificationID string `json:"notification_id,omitempty"`

	Priority Priority `json:"priority,omitempty"`
}
