package model

import "time"

// NotificationType is the category of a notification as assigned by the
// backend.
type NotificationType string

const (
	TypeBookingCreated   NotificationType = "booking_created"
	TypeBookingConfirmed NotificationType = "booking_confirmed"
	TypeBookingCancelled NotificationType = "booking_cancelled"
	TypeBookingCompleted NotificationType = "booking_completed"
	TypePaymentReceived  NotificationType = "payment_received"
	TypePaymentFailed    NotificationType = "payment_failed"
	TypeTicketReply      NotificationType = "ticket_reply"
	TypeTicketStatus     NotificationType = "ticket_status"
	TypeSystem           NotificationType = "system"
	TypeCustom           NotificationType = "custom"
)

// Priority is the urgency level of a notification.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Notification represents a durable, server-assigned notification record
// surfaced to the signed-in user.
type Notification struct {
	// ID is the stable server identifier.
	ID string `json:"id"`

	// Type identifies the domain event that produced this notification.
	Type NotificationType `json:"type"`

	// Priority drives toast severity and OS notification persistence.
	Priority Priority `json:"priority"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// IsRead indicates whether the user has seen this notification.
	IsRead bool `json:"is_read"`

	// ReadAt is set if and only if IsRead is true.
	ReadAt *time.Time `json:"read_at"`

	// CreatedAt is when the backend generated this notification.
	CreatedAt time.Time `json:"created_at"`

	// ActionURL is an optional deep link into the web application.
	ActionURL string `json:"action_url,omitempty"`

	// ActionLabel is the human-readable label for ActionURL.
	ActionLabel string `json:"action_label,omitempty"`
}

// Normalize enforces that ReadAt is non-nil exactly when IsRead is true.
// A read notification without a timestamp is stamped with now.
func (n *Notification) Normalize(now time.Time) {
	switch {
	case n.IsRead && n.ReadAt == nil:
		t := now.UTC()
		n.ReadAt = &t
	case !n.IsRead:
		n.ReadAt = nil
	}
}

// MarkRead flags the notification as read, keeping an existing ReadAt.
func (n *Notification) MarkRead(now time.Time) {
	n.IsRead = true
	if n.ReadAt == nil {
		t := now.UTC()
		n.ReadAt = &t
	}
}

// IsUrgent reports whether the notification should demand attention
// (urgent or high priority).
func (n Notification) IsUrgent() bool {
	return n.Priority == PriorityUrgent || n.Priority == PriorityHigh
}
