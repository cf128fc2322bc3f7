package model

import "time"

// ToastType is the severity of a toast message.
type ToastType string

const (
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
	ToastWarning ToastType = "warning"
	ToastInfo    ToastType = "info"
)

// DefaultToastDuration is how long a toast stays visible unless configured
// otherwise.
const DefaultToastDuration = 5 * time.Second

// UrgentToastDuration is used for toasts raised by urgent notifications.
const UrgentToastDuration = 10 * time.Second

// Toast is an ephemeral, client-only message shown on top of the UI.
type Toast struct {
	ID      string
	Type    ToastType
	Title   string
	Message string

	// Duration is the time until automatic removal. Zero or negative
	// means the toast stays until dismissed.
	Duration time.Duration

	Dismissible bool
	CreatedAt   time.Time
}

// Sticky reports whether the toast never expires on its own.
func (t Toast) Sticky() bool {
	return t.Duration <= 0
}

// ToastFor derives the toast raised when a live notification arrives.
// Severity follows priority: urgent maps to error, high to warning and
// everything else to info. Urgent toasts stay on screen longer.
func ToastFor(n Notification) Toast {
	t := Toast{
		Type:        ToastInfo,
		Title:       n.Title,
		Message:     n.Body,
		Duration:    DefaultToastDuration,
		Dismissible: true,
	}

	switch n.Priority {
	case PriorityUrgent:
		t.Type = ToastError
		t.Duration = UrgentToastDuration
	case PriorityHigh:
		t.Type = ToastWarning
	}

	return t
}
