package testutil

import (
	"time"

	"github.com/rihigo/notify/internal/model"
)

// Notification builds an unread notification with the given id and
// priority, created at a fixed instant offset by minutes.
func Notification(id string, priority model.Priority, minutes int) model.Notification {
	return model.Notification{
		ID:        id,
		Type:      model.TypeSystem,
		Priority:  priority,
		Title:     "Title " + id,
		Body:      "Body " + id,
		CreatedAt: time.Date(2024, 1, 1, 0, minutes, 0, 0, time.UTC),
	}
}
