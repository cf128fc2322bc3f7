package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rihigo/notify/internal/model"
)

// Frame types exchanged on the notification socket.
const (
	FrameNotification = "notification"
	FrameUnreadCount  = "unread_count"
	FramePing         = "ping"
	FramePong         = "pong"
)

// Frame is the JSON envelope of every socket message.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var errMissingField = errors.New("missing required field")

// ParseFrame decodes the envelope of a raw socket message.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decoding frame: type: %w", errMissingField)
	}
	return f, nil
}

// Notification decodes the payload of a notification frame.
func (f Frame) Notification() (model.Notification, error) {
	var n model.Notification
	if err := json.Unmarshal(f.Data, &n); err != nil {
		return model.Notification{}, fmt.Errorf("decoding notification: %w", err)
	}
	if n.ID == "" {
		return model.Notification{}, fmt.Errorf("decoding notification: id: %w", errMissingField)
	}
	return n, nil
}

// UnreadCount decodes the payload of an unread_count frame.
func (f Frame) UnreadCount() (int, error) {
	var data struct {
		Count *int `json:"count"`
	}
	if err := json.Unmarshal(f.Data, &data); err != nil {
		return 0, fmt.Errorf("decoding unread count: %w", err)
	}
	if data.Count == nil {
		return 0, fmt.Errorf("decoding unread count: count: %w", errMissingField)
	}
	return *data.Count, nil
}
