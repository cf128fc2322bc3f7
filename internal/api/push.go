package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rihigo/notify/internal/model"
)

// RegisterPush stores the device push subscription on the backend so it
// can target this device while no socket is open.
func (c *Client) RegisterPush(ctx context.Context, sub model.PushSubscription) error {
	body := map[string]interface{}{
		"endpoint": sub.Endpoint,
		"keys": map[string]string{
			"p256dh": sub.P256DH,
			"auth":   sub.Auth,
		},
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/push/subscriptions", body, nil); err != nil {
		return fmt.Errorf("registering push subscription: %w", err)
	}
	return nil
}

// UnregisterPush removes a previously registered push endpoint.
func (c *Client) UnregisterPush(ctx context.Context, endpoint string) error {
	body := map[string]string{"endpoint": endpoint}
	if _, err := c.do(ctx, http.MethodDelete, "/api/push/subscriptions", body, nil); err != nil {
		return fmt.Errorf("unregistering push subscription: %w", err)
	}
	return nil
}
