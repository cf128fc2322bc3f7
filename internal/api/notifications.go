package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rihigo/notify/internal/model"
)

// NotificationPage is one page of the notification feed.
type NotificationPage struct {
	Items []model.Notification

	// Pagination is nil when the backend omitted pagination metadata.
	Pagination *Pagination
}

// ListNotifications fetches a page of notifications, newest first.
func (c *Client) ListNotifications(
	ctx context.Context,
	page int,
	pageSize int,
) (*NotificationPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var items []model.Notification
	env, err := c.do(ctx, http.MethodGet, "/api/notifications?"+q.Encode(), nil, &items)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	return &NotificationPage{
		Items:      items,
		Pagination: env.PaginationData,
	}, nil
}

// UnreadCount returns the authoritative unread notification count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var data struct {
		Count int `json:"count"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &data); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	return data.Count, nil
}

// MarkRead marks a single notification as read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/notifications/%s/read", url.PathEscape(id))
	if _, err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every notification of the current user as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPut, "/api/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications as read: %w", err)
	}
	return nil
}

// Delete removes a notification.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/api/notifications/" + url.PathEscape(id)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}
