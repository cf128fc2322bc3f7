package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rihigo/notify/internal/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "tok-123", WithMaxRetries(1))
}

func TestListNotifications_DecodesPageAndPagination(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/notifications", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("page_size"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"success": true,
			"data": [{"id":"n1","type":"system","priority":"urgent","title":"T","body":"B","is_read":false,"created_at":"2024-01-01T00:00:00Z"}],
			"pagination_data": {"page": 2, "total_pages": 3}
		}`))
	})

	page, err := c.ListNotifications(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "n1", page.Items[0].ID)
	assert.Nil(t, page.Items[0].ReadAt)
	require.NotNil(t, page.Pagination)
	assert.Equal(t, 3, page.Pagination.TotalPages)
}

func TestListNotifications_MissingPagination(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": []}`))
	})

	page, err := c.ListNotifications(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.Pagination)
}

func TestUnreadCount(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/unread-count", r.URL.Path)
		_, _ = w.Write([]byte(`{"success": true, "data": {"count": 7}}`))
	})

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMutations_UseExpectedRoutes(t *testing.T) {
	var got []string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"success": true}`))
	})

	ctx := context.Background()
	require.NoError(t, c.MarkRead(ctx, "n1"))
	require.NoError(t, c.MarkAllRead(ctx))
	require.NoError(t, c.Delete(ctx, "n1"))

	assert.Equal(t, []string{
		"PUT /api/notifications/n1/read",
		"PUT /api/notifications/read-all",
		"DELETE /api/notifications/n1",
	}, got)
}

func TestStatusErrors(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"success": false, "error": {"code": "NOT_FOUND", "message": "notification not found"}}`))
	})

	err := c.MarkRead(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAuthError(err))
	assert.Contains(t, err.Error(), "notification not found")
}

func TestUnsuccessfulEnvelopeIsError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "message": "nope"}`))
	})

	err := c.MarkAllRead(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusOK, StatusCode(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestRegisterPush_SendsKeys(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/push/subscriptions", r.URL.Path)

		var body struct {
			Endpoint string            `json:"endpoint"`
			Keys     map[string]string `json:"keys"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "http://push/1", body.Endpoint)
		assert.Equal(t, "pk", body.Keys["p256dh"])
		assert.Equal(t, "sec", body.Keys["auth"])
		_, _ = w.Write([]byte(`{"success": true}`))
	})

	err := c.RegisterPush(context.Background(), model.PushSubscription{
		Endpoint: "http://push/1",
		P256DH:   "pk",
		Auth:     "sec",
	})
	require.NoError(t, err)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/api/ws/notifications?token=a+b%2Fc"},
		{"https://api.rihigo.com/", "wss://api.rihigo.com/api/ws/notifications?token=a+b%2Fc"},
	}

	for _, tc := range tests {
		got, err := NewClient(tc.base, "a b/c").WebSocketURL()
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
