package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rihigo/notify/internal/model"
)

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) Supported() bool {
	return m.Called().Bool(0)
}

func (m *mockPlatform) Permission() Permission {
	return m.Called().Get(0).(Permission)
}

func (m *mockPlatform) RequestPermission(ctx context.Context) (Permission, error) {
	args := m.Called(ctx)
	return args.Get(0).(Permission), args.Error(1)
}

func (m *mockPlatform) Ready(ctx context.Context) (Registration, error) {
	args := m.Called(ctx)
	if r, ok := args.Get(0).(Registration); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRegistration struct {
	mock.Mock
}

func (m *mockRegistration) Subscription(ctx context.Context) (*model.PushSubscription, error) {
	args := m.Called(ctx)
	sub, _ := args.Get(0).(*model.PushSubscription)
	return sub, args.Error(1)
}

func (m *mockRegistration) Subscribe(ctx context.Context, key []byte) (*model.PushSubscription, error) {
	args := m.Called(ctx, key)
	sub, _ := args.Get(0).(*model.PushSubscription)
	return sub, args.Error(1)
}

func (m *mockRegistration) Unsubscribe(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *mockRegistration) ShowNotification(ctx context.Context, n model.DisplayNotification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockRegistration) CloseNotification(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) RegisterPush(ctx context.Context, sub model.PushSubscription) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *mockSink) UnregisterPush(ctx context.Context, endpoint string) error {
	return m.Called(ctx, endpoint).Error(0)
}

func vapidKey(t *testing.T) (string, []byte) {
	t.Helper()
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	raw := priv.PublicKey().Bytes()
	return base64.RawURLEncoding.EncodeToString(raw), raw
}

func TestManager_UnsupportedPlatform(t *testing.T) {
	p := &mockPlatform{}
	p.On("Supported").Return(false)
	m := NewManager(p, nil)

	ctx := context.Background()
	assert.False(t, m.IsSupported())

	_, err := m.RequestPermission(ctx)
	assert.ErrorIs(t, err, ErrUnsupported)

	endpoint, ok := m.Subscribe(ctx, "key")
	assert.False(t, ok)
	assert.Empty(t, endpoint)
	assert.False(t, m.Unsubscribe(ctx))

	p.AssertNotCalled(t, "Ready", mock.Anything)
}

func TestManager_NilPlatformIsUnsupported(t *testing.T) {
	m := NewManager(nil, nil)
	assert.False(t, m.IsSupported())
	assert.Equal(t, PermissionDenied, m.Permission())
}

func TestManager_SubscribeCreatesAndRegisters(t *testing.T) {
	key, raw := vapidKey(t)
	sub := &model.PushSubscription{Endpoint: "http://127.0.0.1:7788/push/1", P256DH: "pk", Auth: "a"}

	reg := &mockRegistration{}
	reg.On("Subscription", mock.Anything).Return(nil, nil)
	reg.On("Subscribe", mock.Anything, raw).Return(sub, nil)

	p := &mockPlatform{}
	p.On("Supported").Return(true)
	p.On("RequestPermission", mock.Anything).Return(PermissionGranted, nil)
	p.On("Ready", mock.Anything).Return(reg, nil)

	sink := &mockSink{}
	sink.On("RegisterPush", mock.Anything, *sub).Return(errors.New("backend down"))

	m := NewManager(p, nil, WithSink(sink))
	endpoint, ok := m.Subscribe(context.Background(), key)

	require.True(t, ok, "sink failures do not fail the subscription")
	assert.Equal(t, sub.Endpoint, endpoint)
	reg.AssertExpectations(t)
	sink.AssertExpectations(t)
}

func TestManager_SubscribeReusesExisting(t *testing.T) {
	existing := &model.PushSubscription{Endpoint: "http://127.0.0.1:7788/push/old"}

	reg := &mockRegistration{}
	reg.On("Subscription", mock.Anything).Return(existing, nil)

	p := &mockPlatform{}
	p.On("Supported").Return(true)
	p.On("RequestPermission", mock.Anything).Return(PermissionGranted, nil)
	p.On("Ready", mock.Anything).Return(reg, nil)

	m := NewManager(p, nil)
	endpoint, ok := m.Subscribe(context.Background(), "not even a key")

	require.True(t, ok)
	assert.Equal(t, existing.Endpoint, endpoint)
	reg.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}

func TestManager_SubscribeFailures(t *testing.T) {
	key, _ := vapidKey(t)

	tests := []struct {
		name  string
		setup func(p *mockPlatform, reg *mockRegistration)
		key   string
	}{
		{
			name: "permission denied",
			setup: func(p *mockPlatform, _ *mockRegistration) {
				p.On("RequestPermission", mock.Anything).Return(PermissionDenied, nil)
			},
			key: key,
		},
		{
			name: "prompt error",
			setup: func(p *mockPlatform, _ *mockRegistration) {
				p.On("RequestPermission", mock.Anything).Return(PermissionDefault, errors.New("closed"))
			},
			key: key,
		},
		{
			name: "registration unavailable",
			setup: func(p *mockPlatform, _ *mockRegistration) {
				p.On("RequestPermission", mock.Anything).Return(PermissionGranted, nil)
				p.On("Ready", mock.Anything).Return(nil, errors.New("no worker"))
			},
			key: key,
		},
		{
			name: "bad key",
			setup: func(p *mockPlatform, reg *mockRegistration) {
				p.On("RequestPermission", mock.Anything).Return(PermissionGranted, nil)
				p.On("Ready", mock.Anything).Return(reg, nil)
				reg.On("Subscription", mock.Anything).Return(nil, nil)
			},
			key: "AAAA",
		},
		{
			name: "platform subscribe error",
			setup: func(p *mockPlatform, reg *mockRegistration) {
				p.On("RequestPermission", mock.Anything).Return(PermissionGranted, nil)
				p.On("Ready", mock.Anything).Return(reg, nil)
				reg.On("Subscription", mock.Anything).Return(nil, nil)
				reg.On("Subscribe", mock.Anything, mock.Anything).Return(nil, errors.New("push service"))
			},
			key: key,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockPlatform{}
			reg := &mockRegistration{}
			p.On("Supported").Return(true)
			tt.setup(p, reg)

			endpoint, ok := NewManager(p, nil).Subscribe(context.Background(), tt.key)
			assert.False(t, ok)
			assert.Empty(t, endpoint)
		})
	}
}

func TestManager_Unsubscribe(t *testing.T) {
	sub := &model.PushSubscription{Endpoint: "http://127.0.0.1:7788/push/1"}

	reg := &mockRegistration{}
	reg.On("Subscription", mock.Anything).Return(sub, nil).Once()
	reg.On("Unsubscribe", mock.Anything).Return(true, nil).Once()
	reg.On("Subscription", mock.Anything).Return(nil, nil)

	p := &mockPlatform{}
	p.On("Supported").Return(true)
	p.On("Ready", mock.Anything).Return(reg, nil)

	sink := &mockSink{}
	sink.On("UnregisterPush", mock.Anything, sub.Endpoint).Return(nil)

	m := NewManager(p, nil, WithSink(sink))
	assert.True(t, m.Unsubscribe(context.Background()))
	assert.False(t, m.Unsubscribe(context.Background()), "nothing left to remove")
	sink.AssertNumberOfCalls(t, "UnregisterPush", 1)
}

func TestManager_ShowLocalNotificationRequiresGrant(t *testing.T) {
	reg := &mockRegistration{}
	reg.On("ShowNotification", mock.Anything, mock.MatchedBy(func(n model.DisplayNotification) bool {
		return n.Title == "Test"
	})).Return(nil)

	p := &mockPlatform{}
	p.On("Supported").Return(true)
	p.On("Permission").Return(PermissionDefault).Once()
	p.On("Permission").Return(PermissionGranted)
	p.On("Ready", mock.Anything).Return(reg, nil)

	m := NewManager(p, nil)
	m.ShowLocalNotification(context.Background(), "Test", model.DisplayNotification{Body: "hello"})
	reg.AssertNotCalled(t, "ShowNotification", mock.Anything, mock.Anything)

	m.ShowLocalNotification(context.Background(), "Test", model.DisplayNotification{Body: "hello"})
	reg.AssertNumberOfCalls(t, "ShowNotification", 1)
}

func TestDecodeApplicationServerKey(t *testing.T) {
	key, raw := vapidKey(t)

	got, err := DecodeApplicationServerKey(key)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	// Padded input is accepted.
	got, err = DecodeApplicationServerKey(base64.URLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Len(t, got, 65)

	for _, bad := range []string{"", "!!!", base64.RawURLEncoding.EncodeToString(raw[:33])} {
		_, err := DecodeApplicationServerKey(bad)
		assert.Error(t, err, bad)
	}
}
