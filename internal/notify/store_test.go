package notify

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rihigo/notify/internal/api"
	"github.com/rihigo/notify/internal/model"
	"github.com/rihigo/notify/tests/testutil"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListNotifications(ctx context.Context, page, pageSize int) (*api.NotificationPage, error) {
	args := m.Called(ctx, page, pageSize)
	if p, ok := args.Get(0).(*api.NotificationPage); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAPI) UnreadCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockAPI) MarkRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAPI) MarkAllRead(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAPI) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, m *mockAPI, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow }), WithPageSize(2)}, opts...)
	s := NewStore(m, nil, opts...)
	t.Cleanup(s.Close)
	return s
}

func page(items []model.Notification, p *api.Pagination) *api.NotificationPage {
	return &api.NotificationPage{Items: items, Pagination: p}
}

func TestReceive_PrependsAndCountsUnread(t *testing.T) {
	s := newTestStore(t, &mockAPI{})

	assert.True(t, s.Receive(testutil.Notification("n1", model.PriorityUrgent, 0)))
	assert.True(t, s.Receive(testutil.Notification("n2", model.PriorityLow, 1)))

	st := s.Snapshot()
	require.Len(t, st.Items, 2)
	assert.Equal(t, "n2", st.Items[0].ID)
	assert.Equal(t, 2, st.UnreadCount)
}

func TestReceive_DuplicateReplacesInPlace(t *testing.T) {
	s := newTestStore(t, &mockAPI{})

	s.Receive(testutil.Notification("n1", model.PriorityNormal, 0))
	updated := testutil.Notification("n1", model.PriorityNormal, 0)
	updated.Title = "edited"

	assert.False(t, s.Receive(updated))

	st := s.Snapshot()
	require.Len(t, st.Items, 1)
	assert.Equal(t, "edited", st.Items[0].Title)
	assert.Equal(t, 1, st.UnreadCount)
}

func TestReceive_NormalizesReadAt(t *testing.T) {
	s := newTestStore(t, &mockAPI{})

	n := testutil.Notification("n1", model.PriorityNormal, 0)
	n.IsRead = true
	s.Receive(n)

	got, ok := s.Find("n1")
	require.True(t, ok)
	require.NotNil(t, got.ReadAt)
	assert.True(t, fixedNow.Equal(*got.ReadAt))
	assert.Zero(t, s.Snapshot().UnreadCount)
}

func TestFetchNotifications_PageOneReplaces(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("n1", model.PriorityUrgent, 0))

	m.On("ListNotifications", mock.Anything, 1, 2).Return(
		page([]model.Notification{testutil.Notification("n0", model.PriorityNormal, 0)},
			&api.Pagination{Page: 1, TotalPages: 1}), nil)

	require.NoError(t, s.FetchNotifications(context.Background(), 1, true))

	st := s.Snapshot()
	require.Len(t, st.Items, 1)
	assert.Equal(t, "n0", st.Items[0].ID)
	assert.False(t, st.HasMore)
	assert.False(t, st.IsLoading)
	assert.Equal(t, 1, st.Page)
	m.AssertExpectations(t)
}

func TestFetchNotifications_AppendSkipsDuplicates(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)

	m.On("ListNotifications", mock.Anything, 1, 2).Return(page([]model.Notification{
		testutil.Notification("a", model.PriorityNormal, 3),
		testutil.Notification("b", model.PriorityNormal, 2),
	}, nil), nil)
	m.On("ListNotifications", mock.Anything, 2, 2).Return(page([]model.Notification{
		testutil.Notification("b", model.PriorityNormal, 2),
		testutil.Notification("c", model.PriorityNormal, 1),
	}, &api.Pagination{Page: 2, TotalPages: 3}), nil)

	ctx := context.Background()
	require.NoError(t, s.FetchNotifications(ctx, 1, false))
	assert.True(t, s.Snapshot().HasMore, "full page without metadata")

	require.NoError(t, s.LoadMore(ctx))

	st := s.Snapshot()
	ids := make([]string, 0, len(st.Items))
	for _, n := range st.Items {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.True(t, st.HasMore)
	assert.Equal(t, 2, st.Page)
}

// gateList makes the next ListNotifications call for pageNo block until
// release is closed. started is closed once the call is in flight.
func gateList(m *mockAPI, pageNo int, result *api.NotificationPage) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	m.On("ListNotifications", mock.Anything, pageNo, 2).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(result, nil).
		Once()
	return started, release
}

func fetchAsync(s *Store, pageNo int, reset bool) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.FetchNotifications(context.Background(), pageNo, reset) }()
	return done
}

func TestFetchNotifications_ReplaceKeepsLiveArrivals(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)

	started, release := gateList(m, 1, page([]model.Notification{
		testutil.Notification("n0", model.PriorityNormal, 5),
	}, &api.Pagination{Page: 1, TotalPages: 1}))

	done := fetchAsync(s, 1, true)
	<-started

	s.Receive(testutil.Notification("live", model.PriorityHigh, 0))
	close(release)
	require.NoError(t, <-done)

	st := s.Snapshot()
	require.Len(t, st.Items, 2)
	assert.Equal(t, "live", st.Items[0].ID)
	assert.Equal(t, "n0", st.Items[1].ID)
	assert.Equal(t, 1, st.UnreadCount)
}

func TestFetchNotifications_ReplaceUsesFetchedCopyOfLiveArrival(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)

	fetched := testutil.Notification("live", model.PriorityHigh, 0)
	fetched.Title = "from server"
	started, release := gateList(m, 1, page([]model.Notification{fetched}, nil))

	done := fetchAsync(s, 1, true)
	<-started

	s.Receive(testutil.Notification("live", model.PriorityHigh, 0))
	close(release)
	require.NoError(t, <-done)

	st := s.Snapshot()
	require.Len(t, st.Items, 1)
	assert.Equal(t, "from server", st.Items[0].Title)
}

func TestFetchNotifications_ReplaceDropsItemsFromBeforeTheFetch(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("old", model.PriorityNormal, 0))

	m.On("ListNotifications", mock.Anything, 1, 2).Return(page([]model.Notification{
		testutil.Notification("n0", model.PriorityNormal, 1),
	}, nil), nil)

	require.NoError(t, s.FetchNotifications(context.Background(), 1, true))

	st := s.Snapshot()
	require.Len(t, st.Items, 1)
	assert.Equal(t, "n0", st.Items[0].ID)
}

func TestFetchNotifications_OverlappingFetchesStayLoading(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)

	// A full first page without metadata leaves HasMore set.
	m.On("ListNotifications", mock.Anything, 1, 2).Return(page([]model.Notification{
		testutil.Notification("a", model.PriorityNormal, 3),
		testutil.Notification("b", model.PriorityNormal, 2),
	}, nil), nil).Once()
	require.NoError(t, s.FetchNotifications(context.Background(), 1, false))
	require.True(t, s.Snapshot().HasMore)

	firstStarted, firstRelease := gateList(m, 1, page([]model.Notification{
		testutil.Notification("a", model.PriorityNormal, 3),
		testutil.Notification("b", model.PriorityNormal, 2),
	}, nil))
	secondStarted, secondRelease := gateList(m, 2, page([]model.Notification{
		testutil.Notification("c", model.PriorityNormal, 1),
	}, &api.Pagination{Page: 2, TotalPages: 2}))

	first := fetchAsync(s, 1, true)
	<-firstStarted
	second := fetchAsync(s, 2, false)
	<-secondStarted

	close(firstRelease)
	require.NoError(t, <-first)
	assert.True(t, s.Snapshot().IsLoading, "second fetch is still in flight")

	require.NoError(t, s.LoadMore(context.Background()))
	m.AssertNumberOfCalls(t, "ListNotifications", 3)

	close(secondRelease)
	require.NoError(t, <-second)

	st := s.Snapshot()
	assert.False(t, st.IsLoading)
	assert.False(t, st.HasMore)
	assert.Len(t, st.Items, 3)
}

func TestFetchNotifications_ShortPageWithoutMetadata(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)

	m.On("ListNotifications", mock.Anything, 1, 2).Return(page([]model.Notification{
		testutil.Notification("a", model.PriorityNormal, 0),
	}, nil), nil)

	require.NoError(t, s.FetchNotifications(context.Background(), 1, true))
	assert.False(t, s.Snapshot().HasMore)

	// No further page exists, so LoadMore issues no request.
	require.NoError(t, s.LoadMore(context.Background()))
	m.AssertNumberOfCalls(t, "ListNotifications", 1)
}

func TestFetchNotifications_FailureLeavesStateUntouched(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("n1", model.PriorityNormal, 0))

	m.On("ListNotifications", mock.Anything, 1, 2).Return(nil, errors.New("boom"))

	err := s.FetchNotifications(context.Background(), 1, true)
	require.Error(t, err)

	st := s.Snapshot()
	require.Len(t, st.Items, 1)
	assert.Equal(t, 1, st.UnreadCount)
	assert.False(t, st.IsLoading)
}

func TestFetchUnreadCount(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)

	m.On("UnreadCount", mock.Anything).Return(7, nil).Once()
	m.On("UnreadCount", mock.Anything).Return(0, errors.New("offline")).Once()

	s.FetchUnreadCount(context.Background())
	assert.Equal(t, 7, s.Snapshot().UnreadCount)

	s.FetchUnreadCount(context.Background())
	assert.Equal(t, 7, s.Snapshot().UnreadCount, "stale count kept on failure")
}

func TestMarkAsRead(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("n1", model.PriorityUrgent, 0))

	m.On("MarkRead", mock.Anything, "n1").Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, s.MarkAsRead(ctx, "n1"))
	require.NoError(t, s.MarkAsRead(ctx, "n1"))

	got, _ := s.Find("n1")
	assert.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)
	assert.Zero(t, s.Snapshot().UnreadCount)
	m.AssertNumberOfCalls(t, "MarkRead", 1)
}

func TestMarkAsRead_MissingIDIsNoop(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	before := s.Snapshot()

	require.NoError(t, s.MarkAsRead(context.Background(), "missing-id"))

	assert.Equal(t, before, s.Snapshot())
	m.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything)
}

func TestMarkAsRead_FailureKeepsUnread(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("n1", model.PriorityNormal, 0))

	m.On("MarkRead", mock.Anything, "n1").Return(errors.New("offline"))

	require.Error(t, s.MarkAsRead(context.Background(), "n1"))

	got, ok := s.Find("n1")
	require.True(t, ok)
	assert.False(t, got.IsRead)
	assert.Nil(t, got.ReadAt)
	assert.Equal(t, 1, s.Snapshot().UnreadCount)
}

func TestMarkAsRead_NotFoundDropsLocalCopy(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("n1", model.PriorityNormal, 0))

	m.On("MarkRead", mock.Anything, "n1").Return(&api.StatusError{StatusCode: http.StatusNotFound})

	err := s.MarkAsRead(context.Background(), "n1")
	require.Error(t, err)
	assert.True(t, api.IsNotFound(err))

	_, ok := s.Find("n1")
	assert.False(t, ok)
	assert.Zero(t, s.Snapshot().UnreadCount)
}

func TestMarkAllAsRead_KeepsExistingReadAt(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)

	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	read := testutil.Notification("old", model.PriorityNormal, 0)
	read.IsRead = true
	read.ReadAt = &earlier
	s.Receive(read)
	s.Receive(testutil.Notification("new", model.PriorityNormal, 1))

	m.On("MarkAllRead", mock.Anything).Return(nil)
	require.NoError(t, s.MarkAllAsRead(context.Background()))

	st := s.Snapshot()
	assert.Zero(t, st.UnreadCount)
	for _, n := range st.Items {
		assert.True(t, n.IsRead)
		require.NotNil(t, n.ReadAt)
	}
	old, _ := s.Find("old")
	assert.True(t, earlier.Equal(*old.ReadAt))
	fresh, _ := s.Find("new")
	assert.True(t, fixedNow.Equal(*fresh.ReadAt))
}

func TestDeleteNotification(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("n1", model.PriorityNormal, 0))

	m.On("Delete", mock.Anything, "n1").Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, s.DeleteNotification(ctx, "n1"))
	require.NoError(t, s.DeleteNotification(ctx, "n1"))

	st := s.Snapshot()
	assert.Empty(t, st.Items)
	assert.Zero(t, st.UnreadCount)
	m.AssertNumberOfCalls(t, "Delete", 1)
}

func TestUnreadCountNeverNegative(t *testing.T) {
	m := &mockAPI{}
	s := newTestStore(t, m)
	s.Receive(testutil.Notification("n1", model.PriorityNormal, 0))
	s.Receive(testutil.Notification("n2", model.PriorityNormal, 1))
	s.SetUnreadCount(0)

	m.On("MarkRead", mock.Anything, "n1").Return(nil)
	m.On("Delete", mock.Anything, "n2").Return(nil)

	ctx := context.Background()
	require.NoError(t, s.MarkAsRead(ctx, "n1"))
	require.NoError(t, s.DeleteNotification(ctx, "n2"))
	s.SetUnreadCount(-3)

	assert.Zero(t, s.Snapshot().UnreadCount)
}

func TestSetConnected_SignalsOnChange(t *testing.T) {
	s := newTestStore(t, &mockAPI{})
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SetConnected(true)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected change signal")
	}
	assert.True(t, s.Snapshot().IsConnected)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := testutil.NewTestStore(t)
	m := &mockAPI{}

	first := newTestStore(t, m, WithCache(cache))
	first.Receive(testutil.Notification("n1", model.PriorityHigh, 0))

	second := newTestStore(t, m, WithCache(cache))
	require.NoError(t, second.LoadCached(context.Background()))

	st := second.Snapshot()
	require.Len(t, st.Items, 1)
	assert.Equal(t, "n1", st.Items[0].ID)
	assert.Equal(t, 1, st.UnreadCount)
}
