// Package notify holds the client-side notification feed: the list of
// server notifications, the unread badge count and the paging/connection
// flags the UI renders from.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rihigo/notify/internal/api"
	"github.com/rihigo/notify/internal/broadcast"
	"github.com/rihigo/notify/internal/model"
)

// DefaultPageSize is the number of notifications requested per page.
const DefaultPageSize = 20

// API is the subset of the backend the store needs.
type API interface {
	ListNotifications(ctx context.Context, page, pageSize int) (*api.NotificationPage, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// Cache persists the last known feed so it can be shown offline.
type Cache interface {
	SaveFeed(ctx context.Context, items []model.Notification, unread int) error
	LoadFeed(ctx context.Context, limit int) ([]model.Notification, int, error)
}

// State is an immutable copy of the store contents.
type State struct {
	Items       []model.Notification
	UnreadCount int
	HasMore     bool
	IsLoading   bool
	IsConnected bool
	Page        int
}

// Option customizes a Store.
type Option func(*Store)

// WithCache attaches an offline cache.
func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock overrides time.Now, used to stamp read_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the single source of truth for the notification feed. All
// methods are safe for concurrent use.
type Store struct {
	api      API
	cache    Cache
	logger   *zap.Logger
	pageSize int
	now      func() time.Time

	mu          sync.Mutex
	items       []model.Notification
	unread      int
	hasMore     bool
	loading     int
	isConnected bool
	page        int

	// Live arrivals recorded while a replacing fetch is in flight, keyed by
	// id with their arrival sequence.
	replacing int
	liveSeq   uint64
	live      map[string]uint64

	changes *broadcast.Broadcaster
}

// NewStore creates an empty store backed by client.
func NewStore(client API, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		api:      client,
		logger:   logger.Named("notify"),
		pageSize: DefaultPageSize,
		now:      time.Now,
		changes:  broadcast.New(),
		live:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe returns a channel signalled after every state change.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	return s.changes.Subscribe()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Notification, len(s.items))
	copy(items, s.items)

	return State{
		Items:       items,
		UnreadCount: s.unread,
		HasMore:     s.hasMore,
		IsLoading:   s.loading > 0,
		IsConnected: s.isConnected,
		Page:        s.page,
	}
}

// Find returns the notification with the given id.
func (s *Store) Find(id string) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.items[i], true
	}
	return model.Notification{}, false
}

// LoadCached seeds an empty store from the offline cache.
func (s *Store) LoadCached(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}

	items, unread, err := s.cache.LoadFeed(ctx, s.pageSize)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if len(s.items) > 0 || s.page > 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = s.normalize(items)
	s.unread = max(unread, 0)
	s.mu.Unlock()

	s.changes.Notify()
	return nil
}

// FetchNotifications loads a page of the feed. Page 1 or reset replaces the
// list, keeping live arrivals received while the request was in flight;
// later pages are appended, skipping ids already present. On failure
// the state is left untouched and the error is returned.
func (s *Store) FetchNotifications(ctx context.Context, page int, reset bool) error {
	if page < 1 {
		page = 1
	}

	replace := reset || page == 1

	s.mu.Lock()
	s.loading++
	since := s.liveSeq
	if replace {
		s.replacing++
	}
	s.mu.Unlock()
	s.changes.Notify()

	defer s.endFetch(replace)

	result, err := s.api.ListNotifications(ctx, page, s.pageSize)
	if err != nil {
		s.logger.Warn("fetching notifications failed",
			zap.Int("page", page), zap.Error(err))
		return err
	}

	fetched := s.normalize(result.Items)

	var hasMore bool
	if p := result.Pagination; p != nil {
		hasMore = p.Page < p.TotalPages
	} else {
		hasMore = len(fetched) >= s.pageSize
	}

	s.mu.Lock()
	if replace {
		s.items = append(s.arrivedSinceLocked(since, fetched), fetched...)
	} else {
		for _, n := range fetched {
			if s.indexLocked(n.ID) < 0 {
				s.items = append(s.items, n)
			}
		}
	}
	s.hasMore = hasMore
	s.page = page
	s.mu.Unlock()

	s.persist(ctx)
	s.changes.Notify()
	return nil
}

// LoadMore fetches the next page when one exists and nothing is loading.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.hasMore || s.loading > 0 {
		s.mu.Unlock()
		return nil
	}
	next := s.page + 1
	s.mu.Unlock()

	return s.FetchNotifications(ctx, next, false)
}

// FetchUnreadCount refreshes the badge count. Failures keep the stale count.
func (s *Store) FetchUnreadCount(ctx context.Context) {
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		s.logger.Warn("fetching unread count failed", zap.Error(err))
		return
	}
	s.SetUnreadCount(count)
}

// MarkAsRead marks a notification read once the backend confirms. Unknown
// or already read ids are a no-op.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexLocked(id)
	skip := i < 0 || s.items[i].IsRead
	s.mu.Unlock()
	if skip {
		return nil
	}

	if err := s.api.MarkRead(ctx, id); err != nil {
		s.logger.Warn("marking notification read failed",
			zap.String("id", id), zap.Error(err))
		s.dropIfGone(ctx, id, err)
		return err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 && !s.items[i].IsRead {
		s.items[i].MarkRead(s.now())
		s.unread = max(s.unread-1, 0)
	}
	s.mu.Unlock()

	s.persist(ctx)
	s.changes.Notify()
	return nil
}

// MarkAllAsRead marks every notification read and zeroes the count.
func (s *Store) MarkAllAsRead(ctx context.Context) error {
	if err := s.api.MarkAllRead(ctx); err != nil {
		s.logger.Warn("marking all notifications read failed", zap.Error(err))
		return err
	}

	now := s.now()
	s.mu.Lock()
	for i := range s.items {
		s.items[i].MarkRead(now)
	}
	s.unread = 0
	s.mu.Unlock()

	s.persist(ctx)
	s.changes.Notify()
	return nil
}

// DeleteNotification removes a notification once the backend confirms.
// Unknown ids are a no-op.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	if _, ok := s.Find(id); !ok {
		return nil
	}

	if err := s.api.Delete(ctx, id); err != nil {
		s.logger.Warn("deleting notification failed",
			zap.String("id", id), zap.Error(err))
		s.dropIfGone(ctx, id, err)
		return err
	}

	s.remove(ctx, id)
	return nil
}

// Receive ingests a live notification. New ids are prepended and counted as
// unread; a redelivered id replaces the stored copy in place. It reports
// whether the notification was new.
func (s *Store) Receive(n model.Notification) bool {
	n.Normalize(s.now())

	s.mu.Lock()
	isNew := true
	if i := s.indexLocked(n.ID); i >= 0 {
		s.items[i] = n
		isNew = false
	} else {
		s.items = append([]model.Notification{n}, s.items...)
		if !n.IsRead {
			s.unread++
		}
		if s.replacing > 0 {
			s.liveSeq++
			s.live[n.ID] = s.liveSeq
		}
	}
	s.mu.Unlock()

	s.persist(context.Background())
	s.changes.Notify()
	return isNew
}

// SetUnreadCount overwrites the unread count, flooring at zero.
func (s *Store) SetUnreadCount(n int) {
	s.mu.Lock()
	s.unread = max(n, 0)
	s.mu.Unlock()

	s.changes.Notify()
}

// SetConnected records whether the realtime socket is open.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	changed := s.isConnected != connected
	s.isConnected = connected
	s.mu.Unlock()

	if changed {
		s.changes.Notify()
	}
}

// IsConnected reports whether the realtime socket is open.
func (s *Store) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isConnected
}

// Close releases subscribers.
func (s *Store) Close() {
	s.changes.Close()
}

// dropIfGone removes the local copy when the backend reports that the
// notification no longer exists or belongs to someone else.
func (s *Store) dropIfGone(ctx context.Context, id string, err error) {
	if api.IsNotFound(err) || api.IsForbidden(err) {
		s.remove(ctx, id)
	}
}

func (s *Store) remove(ctx context.Context, id string) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	if !s.items[i].IsRead {
		s.unread = max(s.unread-1, 0)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.mu.Unlock()

	s.persist(ctx)
	s.changes.Notify()
}

func (s *Store) endFetch(replace bool) {
	s.mu.Lock()
	s.loading--
	if replace {
		s.replacing--
		if s.replacing == 0 {
			clear(s.live)
		}
	}
	s.mu.Unlock()

	s.changes.Notify()
}

// arrivedSinceLocked returns the live notifications received after sequence
// since that are still held and missing from fetched, newest first. A
// replacing fetch keeps them at the head of the list.
func (s *Store) arrivedSinceLocked(since uint64, fetched []model.Notification) []model.Notification {
	var kept []model.Notification
	for _, n := range s.items {
		seq, ok := s.live[n.ID]
		if !ok || seq <= since || containsID(fetched, n.ID) {
			continue
		}
		kept = append(kept, n)
	}
	return kept
}

func containsID(items []model.Notification, id string) bool {
	for i := range items {
		if items[i].ID == id {
			return true
		}
	}
	return false
}

// persist writes the feed back to the cache. Errors are logged only.
func (s *Store) persist(ctx context.Context) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	items := make([]model.Notification, len(s.items))
	copy(items, s.items)
	unread := s.unread
	s.mu.Unlock()

	if err := s.cache.SaveFeed(ctx, items, unread); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("caching notifications failed", zap.Error(err))
	}
}

func (s *Store) normalize(items []model.Notification) []model.Notification {
	now := s.now()
	out := make([]model.Notification, len(items))
	for i, n := range items {
		n.Normalize(now)
		out[i] = n
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
