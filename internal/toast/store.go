// Package toast holds the bounded list of ephemeral messages shown on top
// of the UI. It never talks to the backend and cannot fail.
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rihigo/notify/internal/broadcast"
	"github.com/rihigo/notify/internal/model"
)

// DefaultCapacity is the maximum number of toasts kept at once.
const DefaultCapacity = 5

// Option customizes a toast built with New.
type Option func(*model.Toast)

// WithTitle sets the toast title.
func WithTitle(title string) Option {
	return func(t *model.Toast) { t.Title = title }
}

// WithDuration overrides the display duration. Zero or negative makes the
// toast sticky.
func WithDuration(d time.Duration) Option {
	return func(t *model.Toast) { t.Duration = d }
}

// NotDismissible prevents the user from closing the toast by hand.
func NotDismissible() Option {
	return func(t *model.Toast) { t.Dismissible = false }
}

// New builds a toast with the default duration and dismissible flag.
func New(typ model.ToastType, message string, opts ...Option) model.Toast {
	t := model.Toast{
		Type:        typ,
		Message:     message,
		Duration:    model.DefaultToastDuration,
		Dismissible: true,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Store is the ordered toast list. Oldest toasts sit at the front and are
// evicted first when capacity is exceeded.
type Store struct {
	mu       sync.Mutex
	capacity int
	toasts   []model.Toast
	timers   map[string]*time.Timer
	closed   bool
	changes  *broadcast.Broadcaster
}

// NewStore creates a toast store holding at most capacity toasts.
// A non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		timers:   make(map[string]*time.Timer),
		changes:  broadcast.New(),
	}
}

// Push builds a toast with New and adds it.
func (s *Store) Push(typ model.ToastType, message string, opts ...Option) string {
	return s.Add(New(typ, message, opts...))
}

// Add assigns an id, appends the toast, evicts the oldest entries past
// capacity and schedules removal when the toast has a positive duration.
// The toast's Duration is taken literally; use New for defaults.
func (s *Store) Add(t model.Toast) string {
	t.ID = uuid.New().String()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return t.ID
	}

	s.toasts = append(s.toasts, t)
	for len(s.toasts) > s.capacity {
		evicted := s.toasts[0]
		s.toasts = s.toasts[1:]
		s.stopTimerLocked(evicted.ID)
	}

	if t.Duration > 0 {
		id := t.ID
		s.timers[id] = time.AfterFunc(t.Duration, func() {
			s.Remove(id)
		})
	}
	s.mu.Unlock()

	s.changes.Notify()
	return t.ID
}

// Remove deletes the toast with the given id. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	idx := -1
	for i, t := range s.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	s.stopTimerLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.toasts = append(s.toasts[:idx:idx], s.toasts[idx+1:]...)
	s.mu.Unlock()

	s.changes.Notify()
}

// Clear removes every toast.
func (s *Store) Clear() {
	s.mu.Lock()
	for id := range s.timers {
		s.stopTimerLocked(id)
	}
	s.toasts = nil
	s.mu.Unlock()

	s.changes.Notify()
}

// List returns a copy of the current toasts, oldest first.
func (s *Store) List() []model.Toast {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Toast, len(s.toasts))
	copy(out, s.toasts)
	return out
}

// Len returns the number of visible toasts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.toasts)
}

// Subscribe returns a channel signalled whenever the list changes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	return s.changes.Subscribe()
}

// Close stops every pending expiry timer and closes subscriber channels.
// The store ignores further additions.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id := range s.timers {
		s.stopTimerLocked(id)
	}
	s.toasts = nil
	s.mu.Unlock()

	s.changes.Close()
}

// pendingTimers reports how many expiry timers are scheduled.
func (s *Store) pendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Store) stopTimerLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}
