// Package realtime keeps one live socket to the notification service open
// for the session, feeding decoded frames into the notification and toast
// stores and reconnecting after every disconnect.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rihigo/notify/internal/model"
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// Feed is the notification store as seen by the manager.
type Feed interface {
	FetchNotifications(ctx context.Context, page int, reset bool) error
	FetchUnreadCount(ctx context.Context)
	Receive(n model.Notification) bool
	SetUnreadCount(n int)
	SetConnected(connected bool)
}

// Toaster accepts toasts raised by live notifications.
type Toaster interface {
	Add(t model.Toast) string
}

// Observer receives connection events, typically for metrics.
type Observer interface {
	ConnectAttempt()
	Connected(open bool)
	Frame(frameType string)
	MalformedFrame()
}

type nopObserver struct{}

func (nopObserver) ConnectAttempt() {}
func (nopObserver) Connected(bool) {}
func (nopObserver) Frame(string) {}
func (nopObserver) MalformedFrame() {}

// Option customizes a Manager.
type Option func(*Manager)

// WithBackoff replaces the default fixed reconnect delay.
func WithBackoff(b Backoff) Option {
	return func(m *Manager) { m.backoff = b }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithObserver attaches a connection event observer.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// Manager owns the notification socket and its reconnect timer.
type Manager struct {
	url      string
	feed     Feed
	toasts   Toaster
	logger   *zap.Logger
	backoff  Backoff
	dialer   *websocket.Dialer
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	timer    *time.Timer
	retrySeq int
	attempt  int
	opened   bool
	stopped  bool
}

// New creates a manager for the socket at url (including the token query
// parameter). Nothing is dialed until Start or Connect.
func New(url string, feed Feed, toasts Toaster, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		url:      url,
		feed:     feed,
		toasts:   toasts,
		logger:   logger.Named("realtime"),
		backoff:  FixedBackoff(DefaultReconnectDelay),
		dialer:   websocket.DefaultDialer,
		observer: nopObserver{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start loads the first page and the unread count concurrently, then opens
// the socket. The socket is opened even if the initial fetch fails; the
// fetch error is returned for the caller to report.
func (m *Manager) Start(ctx context.Context) error {
	err := m.fetchInitial(ctx)
	if err != nil {
		m.logger.Warn("initial fetch failed", zap.Error(err))
	}
	m.Connect()
	return err
}

// Connect opens the socket unless one is already open or being dialed.
// A pending reconnect timer is replaced by an immediate attempt.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.stopped || m.state == StateConnecting || m.state == StateOpen {
		m.mu.Unlock()
		return
	}
	m.cancelRetryLocked()
	m.state = StateConnecting
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run()
}

// Stop closes the socket, cancels any pending reconnect and waits for the
// manager's goroutines to exit. It is idempotent and terminal.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.cancelRetryLocked()
	conn := m.conn
	m.state = StateIdle
	m.mu.Unlock()

	m.cancel()
	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = conn.Close()
	}

	m.wg.Wait()
	m.feed.SetConnected(false)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the socket is open.
func (m *Manager) IsConnected() bool {
	return m.State() == StateOpen
}

// PendingRetry reports whether a reconnect timer is armed.
func (m *Manager) PendingRetry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer != nil
}

func (m *Manager) run() {
	defer m.wg.Done()

	m.observer.ConnectAttempt()
	conn, resp, err := m.dialer.DialContext(m.ctx, m.url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		m.logger.Warn("socket dial failed", zap.Int("status", status), zap.Error(err))
		m.closed(false)
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = StateOpen
	m.attempt = 0
	reconnected := m.opened
	m.opened = true
	m.mu.Unlock()

	m.logger.Info("socket open", zap.Bool("reconnect", reconnected))
	m.feed.SetConnected(true)
	m.observer.Connected(true)

	if reconnected {
		// Frames sent while the socket was down are lost.
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.fetchInitial(m.ctx); err != nil {
				m.logger.Warn("resync after reconnect failed", zap.Error(err))
			}
		}()
	}

	m.readLoop(conn)
	_ = conn.Close()
	m.closed(true)
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if m.ctx.Err() == nil {
				m.logger.Info("socket closed", zap.Error(err))
			}
			return
		}
		if err := m.handleFrame(conn, data); err != nil {
			m.logger.Warn("writing to socket failed", zap.Error(err))
			return
		}
	}
}

// handleFrame applies one inbound message. Only write failures are returned;
// bad frames are logged and dropped.
func (m *Manager) handleFrame(conn *websocket.Conn, data []byte) error {
	frame, err := ParseFrame(data)
	if err != nil {
		m.observer.MalformedFrame()
		m.logger.Warn("dropping malformed frame", zap.ByteString("frame", data), zap.Error(err))
		return nil
	}
	m.observer.Frame(frame.Type)

	switch frame.Type {
	case FrameNotification:
		n, err := frame.Notification()
		if err != nil {
			m.observer.MalformedFrame()
			m.logger.Warn("dropping malformed notification", zap.Error(err))
			return nil
		}
		if m.feed.Receive(n) {
			m.toasts.Add(model.ToastFor(n))
		}

	case FrameUnreadCount:
		count, err := frame.UnreadCount()
		if err != nil {
			m.observer.MalformedFrame()
			m.logger.Warn("dropping malformed unread count", zap.Error(err))
			return nil
		}
		m.feed.SetUnreadCount(count)

	case FramePing:
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(Frame{Type: FramePong})

	case FramePong:
		// Nothing to answer.

	default:
		m.logger.Debug("ignoring unknown frame", zap.String("type", frame.Type))
	}

	return nil
}

// closed moves to Closed and arms exactly one reconnect timer.
func (m *Manager) closed(wasOpen bool) {
	m.mu.Lock()
	m.conn = nil
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	delay := m.backoff.Next(m.attempt)
	m.attempt++
	m.cancelRetryLocked()
	seq := m.retrySeq
	m.timer = time.AfterFunc(delay, func() { m.retry(seq) })
	m.mu.Unlock()

	if wasOpen {
		m.observer.Connected(false)
	}
	m.feed.SetConnected(false)
	m.logger.Debug("reconnect scheduled", zap.Duration("delay", delay))
}

func (m *Manager) retry(seq int) {
	m.mu.Lock()
	if m.stopped || seq != m.retrySeq {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.mu.Unlock()

	m.Connect()
}

func (m *Manager) cancelRetryLocked() {
	m.retrySeq++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) fetchInitial(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		return m.feed.FetchNotifications(ctx, 1, true)
	})
	g.Go(func() error {
		m.feed.FetchUnreadCount(ctx)
		return nil
	})
	return g.Wait()
}
