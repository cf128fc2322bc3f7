// Package sync keeps the feed fresh over plain REST while the realtime
// socket is down, and runs on-demand refreshes.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the poller's last outcome.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a poll completes.
type SyncResultMsg struct {
	// Forced is true for polls requested through Refresh.
	Forced bool
	Error  error
}

// DefaultInterval is the poll period while disconnected.
const DefaultInterval = 30 * time.Second

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Feed is the notification store as seen by the poller.
type Feed interface {
	FetchNotifications(ctx context.Context, page int, reset bool) error
	FetchUnreadCount(ctx context.Context)
	IsConnected() bool
}

// Poller refetches the first page and the unread count on an interval, but
// only while the realtime socket is down.
type Poller struct {
	feed     Feed
	interval time.Duration
	logger   *zap.Logger

	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a new Poller. A non-positive interval uses DefaultInterval.
func New(feed Feed, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		feed:      feed,
		interval:  interval,
		logger:    logger.Named("sync"),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a tea.Cmd that waits for
// the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return p.waitForResult()
}

// Stop halts the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.done
}

// Refresh requests an immediate poll regardless of the socket state.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already queued.
	}
	return nil
}

// Status returns the outcome of the most recent poll.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if p.feed.IsConnected() {
				continue
			}
			p.poll(false)
		case <-p.triggerCh:
			p.poll(true)
		}
	}
}

// poll fetches page one and the unread count and reports the outcome.
func (p *Poller) poll(forced bool) {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	err := p.feed.FetchNotifications(ctx, 1, true)
	p.feed.FetchUnreadCount(ctx)

	if err != nil {
		p.logger.Warn("poll failed", zap.Bool("forced", forced), zap.Error(err))
		p.setStatus(SyncError, err)
	} else {
		p.setStatus(SyncIdle, nil)
	}

	p.sendResult(SyncResultMsg{Forced: forced, Error: err})
}

// setStatus updates the sync status.
func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
