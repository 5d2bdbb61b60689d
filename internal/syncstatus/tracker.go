// Package syncstatus reports whether the client is online, how many changes await the backend
// and when the last sync happened. It reacts to network events and to messages from the
// background syncer, and polls the pending count.
package syncstatus

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/applytrak/applytrak/internal/kv"
	"github.com/applytrak/applytrak/internal/logging"
)

// KeyLastSync is the flag holding the last sync time (RFC 3339).
const KeyLastSync = "applytrak_last_sync"

// Defaults.
const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultPollInterval   = 30 * time.Second
)

// ConnectionType is the coarse network quality.
type ConnectionType string

const (
	ConnectionOnline  ConnectionType = "online"
	ConnectionOffline ConnectionType = "offline"
	ConnectionSlow    ConnectionType = "slow"
)

// ConnectionFor maps a network-information hint (effective type) to a connection type.
func ConnectionFor(online bool, effectiveType string) ConnectionType {
	switch {
	case !online:
		return ConnectionOffline
	case effectiveType == "slow-2g" || effectiveType == "2g":
		return ConnectionSlow
	default:
		return ConnectionOnline
	}
}

// Status is a snapshot of the tracker.
type Status struct {
	IsOnline       bool           `json:"isOnline"`
	IsSyncing      bool           `json:"isSyncing"`
	PendingChanges int            `json:"pendingChanges"`
	LastSyncTime   *time.Time     `json:"lastSyncTime,omitempty"`
	SyncError      string         `json:"syncError,omitempty"`
	ConnectionType ConnectionType `json:"connectionType"`
}

// Syncer starts a background sync.
type Syncer interface {
	RequestSync()
}

// PendingCounter counts records awaiting the backend.
type PendingCounter interface {
	PendingCount() int
}

// Config tunes the tracker. Zero values take the defaults.
type Config struct {
	ReconnectDelay time.Duration
	PollInterval   time.Duration
}

func (c *Config) normalize() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Tracker is safe for concurrent use.
type Tracker struct {
	cfg     Config
	syncer  Syncer
	counter PendingCounter
	flags   kv.Store
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	status    Status
	reconnect *time.Timer
	onChange  []func(Status)
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a tracker that starts online. flags may be nil.
func New(cfg Config, syncer Syncer, counter PendingCounter, flags kv.Store, logger *zap.Logger) *Tracker {
	cfg.normalize()
	if flags == nil {
		flags = kv.NewMemory()
	}
	return &Tracker{
		cfg:     cfg,
		syncer:  syncer,
		counter: counter,
		flags:   flags,
		logger:  logging.OrNop(logger),
		now:     time.Now,
		status:  Status{IsOnline: true, ConnectionType: ConnectionOnline},
	}
}

// OnChange registers fn to run after every status change.
func (t *Tracker) OnChange(fn func(Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// Status returns the current status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Start restores the last sync time, reads the pending count and starts polling it.
func (t *Tracker) Start(ctx context.Context) error {
	raw, ok, err := t.flags.Get(ctx, KeyLastSync)
	if err != nil {
		return fmt.Errorf("read last sync: %w", err)
	}
	if ok {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			t.update(func(s *Status) { s.LastSyncTime = &ts })
		} else {
			t.logger.Warn("ignoring malformed last sync time", zap.String("value", raw))
		}
	}
	t.RefreshPending()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.RefreshPending()
			}
		}
	}()
	return nil
}

// Stop ends polling and any scheduled reconnect sync.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	if t.reconnect != nil {
		t.reconnect.Stop()
		t.reconnect = nil
	}
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// RefreshPending re-reads the pending count.
func (t *Tracker) RefreshPending() {
	if t.counter == nil {
		return
	}
	n := t.counter.PendingCount()
	t.update(func(s *Status) { s.PendingChanges = n })
}

// SetNetwork records a network event. Coming back online schedules one sync after the
// reconnect delay; going offline cancels it.
func (t *Tracker) SetNetwork(online bool, effectiveType string) {
	conn := ConnectionFor(online, effectiveType)

	t.mu.Lock()
	wasOnline := t.status.IsOnline
	t.status.IsOnline = online
	t.status.ConnectionType = conn
	switch {
	case !online && t.reconnect != nil:
		t.reconnect.Stop()
		t.reconnect = nil
	case online && !wasOnline:
		if t.reconnect != nil {
			t.reconnect.Stop()
		}
		t.reconnect = time.AfterFunc(t.cfg.ReconnectDelay, func() {
			t.mu.Lock()
			t.reconnect = nil
			t.mu.Unlock()
			t.TriggerSync(context.Background())
		})
	}
	snapshot, subs := t.status, t.subscribers()
	t.mu.Unlock()

	if online != wasOnline {
		t.logger.Info("network changed", zap.Bool("online", online), zap.String("connection", string(conn)))
	}
	notify(subs, snapshot)
}

// TriggerSync asks the syncer for a sync unless offline or already syncing, and reports
// whether it did. The pending count is cleared and the sync time recorded before the request
// is handed off, so PENDING_CHANGES and SYNC_FAILED messages sent by the syncer always land
// after the optimistic values and correct them.
func (t *Tracker) TriggerSync(ctx context.Context) bool {
	now := t.now().UTC()
	t.mu.Lock()
	if !t.status.IsOnline || t.status.IsSyncing {
		t.mu.Unlock()
		return false
	}
	t.status.PendingChanges = 0
	t.status.LastSyncTime = &now
	t.status.SyncError = ""
	snapshot, subs := t.status, t.subscribers()
	t.mu.Unlock()

	notify(subs, snapshot)
	t.persistLastSync(ctx, now)

	if t.syncer != nil {
		t.syncer.RequestSync()
	}
	return true
}

// HandleMessage applies a background syncer message.
func (t *Tracker) HandleMessage(m Message) {
	switch m.Type {
	case MsgSyncStarted:
		t.update(func(s *Status) {
			s.IsSyncing = true
			s.SyncError = ""
		})
	case MsgSyncCompleted:
		now := t.now().UTC()
		t.update(func(s *Status) {
			s.IsSyncing = false
			s.LastSyncTime = &now
			s.SyncError = ""
		})
		t.persistLastSync(context.Background(), now)
	case MsgSyncFailed:
		t.update(func(s *Status) {
			s.IsSyncing = false
			s.SyncError = m.Error
		})
	case MsgPendingChanges:
		t.update(func(s *Status) { s.PendingChanges = m.Count })
	default:
		t.logger.Debug("ignoring sync message", zap.String("type", string(m.Type)))
	}
}

func (t *Tracker) persistLastSync(ctx context.Context, ts time.Time) {
	if err := t.flags.Set(ctx, KeyLastSync, ts.Format(time.RFC3339)); err != nil {
		t.logger.Warn("persist last sync time", zap.Error(err))
	}
}

func (t *Tracker) update(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.status)
	snapshot, subs := t.status, t.subscribers()
	t.mu.Unlock()
	notify(subs, snapshot)
}

// subscribers must be called with t.mu held.
func (t *Tracker) subscribers() []func(Status) {
	return slices.Clone(t.onChange)
}

func notify(subs []func(Status), s Status) {
	for _, fn := range subs {
		fn(s)
	}
}
