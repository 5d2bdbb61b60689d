package syncstatus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applytrak/applytrak/internal/kv"
)

type countingSyncer struct {
	calls atomic.Int32
}

func (c *countingSyncer) RequestSync() { c.calls.Add(1) }

type fixedCounter struct {
	n atomic.Int32
}

func (f *fixedCounter) PendingCount() int { return int(f.n.Load()) }

func newTracker(t *testing.T, cfg Config) (*Tracker, *countingSyncer, *fixedCounter, *kv.Memory) {
	t.Helper()
	syncer := &countingSyncer{}
	counter := &fixedCounter{}
	flags := kv.NewMemory()
	tr := New(cfg, syncer, counter, flags, nil)
	t.Cleanup(tr.Stop)
	return tr, syncer, counter, flags
}

func TestConnectionFor(t *testing.T) {
	assert.Equal(t, ConnectionOffline, ConnectionFor(false, "4g"))
	assert.Equal(t, ConnectionSlow, ConnectionFor(true, "slow-2g"))
	assert.Equal(t, ConnectionSlow, ConnectionFor(true, "2g"))
	assert.Equal(t, ConnectionOnline, ConnectionFor(true, "3g"))
	assert.Equal(t, ConnectionOnline, ConnectionFor(true, ""))
}

func TestReconnect_SchedulesExactlyOneSync(t *testing.T) {
	tr, syncer, _, _ := newTracker(t, Config{ReconnectDelay: 50 * time.Millisecond})

	tr.SetNetwork(false, "")
	st := tr.Status()
	assert.False(t, st.IsOnline)
	assert.Equal(t, ConnectionOffline, st.ConnectionType)

	tr.SetNetwork(true, "4g")
	st = tr.Status()
	assert.True(t, st.IsOnline)
	assert.Equal(t, ConnectionOnline, st.ConnectionType)
	// a repeated online event does not schedule a second sync
	tr.SetNetwork(true, "4g")

	assert.Equal(t, int32(0), syncer.calls.Load(), "sync must wait for the reconnect delay")
	assert.Eventually(t, func() bool { return syncer.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestReconnect_SlowConnection(t *testing.T) {
	tr, _, _, _ := newTracker(t, Config{ReconnectDelay: time.Hour})
	tr.SetNetwork(false, "")
	tr.SetNetwork(true, "2g")
	assert.Equal(t, ConnectionSlow, tr.Status().ConnectionType)
}

func TestReconnect_OfflineAgainCancels(t *testing.T) {
	tr, syncer, _, _ := newTracker(t, Config{ReconnectDelay: 30 * time.Millisecond})

	tr.SetNetwork(false, "")
	tr.SetNetwork(true, "")
	tr.SetNetwork(false, "")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), syncer.calls.Load())
}

func TestTriggerSync_Guards(t *testing.T) {
	tr, syncer, counter, flags := newTracker(t, Config{})
	counter.n.Store(3)
	tr.RefreshPending()
	require.Equal(t, 3, tr.Status().PendingChanges)

	tr.SetNetwork(false, "")
	assert.False(t, tr.TriggerSync(context.Background()))

	tr.HandleMessage(Message{Type: MsgSyncStarted})
	tr.mu.Lock()
	tr.status.IsOnline = true
	tr.mu.Unlock()
	assert.False(t, tr.TriggerSync(context.Background()), "already syncing")
	assert.Equal(t, int32(0), syncer.calls.Load())

	tr.HandleMessage(Message{Type: MsgSyncFailed, Error: "boom"})
	assert.Equal(t, "boom", tr.Status().SyncError)

	assert.True(t, tr.TriggerSync(context.Background()))
	assert.Equal(t, int32(1), syncer.calls.Load())

	// cleared before the backend confirmed anything
	st := tr.Status()
	assert.Equal(t, 0, st.PendingChanges)
	require.NotNil(t, st.LastSyncTime)

	raw, ok, err := flags.Get(context.Background(), KeyLastSync)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st.LastSyncTime.Format(time.RFC3339), raw)
}

// failingSyncer reports a failed sync before RequestSync returns.
type failingSyncer struct {
	tracker *Tracker
}

func (f *failingSyncer) RequestSync() {
	f.tracker.HandleMessage(Message{Type: MsgSyncStarted})
	f.tracker.HandleMessage(Message{Type: MsgPendingChanges, Count: 3})
	f.tracker.HandleMessage(Message{Type: MsgSyncFailed, Error: "backend down"})
}

func TestTriggerSync_SyncerReportWins(t *testing.T) {
	syncer := &failingSyncer{}
	tr := New(Config{}, syncer, &fixedCounter{}, kv.NewMemory(), nil)
	syncer.tracker = tr
	t.Cleanup(tr.Stop)

	require.True(t, tr.TriggerSync(context.Background()))

	st := tr.Status()
	assert.Equal(t, 3, st.PendingChanges)
	assert.Equal(t, "backend down", st.SyncError)
	assert.False(t, st.IsSyncing)
}

func TestHandleMessage(t *testing.T) {
	tr, _, _, flags := newTracker(t, Config{})
	var seen []Status
	tr.OnChange(func(s Status) { seen = append(seen, s) })

	tr.HandleMessage(Message{Type: MsgSyncStarted})
	assert.True(t, tr.Status().IsSyncing)

	tr.HandleMessage(Message{Type: MsgPendingChanges, Count: 4})
	assert.Equal(t, 4, tr.Status().PendingChanges)

	tr.HandleMessage(Message{Type: MsgSyncCompleted})
	st := tr.Status()
	assert.False(t, st.IsSyncing)
	require.NotNil(t, st.LastSyncTime)

	_, ok, _ := flags.Get(context.Background(), KeyLastSync)
	assert.True(t, ok)

	tr.HandleMessage(Message{Type: "SOMETHING_ELSE"})
	assert.Len(t, seen, 3)
}

func TestStart_RestoresAndPolls(t *testing.T) {
	tr, _, counter, flags := newTracker(t, Config{PollInterval: 10 * time.Millisecond})
	last := time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, flags.Set(context.Background(), KeyLastSync, last.Format(time.RFC3339)))
	counter.n.Store(2)

	require.NoError(t, tr.Start(context.Background()))
	st := tr.Status()
	require.NotNil(t, st.LastSyncTime)
	assert.True(t, last.Equal(*st.LastSyncTime))
	assert.Equal(t, 2, st.PendingChanges)

	counter.n.Store(5)
	assert.Eventually(t, func() bool { return tr.Status().PendingChanges == 5 }, time.Second, 5*time.Millisecond)

	tr.Stop()
	counter.n.Store(9)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 5, tr.Status().PendingChanges)
}
