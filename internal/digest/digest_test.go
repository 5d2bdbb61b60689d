package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applytrak/applytrak/internal/notify"
)

type fakeSender struct {
	weekly, monthly int
	block           chan struct{}
	err             error
}

func (f *fakeSender) WeeklyDigest(ctx context.Context) (notify.BroadcastResult, error) {
	f.weekly++
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	return notify.BroadcastResult{Recipients: 2, Sent: 2}, f.err
}

func (f *fakeSender) MonthlyDigest(context.Context) (notify.BroadcastResult, error) {
	f.monthly++
	return notify.BroadcastResult{Recipients: 1, Sent: 1}, f.err
}

func TestNew_Schedules(t *testing.T) {
	s, err := New(Config{WeeklySpec: DefaultWeeklySpec, MonthlySpec: DefaultMonthlySpec}, &fakeSender{}, nil)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s, err = New(Config{WeeklySpec: DefaultWeeklySpec}, &fakeSender{}, nil)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(Config{WeeklySpec: "every monday"}, &fakeSender{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid weekly schedule")
}

func TestEntries_NextRun(t *testing.T) {
	s, err := New(Config{MonthlySpec: DefaultMonthlySpec}, &fakeSender{}, nil)
	require.NoError(t, err)
	s.Start()
	defer s.Stop(context.Background())

	require.Eventually(t, func() bool { return len(s.Entries()) == 1 && !s.Entries()[0].IsZero() }, time.Second, 10*time.Millisecond)
	next := s.Entries()[0]
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 9, next.Hour())
}

func TestRun(t *testing.T) {
	f := &fakeSender{}
	s, err := New(Config{}, f, nil)
	require.NoError(t, err)

	res, err := s.Run(context.Background(), Weekly)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	_, err = s.Run(context.Background(), Monthly)
	require.NoError(t, err)
	assert.Equal(t, 1, f.weekly)
	assert.Equal(t, 1, f.monthly)

	_, err = s.Run(context.Background(), "daily")
	assert.Error(t, err)
}

func TestRun_PropagatesError(t *testing.T) {
	boom := errors.New("db down")
	s, err := New(Config{}, &fakeSender{err: boom}, nil)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), Monthly)
	assert.ErrorIs(t, err, boom)
}

func TestRun_SkipsOverlap(t *testing.T) {
	f := &fakeSender{block: make(chan struct{})}
	s, err := New(Config{}, f, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Run(context.Background(), Weekly)
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running[Weekly]
	}, time.Second, 5*time.Millisecond)

	_, err = s.Run(context.Background(), Weekly)
	assert.ErrorContains(t, err, "already running")

	close(f.block)
	<-done
}
