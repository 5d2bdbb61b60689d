package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueue_RunsTasks(t *testing.T) {
	q := NewQueue(2, nil)
	var ran int32
	for i := 0; i < 5; i++ {
		assert.True(t, q.Submit("count", 0, func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}))
	}
	q.Wait()
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestQueue_BoundsConcurrency(t *testing.T) {
	q := NewQueue(2, nil)
	var current, peak int32
	for i := 0; i < 6; i++ {
		q.Submit("slow", 0, func(context.Context) error {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		})
	}
	q.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestQueue_FailuresAreLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	q := NewQueue(1, zap.New(core))

	q.Submit("welcome-email", 0, func(context.Context) error {
		return errors.New("smtp down")
	})
	q.Submit("panicky", 0, func(context.Context) error {
		panic("boom")
	})
	q.Wait()

	assert.Equal(t, 2, logs.FilterMessage("best-effort task failed").Len())
}

func TestQueue_TimeoutCancelsTask(t *testing.T) {
	q := NewQueue(1, nil)
	var err atomic.Value
	q.Submit("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		err.Store(ctx.Err())
		return ctx.Err()
	})
	q.Wait()
	assert.Equal(t, context.DeadlineExceeded, err.Load())
}

func TestQueue_ClosedRejects(t *testing.T) {
	q := NewQueue(1, nil)
	q.Close(time.Second)
	assert.False(t, q.Submit("late", 0, func(context.Context) error { return nil }))
}
