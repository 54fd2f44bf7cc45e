package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSchedulerTicksUntilCancelled(t *testing.T) {
	var count int32
	ctx, cancel := context.WithCancel(context.Background())

	s := New(10*time.Millisecond, func(ctx context.Context, now time.Time) error {
		atomic.AddInt32(&count, 1)
		return nil
	}, nil)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()
	<-done

	require.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestSchedulerReportsTickErrorsWithoutStopping(t *testing.T) {
	var count int32
	var errCount int32
	ctx, cancel := context.WithCancel(context.Background())

	s := New(10*time.Millisecond, func(ctx context.Context, now time.Time) error {
		n := atomic.AddInt32(&count, 1)
		if n == 2 {
			return errors.New("transient failure")
		}
		return nil
	}, func(err error) {
		atomic.AddInt32(&errCount, 1)
	})

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(55 * time.Millisecond)
	cancel()
	<-done

	require.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3), "scheduler must keep ticking after an error")
	require.Equal(t, int32(1), atomic.LoadInt32(&errCount))
}
