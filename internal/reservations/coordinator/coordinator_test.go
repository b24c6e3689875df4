package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Acquire(ctx, "room-1")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxInside)
	require.Zero(t, k.Len(), "idle keys must be dropped")
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := k.Acquire(ctx, "room-a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	releaseB, err := k.Acquire(ctx, "room-b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	k := NewKeyedMutex()

	release, err := k.Acquire(context.Background(), "room-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = k.Acquire(ctx, "room-1")
	require.ErrorIs(t, err, ErrLockTimeout)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	release()
	release()
	require.Zero(t, k.Len())

	release, err = k.Acquire(context.Background(), "room-1")
	require.NoError(t, err)
	release()
}
