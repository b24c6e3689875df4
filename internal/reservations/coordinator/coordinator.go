package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrLockTimeout = errors.New("timed out waiting for resource lock")

// Release gives the lock back. Calling it more than once is a no-op.
type Release func()

// Coordinator serializes mutations per resource. Different resources never block each other.
type Coordinator interface {
	Acquire(ctx context.Context, resourceID string) (Release, error)
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Coordinator. Waiters on one key are served in arrival order.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, l)
		return nil, fmt.Errorf("%w %q: %w", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			k.drop(key, l)
		})
	}, nil
}

// Len reports how many keys are currently held or waited on.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *KeyedMutex) drop(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
