package services

import (
	"context"
	"sync"
)

// KeyedLocker is an in-process mutex per user id. Entries are dropped when
// nobody holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[uint]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker returns an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: map[uint]*keyedLock{}}
}

// Lock blocks until the user's lock is free or ctx is done.
func (k *KeyedLocker) Lock(ctx context.Context, userID uint) (func(), error) {
	k.mu.Lock()
	l, ok := k.locks[userID]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[userID] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(userID, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.release(userID, l)
		})
	}, nil
}

func (k *KeyedLocker) release(userID uint, l *keyedLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, userID)
	}
	k.mu.Unlock()
}
