package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLockerSerializesPerUser(t *testing.T) {
	k := NewKeyedLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, 42)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	k.mu.Lock()
	assert.Empty(t, k.locks)
	k.mu.Unlock()
}

func TestKeyedLockerIndependentUsers(t *testing.T) {
	k := NewKeyedLocker()
	ctx := context.Background()

	unlockA, err := k.Lock(ctx, 1)
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := k.Lock(ctx, 2)
		if err == nil {
			unlockB()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock of another user blocked")
	}
}

func TestKeyedLockerHonoursContext(t *testing.T) {
	k := NewKeyedLocker()
	unlock, err := k.Lock(context.Background(), 9)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx, 9)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Unlock is idempotent and frees the entry.
	unlock()
	unlock()
	k.mu.Lock()
	assert.Empty(t, k.locks)
	k.mu.Unlock()

	again, err := k.Lock(context.Background(), 9)
	require.NoError(t, err)
	again()
}
