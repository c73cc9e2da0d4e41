package calllock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnter_NestedDoesNotDeadlock(t *testing.T) {
	var l Lock
	ctx, release := l.Enter(context.Background())
	assert.True(t, Held(ctx, &l))

	done := make(chan struct{})
	go func() {
		inner, innerRelease := l.Enter(ctx)
		assert.True(t, Held(inner, &l))
		innerRelease()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested Enter blocked")
	}
	release()
}

func TestEnter_SerializesIndependentChains(t *testing.T) {
	var l Lock
	var mu sync.Mutex
	active, maxActive := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release := l.Enter(context.Background())
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}

func TestHeld_DistinguishesLocks(t *testing.T) {
	var a, b Lock
	ctx, release := a.Enter(context.Background())
	defer release()
	assert.True(t, Held(ctx, &a))
	assert.False(t, Held(ctx, &b))
	assert.False(t, Held(context.Background(), &a))
}

func TestEnter_OtherLockContextStillBlocks(t *testing.T) {
	var a, b Lock
	_, releaseB := b.Enter(context.Background())

	ctxA, releaseA := a.Enter(context.Background())
	defer releaseA()

	entered := make(chan struct{})
	go func() {
		_, release := b.Enter(ctxA)
		close(entered)
		release()
	}()

	select {
	case <-entered:
		t.Fatal("context marked by another lock skipped the mutex")
	case <-time.After(20 * time.Millisecond):
	}
	releaseB()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("Enter did not proceed after release")
	}
}
