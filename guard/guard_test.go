package guard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intunehq/intune/guard"
)

func TestDoSerializesSameKey(t *testing.T) {
	t.Parallel()
	k := guard.NewKeyed()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
	)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := k.Do(context.Background(), "album-1", func() error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
}

func TestDoDifferentKeysRunConcurrently(t *testing.T) {
	t.Parallel()
	k := guard.NewKeyed()

	first := make(chan struct{})
	second := make(chan struct{})

	go func() {
		_ = k.Do(context.Background(), "album-1", func() error {
			close(first)
			<-second
			return nil
		})
	}()

	<-first
	done := make(chan error, 1)
	go func() {
		done <- k.Do(context.Background(), "album-2", func() error { return nil })
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("different keys must not block each other")
	}
	close(second)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	k := guard.NewKeyed()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = k.Do(context.Background(), "album-1", func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := k.Do(ctx, "album-1", func() error {
		t.Error("callback must not run after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}

func TestTryDoSkipsWhileHeld(t *testing.T) {
	t.Parallel()
	k := guard.NewKeyed()

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		ran, err := k.TryDo("album-1", func() error {
			close(holding)
			<-release
			return nil
		})
		assert.True(t, ran)
		assert.NoError(t, err)
	}()
	<-holding

	ran, err := k.TryDo("album-1", func() error {
		t.Error("callback must not run while the slot is held")
		return nil
	})
	assert.False(t, ran)
	assert.NoError(t, err)

	// A different key is unaffected.
	ran, err = k.TryDo("album-2", func() error { return nil })
	assert.True(t, ran)
	assert.NoError(t, err)

	close(release)
}

func TestTryDoReportsCallbackError(t *testing.T) {
	t.Parallel()
	k := guard.NewKeyed()

	wantErr := assert.AnError
	ran, err := k.TryDo("album-1", func() error { return wantErr })
	assert.True(t, ran)
	assert.ErrorIs(t, err, wantErr)

	// The slot is free again after the callback settles.
	ran, err = k.TryDo("album-1", func() error { return nil })
	assert.True(t, ran)
	assert.NoError(t, err)
}
