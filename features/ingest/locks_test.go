package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLLocks(t *testing.T) {
	t.Run("Same key waits", func(t *testing.T) {
		l := newURLLocks()
		unlock, err := l.acquire(context.Background(), "https://a.dev")
		require.NoError(t, err)

		acquired := make(chan struct{})
		go func() {
			unlock2, err := l.acquire(context.Background(), "https://a.dev")
			if err == nil {
				close(acquired)
				unlock2()
			}
		}()

		select {
		case <-acquired:
			t.Fatal("second holder got the lock while the first held it")
		case <-time.After(50 * time.Millisecond):
		}

		unlock()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second holder never got the lock")
		}
		assert.Eventually(t, func() bool { return l.active() == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("Different keys do not block", func(t *testing.T) {
		l := newURLLocks()
		unlockA, err := l.acquire(context.Background(), "https://a.dev")
		require.NoError(t, err)
		defer unlockA()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		unlockB, err := l.acquire(ctx, "https://b.dev")
		require.NoError(t, err)
		unlockB()
	})

	t.Run("Cancelled wait releases its entry", func(t *testing.T) {
		l := newURLLocks()
		unlock, err := l.acquire(context.Background(), "https://a.dev")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.acquire(ctx, "https://a.dev")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		assert.Equal(t, 0, l.active())
	})
}
