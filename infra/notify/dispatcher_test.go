package notify_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ambaglabs/ambag/infra/notify"
	"github.com/ambaglabs/ambag/pkg/config"
	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu       sync.Mutex
	failures int
	sent     []action.Notification
}

func (s *recordingSink) Notify(_ context.Context, n action.Notification) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return "", errors.New("sink unavailable")
	}
	s.sent = append(s.sent, n)
	return n.ID, nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testNotification() action.Notification {
	return action.NewNotification("payment_due", "Bob", uuid.New(),
		"Your share of 200.00 is due.", action.UrgencyMedium)
}

func TestDispatcher(t *testing.T) {
	cfg := &config.Notify{Workers: 2, QueueSize: 8, SendTimeout: time.Second, MaxAttempts: 2}

	t.Run("delivers queued notifications", func(t *testing.T) {
		sink := &recordingSink{}
		d := notify.NewDispatcher(sink, cfg, slog.Default())
		d.Start(context.Background())

		for i := 0; i < 5; i++ {
			require.NoError(t, d.Enqueue(testNotification()))
		}
		require.NoError(t, d.Stop(context.Background()))
		assert.Equal(t, 5, sink.count())
	})

	t.Run("retries transient sink failures", func(t *testing.T) {
		sink := &recordingSink{failures: 1}
		d := notify.NewDispatcher(sink, cfg, slog.Default())
		d.Start(context.Background())

		require.NoError(t, d.Enqueue(testNotification()))
		require.NoError(t, d.Stop(context.Background()))
		assert.Equal(t, 1, sink.count())
	})

	t.Run("rejects when the queue is full", func(t *testing.T) {
		sink := &recordingSink{}
		small := &config.Notify{Workers: 1, QueueSize: 1, SendTimeout: time.Second, MaxAttempts: 1}
		d := notify.NewDispatcher(sink, small, slog.Default())
		// Not started: nothing drains the queue.

		require.NoError(t, d.Enqueue(testNotification()))
		err := d.Enqueue(testNotification())
		assert.ErrorIs(t, err, notify.ErrQueueFull)
	})

	t.Run("rejects after stop", func(t *testing.T) {
		sink := &recordingSink{}
		d := notify.NewDispatcher(sink, cfg, slog.Default())
		d.Start(context.Background())
		require.NoError(t, d.Stop(context.Background()))

		err := d.Enqueue(testNotification())
		assert.ErrorIs(t, err, notify.ErrStopped)
	})

	t.Run("enqueue concurrent with stop never panics", func(t *testing.T) {
		sink := &recordingSink{}
		d := notify.NewDispatcher(sink, cfg, slog.Default())
		d.Start(context.Background())

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					err := d.Enqueue(testNotification())
					if err != nil {
						assert.True(t,
							errors.Is(err, notify.ErrStopped) || errors.Is(err, notify.ErrQueueFull),
							"unexpected enqueue error: %v", err)
					}
				}
			}()
		}
		require.NoError(t, d.Stop(context.Background()))
		wg.Wait()
	})

	t.Run("stop drains pending deliveries", func(t *testing.T) {
		sink := &recordingSink{}
		d := notify.NewDispatcher(sink, cfg, slog.Default())
		d.Start(context.Background())

		for i := 0; i < 8; i++ {
			require.NoError(t, d.Enqueue(testNotification()))
		}
		require.NoError(t, d.Stop(context.Background()))
		assert.Equal(t, 8, sink.count())
	})
}
