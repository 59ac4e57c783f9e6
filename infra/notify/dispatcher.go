// Package notify delivers notifications through a bounded queue and a
// worker pool, so failed sends are observed and retried instead of
// lost in fire-and-forget goroutines.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ambaglabs/ambag/pkg/config"
	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/provider"
)

// ErrQueueFull is returned by Enqueue when the dispatch queue is at
// capacity. Callers log and drop rather than block request handling.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Enqueue after Stop has begun.
var ErrStopped = errors.New("notification dispatcher stopped")

// Dispatcher fans queued notifications out to the sink.
type Dispatcher struct {
	sink        provider.NotificationSink
	queue       chan action.Notification
	workers     int
	sendTimeout time.Duration
	maxAttempts int
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher from configuration; zero values get
// safe defaults.
func NewDispatcher(sink provider.NotificationSink, cfg *config.Notify, logger *slog.Logger) *Dispatcher {
	workers := 4
	queueSize := 256
	sendTimeout := 10 * time.Second
	maxAttempts := 3
	if cfg != nil {
		if cfg.Workers > 0 {
			workers = cfg.Workers
		}
		if cfg.QueueSize > 0 {
			queueSize = cfg.QueueSize
		}
		if cfg.SendTimeout > 0 {
			sendTimeout = cfg.SendTimeout
		}
		if cfg.MaxAttempts > 0 {
			maxAttempts = cfg.MaxAttempts
		}
	}
	return &Dispatcher{
		sink:        sink,
		queue:       make(chan action.Notification, queueSize),
		workers:     workers,
		sendTimeout: sendTimeout,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "notify"),
	}
}

// Start launches the worker pool. It is a no-op when already running.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.logger.Info("notification dispatcher started", "workers", d.workers)
}

// Enqueue queues a notification for delivery without blocking. The
// lock is held across the send so Stop cannot close the queue under an
// in-flight Enqueue.
func (d *Dispatcher) Enqueue(n action.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.logger.Warn("notification dropped, queue full",
			"notification_id", n.ID, "recipient", n.Recipient, "type", n.Type)
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for the workers to drain it.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running || d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("notification dispatcher drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		d.deliver(ctx, n)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n action.Notification) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		id, err := d.sink.Notify(sendCtx, n)
		cancel()
		if err == nil {
			d.logger.Debug("notification delivered",
				"notification_id", id, "recipient", n.Recipient, "type", n.Type)
			return
		}
		d.logger.Warn("notification delivery failed",
			"notification_id", n.ID, "recipient", n.Recipient,
			"attempt", attempt, "error", err)
		if attempt < d.maxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
	d.logger.Error("notification dropped after retries",
		"notification_id", n.ID, "recipient", n.Recipient, "type", n.Type,
		"attempts", d.maxAttempts)
}
