package notify

import (
	"context"
	"log/slog"

	"kudos/internal/karma"
)

const defaultQueueSize = 256

// Worker buffers notifications from the engine and drains them to a delegate
// in the background. It satisfies karma.Sink: Notify never blocks the
// caller; when the queue is full the notification is dropped and counted.
type Worker struct {
	delegate Delegate
	queue    chan karma.Notification
	logger   *slog.Logger
	onDrop   func()
}

// Option configures the Worker.
type Option func(*Worker)

// WithQueueSize overrides the default queue capacity.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan karma.Notification, n)
		}
	}
}

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithDropCallback is invoked each time a notification is discarded because
// the queue is full.
func WithDropCallback(fn func()) Option {
	return func(w *Worker) {
		w.onDrop = fn
	}
}

func NewWorker(delegate Delegate, opts ...Option) *Worker {
	w := &Worker{
		delegate: delegate,
		queue:    make(chan karma.Notification, defaultQueueSize),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Notify enqueues a notification without blocking. Notifications are
// best-effort: a full queue drops the newest rather than stalling the engine.
func (w *Worker) Notify(ctx context.Context, n karma.Notification) {
	select {
	case w.queue <- n:
	default:
		if w.onDrop != nil {
			w.onDrop()
		}
		w.logger.Warn("notification queue full, dropping",
			"user_id", n.UserID,
			"title", n.Title,
		)
	}
}

// Run drains the queue until ctx is cancelled. Delivery failures are logged
// and skipped; a flaky delegate must not wedge the queue.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-w.queue:
			if err := w.delegate.Deliver(ctx, n); err != nil {
				w.logger.ErrorContext(ctx, "notification delivery failed",
					"user_id", n.UserID,
					"title", n.Title,
					"error", err,
				)
			}
		}
	}
}
