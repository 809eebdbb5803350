// Package notify delivers karma notifications produced by the aggregation
// engine. The Worker decouples the engine's hot path from delivery: Notify
// is a non-blocking enqueue, and a background goroutine drains the queue to
// the configured delegate.
package notify

import (
	"context"

	"kudos/internal/karma"
)

// Delegate receives notifications drained from the worker queue. SlogSink is
// the default; a push-gateway client would slot in the same way.
type Delegate interface {
	Deliver(ctx context.Context, n karma.Notification) error
}
