package karma

import (
	"context"

	id "kudos/pkg/domain"
)

// Ledger is the engine's read path into the durable activity store. The
// engine never owns storage; implementations live in internal/ledger.
type Ledger interface {
	// RecentActivities returns a bounded slice of the user's history,
	// newest first. Used once per observation start (and again on retry
	// after a failed snapshot).
	RecentActivities(ctx context.Context, userID id.UserID, limit int) ([]Activity, error)

	// StoredRank returns the externally persisted rank label, used only as
	// an initial display fallback before the resolver's own output is
	// available. Returns sentinel.ErrNotFound (wrapped) when absent.
	StoredRank(ctx context.Context, userID id.UserID) (string, error)
}

// Subscription is one user's live feed of newly created activities. The
// transport preserves per-user insertion order but may redeliver events
// already present in a snapshot; the aggregator's applied-set absorbs that.
type Subscription interface {
	// Events yields activities until Close. The channel is closed when the
	// subscription ends.
	Events() <-chan Activity

	// Close terminates the subscription. Safe to call multiple times.
	Close() error
}

// Source opens live subscriptions keyed by user.
type Source interface {
	Subscribe(ctx context.Context, userID id.UserID) (Subscription, error)
}

// Sink receives notifications for newly applied positive-point events.
// Fire-and-forget: the engine consumes no return value and must never block
// on a slow sink.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}
