// Package ledger provides the durable store of karma activities.
//
// The ledger is append-only: activities are never mutated or deleted, and a
// user's aggregate is always reconstructable by replaying it. Appending an
// id that already exists is a silent no-op, which makes retried writes safe.
package ledger

import (
	"context"

	"kudos/internal/karma"
	id "kudos/pkg/domain"
)

// Store is the full ledger surface: the engine's read path plus the append
// and stored-rank writes used by the transport layer and the wider platform.
// Implementations must satisfy karma.Ledger.
type Store interface {
	// Append records an activity. Duplicate ids are ignored.
	Append(ctx context.Context, act karma.Activity) error

	// RecentActivities returns up to limit activities for the user, newest
	// first.
	RecentActivities(ctx context.Context, userID id.UserID, limit int) ([]karma.Activity, error)

	// StoredRank returns the externally persisted rank label, or a
	// sentinel.ErrNotFound-wrapped error when absent.
	StoredRank(ctx context.Context, userID id.UserID) (string, error)

	// SetStoredRank persists a rank label for initial-display fallback.
	SetStoredRank(ctx context.Context, userID id.UserID, label string) error
}
