package karma

import (
	"strings"
	"time"
	"unicode"

	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
)

// RecentLimit bounds the recent-activity view kept per user. After the cap
// is reached, the oldest entry by arrival order is evicted.
const RecentLimit = 10

// Activity is a single karma-affecting ledger entry. Activities are
// immutable: once created they are never mutated or deleted, and their
// points are the sole source of truth for a user's total.
type Activity struct {
	ID          id.ActivityID `json:"id"`
	UserID      id.UserID     `json:"user_id"`
	Type        string        `json:"activity_type"`
	Points      int           `json:"points"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Validate enforces the required shape at trust boundaries (stream payloads,
// HTTP bodies). Malformed activities fail validation instead of propagating
// as partially-populated records.
func (a Activity) Validate() error {
	if a.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "activity id is required")
	}
	if a.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "activity user id is required")
	}
	if a.Type == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "activity type is required")
	}
	return nil
}

// Reason returns the human-readable explanation for the activity: its
// description, or a humanized form of the activity type when the
// description is absent ("post_created" becomes "Post created").
func (a Activity) Reason() string {
	if a.Description != "" {
		return a.Description
	}
	return humanizeType(a.Type)
}

func humanizeType(activityType string) string {
	words := strings.ReplaceAll(activityType, "_", " ")
	runes := []rune(words)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}

// UserState is the engine-owned aggregate for one observed user.
//
// Invariant: Total always equals the sum of points of every activity applied
// to this state, each counted exactly once, even though activities arrive
// from two overlapping sources (snapshot and live stream).
type UserState struct {
	UserID id.UserID `json:"user_id"`
	Total  int       `json:"total"`
	Rank   string    `json:"rank"`
	// Recent holds the most recently applied activities, newest first,
	// bounded at RecentLimit entries.
	Recent []Activity `json:"recent"`
}

// insertRecent places an activity into the bounded recent view at its
// position by creation time, newest first. Snapshot seeding uses this so a
// reload carrying activities newer than the existing entries keeps the view
// ordered; live events prepend in arrival order instead.
func (s *UserState) insertRecent(act Activity) {
	idx := len(s.Recent)
	for i, existing := range s.Recent {
		if act.CreatedAt.After(existing.CreatedAt) {
			idx = i
			break
		}
	}
	if idx >= RecentLimit {
		return
	}
	s.Recent = append(s.Recent, Activity{})
	copy(s.Recent[idx+1:], s.Recent[idx:])
	s.Recent[idx] = act
	if len(s.Recent) > RecentLimit {
		s.Recent = s.Recent[:RecentLimit]
	}
}

// clone returns a copy safe to hand to callers while the aggregate keeps
// mutating.
func (s *UserState) clone() *UserState {
	out := *s
	out.Recent = make([]Activity, len(s.Recent))
	copy(out.Recent, s.Recent)
	return &out
}

// Notification describes a positive karma gain for the surrounding
// application to surface. The engine never performs UI work itself.
type Notification struct {
	UserID      id.UserID
	Title       string
	Description string
}
