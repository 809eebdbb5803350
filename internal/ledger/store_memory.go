package ledger

import (
	"context"
	"sort"
	"sync"

	"kudos/internal/karma"
	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
	"kudos/pkg/platform/sentinel"
)

// MemoryStore is an in-memory ledger for tests and single-process
// deployments. For production, use PostgresStore instead.
type MemoryStore struct {
	mu         sync.RWMutex
	activities map[id.UserID][]karma.Activity
	index      map[id.ActivityID]struct{}
	ranks      map[id.UserID]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		activities: make(map[id.UserID][]karma.Activity),
		index:      make(map[id.ActivityID]struct{}),
		ranks:      make(map[id.UserID]string),
	}
}

// Append records an activity; duplicate ids are silently ignored, matching
// the postgres store's ON CONFLICT DO NOTHING semantics.
func (s *MemoryStore) Append(ctx context.Context, act karma.Activity) error {
	if err := act.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[act.ID]; ok {
		return nil
	}
	s.index[act.ID] = struct{}{}
	s.activities[act.UserID] = append(s.activities[act.UserID], act)
	return nil
}

// RecentActivities returns up to limit activities, newest first.
func (s *MemoryStore) RecentActivities(ctx context.Context, userID id.UserID, limit int) ([]karma.Activity, error) {
	if limit <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.activities[userID]
	out := make([]karma.Activity, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) StoredRank(ctx context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.ranks[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return label, nil
}

func (s *MemoryStore) SetStoredRank(ctx context.Context, userID id.UserID, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranks[userID] = label
	return nil
}
