package karma

import (
	"sync"

	id "kudos/pkg/domain"
)

// appliedSet tracks which activity identifiers have already been folded into
// a user's aggregate, across both the snapshot load and the live stream.
//
// The set only grows: activities are never retracted for the lifetime of the
// observation. It carries its own lock so that lookups stay safe even if the
// snapshot load and the live stream race on different goroutines; the
// check-and-mark is atomic so the two can never both win and double-apply
// the same identifier.
type appliedSet struct {
	mu  sync.RWMutex
	ids map[id.ActivityID]struct{}
}

func newAppliedSet() *appliedSet {
	return &appliedSet{ids: make(map[id.ActivityID]struct{})}
}

// Seen reports whether the identifier has already been applied.
func (s *appliedSet) Seen(activityID id.ActivityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[activityID]
	return ok
}

// MarkIfUnseen records the identifier and reports whether it was new.
// Returns false when the identifier had already been applied.
func (s *appliedSet) MarkIfUnseen(activityID id.ActivityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[activityID]; ok {
		return false
	}
	s.ids[activityID] = struct{}{}
	return true
}

// Len returns the number of applied identifiers.
func (s *appliedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
