package stream

import (
	"context"
	"sync"

	"kudos/internal/karma"
	id "kudos/pkg/domain"
)

const memoryBuffer = 256

// MemorySource is an in-process stream for tests and single-process
// deployments: published activities are delivered to every open
// subscription for the activity's user, in publish order.
type MemorySource struct {
	mu   sync.Mutex
	subs map[id.UserID][]*memorySubscription
}

func NewMemorySource() *MemorySource {
	return &MemorySource{subs: make(map[id.UserID][]*memorySubscription)}
}

// Subscribe opens a live feed for one user.
func (s *MemorySource) Subscribe(ctx context.Context, userID id.UserID) (karma.Subscription, error) {
	sub := &memorySubscription{
		source: s,
		userID: userID,
		events: make(chan karma.Activity, memoryBuffer),
	}
	s.mu.Lock()
	s.subs[userID] = append(s.subs[userID], sub)
	s.mu.Unlock()
	return sub, nil
}

// Publish delivers an activity to every subscription for its user. Also
// satisfies the Publisher interface so a single MemorySource can back both
// ends in tests.
func (s *MemorySource) Publish(ctx context.Context, act karma.Activity) error {
	if err := act.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	subs := make([]*memorySubscription, len(s.subs[act.UserID]))
	copy(subs, s.subs[act.UserID])
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(act)
	}
	return nil
}

func (s *MemorySource) remove(sub *memorySubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[sub.userID]
	for i, candidate := range subs {
		if candidate == sub {
			s.subs[sub.userID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

type memorySubscription struct {
	source *MemorySource
	userID id.UserID
	events chan karma.Activity

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) Events() <-chan karma.Activity { return s.events }

// deliver enqueues without blocking: once a subscriber that stopped draining
// fills its buffer, further events are dropped rather than wedging Publish
// and Close behind a full channel.
func (s *memorySubscription) deliver(act karma.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- act:
	default:
	}
}

func (s *memorySubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.source.remove(s)
	close(s.events)
	return nil
}
