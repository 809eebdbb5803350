package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kudos/internal/karma"
	id "kudos/pkg/domain"
	dErrors "kudos/pkg/domain-errors"
	"kudos/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) newActivity(userID id.UserID, points int, createdAt time.Time) karma.Activity {
	return karma.Activity{
		ID:        id.NewActivityID(),
		UserID:    userID,
		Type:      "post_created",
		Points:    points,
		CreatedAt: createdAt,
	}
}

func (s *MemoryStoreSuite) TestAppend() {
	userID := id.NewUserID()

	s.Run("appends and reads back", func() {
		act := s.newActivity(userID, 5, time.Now())
		s.Require().NoError(s.store.Append(s.ctx, act))

		got, err := s.store.RecentActivities(s.ctx, userID, 10)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(act.ID, got[0].ID)
	})

	s.Run("duplicate id is a silent no-op", func() {
		act := s.newActivity(userID, 5, time.Now())
		s.Require().NoError(s.store.Append(s.ctx, act))
		s.Require().NoError(s.store.Append(s.ctx, act))

		got, err := s.store.RecentActivities(s.ctx, userID, 10)
		s.Require().NoError(err)
		s.Len(got, 2) // the first subtest's entry plus this one
	})

	s.Run("rejects malformed activity", func() {
		act := s.newActivity(userID, 5, time.Now())
		act.Type = ""
		err := s.store.Append(s.ctx, act)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *MemoryStoreSuite) TestRecentActivities() {
	userID := id.NewUserID()
	base := time.Now()

	// Insert out of order.
	oldest := s.newActivity(userID, 1, base.Add(-3*time.Hour))
	middle := s.newActivity(userID, 2, base.Add(-2*time.Hour))
	newest := s.newActivity(userID, 3, base.Add(-1*time.Hour))
	for _, act := range []karma.Activity{middle, newest, oldest} {
		s.Require().NoError(s.store.Append(s.ctx, act))
	}

	s.Run("returns newest first", func() {
		got, err := s.store.RecentActivities(s.ctx, userID, 10)
		s.Require().NoError(err)
		s.Require().Len(got, 3)
		s.Equal(newest.ID, got[0].ID)
		s.Equal(oldest.ID, got[2].ID)
	})

	s.Run("honors the limit", func() {
		got, err := s.store.RecentActivities(s.ctx, userID, 2)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(newest.ID, got[0].ID)
	})

	s.Run("rejects non-positive limit", func() {
		_, err := s.store.RecentActivities(s.ctx, userID, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown user yields empty slice", func() {
		got, err := s.store.RecentActivities(s.ctx, id.NewUserID(), 10)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *MemoryStoreSuite) TestStoredRank() {
	userID := id.NewUserID()

	s.Run("missing rank is not found", func() {
		_, err := s.store.StoredRank(s.ctx, userID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("set then get", func() {
		s.Require().NoError(s.store.SetStoredRank(s.ctx, userID, "Private"))

		label, err := s.store.StoredRank(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal("Private", label)
	})

	s.Run("set overwrites", func() {
		s.Require().NoError(s.store.SetStoredRank(s.ctx, userID, "Corporal"))

		label, err := s.store.StoredRank(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal("Corporal", label)
	})
}
