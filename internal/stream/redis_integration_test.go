//go:build integration

package stream_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kudos/internal/karma"
	"kudos/internal/stream"
	id "kudos/pkg/domain"
	"kudos/pkg/testutil/containers"
)

type RedisStreamSuite struct {
	suite.Suite
	redis     *containers.RedisContainer
	source    *stream.RedisSource
	publisher *stream.RedisPublisher
}

func TestRedisStreamSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStreamSuite))
}

func (s *RedisStreamSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	logger := slog.New(slog.DiscardHandler)
	s.source = stream.NewRedisSource(s.redis.Client, logger)
	s.publisher = stream.NewRedisPublisher(s.redis.Client)
}

func (s *RedisStreamSuite) newActivity(userID id.UserID, points int) karma.Activity {
	return karma.Activity{
		ID:        id.NewActivityID(),
		UserID:    userID,
		Type:      "post_created",
		Points:    points,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *RedisStreamSuite) TestPublishSubscribeRoundTrip() {
	ctx := context.Background()
	userID := id.NewUserID()

	sub, err := s.source.Subscribe(ctx, userID)
	s.Require().NoError(err)
	defer sub.Close()

	first := s.newActivity(userID, 3)
	second := s.newActivity(userID, -1)
	s.Require().NoError(s.publisher.Publish(ctx, first))
	s.Require().NoError(s.publisher.Publish(ctx, second))

	got := s.receive(sub)
	s.Equal(first.ID, got.ID)
	s.Equal(3, got.Points)

	got = s.receive(sub)
	s.Equal(second.ID, got.ID)
}

func (s *RedisStreamSuite) TestDeliveryScopedToUser() {
	ctx := context.Background()
	observed := id.NewUserID()
	other := id.NewUserID()

	sub, err := s.source.Subscribe(ctx, observed)
	s.Require().NoError(err)
	defer sub.Close()

	s.Require().NoError(s.publisher.Publish(ctx, s.newActivity(other, 5)))
	want := s.newActivity(observed, 2)
	s.Require().NoError(s.publisher.Publish(ctx, want))

	got := s.receive(sub)
	s.Equal(want.ID, got.ID)
}

func (s *RedisStreamSuite) TestMalformedPayloadDropped() {
	ctx := context.Background()
	userID := id.NewUserID()

	sub, err := s.source.Subscribe(ctx, userID)
	s.Require().NoError(err)
	defer sub.Close()

	channel := "karma:activity:" + userID.String()
	s.Require().NoError(s.redis.Client.Publish(ctx, channel, "{not json").Err())

	want := s.newActivity(userID, 1)
	s.Require().NoError(s.publisher.Publish(ctx, want))

	// The bad payload is skipped; the next valid one arrives.
	got := s.receive(sub)
	s.Equal(want.ID, got.ID)
}

func (s *RedisStreamSuite) TestCloseEndsEventStream() {
	ctx := context.Background()
	sub, err := s.source.Subscribe(ctx, id.NewUserID())
	s.Require().NoError(err)

	s.Require().NoError(sub.Close())
	s.Require().NoError(sub.Close())

	select {
	case _, open := <-sub.Events():
		s.False(open)
	case <-time.After(2 * time.Second):
		s.Fail("events channel not closed after Close")
	}
}

func (s *RedisStreamSuite) receive(sub karma.Subscription) karma.Activity {
	s.T().Helper()
	select {
	case act, open := <-sub.Events():
		s.Require().True(open, "events channel closed unexpectedly")
		return act
	case <-time.After(5 * time.Second):
		s.Require().Fail("timed out waiting for activity")
		return karma.Activity{}
	}
}
