package stream

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"kudos/internal/karma"
	id "kudos/pkg/domain"
)

const redisBuffer = 64

// channelFor is the per-user pub/sub channel name. Scoping channels to a
// single user keeps subscriber fan-out proportional to observed users rather
// than total traffic.
func channelFor(userID id.UserID) string {
	return "karma:activity:" + userID.String()
}

// RedisSource delivers live activities over Redis pub/sub. Each subscription
// holds its own PubSub connection so closing one observer never disturbs
// another.
type RedisSource struct {
	client *goredis.Client
	logger *slog.Logger
}

func NewRedisSource(client *goredis.Client, logger *slog.Logger) *RedisSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSource{client: client, logger: logger}
}

// Subscribe opens a pub/sub channel for the user. The subscription is
// confirmed with the server before returning, so events published after
// Subscribe returns are guaranteed to be delivered.
func (s *RedisSource) Subscribe(ctx context.Context, userID id.UserID) (karma.Subscription, error) {
	ps := s.client.Subscribe(ctx, channelFor(userID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("confirm redis subscription: %w", err)
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan karma.Activity, redisBuffer),
	}
	go sub.forward(s.logger)
	return sub, nil
}

type redisSubscription struct {
	ps     *goredis.PubSub
	events chan karma.Activity
}

func (s *redisSubscription) Events() <-chan karma.Activity { return s.events }

// forward decodes messages onto the events channel until the PubSub closes.
// Malformed payloads are logged and dropped rather than tearing the feed down.
func (s *redisSubscription) forward(logger *slog.Logger) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		act, err := decodeActivity([]byte(msg.Payload))
		if err != nil {
			logger.Warn("dropping malformed activity payload",
				"channel", msg.Channel,
				"error", err,
			)
			continue
		}
		s.events <- act
	}
}

// Close terminates the pub/sub connection; closing the connection drains and
// closes the events channel. Safe to call more than once.
func (s *redisSubscription) Close() error {
	return s.ps.Close()
}

// RedisPublisher is the producing side of the Redis stream.
type RedisPublisher struct {
	client *goredis.Client
}

func NewRedisPublisher(client *goredis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, act karma.Activity) error {
	payload, err := encodeActivity(act)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, channelFor(act.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	return nil
}
