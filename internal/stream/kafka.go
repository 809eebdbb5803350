package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"kudos/internal/karma"
	id "kudos/pkg/domain"
)

const kafkaBuffer = 64

// KafkaSource delivers live activities from a Kafka topic. Activities are
// produced keyed by user id; each subscription runs its own consumer pinned
// to the topic's end offsets as of subscribe time, so a fresh observer sees
// exactly the events produced after it subscribed. Everything earlier comes
// from the ledger snapshot.
type KafkaSource struct {
	brokers []string
	topic   string
	logger  *slog.Logger
}

func NewKafkaSource(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := ensureTopic(ctx, brokers, topic); err != nil {
		return nil, err
	}
	return &KafkaSource{brokers: brokers, topic: topic, logger: logger}, nil
}

// ensureTopic creates the activity topic if it doesn't already exist.
func ensureTopic(ctx context.Context, brokers []string, topic string) error {
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	defer cl.Close()

	adm := kadm.NewClient(cl)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}

// Subscribe starts a consumer filtered to the given user, pinned to the
// topic's current end offsets. The offsets are resolved before Subscribe
// returns, so every record produced after that point is delivered even if it
// lands while the consumer is still connecting; anything earlier is covered
// by the ledger snapshot.
func (s *KafkaSource) Subscribe(ctx context.Context, userID id.UserID) (karma.Subscription, error) {
	offsets, err := s.endOffsets(ctx)
	if err != nil {
		return nil, err
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{s.topic: offsets}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka consumer: %w", err)
	}

	sub := &kafkaSubscription{
		cl:     cl,
		events: make(chan karma.Activity, kafkaBuffer),
	}
	go sub.poll(userID, s.logger)
	return sub, nil
}

// endOffsets resolves the topic's current end offsets through a short-lived
// admin client.
func (s *KafkaSource) endOffsets(ctx context.Context) (map[int32]kgo.Offset, error) {
	cl, err := kgo.NewClient(kgo.SeedBrokers(s.brokers...))
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	defer cl.Close()

	listed, err := kadm.NewClient(cl).ListEndOffsets(ctx, s.topic)
	if err != nil {
		return nil, fmt.Errorf("list end offsets for %s: %w", s.topic, err)
	}
	if err := listed.Error(); err != nil {
		return nil, fmt.Errorf("list end offsets for %s: %w", s.topic, err)
	}

	offsets := make(map[int32]kgo.Offset, len(listed[s.topic]))
	listed.Each(func(lo kadm.ListedOffset) {
		offsets[lo.Partition] = kgo.NewOffset().At(lo.Offset)
	})
	return offsets, nil
}

type kafkaSubscription struct {
	cl     *kgo.Client
	events chan karma.Activity
}

func (s *kafkaSubscription) Events() <-chan karma.Activity { return s.events }

// poll fetches records until the client is closed, forwarding only records
// keyed to the subscribed user.
func (s *kafkaSubscription) poll(userID id.UserID, logger *slog.Logger) {
	defer close(s.events)
	key := userID.String()

	for {
		fetches := s.cl.PollFetches(context.Background())
		if fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logger.Warn("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			if string(record.Key) != key {
				return
			}
			act, err := decodeActivity(record.Value)
			if err != nil {
				logger.Warn("dropping malformed activity record",
					"topic", record.Topic,
					"offset", record.Offset,
					"error", err,
				)
				return
			}
			s.events <- act
		})
	}
}

// Close shuts the consumer down; the poll loop observes the closed client
// and closes the events channel.
func (s *kafkaSubscription) Close() error {
	s.cl.Close()
	return nil
}

// KafkaPublisher produces activities onto the shared topic, keyed by user id
// so per-user ordering is preserved within a partition.
type KafkaPublisher struct {
	cl    *kgo.Client
	topic string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &KafkaPublisher{cl: cl, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, act karma.Activity) error {
	payload, err := encodeActivity(act)
	if err != nil {
		return err
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(act.UserID.String()),
		Value: payload,
	}
	if err := p.cl.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce activity: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.cl.Close()
	return nil
}
