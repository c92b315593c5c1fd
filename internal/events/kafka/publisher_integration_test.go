//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"esims/internal/events"
	"esims/internal/events/kafka"
	"esims/internal/provisioning/models"
	"esims/pkg/testutil/containers"
)

type KafkaPublisherSuite struct {
	suite.Suite
	broker *containers.RedpandaContainer
}

func TestKafkaPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPublisherSuite))
}

func (s *KafkaPublisherSuite) SetupSuite() {
	s.broker = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaPublisherSuite) TestEventsRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "esims.events.roundtrip"

	client, err := kafka.Connect(ctx, s.broker.Brokers, topic)
	s.Require().NoError(err)
	defer client.Close()

	pub := kafka.New(client, kafka.WithTopic(topic), kafka.WithMetrics(kafka.NewMetrics(prometheus.NewRegistry())))
	for _, state := range []models.State{models.StateRequested, models.StateAwaitingCallback, models.StateCompleted} {
		s.Require().NoError(pub.Emit(ctx, events.Event{
			RequestID: "r1",
			Operation: models.OperationDownload,
			State:     state,
		}))
	}
	s.Require().NoError(pub.Close(ctx))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	var got []events.Event
	for len(got) < 3 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			var e events.Event
			s.Require().NoError(json.Unmarshal(r.Value, &e))
			s.Equal("r1", string(r.Key))
			got = append(got, e)
		})
	}
	s.Equal(models.StateRequested, got[0].State)
	s.Equal(models.StateCompleted, got[2].State)
}

func (s *KafkaPublisherSuite) TestEnsureTopicIsIdempotent() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := kgo.NewClient(kgo.SeedBrokers(s.broker.Brokers...))
	s.Require().NoError(err)
	defer client.Close()
	admin := kadm.NewClient(client)

	s.Require().NoError(kafka.EnsureTopic(ctx, admin, "esims.events.bootstrap", 1, 1))
	s.Require().NoError(kafka.EnsureTopic(ctx, admin, "esims.events.bootstrap", 1, 1))
}
