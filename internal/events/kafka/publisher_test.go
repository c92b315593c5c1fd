package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"esims/internal/events"
	"esims/internal/provisioning/models"
)

// fakeProducer completes every record synchronously with err.
type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	flushed bool
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	err := f.err
	f.mu.Unlock()
	promise(r, err)
}

func (f *fakeProducer) Flush(context.Context) error {
	f.flushed = true
	return nil
}

func (f *fakeProducer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type PublisherSuite struct {
	suite.Suite
	producer *fakeProducer
	metrics  *Metrics
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.producer = &fakeProducer{}
	s.metrics = NewMetrics(prometheus.NewRegistry())
}

func (s *PublisherSuite) TestProducesKeyedJSON() {
	p := New(s.producer, WithTopic("events"), WithMetrics(s.metrics))
	e := events.Event{RequestID: "r1", Operation: models.OperationDownload, State: models.StateAwaitingCallback}

	s.Require().NoError(p.Emit(context.Background(), e))
	s.Require().Equal(1, s.producer.count())

	rec := s.producer.records[0]
	s.Equal("events", rec.Topic)
	s.Equal([]byte("r1"), rec.Key)

	var decoded events.Event
	s.Require().NoError(json.Unmarshal(rec.Value, &decoded))
	s.Equal(models.StateAwaitingCallback, decoded.State)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Published))
}

// Justification: a failing broker must never surface to the state machine,
// and after the threshold no more produce calls are attempted.
func (s *PublisherSuite) TestCircuitOpensOnRepeatedFailure() {
	s.producer.err = errors.New("broker down")
	p := New(s.producer, WithMetrics(s.metrics), WithCircuitBreaker(NewCircuitBreaker(2, time.Hour)))

	for range 4 {
		s.NoError(p.Emit(context.Background(), events.Event{RequestID: "r1"}))
	}

	s.Equal(2, s.producer.count())
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Dropped.WithLabelValues("produce_failed")))
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Dropped.WithLabelValues("circuit_open")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CircuitState))
}

func (s *PublisherSuite) TestCloseFlushes() {
	p := New(s.producer)
	s.Require().NoError(p.Close(context.Background()))
	s.True(s.producer.flushed)
}

func TestCircuitBreakerHalfOpens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	assert.True(t, cb.RecordFailure())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	assert.False(t, cb.IsOpen())
}

type fakeAdmin struct {
	resps kadm.CreateTopicResponses
	err   error
}

func (f fakeAdmin) CreateTopics(context.Context, int32, int16, map[string]*string, ...string) (kadm.CreateTopicResponses, error) {
	return f.resps, f.err
}

func TestEnsureTopic(t *testing.T) {
	ctx := context.Background()

	t.Run("existing topic is fine", func(t *testing.T) {
		admin := fakeAdmin{resps: kadm.CreateTopicResponses{
			"events": {Topic: "events", Err: kerr.TopicAlreadyExists},
		}}
		require.NoError(t, EnsureTopic(ctx, admin, "events", 1, 1))
	})

	t.Run("other topic errors fail", func(t *testing.T) {
		admin := fakeAdmin{resps: kadm.CreateTopicResponses{
			"events": {Topic: "events", Err: kerr.InvalidReplicationFactor},
		}}
		err := EnsureTopic(ctx, admin, "events", 1, 3)
		assert.ErrorIs(t, err, kerr.InvalidReplicationFactor)
	})

	t.Run("request errors fail", func(t *testing.T) {
		boom := errors.New("no brokers")
		err := EnsureTopic(ctx, fakeAdmin{err: boom}, "events", 1, 1)
		assert.ErrorIs(t, err, boom)
	})
}
