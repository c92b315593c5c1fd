// Package kafka publishes transition events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"esims/internal/events"
)

// DefaultTopic receives provisioning and switch events.
const DefaultTopic = "esims.events"

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
}

// Publisher is an events.Sink that produces each event asynchronously,
// keyed by request id so a request's events stay ordered within a partition.
// Produce failures never reach the emitter; they feed a circuit breaker and
// events are dropped while it is open.
type Publisher struct {
	producer Producer
	topic    string
	breaker  *CircuitBreaker
	metrics  *Metrics
	logger   *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) Option {
	return func(p *Publisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithCircuitBreaker replaces the default breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(p *Publisher) {
		p.breaker = cb
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a publisher over producer.
func New(producer Producer, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    DefaultTopic,
		breaker:  NewCircuitBreaker(5, 30*time.Second),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit implements events.Sink.
func (p *Publisher) Emit(ctx context.Context, e events.Event) error {
	if !p.breaker.Allow() {
		p.metrics.incDropped("circuit_open")
		return nil
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.RequestID),
		Value: value,
	}
	// The record outlives the caller's request scope.
	p.producer.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.metrics.incDropped("produce_failed")
			if p.breaker.RecordFailure() {
				p.logger.Warn("event publisher circuit opened", "topic", p.topic, "error", err)
			}
			return
		}
		p.breaker.RecordSuccess()
		p.metrics.incPublished()
	})
	p.metrics.setCircuitState(p.breaker.IsOpen())
	return nil
}

// Close flushes buffered records.
func (p *Publisher) Close(ctx context.Context) error {
	return p.producer.Flush(ctx)
}

// TopicAdmin is the subset of *kadm.Client used to bootstrap the topic.
type TopicAdmin interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// EnsureTopic creates topic if it does not exist yet.
func EnsureTopic(ctx context.Context, admin TopicAdmin, topic string, partitions int32, replicationFactor int16) error {
	resps, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Metrics holds Prometheus metrics for the event publisher.
type Metrics struct {
	Published    prometheus.Counter
	Dropped      *prometheus.CounterVec
	CircuitState prometheus.Gauge
}

// NewMetrics registers the publisher metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "esims_events_kafka_published_total",
			Help: "Total number of events acknowledged by Kafka",
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esims_events_kafka_dropped_total",
			Help: "Total number of events not delivered to Kafka",
		}, []string{"reason"}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "esims_events_kafka_circuit_open",
			Help: "Current circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) incPublished() {
	if m == nil {
		return
	}
	m.Published.Inc()
}

func (m *Metrics) incDropped(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) setCircuitState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitState.Set(1)
	} else {
		m.CircuitState.Set(0)
	}
}
