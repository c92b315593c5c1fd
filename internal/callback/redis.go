package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every Redis key and channel used by the service.
const DefaultKeyPrefix = "esims"

// RedisChannel is a Channel backed by Redis pub/sub, for platforms whose
// callbacks are produced by another process (the device-side agent). Each
// action maps to the pub/sub channel "<prefix>:callback:<action>".
type RedisChannel struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// RedisOption configures a RedisChannel.
type RedisOption func(*RedisChannel)

// WithRedisLogger sets the logger used for undecodable messages.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(c *RedisChannel) {
		c.logger = logger
	}
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisChannel) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// NewRedisChannel wraps a connected Redis client.
func NewRedisChannel(client redis.UniversalClient, opts ...RedisOption) (*RedisChannel, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	c := &RedisChannel{
		client: client,
		prefix: DefaultKeyPrefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ChannelName returns the pub/sub channel used for action.
func (c *RedisChannel) ChannelName(action Action) string {
	return c.prefix + ":callback:" + string(action)
}

// Publish sends msg as JSON on its action's channel.
func (c *RedisChannel) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode callback message: %w", err)
	}
	if err := c.client.Publish(ctx, c.ChannelName(msg.Action), body).Err(); err != nil {
		return fmt.Errorf("publish callback message: %w", err)
	}
	return nil
}

// Subscribe opens a dedicated pub/sub connection for action and returns once
// Redis has confirmed the subscription.
func (c *RedisChannel) Subscribe(ctx context.Context, action Action, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	ps := c.client.Subscribe(ctx, c.ChannelName(action))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", action, err)
	}

	sub := &redisSubscription{
		pubsub:  ps,
		stopped: make(chan struct{}),
	}
	go c.deliver(action, ps.Channel(), handler, sub.stopped)
	return sub, nil
}

func (c *RedisChannel) deliver(action Action, in <-chan *redis.Message, handler Handler, stopped chan<- struct{}) {
	defer close(stopped)
	ctx := context.Background()
	for raw := range in {
		msg, err := decodeMessage(action, raw.Payload)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping callback message",
				"channel", raw.Channel,
				"error", err,
			)
			continue
		}
		handler(ctx, msg)
	}
}

// decodeMessage parses a payload received on action's channel. A missing
// action is taken from the channel; a different one is rejected.
func decodeMessage(action Action, payload string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, fmt.Errorf("decode callback message: %w", err)
	}
	switch msg.Action {
	case "":
		msg.Action = action
	case action:
	default:
		return Message{}, fmt.Errorf("message for %q received on %q channel", msg.Action, action)
	}
	return msg, nil
}

type redisSubscription struct {
	pubsub    *redis.PubSub
	stopped   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Close releases the pub/sub connection. The delivery goroutine exits once
// go-redis closes the message channel.
func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pubsub.Close()
	})
	return s.closeErr
}
