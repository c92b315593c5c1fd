// Package redisbridge implements the eUICC platform port against a
// device-side agent that shares a Redis instance with the service.
//
// Keys, all under a common prefix:
//
//	<prefix>:commands       list, JSON Command documents appended with RPUSH
//	<prefix>:capabilities   hash, euicc/enabled/subscriptions/resolution = "true"
//	<prefix>:subscriptions  string, JSON array of active subscriptions
//	<prefix>:permissions    hash, read_subscriptions = "granted"
//
// The agent reports outcomes on the callback channel (callback.RedisChannel).
package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"esims/internal/callback"
	"esims/internal/euicc"
	"esims/pkg/platform/sentinel"
)

// CommandType names an agent command.
type CommandType string

const (
	CommandDownload   CommandType = "download"
	CommandSwitch     CommandType = "switch"
	CommandResolution CommandType = "resolve"
)

const permissionGranted = "granted"

// Command is one request for the device-side agent.
type Command struct {
	Type                CommandType `json:"type"`
	Token               euicc.Token `json:"token"`
	ActivationCode      string      `json:"activation_code,omitempty"`
	SwitchAfterDownload bool        `json:"switch_after_download,omitempty"`
	SubscriptionID      int         `json:"subscription_id"`
	Payload             []byte      `json:"payload,omitempty"`
	IssuedAt            time.Time   `json:"issued_at"`
}

// Bridge implements euicc.Platform.
type Bridge struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// WithKeyPrefix overrides callback.DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(b *Bridge) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// New creates a bridge over a connected client.
func New(client redis.UniversalClient, opts ...Option) (*Bridge, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	b := &Bridge{
		client: client,
		prefix: callback.DefaultKeyPrefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// CommandsKey is the list the agent consumes.
func (b *Bridge) CommandsKey() string { return b.prefix + ":commands" }

// CapabilitiesKey is the hash the agent publishes its capabilities to.
func (b *Bridge) CapabilitiesKey() string { return b.prefix + ":capabilities" }

// SubscriptionsKey holds the agent's active subscription snapshot.
func (b *Bridge) SubscriptionsKey() string { return b.prefix + ":subscriptions" }

// PermissionsKey is the hash of runtime permissions granted to the agent.
func (b *Bridge) PermissionsKey() string { return b.prefix + ":permissions" }

// Probe implements euicc.Platform. A missing capabilities hash means no
// eUICC is reachable.
func (b *Bridge) Probe(ctx context.Context) (euicc.Capabilities, error) {
	fields, err := b.client.HGetAll(ctx, b.CapabilitiesKey()).Result()
	if err != nil {
		return euicc.Capabilities{}, unavailable("probe capabilities", err)
	}
	return euicc.Capabilities{
		EUICC:         flag(fields["euicc"]),
		Enabled:       flag(fields["enabled"]),
		Subscriptions: flag(fields["subscriptions"]),
		Resolution:    flag(fields["resolution"]),
	}, nil
}

// DownloadSubscription implements euicc.Platform.
func (b *Bridge) DownloadSubscription(ctx context.Context, code string, switchAfterDownload bool, token euicc.Token) error {
	return b.send(ctx, Command{
		Type:                CommandDownload,
		Token:               token,
		ActivationCode:      code,
		SwitchAfterDownload: switchAfterDownload,
		SubscriptionID:      euicc.NoSubscription,
	})
}

// SwitchToSubscription implements euicc.Platform.
func (b *Bridge) SwitchToSubscription(ctx context.Context, subscriptionID int, token euicc.Token) error {
	return b.send(ctx, Command{
		Type:           CommandSwitch,
		Token:          token,
		SubscriptionID: subscriptionID,
	})
}

// StartResolution implements euicc.Platform.
func (b *Bridge) StartResolution(ctx context.Context, payload []byte, token euicc.Token) error {
	return b.send(ctx, Command{
		Type:           CommandResolution,
		Token:          token,
		SubscriptionID: euicc.NoSubscription,
		Payload:        payload,
	})
}

// ListActiveSubscriptions implements euicc.Platform.
func (b *Bridge) ListActiveSubscriptions(ctx context.Context) ([]euicc.Subscription, error) {
	perm, err := b.client.HGet(ctx, b.PermissionsKey(), "read_subscriptions").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("read permissions", err)
	}
	if perm != permissionGranted {
		return nil, euicc.ErrPermissionDenied
	}

	raw, err := b.client.Get(ctx, b.SubscriptionsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("read subscriptions", err)
	}
	var subs []euicc.Subscription
	if err := json.Unmarshal(raw, &subs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	return subs, nil
}

func (b *Bridge) send(ctx context.Context, cmd Command) error {
	cmd.IssuedAt = b.now()
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	if err := b.client.RPush(ctx, b.CommandsKey(), body).Err(); err != nil {
		return unavailable("enqueue command", err)
	}
	b.logger.DebugContext(ctx, "command sent",
		"type", string(cmd.Type),
		"token", cmd.Token.String(),
	)
	return nil
}

func flag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}
