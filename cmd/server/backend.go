package main

import (
	"context"
	"fmt"
	"log/slog"

	"esims/internal/callback"
	"esims/internal/euicc"
	"esims/internal/euicc/redisbridge"
	"esims/internal/euicc/simulator"
	"esims/internal/events/kafka"
	"esims/internal/platform/config"
	"esims/internal/platform/metrics"
	"esims/internal/platform/redis"
)

// backend pairs an eUICC platform with the channel its callbacks arrive on.
type backend struct {
	platform euicc.Platform
	channel  callback.Channel
	close    func()
}

func newBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	switch cfg.Platform.Kind {
	case config.PlatformRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("redis platform requires REDIS_URL")
		}
		channel, err := callback.NewRedisChannel(client.Client,
			callback.WithRedisLogger(log),
			callback.WithKeyPrefix(cfg.Redis.KeyPrefix),
		)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		bridge, err := redisbridge.New(client.Client,
			redisbridge.WithLogger(log),
			redisbridge.WithKeyPrefix(cfg.Redis.KeyPrefix),
		)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		log.Info("using redis platform bridge", "commands", bridge.CommandsKey())
		return &backend{
			platform: bridge,
			channel:  channel,
			close:    func() { _ = client.Close() },
		}, nil
	default:
		bus := callback.NewBus(callback.WithBusLogger(log))
		sim := simulator.New(bus,
			simulator.WithLogger(log),
			simulator.WithPhysicalSIM(1, "Physical SIM"),
		)
		log.Info("using in-process platform simulator")
		return &backend{
			platform: sim,
			channel:  bus,
			close:    func() { _ = bus.Close() },
		}, nil
	}
}

// newEventPublisher returns a nil publisher when no brokers are configured.
// The returned func flushes pending records and closes the client.
func newEventPublisher(ctx context.Context, cfg config.KafkaConfig, reg *metrics.Metrics, log *slog.Logger) (*kafka.Publisher, func(context.Context), error) {
	if len(cfg.Brokers) == 0 {
		return nil, func(context.Context) {}, nil
	}
	client, err := kafka.Connect(ctx, cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, fmt.Errorf("connect kafka: %w", err)
	}
	log.Info("publishing events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
	publisher := kafka.New(client,
		kafka.WithLogger(log),
		kafka.WithTopic(cfg.Topic),
		kafka.WithMetrics(kafka.NewMetrics(reg.Registry)),
	)
	shutdown := func(ctx context.Context) {
		if err := publisher.Close(ctx); err != nil {
			log.Warn("event publisher flush failed", "error", err)
		}
		client.Close()
	}
	return publisher, shutdown, nil
}
