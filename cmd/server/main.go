package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"esims/internal/activation"
	"esims/internal/events"
	"esims/internal/events/feed"
	"esims/internal/platform/config"
	"esims/internal/platform/httpserver"
	"esims/internal/platform/logger"
	"esims/internal/platform/metrics"
	"esims/internal/profile"
	provisioningMetrics "esims/internal/provisioning/metrics"
	"esims/internal/provisioning/service"
	"esims/internal/switching"
	httptransport "esims/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main wires the platform backend, the provisioning and switching state
// machines and the HTTP API. Business logic lives in internal packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("esims stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := metrics.New(cfg.Platform.Kind)

	backend, err := newBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.close()

	caps, err := backend.platform.Probe(ctx)
	if err != nil {
		return fmt.Errorf("probe platform: %w", err)
	}
	log.Info("platform probed",
		"platform", cfg.Platform.Kind,
		"euicc", caps.EUICC,
		"enabled", caps.Enabled,
		"subscriptions", caps.Subscriptions,
		"resolution", caps.Resolution,
	)

	eventFeed := feed.NewRingBuffer(cfg.Events.FeedCapacity)
	sinks := events.Multi{eventFeed, events.LogSink{Logger: log}}
	publisher, closePublisher, err := newEventPublisher(ctx, cfg.Kafka, reg, log)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		closePublisher(flushCtx)
	}()
	if publisher != nil {
		sinks = append(sinks, publisher)
	}

	orchestrator, err := service.New(ctx, backend.platform, caps, backend.channel,
		service.WithLogger(log),
		service.WithEventSink(sinks),
		service.WithMetrics(provisioningMetrics.New(reg.Registry)),
		service.WithCallbackTimeout(cfg.Provisioning.CallbackTimeout),
		service.WithSwitchAfterDownload(cfg.Provisioning.SwitchAfterDownload),
	)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}
	defer orchestrator.Close()

	switcher, err := switching.New(ctx, backend.platform, caps, backend.channel,
		switching.WithLogger(log),
		switching.WithEventSink(sinks),
		switching.WithMetrics(switching.NewMetrics(reg.Registry)),
		switching.WithCallbackTimeout(cfg.Provisioning.CallbackTimeout),
	)
	if err != nil {
		return fmt.Errorf("create switching controller: %w", err)
	}
	defer switcher.Close()

	registry, err := profile.New(backend.platform, caps, profile.WithLogger(log))
	if err != nil {
		return fmt.Errorf("create profile registry: %w", err)
	}

	codes, err := activation.NewStatic(cfg.Provisioning.ActivationCode)
	if err != nil {
		return fmt.Errorf("activation code: %w", err)
	}

	handler := httptransport.New(httptransport.Deps{
		Provisioner: orchestrator,
		Profiles:    registry,
		Switcher:    switcher,
		Feed:        eventFeed,
		Codes:       codes,
	}, log)
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(handler, reg.Handler()), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting esims", "addr", cfg.Server.Addr, "platform", cfg.Platform.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
