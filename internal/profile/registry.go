// Package profile reads the platform's subscription list and classifies
// embedded and physical entries.
package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"esims/internal/euicc"
	dErrors "esims/pkg/domain-errors"
)

// Registry produces fresh profile listings. It never caches: each List call
// queries the platform.
type Registry struct {
	platform euicc.Platform
	caps     euicc.Capabilities
	logger   *slog.Logger
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a registry over an already-probed platform.
func New(platform euicc.Platform, caps euicc.Capabilities, opts ...Option) (*Registry, error) {
	if platform == nil {
		return nil, errors.New("platform is required")
	}
	r := &Registry{
		platform: platform,
		caps:     caps,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// List returns one Profile per active platform subscription in platform order.
func (r *Registry) List(ctx context.Context) ([]Profile, error) {
	if !r.caps.EUICC || !r.caps.Subscriptions {
		return nil, dErrors.New(dErrors.CodePlatformUnavailable, "eSIM not supported on this device")
	}

	subs, err := r.platform.ListActiveSubscriptions(ctx)
	if err != nil {
		if errors.Is(err, euicc.ErrPermissionDenied) {
			return nil, dErrors.Wrap(err, dErrors.CodePermissionDenied, "cannot read subscriptions")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePlatformUnavailable, "failed to list subscriptions")
	}

	profiles := make([]Profile, 0, len(subs))
	for i, sub := range subs {
		profiles = append(profiles, FromSubscription(i, sub))
	}

	r.logger.DebugContext(ctx, "listed profiles",
		"count", len(profiles),
		"embedded", len(ActiveEmbedded(profiles)),
	)
	return profiles, nil
}
