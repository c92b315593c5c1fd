// Package resolution drives the platform's interactive resolution step for a
// download that ended in a resolvable error.
package resolution

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"esims/internal/euicc"
	dErrors "esims/pkg/domain-errors"
)

// Coordinator hands a resolvable-error payload back to the platform. The
// outcome arrives on the resolution-outcome callback action.
type Coordinator struct {
	platform euicc.Platform
	caps     euicc.Capabilities
	logger   *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// New creates a coordinator for a platform with the given probed capabilities.
func New(platform euicc.Platform, caps euicc.Capabilities, opts ...Option) (*Coordinator, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform is required")
	}
	c := &Coordinator{
		platform: platform,
		caps:     caps,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Supported reports whether the platform can run resolutions at all.
func (c *Coordinator) Supported() bool {
	return c.caps.EUICCReady() && c.caps.Resolution
}

// Start asks the platform to resolve. The payload is passed through unchanged.
func (c *Coordinator) Start(ctx context.Context, token euicc.Token, payload []byte) error {
	if !c.Supported() {
		return dErrors.New(dErrors.CodeResolutionUnsupported, "platform cannot resolve this error")
	}
	if err := c.platform.StartResolution(ctx, payload, token); err != nil {
		return dErrors.Wrap(err, dErrors.CodePlatformUnavailable, "failed to start resolution")
	}
	c.logger.DebugContext(ctx, "resolution started", "token", token.String(), "payload_bytes", len(payload))
	return nil
}

// Granted reports whether a resolution result permits a retry.
func Granted(result euicc.Result) bool {
	return result.ResultCode == euicc.ResultOK
}
