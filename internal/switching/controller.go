// Package switching activates and deactivates embedded profiles.
package switching

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"esims/internal/callback"
	"esims/internal/euicc"
	"esims/internal/events"
	"esims/internal/profile"
	"esims/internal/provisioning/models"
	"esims/internal/provisioning/pending"
	dErrors "esims/pkg/domain-errors"
	"esims/pkg/platform/sentinel"
)

// DefaultCallbackTimeout bounds the wait for a switch outcome.
const DefaultCallbackTimeout = 5 * time.Minute

// Request is one in-flight switch.
type Request struct {
	ID             string         `json:"request_id"`
	SubscriptionID int            `json:"subscription_id"`
	State          models.State   `json:"state"`
	Outcome        models.Outcome `json:"outcome,omitempty"`
	ErrorKind      dErrors.Code   `json:"error_kind,omitempty"`
	RequestedAt    time.Time      `json:"requested_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	timer *time.Timer
}

func (r *Request) token() euicc.Token {
	return euicc.Token{RequestID: r.ID}
}

// Controller asks the platform to change the active embedded profile and
// reports the asynchronous outcome as events. One switch runs at a time.
type Controller struct {
	platform euicc.Platform
	caps     euicc.Capabilities
	sink     events.Sink
	metrics  *Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
	timeout  time.Duration
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	pending *pending.Registry[*Request]
	sub     callback.Subscription
	closed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithEventSink sets where switch events go.
func WithEventSink(sink events.Sink) Option {
	return func(c *Controller) {
		c.sink = sink
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithCallbackTimeout overrides DefaultCallbackTimeout.
func WithCallbackTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIDGenerator overrides the UUID request id generator.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		c.newID = gen
	}
}

// New creates a controller subscribed to the switch-outcome action.
func New(ctx context.Context, platform euicc.Platform, caps euicc.Capabilities, channel callback.Channel, opts ...Option) (*Controller, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform is required")
	}
	if channel == nil {
		return nil, fmt.Errorf("callback channel is required")
	}
	c := &Controller{
		platform: platform,
		caps:     caps,
		sink:     events.Multi{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer("esims/switching"),
		timeout:  DefaultCallbackTimeout,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
		pending:  pending.New[*Request](),
	}
	for _, opt := range opts {
		opt(c)
	}
	sub, err := channel.Subscribe(ctx, callback.ActionSwitch, c.handleOutcome)
	if err != nil {
		return nil, fmt.Errorf("subscribe switch outcomes: %w", err)
	}
	c.sub = sub
	return c, nil
}

// Activate makes p the active embedded profile. The previously active one is
// deactivated by the platform.
func (c *Controller) Activate(ctx context.Context, p profile.Profile) (string, error) {
	if !p.Switchable() {
		return "", dErrors.New(dErrors.CodeInvalidProfile, "profile is not an embedded subscription")
	}
	return c.switchTo(ctx, p.SubscriptionID)
}

// Deactivate leaves no embedded profile active.
func (c *Controller) Deactivate(ctx context.Context) (string, error) {
	return c.switchTo(ctx, euicc.NoSubscription)
}

// Get returns a snapshot of an in-flight switch.
func (c *Controller) Get(requestID string) (Request, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.pending.Get(requestID)
	if err != nil {
		return Request{}, dErrors.Wrap(err, dErrors.CodeNotFound, "switch request not found")
	}
	snapshot := *r
	snapshot.timer = nil
	return snapshot, nil
}

// Close unsubscribes and stops every armed timer. A switch still in flight
// completes as Fatal(Timeout).
func (c *Controller) Close() error {
	ctx := context.Background()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	for _, r := range c.pending.Drain() {
		c.logger.WarnContext(ctx, "abandoning switch at shutdown", "request_id", r.ID)
		c.complete(ctx, r, models.OutcomeFatal, dErrors.CodeTimeout, nil)
	}
	c.closed = true
	sub := c.sub
	c.mu.Unlock()
	return sub.Close()
}

func (c *Controller) switchTo(ctx context.Context, subscriptionID int) (string, error) {
	ctx, span := c.tracer.Start(ctx, "switching.Switch",
		trace.WithAttributes(attribute.Int("subscription_id", subscriptionID)))
	defer span.End()

	if !c.caps.EUICCReady() {
		return "", dErrors.New(dErrors.CodePlatformUnavailable, "eUICC service is not available")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", dErrors.Wrap(sentinel.ErrClosed, dErrors.CodePlatformUnavailable, "switching is shutting down")
	}
	now := c.now()
	r := &Request{
		ID:             c.newID(),
		SubscriptionID: subscriptionID,
		State:          models.StateRequested,
		RequestedAt:    now,
		UpdatedAt:      now,
	}
	if err := c.pending.InsertExclusive(r.ID, r); err != nil {
		c.mu.Unlock()
		return "", dErrors.Wrap(err, dErrors.CodeOperationInProgress, "another switch is in progress")
	}
	c.emit(ctx, r, nil)
	c.arm(r)
	// Waiting is visible through Get only; a switch emits Requested and one
	// terminal event.
	r.State = models.StateAwaitingCallback
	token := r.token()
	c.mu.Unlock()

	span.SetAttributes(attribute.String("request_id", r.ID))
	if err := c.platform.SwitchToSubscription(ctx, subscriptionID, token); err != nil {
		c.mu.Lock()
		if pendingReq, getErr := c.pending.Get(r.ID); getErr == nil && pendingReq.State == models.StateAwaitingCallback {
			c.complete(ctx, pendingReq, models.OutcomeFatal, dErrors.CodePlatformUnavailable, nil)
		}
		c.mu.Unlock()
		span.RecordError(err)
		return "", dErrors.Wrap(err, dErrors.CodePlatformUnavailable, "platform rejected the switch")
	}
	return r.ID, nil
}

func (c *Controller) handleOutcome(ctx context.Context, msg callback.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	var (
		r   *Request
		err error
	)
	if msg.Token.IsZero() {
		_, r, err = c.pending.Only()
	} else {
		r, err = c.pending.Get(msg.Token.RequestID)
	}
	if err != nil {
		c.metrics.incDiscarded()
		c.logger.DebugContext(ctx, "discarding switch callback", "token", msg.Token.String())
		return
	}

	result := msg.Result
	if result.ResultCode == euicc.ResultOK {
		c.complete(ctx, r, models.OutcomeSuccess, "", &result)
		return
	}
	c.complete(ctx, r, models.OutcomeFatal, dErrors.CodePlatformError, &result)
}

// complete finalises and purges a switch. Caller holds mu.
func (c *Controller) complete(ctx context.Context, r *Request, outcome models.Outcome, kind dErrors.Code, result *euicc.Result) {
	stopTimer(r)
	r.State = models.StateCompleted
	r.Outcome = outcome
	r.ErrorKind = kind
	r.UpdatedAt = c.now()
	_, _ = c.pending.Remove(r.ID)
	c.emit(ctx, r, result)
	c.metrics.incOutcome(outcome)
}

// arm starts the callback deadline. Caller holds mu.
func (c *Controller) arm(r *Request) {
	id := r.ID
	r.timer = time.AfterFunc(c.timeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		pendingReq, err := c.pending.Get(id)
		if err != nil {
			return
		}
		c.logger.Warn("switch callback timed out", "request_id", id, "timeout", c.timeout.String())
		c.complete(context.Background(), pendingReq, models.OutcomeFatal, dErrors.CodeTimeout, nil)
	})
}

// emit publishes the switch's current state. Caller holds mu.
func (c *Controller) emit(ctx context.Context, r *Request, result *euicc.Result) {
	e := events.Event{
		RequestID: r.ID,
		Operation: models.OperationSwitch,
		State:     r.State,
		Outcome:   r.Outcome,
		ErrorKind: r.ErrorKind,
		Result:    result,
		Timestamp: r.UpdatedAt,
	}
	c.logger.InfoContext(ctx, "switch transition",
		"request_id", r.ID,
		"subscription_id", r.SubscriptionID,
		"state", string(r.State),
	)
	if err := c.sink.Emit(ctx, e); err != nil {
		c.logger.WarnContext(ctx, "event sink failed", "request_id", r.ID, "error", err)
	}
}

func stopTimer(r *Request) {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Metrics holds Prometheus metrics for profile switching.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Discarded prometheus.Counter
}

// NewMetrics registers the switching metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "esims_switch_requests_total",
			Help: "Total completed switch requests by outcome",
		}, []string{"outcome"}),
		Discarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "esims_switch_callbacks_discarded_total",
			Help: "Switch callbacks ignored because no in-flight switch matched",
		}),
	}
}

func (m *Metrics) incOutcome(outcome models.Outcome) {
	if m != nil {
		m.Requests.WithLabelValues(string(outcome)).Inc()
	}
}

func (m *Metrics) incDiscarded() {
	if m != nil {
		m.Discarded.Inc()
	}
}
