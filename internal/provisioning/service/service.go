// Package service runs the download state machine: it hands activation codes
// to the eUICC platform, classifies the asynchronous outcomes, drives a single
// resolution and retry for resolvable errors, and emits one event per
// transition.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"esims/internal/callback"
	"esims/internal/euicc"
	"esims/internal/events"
	"esims/internal/provisioning/metrics"
	"esims/internal/provisioning/models"
	"esims/internal/provisioning/pending"
	"esims/internal/provisioning/resolution"
	dErrors "esims/pkg/domain-errors"
	"esims/pkg/platform/sentinel"
)

const (
	// DefaultCallbackTimeout bounds each wait for a platform callback.
	DefaultCallbackTimeout = 5 * time.Minute

	tracerName = "esims/provisioning"
)

// Resolver starts the platform's resolution step for a resolvable error.
type Resolver interface {
	Start(ctx context.Context, token euicc.Token, payload []byte) error
}

// Orchestrator owns every in-flight download. Transitions and event emission
// are serialised under mu; platform calls are made with mu released.
type Orchestrator struct {
	platform            euicc.Platform
	caps                euicc.Capabilities
	resolver            Resolver
	sink                events.Sink
	metrics             *metrics.Metrics
	logger              *slog.Logger
	tracer              trace.Tracer
	timeout             time.Duration
	switchAfterDownload bool
	now                 func() time.Time
	newID               func() string

	mu      sync.Mutex
	pending *pending.Registry[*tracked]
	subs    []callback.Subscription
	closed  bool
}

type tracked struct {
	req   *models.Request
	timer *time.Timer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithEventSink sets where transition events go.
func WithEventSink(sink events.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithResolver replaces the default resolution coordinator.
func WithResolver(r Resolver) Option {
	return func(o *Orchestrator) {
		o.resolver = r
	}
}

// WithCallbackTimeout overrides DefaultCallbackTimeout.
func WithCallbackTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSwitchAfterDownload controls whether the platform activates a profile
// as soon as it is installed. Defaults to true.
func WithSwitchAfterDownload(enabled bool) Option {
	return func(o *Orchestrator) {
		o.switchAfterDownload = enabled
	}
}

// WithClock overrides time.Now for transition timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides the UUID request id generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		o.newID = gen
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// New creates an orchestrator and subscribes it to the download and
// resolution callback actions. caps is the platform's capability probe taken
// once at startup.
func New(ctx context.Context, platform euicc.Platform, caps euicc.Capabilities, channel callback.Channel, opts ...Option) (*Orchestrator, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform is required")
	}
	if channel == nil {
		return nil, fmt.Errorf("callback channel is required")
	}

	o := &Orchestrator{
		platform:            platform,
		caps:                caps,
		sink:                events.Multi{},
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:              otel.Tracer(tracerName),
		timeout:             DefaultCallbackTimeout,
		switchAfterDownload: true,
		now:                 time.Now,
		newID:               func() string { return uuid.NewString() },
		pending:             pending.New[*tracked](),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		coordinator, err := resolution.New(platform, caps, resolution.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		o.resolver = coordinator
	}

	downloads, err := channel.Subscribe(ctx, callback.ActionDownload, o.handleDownloadOutcome)
	if err != nil {
		return nil, fmt.Errorf("subscribe download outcomes: %w", err)
	}
	resolutions, err := channel.Subscribe(ctx, callback.ActionResolution, o.handleResolutionOutcome)
	if err != nil {
		_ = downloads.Close()
		return nil, fmt.Errorf("subscribe resolution outcomes: %w", err)
	}
	o.subs = []callback.Subscription{downloads, resolutions}
	return o, nil
}

// Submit starts a download for activationCode and returns its request id
// without waiting for the platform's outcome.
func (o *Orchestrator) Submit(ctx context.Context, activationCode string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "provisioning.Submit")
	defer span.End()

	if !o.caps.EUICCReady() {
		err := dErrors.New(dErrors.CodePlatformUnavailable, "eUICC service is not available")
		recordSpanError(span, err)
		return "", err
	}
	if err := models.ValidateActivationCode(activationCode); err != nil {
		recordSpanError(span, err)
		return "", err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", dErrors.Wrap(sentinel.ErrClosed, dErrors.CodePlatformUnavailable, "provisioning is shutting down")
	}
	req := models.NewRequest(o.newID(), activationCode, o.now())
	t := &tracked{req: req}
	if err := o.pending.InsertExclusive(req.ID, t); err != nil {
		o.mu.Unlock()
		err = dErrors.Wrap(err, dErrors.CodeOperationInProgress, "another download is in progress")
		recordSpanError(span, err)
		return "", err
	}
	o.emit(ctx, req, nil)
	if err := o.awaitCallback(ctx, t); err != nil {
		o.mu.Unlock()
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to start download")
	}
	token := req.Token()
	generation := req.Generation()
	o.metrics.IncrementSubmissions()
	o.mu.Unlock()

	span.SetAttributes(attribute.String("request_id", req.ID))

	if err := o.download(ctx, activationCode, token, generation); err != nil {
		recordSpanError(span, err)
		return "", err
	}
	return req.ID, nil
}

// Get returns a snapshot of an in-flight request. Completed requests are
// purged and report not found.
func (o *Orchestrator) Get(requestID string) (models.Request, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, err := o.pending.Get(requestID)
	if err != nil {
		return models.Request{}, dErrors.Wrap(err, dErrors.CodeNotFound, "request not found")
	}
	return *t.req, nil
}

// InFlight returns the number of tracked requests.
func (o *Orchestrator) InFlight() int {
	return o.pending.Len()
}

// Close unsubscribes from the callback channel and stops every armed timer.
// Requests still in flight complete as Fatal(Timeout) so each one gets its
// terminal event.
func (o *Orchestrator) Close() error {
	ctx := context.Background()
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	for _, t := range o.pending.Drain() {
		o.logger.WarnContext(ctx, "abandoning download at shutdown",
			"request_id", t.req.ID,
			"state", string(t.req.State),
		)
		o.complete(ctx, t, models.OutcomeFatal, dErrors.CodeTimeout, nil)
	}
	o.closed = true
	subs := o.subs
	o.subs = nil
	o.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// download hands the current attempt to the platform. A synchronous rejection
// completes the request, unless a callback or timeout already moved it on.
func (o *Orchestrator) download(ctx context.Context, code string, token euicc.Token, generation uint64) error {
	err := o.platform.DownloadSubscription(ctx, code, o.switchAfterDownload, token)
	if err == nil {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.current(token.RequestID, generation); ok {
		o.complete(ctx, t, models.OutcomeFatal, dErrors.CodePlatformUnavailable, nil)
	}
	o.logger.WarnContext(ctx, "platform rejected download",
		"request_id", token.RequestID,
		"attempt", token.Attempt,
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodePlatformUnavailable, "platform rejected the download")
}

func (o *Orchestrator) handleDownloadOutcome(ctx context.Context, msg callback.Message) {
	ctx, span := o.tracer.Start(ctx, "provisioning.DownloadOutcome",
		trace.WithAttributes(attribute.Int("result_code", int(msg.Result.ResultCode))))
	defer span.End()

	o.mu.Lock()
	t, ok := o.match(ctx, msg, models.StateAwaitingCallback)
	if !ok {
		o.mu.Unlock()
		return
	}
	result := msg.Result

	switch result.ResultCode {
	case euicc.ResultOK:
		o.complete(ctx, t, models.OutcomeSuccess, "", &result)
		o.mu.Unlock()

	case euicc.ResultResolvableError:
		if !t.req.CanRetry() {
			o.complete(ctx, t, models.OutcomeFatal, dErrors.CodeResolutionDenied, &result)
			o.mu.Unlock()
			return
		}
		if err := t.req.AwaitResolution(msg.Payload, o.now()); err != nil {
			o.mu.Unlock()
			o.logger.ErrorContext(ctx, "invalid transition", "request_id", t.req.ID, "error", err)
			return
		}
		o.arm(t)
		o.emit(ctx, t.req, &result)
		token := t.req.Token()
		generation := t.req.Generation()
		payload := msg.Payload
		o.mu.Unlock()

		if err := o.resolver.Start(ctx, token, payload); err != nil {
			o.resolutionFailed(ctx, token, generation, err)
		}

	default:
		o.complete(ctx, t, models.OutcomeFatal, dErrors.CodePlatformError, &result)
		o.mu.Unlock()
	}
}

// resolutionFailed completes a request whose resolution could not start.
// Unsupported platforms are treated like a denial.
func (o *Orchestrator) resolutionFailed(ctx context.Context, token euicc.Token, generation uint64, err error) {
	kind := dErrors.CodeOf(err)
	if kind != dErrors.CodeResolutionUnsupported {
		kind = dErrors.CodePlatformUnavailable
	}
	o.logger.WarnContext(ctx, "resolution could not start",
		"request_id", token.RequestID,
		"error", err,
	)

	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.current(token.RequestID, generation); ok {
		o.complete(ctx, t, models.OutcomeFatal, kind, nil)
	}
}

func (o *Orchestrator) handleResolutionOutcome(ctx context.Context, msg callback.Message) {
	ctx, span := o.tracer.Start(ctx, "provisioning.ResolutionOutcome",
		trace.WithAttributes(attribute.Int("result_code", int(msg.Result.ResultCode))))
	defer span.End()

	o.mu.Lock()
	t, ok := o.match(ctx, msg, models.StateAwaitingResolution)
	if !ok {
		o.mu.Unlock()
		return
	}
	result := msg.Result
	granted := resolution.Granted(result)
	o.metrics.IncrementResolution(granted)

	if !granted || !t.req.CanRetry() {
		o.complete(ctx, t, models.OutcomeFatal, dErrors.CodeResolutionDenied, &result)
		o.mu.Unlock()
		return
	}

	if err := t.req.Retry(o.now()); err != nil {
		o.mu.Unlock()
		o.logger.ErrorContext(ctx, "invalid transition", "request_id", t.req.ID, "error", err)
		return
	}
	o.emit(ctx, t.req, &result)
	if err := o.awaitCallback(ctx, t); err != nil {
		o.mu.Unlock()
		o.logger.ErrorContext(ctx, "invalid transition", "request_id", t.req.ID, "error", err)
		return
	}
	code := t.req.ActivationCode
	token := t.req.Token()
	generation := t.req.Generation()
	o.mu.Unlock()

	_ = o.download(ctx, code, token, generation)
}

// match resolves a callback to the in-flight request it belongs to. Callbacks
// without a token match the single in-flight request. Unknown, stale and
// duplicate callbacks are discarded. Caller holds mu.
func (o *Orchestrator) match(ctx context.Context, msg callback.Message, want models.State) (*tracked, bool) {
	if o.closed {
		return nil, false
	}

	var (
		t   *tracked
		err error
	)
	if msg.Token.IsZero() {
		_, t, err = o.pending.Only()
	} else {
		t, err = o.pending.Get(msg.Token.RequestID)
	}

	reason := ""
	switch {
	case err != nil:
		reason = "unknown request"
	case !msg.Token.IsZero() && msg.Token.Attempt != t.req.Attempt:
		reason = "stale attempt"
	case t.req.State != want:
		reason = "unexpected state"
	}
	if reason != "" {
		o.metrics.IncrementDiscarded(msg.Action.String())
		o.logger.DebugContext(ctx, "discarding callback",
			"action", msg.Action.String(),
			"token", msg.Token.String(),
			"reason", reason,
		)
		return nil, false
	}
	return t, true
}

// current returns the tracked request if it has not transitioned since
// generation. Caller holds mu.
func (o *Orchestrator) current(id string, generation uint64) (*tracked, bool) {
	t, err := o.pending.Get(id)
	if err != nil || t.req.Generation() != generation {
		return nil, false
	}
	return t, true
}

// awaitCallback moves a Requested request to AwaitingCallback. Caller holds mu.
func (o *Orchestrator) awaitCallback(ctx context.Context, t *tracked) error {
	if err := t.req.AwaitCallback(o.now()); err != nil {
		return err
	}
	o.arm(t)
	o.emit(ctx, t.req, nil)
	return nil
}

// complete finalises and purges a request. Caller holds mu.
func (o *Orchestrator) complete(ctx context.Context, t *tracked, outcome models.Outcome, kind dErrors.Code, result *euicc.Result) {
	stopTimer(t)
	now := o.now()
	t.req.Complete(outcome, kind, now)
	_, _ = o.pending.Remove(t.req.ID)
	o.emit(ctx, t.req, result)
	o.metrics.IncrementCompletion(string(outcome), now.Sub(t.req.SubmittedAt))
}

// arm (re)starts the callback deadline for the current transition. Caller
// holds mu.
func (o *Orchestrator) arm(t *tracked) {
	stopTimer(t)
	id := t.req.ID
	generation := t.req.Generation()
	t.timer = time.AfterFunc(o.timeout, func() {
		o.expire(id, generation)
	})
}

func (o *Orchestrator) expire(id string, generation uint64) {
	ctx := context.Background()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	t, ok := o.current(id, generation)
	if !ok {
		return
	}
	o.logger.WarnContext(ctx, "platform callback timed out",
		"request_id", id,
		"state", string(t.req.State),
		"timeout", o.timeout.String(),
	)
	o.complete(ctx, t, models.OutcomeFatal, dErrors.CodeTimeout, nil)
}

// emit publishes the request's current state. Sink failures are logged and
// never affect the state machine. Caller holds mu.
func (o *Orchestrator) emit(ctx context.Context, req *models.Request, result *euicc.Result) {
	e := events.Event{
		RequestID: req.ID,
		Operation: models.OperationDownload,
		State:     req.State,
		Outcome:   req.Outcome,
		ErrorKind: req.ErrorKind,
		Attempt:   req.Attempt,
		Result:    result,
		Timestamp: req.UpdatedAt,
	}
	o.logger.InfoContext(ctx, "download transition",
		"request_id", req.ID,
		"state", string(req.State),
		"attempt", req.Attempt,
	)
	if err := o.sink.Emit(ctx, e); err != nil {
		o.logger.WarnContext(ctx, "event sink failed", "request_id", req.ID, "error", err)
	}
}

func stopTimer(t *tracked) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
