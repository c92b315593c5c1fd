// Package simulator is an in-process eUICC used for local runs and tests.
// Outcomes can be scripted per operation; unscripted operations succeed.
package simulator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"esims/internal/callback"
	"esims/internal/euicc"
)

// Outcome is a scripted platform response.
type Outcome struct {
	Result  euicc.Result
	Payload []byte
	// Silent suppresses the callback entirely.
	Silent bool
	// Err makes the platform call itself fail synchronously.
	Err error
}

// OK is the successful outcome.
func OK() Outcome { return Outcome{Result: euicc.Result{ResultCode: euicc.ResultOK}} }

// Resolvable is a resolvable-error outcome carrying payload.
func Resolvable(payload []byte) Outcome {
	return Outcome{Result: euicc.Result{ResultCode: euicc.ResultResolvableError, ErrorCode: 10011}, Payload: payload}
}

// Fatal is a non-resolvable error outcome.
func Fatal(errorCode int) Outcome {
	return Outcome{Result: euicc.Result{ResultCode: euicc.ResultError, ErrorCode: errorCode}}
}

// Silent never calls back.
func Silent() Outcome { return Outcome{Silent: true} }

// Rejected fails the platform call synchronously.
func Rejected(err error) Outcome { return Outcome{Err: err} }

// DownloadCall records a DownloadSubscription invocation.
type DownloadCall struct {
	ActivationCode      string
	SwitchAfterDownload bool
	Token               euicc.Token
}

// Simulator implements euicc.Platform.
type Simulator struct {
	publisher callback.Publisher
	logger    *slog.Logger
	latency   time.Duration

	mu               sync.Mutex
	caps             euicc.Capabilities
	permissionDenied bool
	physical         []euicc.Subscription
	installed        []euicc.Subscription
	activeID         int
	nextID           int

	downloadScript   []Outcome
	resolutionScript []Outcome
	switchScript     []Outcome

	downloads   []DownloadCall
	resolutions [][]byte
	switches    []int
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) {
		s.logger = logger
	}
}

// WithCapabilities overrides the default all-present capabilities.
func WithCapabilities(caps euicc.Capabilities) Option {
	return func(s *Simulator) {
		s.caps = caps
	}
}

// WithPhysicalSIM adds an always-active non-embedded subscription.
func WithPhysicalSIM(id int, carrier string) Option {
	return func(s *Simulator) {
		s.physical = append(s.physical, euicc.Subscription{
			SubscriptionID: id,
			DisplayName:    fmt.Sprintf("SIM %d", len(s.physical)+1),
			CarrierName:    carrier,
		})
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
}

// WithInstalledProfile adds an installed embedded profile.
func WithInstalledProfile(sub euicc.Subscription, active bool) Option {
	return func(s *Simulator) {
		sub.Embedded = true
		s.installed = append(s.installed, sub)
		if active {
			s.activeID = sub.SubscriptionID
		}
		if sub.SubscriptionID >= s.nextID {
			s.nextID = sub.SubscriptionID + 1
		}
	}
}

// WithPermissionDenied makes listing fail as if the read permission is missing.
func WithPermissionDenied() Option {
	return func(s *Simulator) {
		s.permissionDenied = true
	}
}

// WithLatency delays every callback.
func WithLatency(d time.Duration) Option {
	return func(s *Simulator) {
		s.latency = d
	}
}

// New creates a simulator that delivers callbacks through publisher.
func New(publisher callback.Publisher, opts ...Option) *Simulator {
	s := &Simulator{
		publisher: publisher,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		caps:      euicc.Capabilities{EUICC: true, Enabled: true, Subscriptions: true, Resolution: true},
		activeID:  euicc.NoSubscription,
		nextID:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScriptDownloads queues outcomes for the next DownloadSubscription calls.
func (s *Simulator) ScriptDownloads(outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloadScript = append(s.downloadScript, outcomes...)
}

// ScriptResolutions queues outcomes for the next StartResolution calls.
func (s *Simulator) ScriptResolutions(outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolutionScript = append(s.resolutionScript, outcomes...)
}

// ScriptSwitches queues outcomes for the next SwitchToSubscription calls.
func (s *Simulator) ScriptSwitches(outcomes ...Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.switchScript = append(s.switchScript, outcomes...)
}

// Downloads returns every DownloadSubscription call so far.
func (s *Simulator) Downloads() []DownloadCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DownloadCall(nil), s.downloads...)
}

// Resolutions returns the payloads of every StartResolution call so far.
func (s *Simulator) Resolutions() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.resolutions...)
}

// Switches returns the target ids of every SwitchToSubscription call so far.
func (s *Simulator) Switches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.switches...)
}

// Probe implements euicc.Platform.
func (s *Simulator) Probe(context.Context) (euicc.Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps, nil
}

// DownloadSubscription implements euicc.Platform. A successful download
// installs a new embedded profile named after the activation code's host.
func (s *Simulator) DownloadSubscription(ctx context.Context, code string, switchAfterDownload bool, token euicc.Token) error {
	s.mu.Lock()
	s.downloads = append(s.downloads, DownloadCall{ActivationCode: code, SwitchAfterDownload: switchAfterDownload, Token: token})
	out := next(&s.downloadScript)
	if out.Err != nil {
		s.mu.Unlock()
		return out.Err
	}
	if out.Result.ResultCode == euicc.ResultOK && !out.Silent {
		sub := euicc.Subscription{
			SubscriptionID: s.nextID,
			DisplayName:    fmt.Sprintf("eSIM %d", s.nextID),
			CarrierName:    hostOf(code),
			Embedded:       true,
		}
		s.nextID++
		s.installed = append(s.installed, sub)
		if switchAfterDownload {
			s.activeID = sub.SubscriptionID
		}
	}
	s.mu.Unlock()

	s.respond(ctx, callback.ActionDownload, token, out)
	return nil
}

// ListActiveSubscriptions implements euicc.Platform. Physical SIMs are always
// active; at most one embedded profile is.
func (s *Simulator) ListActiveSubscriptions(context.Context) ([]euicc.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.permissionDenied {
		return nil, euicc.ErrPermissionDenied
	}
	var out []euicc.Subscription
	for _, sub := range s.installed {
		if sub.SubscriptionID == s.activeID {
			out = append(out, sub)
		}
	}
	return append(out, s.physical...), nil
}

// SwitchToSubscription implements euicc.Platform. NoSubscription deactivates
// the active embedded profile.
func (s *Simulator) SwitchToSubscription(ctx context.Context, subscriptionID int, token euicc.Token) error {
	s.mu.Lock()
	s.switches = append(s.switches, subscriptionID)
	out := next(&s.switchScript)
	if out.Err != nil {
		s.mu.Unlock()
		return out.Err
	}
	if out.Result.ResultCode == euicc.ResultOK && !out.Silent {
		switch {
		case subscriptionID == euicc.NoSubscription:
			s.activeID = euicc.NoSubscription
		case s.isInstalled(subscriptionID):
			s.activeID = subscriptionID
		default:
			out = Fatal(404)
		}
	}
	s.mu.Unlock()

	s.respond(ctx, callback.ActionSwitch, token, out)
	return nil
}

// StartResolution implements euicc.Platform.
func (s *Simulator) StartResolution(ctx context.Context, payload []byte, token euicc.Token) error {
	s.mu.Lock()
	s.resolutions = append(s.resolutions, payload)
	out := next(&s.resolutionScript)
	s.mu.Unlock()
	if out.Err != nil {
		return out.Err
	}
	s.respond(ctx, callback.ActionResolution, token, out)
	return nil
}

// Deliver publishes an arbitrary callback, e.g. to replay a duplicate.
func (s *Simulator) Deliver(ctx context.Context, msg callback.Message) error {
	return s.publisher.Publish(ctx, msg)
}

func (s *Simulator) isInstalled(id int) bool {
	for _, sub := range s.installed {
		if sub.SubscriptionID == id {
			return true
		}
	}
	return false
}

func (s *Simulator) respond(ctx context.Context, action callback.Action, token euicc.Token, out Outcome) {
	if out.Silent {
		return
	}
	msg := callback.Message{Action: action, Token: token, Result: out.Result, Payload: out.Payload}
	ctx = context.WithoutCancel(ctx)
	publish := func() {
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "simulator callback not delivered", "action", action.String(), "error", err)
		}
	}
	if s.latency > 0 {
		time.AfterFunc(s.latency, publish)
		return
	}
	publish()
}

func next(script *[]Outcome) Outcome {
	if len(*script) == 0 {
		return OK()
	}
	out := (*script)[0]
	*script = (*script)[1:]
	return out
}

// hostOf extracts the SM-DP+ host from an LPA activation code.
func hostOf(code string) string {
	fields := strings.Split(strings.TrimPrefix(code, "LPA:"), "$")
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
