// Package events carries state-transition notifications for provisioning and
// switch requests to their observers.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"esims/internal/euicc"
	"esims/internal/provisioning/models"
	dErrors "esims/pkg/domain-errors"
)

// Event is emitted once per request state transition.
type Event struct {
	Seq       uint64           `json:"seq"`
	RequestID string           `json:"request_id"`
	Operation models.Operation `json:"operation"`
	State     models.State     `json:"state"`
	Outcome   models.Outcome   `json:"outcome,omitempty"`
	ErrorKind dErrors.Code     `json:"error_kind,omitempty"`
	Attempt   int              `json:"attempt"`
	// Result holds the platform's diagnostic codes verbatim when the
	// transition was caused by a callback.
	Result    *euicc.Result `json:"result,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// IsTerminal reports whether the event closes its request.
func (e Event) IsTerminal() bool {
	return e.State == models.StateCompleted
}

// Summary renders a single diagnostic line.
func (e Event) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s state=%s attempt=%d", e.Operation, e.RequestID, e.State, e.Attempt)
	if e.Outcome != "" {
		fmt.Fprintf(&b, " outcome=%s", e.Outcome)
	}
	if e.ErrorKind != "" {
		fmt.Fprintf(&b, " error=%s", e.ErrorKind)
	}
	if e.Result != nil {
		b.WriteString(" ")
		b.WriteString(e.Result.String())
	}
	return b.String()
}

// Sink receives transition events. Implementations must not block for long:
// emitters call Emit while serialising transitions.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Emit(ctx context.Context, e Event) error { return f(ctx, e) }

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each event as a structured log record.
type LogSink struct {
	Logger *slog.Logger
}

func (l LogSink) Emit(ctx context.Context, e Event) error {
	if l.Logger == nil {
		return nil
	}
	attrs := []any{
		"request_id", e.RequestID,
		"operation", string(e.Operation),
		"state", string(e.State),
		"attempt", e.Attempt,
	}
	if e.Outcome != "" {
		attrs = append(attrs, "outcome", string(e.Outcome))
	}
	if e.ErrorKind != "" {
		attrs = append(attrs, "error_kind", string(e.ErrorKind))
	}
	if e.Result != nil {
		attrs = append(attrs,
			"result_code", int(e.Result.ResultCode),
			"error_code", e.Result.ErrorCode,
			"operation_code", e.Result.OperationCode,
			"detailed_code", e.Result.DetailedCode,
			"subject_code", e.Result.SubjectCode,
			"reason_code", e.Result.ReasonCode,
		)
	}
	l.Logger.InfoContext(ctx, "request transition", attrs...)
	return nil
}

// Recorder keeps every emitted event in memory. Used by tests and by
// in-process observers that need the full sequence of a request.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{})}
}

func (r *Recorder) Emit(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ForRequest returns the recorded events for one request id.
func (r *Recorder) ForRequest(id string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.RequestID == id {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor blocks until match returns true for some recorded event or ctx ends.
func (r *Recorder) WaitFor(ctx context.Context, match func(Event) bool) (Event, error) {
	for {
		r.mu.Lock()
		for _, e := range r.events {
			if match(e) {
				r.mu.Unlock()
				return e, nil
			}
		}
		ch := r.notify
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-ch:
		}
	}
}
