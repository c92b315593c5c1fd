package models

import (
	"fmt"
	"strings"
	"time"

	"esims/internal/euicc"
	dErrors "esims/pkg/domain-errors"
)

// MaxResolutionAttempts bounds how many times a request may be retried after a
// granted resolution.
const MaxResolutionAttempts = 1

// State is a request's position in the provisioning state machine.
type State string

const (
	StateRequested          State = "requested"
	StateAwaitingCallback   State = "awaiting_callback"
	StateAwaitingResolution State = "awaiting_resolution"
	StateCompleted          State = "completed"
)

// IsValid checks if the state is one of the supported enum values.
func (s State) IsValid() bool {
	switch s {
	case StateRequested, StateAwaitingCallback, StateAwaitingResolution, StateCompleted:
		return true
	}
	return false
}

// IsWaiting reports whether the request is parked on a platform callback.
func (s State) IsWaiting() bool {
	return s == StateAwaitingCallback || s == StateAwaitingResolution
}

// Outcome qualifies a completed request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFatal   Outcome = "fatal"
)

// Operation names the kind of platform request an event belongs to.
type Operation string

const (
	OperationDownload Operation = "download"
	OperationSwitch   Operation = "switch"
)

// Request is one download attempt tracked from submission to completion.
type Request struct {
	ID             string       `json:"request_id"`
	ActivationCode string       `json:"activation_code"`
	State          State        `json:"state"`
	Outcome        Outcome      `json:"outcome,omitempty"`
	ErrorKind      dErrors.Code `json:"error_kind,omitempty"`
	Attempt        int          `json:"attempt"`
	SubmittedAt    time.Time    `json:"submitted_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	// Payload is the opaque body of the last resolvable-error callback.
	Payload []byte `json:"-"`
	// generation changes on every transition; armed timers compare it.
	generation uint64
}

// NewRequest creates a request in StateRequested.
func NewRequest(id, activationCode string, now time.Time) *Request {
	return &Request{
		ID:             id,
		ActivationCode: activationCode,
		State:          StateRequested,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
}

// Token returns the correlation token for the current attempt.
func (r *Request) Token() euicc.Token {
	return euicc.Token{RequestID: r.ID, Attempt: r.Attempt}
}

// Generation identifies the current transition.
func (r *Request) Generation() uint64 {
	return r.generation
}

// IsTerminal reports whether the request has completed.
func (r *Request) IsTerminal() bool {
	return r.State == StateCompleted
}

// CanRetry reports whether a granted resolution may re-issue the download.
func (r *Request) CanRetry() bool {
	return r.Attempt < MaxResolutionAttempts
}

func (r *Request) moveTo(state State, now time.Time) {
	r.State = state
	r.UpdatedAt = now
	r.generation++
}

// AwaitCallback marks the download as handed to the platform.
func (r *Request) AwaitCallback(now time.Time) error {
	if r.State != StateRequested {
		return fmt.Errorf("cannot await callback from %s", r.State)
	}
	r.moveTo(StateAwaitingCallback, now)
	return nil
}

// AwaitResolution parks the request on the resolution flow.
func (r *Request) AwaitResolution(payload []byte, now time.Time) error {
	if r.State != StateAwaitingCallback {
		return fmt.Errorf("cannot await resolution from %s", r.State)
	}
	r.Payload = payload
	r.moveTo(StateAwaitingResolution, now)
	return nil
}

// Retry re-enters StateRequested for the single permitted retry.
func (r *Request) Retry(now time.Time) error {
	if r.State != StateAwaitingResolution {
		return fmt.Errorf("cannot retry from %s", r.State)
	}
	if !r.CanRetry() {
		return fmt.Errorf("resolution attempts exhausted")
	}
	r.Attempt++
	r.Payload = nil
	r.moveTo(StateRequested, now)
	return nil
}

// Complete moves the request to its terminal state. kind is empty on success.
func (r *Request) Complete(outcome Outcome, kind dErrors.Code, now time.Time) {
	r.Outcome = outcome
	r.ErrorKind = kind
	r.Payload = nil
	r.moveTo(StateCompleted, now)
}

// ValidateActivationCode checks the LPA:<version>$<host>$<matchingId> form.
// The fields are not interpreted beyond being present.
func ValidateActivationCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return dErrors.New(dErrors.CodeMalformedActivationCode, "activation code is required")
	}
	body, ok := strings.CutPrefix(code, "LPA:")
	if !ok {
		return dErrors.New(dErrors.CodeMalformedActivationCode, "activation code must start with LPA:")
	}
	fields := strings.Split(body, "$")
	if len(fields) != 3 {
		return dErrors.New(dErrors.CodeMalformedActivationCode, "activation code must have three $-separated fields")
	}
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return dErrors.New(dErrors.CodeMalformedActivationCode, "activation code fields must not be empty")
		}
	}
	return nil
}
