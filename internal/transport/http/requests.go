package httptransport

import (
	"strings"

	"esims/internal/events"
	"esims/internal/profile"
)

// SubmitDownloadRequest is the body of POST /v1/downloads.
type SubmitDownloadRequest struct {
	// ActivationCode is optional; when absent the provider's code is used.
	ActivationCode *string `json:"activation_code,omitempty"`
}

// Normalize trims the activation code.
func (r *SubmitDownloadRequest) Normalize() {
	if r.ActivationCode != nil {
		trimmed := strings.TrimSpace(*r.ActivationCode)
		r.ActivationCode = &trimmed
	}
}

// AcceptedResponse acknowledges an asynchronous request.
type AcceptedResponse struct {
	RequestID string `json:"request_id"`
}

// ProfilesResponse lists the active subscriptions.
type ProfilesResponse struct {
	Profiles []profile.Profile `json:"profiles"`
}

// EventsResponse is a page of the event feed.
type EventsResponse struct {
	Events  []events.Event `json:"events"`
	LastSeq uint64         `json:"last_seq"`
}

// ActivationCodeResponse carries the provider's activation code.
type ActivationCodeResponse struct {
	ActivationCode string `json:"activation_code"`
}
