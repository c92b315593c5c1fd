// Package euicc defines the port to the device's eUICC platform service.
//
// The platform is an external collaborator: it installs profiles, switches the
// active subscription and runs the interactive resolution activity. Every
// mutating call is fire-and-forget; its outcome is delivered later on the
// callback channel, tagged with the Token passed in.
package euicc

import (
	"context"
	"errors"
)

//go:generate mockgen -source=platform.go -destination=mocks/mock_platform.go -package=mocks

// NoSubscription is the platform sentinel for "no embedded profile selected".
const NoSubscription = -1

// ErrPermissionDenied is returned by ListActiveSubscriptions when the caller
// lacks the read-subscriptions permission.
var ErrPermissionDenied = errors.New("read subscriptions permission not granted")

// Platform is the capability set consumed from the eUICC service.
type Platform interface {
	// Probe reports which capabilities the device exposes.
	Probe(ctx context.Context) (Capabilities, error)

	// DownloadSubscription begins installing the profile named by the
	// activation code. The outcome arrives as a download-outcome message.
	DownloadSubscription(ctx context.Context, activationCode string, switchAfterDownload bool, token Token) error

	// ListActiveSubscriptions returns the platform's active subscriptions in
	// native order. Fails with ErrPermissionDenied when not permitted.
	ListActiveSubscriptions(ctx context.Context) ([]Subscription, error)

	// SwitchToSubscription activates the given subscription, or deactivates
	// the embedded profile when subscriptionID is NoSubscription.
	SwitchToSubscription(ctx context.Context, subscriptionID int, token Token) error

	// StartResolution launches the interactive resolution activity for a
	// previously reported resolvable error. payload is the opaque callback
	// payload of that error, passed through unchanged.
	StartResolution(ctx context.Context, payload []byte, token Token) error
}

// Capabilities is the result of a one-off capability probe.
type Capabilities struct {
	EUICC         bool `json:"euicc" yaml:"euicc"`
	Enabled       bool `json:"enabled" yaml:"enabled"`
	Subscriptions bool `json:"subscriptions" yaml:"subscriptions"`
	Resolution    bool `json:"resolution" yaml:"resolution"`
}

// EUICCReady reports whether the eUICC service is present and enabled.
func (c Capabilities) EUICCReady() bool {
	return c.EUICC && c.Enabled
}

// Subscription is one platform subscription record.
type Subscription struct {
	SubscriptionID int    `json:"subscription_id"`
	DisplayName    string `json:"display_name"`
	CarrierName    string `json:"carrier_name"`
	Embedded       bool   `json:"embedded"`
	MCC            string `json:"mcc,omitempty"`
	MNC            string `json:"mnc,omitempty"`
}
