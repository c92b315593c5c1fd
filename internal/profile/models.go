package profile

import (
	"fmt"
	"strings"

	"esims/internal/euicc"
)

// NoSubscription is the switch sentinel meaning "no embedded profile active".
const NoSubscription = euicc.NoSubscription

// NetworkIdentity is the MCC/MNC pair of a subscription.
type NetworkIdentity struct {
	MCC     string `json:"mcc"`
	MNC     string `json:"mnc"`
	Numeric string `json:"numeric"`
}

// Profile is one subscription as reported by the platform at query time.
type Profile struct {
	SubscriptionID int              `json:"subscription_id"`
	Label          string           `json:"label"`
	DisplayName    string           `json:"display_name"`
	Network        *NetworkIdentity `json:"network,omitempty"`
	Embedded       bool             `json:"embedded"`
	Index          int              `json:"index"`
}

// Switchable reports whether the profile may be passed to an activation.
func (p Profile) Switchable() bool {
	return p.Embedded && p.SubscriptionID >= 0
}

// String renders the diagnostic line shown for a listing entry.
func (p Profile) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d subscription=%d label=%q", p.Index, p.SubscriptionID, p.Label)
	if p.Network != nil {
		fmt.Fprintf(&b, " mcc=%s mnc=%s numeric=%s", p.Network.MCC, p.Network.MNC, p.Network.Numeric)
	}
	if p.Embedded {
		b.WriteString(" embedded")
	}
	return b.String()
}

// FromSubscription converts a platform record at position index.
func FromSubscription(index int, sub euicc.Subscription) Profile {
	p := Profile{
		SubscriptionID: sub.SubscriptionID,
		Label:          sub.CarrierName,
		DisplayName:    sub.DisplayName,
		Embedded:       sub.Embedded,
		Index:          index,
	}
	if sub.MCC != "" || sub.MNC != "" {
		p.Network = &NetworkIdentity{
			MCC:     sub.MCC,
			MNC:     sub.MNC,
			Numeric: sub.MCC + sub.MNC,
		}
	}
	return p
}

// ActiveEmbedded returns the embedded entries of an active-subscription
// listing, i.e. the currently active eSIM profiles.
func ActiveEmbedded(profiles []Profile) []Profile {
	var out []Profile
	for _, p := range profiles {
		if p.Embedded {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the profile with the given subscription id.
func Find(profiles []Profile, subscriptionID int) (Profile, bool) {
	for _, p := range profiles {
		if p.SubscriptionID == subscriptionID {
			return p, true
		}
	}
	return Profile{}, false
}
