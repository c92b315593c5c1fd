// Package callback carries asynchronous platform outcomes back to the services
// that issued the requests. Messages are addressed by action; each subscriber
// receives the messages of one action in delivery order.
package callback

import (
	"context"

	"esims/internal/euicc"
)

// Action identifies a class of callback message.
type Action string

const (
	ActionDownload   Action = "download-outcome"
	ActionResolution Action = "resolution-outcome"
	ActionSwitch     Action = "switch-outcome"
)

// IsValid reports whether the action is one the services subscribe to.
func (a Action) IsValid() bool {
	switch a {
	case ActionDownload, ActionResolution, ActionSwitch:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// Message is one platform outcome. Payload is the platform's opaque callback
// body; it must be handed back unchanged when starting a resolution.
type Message struct {
	Action  Action       `json:"action"`
	Token   euicc.Token  `json:"token"`
	Result  euicc.Result `json:"result"`
	Payload []byte       `json:"payload,omitempty"`
}

// Handler consumes messages for one action. Handlers run on the channel's
// delivery goroutine and should not block for long.
type Handler func(ctx context.Context, msg Message)

// Subscription is a live delivery registration.
type Subscription interface {
	Close() error
}

// Publisher delivers a message to the subscribers of its action.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Channel is an addressable message delivery mechanism keyed by action.
type Channel interface {
	Publisher
	Subscribe(ctx context.Context, action Action, handler Handler) (Subscription, error)
}
