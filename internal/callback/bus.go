package callback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"esims/pkg/platform/sentinel"
)

// Bus is an in-process Channel. Publish never blocks on a slow handler: each
// subscriber owns an unbounded queue drained by its own goroutine, so order is
// preserved per subscriber.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Action][]*busSubscriber
	closed bool
	logger *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBusLogger sets the logger used for dropped messages.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an empty in-process bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[Action][]*busSubscriber),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for action until the subscription is closed.
func (b *Bus) Subscribe(_ context.Context, action Action, handler Handler) (Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, sentinel.ErrClosed
	}

	sub := &busSubscriber{
		bus:     b,
		action:  action,
		handler: handler,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	b.subs[action] = append(b.subs[action], sub)
	go sub.run()
	return sub, nil
}

// Publish enqueues msg for every subscriber of msg.Action. A message with no
// subscribers is dropped, like a broadcast nobody listens for.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return sentinel.ErrClosed
	}

	subs := b.subs[msg.Action]
	if len(subs) == 0 {
		b.logger.DebugContext(ctx, "no subscribers for callback, dropping",
			"action", msg.Action,
			"token", msg.Token.String(),
		)
		return nil
	}
	for _, sub := range subs {
		sub.enqueue(msg)
	}
	return nil
}

// Close stops every subscription. Further Publish and Subscribe calls fail.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*busSubscriber
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[Action][]*busSubscriber)
	b.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	return nil
}

// Subscribers returns the number of live subscriptions for action.
func (b *Bus) Subscribers(action Action) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[action])
}

func (b *Bus) remove(target *busSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[target.action]
	for i, sub := range subs {
		if sub == target {
			b.subs[target.action] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

type busSubscriber struct {
	bus     *Bus
	action  Action
	handler Handler

	mu    sync.Mutex
	queue []Message

	notify   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (s *busSubscriber) enqueue(msg Message) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *busSubscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}
		for {
			msg, ok := s.next()
			if !ok {
				break
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(context.Background(), msg)
		}
	}
}

func (s *busSubscriber) next() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Message{}, false
	}
	msg := s.queue[0]
	s.queue = s.queue[1:]
	return msg, true
}

func (s *busSubscriber) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// Close unregisters the subscriber. Messages still queued are discarded.
func (s *busSubscriber) Close() error {
	s.bus.remove(s)
	s.stop()
	return nil
}
