package callback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"esims/internal/euicc"
	"esims/pkg/platform/sentinel"
)

// =============================================================================
// Bus Test Suite
// =============================================================================
// Justification: ordering and unsubscribe behaviour are what the orchestrator
// relies on for duplicate suppression; they are cheap to pin down here.

type BusSuite struct {
	suite.Suite
	bus *Bus
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.bus = NewBus()
}

func (s *BusSuite) TearDownTest() {
	_ = s.bus.Close()
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) handle(_ context.Context, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) snapshot() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func (s *BusSuite) TestDeliversInPublishOrder() {
	ctx := context.Background()
	rec := &recorder{}
	_, err := s.bus.Subscribe(ctx, ActionDownload, rec.handle)
	s.Require().NoError(err)

	for i := range 50 {
		err := s.bus.Publish(ctx, Message{
			Action: ActionDownload,
			Token:  euicc.Token{RequestID: "r", Attempt: i},
		})
		s.Require().NoError(err)
	}

	s.Require().Eventually(func() bool { return len(rec.snapshot()) == 50 }, time.Second, 5*time.Millisecond)
	for i, msg := range rec.snapshot() {
		s.Equal(i, msg.Token.Attempt)
	}
}

func (s *BusSuite) TestRoutesByAction() {
	ctx := context.Background()
	downloads := &recorder{}
	resolutions := &recorder{}
	_, err := s.bus.Subscribe(ctx, ActionDownload, downloads.handle)
	s.Require().NoError(err)
	_, err = s.bus.Subscribe(ctx, ActionResolution, resolutions.handle)
	s.Require().NoError(err)

	s.Require().NoError(s.bus.Publish(ctx, Message{Action: ActionResolution}))

	s.Require().Eventually(func() bool { return len(resolutions.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	s.Empty(downloads.snapshot())
}

func (s *BusSuite) TestClosedSubscriptionStopsDelivery() {
	ctx := context.Background()
	rec := &recorder{}
	sub, err := s.bus.Subscribe(ctx, ActionSwitch, rec.handle)
	s.Require().NoError(err)
	s.Equal(1, s.bus.Subscribers(ActionSwitch))

	s.Require().NoError(sub.Close())
	s.Equal(0, s.bus.Subscribers(ActionSwitch))

	s.Require().NoError(s.bus.Publish(ctx, Message{Action: ActionSwitch}))
	time.Sleep(20 * time.Millisecond)
	s.Empty(rec.snapshot())
}

func (s *BusSuite) TestPublishWithoutSubscribersIsDropped() {
	s.NoError(s.bus.Publish(context.Background(), Message{Action: ActionDownload}))
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())

	_, err := bus.Subscribe(context.Background(), ActionDownload, func(context.Context, Message) {})
	assert.ErrorIs(t, err, sentinel.ErrClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), Message{Action: ActionDownload}), sentinel.ErrClosed)
	assert.NoError(t, bus.Close())
}

func TestActionIsValid(t *testing.T) {
	assert.True(t, ActionDownload.IsValid())
	assert.True(t, ActionResolution.IsValid())
	assert.True(t, ActionSwitch.IsValid())
	assert.False(t, Action("start_resolution_action").IsValid())
}
