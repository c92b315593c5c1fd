package simulator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esims/internal/callback"
	"esims/internal/euicc"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []callback.Message
}

func (c *capturePublisher) Publish(_ context.Context, msg callback.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturePublisher) last() callback.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[len(c.msgs)-1]
}

func TestDownloadInstallsAndActivates(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	sim := New(pub, WithPhysicalSIM(1, "Home Carrier"))
	token := euicc.Token{RequestID: "r1"}

	require.NoError(t, sim.DownloadSubscription(ctx, "LPA:1$smdp.io$abc", true, token))

	msg := pub.last()
	assert.Equal(t, callback.ActionDownload, msg.Action)
	assert.Equal(t, token, msg.Token)
	assert.Equal(t, euicc.ResultOK, msg.Result.ResultCode)

	subs, err := sim.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.True(t, subs[0].Embedded)
	assert.Equal(t, "smdp.io", subs[0].CarrierName)
	assert.False(t, subs[1].Embedded)
}

func TestDownloadWithoutSwitchLeavesProfileInactive(t *testing.T) {
	ctx := context.Background()
	sim := New(&capturePublisher{})
	require.NoError(t, sim.DownloadSubscription(ctx, "LPA:1$smdp.io$abc", false, euicc.Token{RequestID: "r1"}))

	subs, err := sim.ListActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestScriptedOutcomes(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	sim := New(pub)
	token := euicc.Token{RequestID: "r1"}

	sim.ScriptDownloads(Resolvable([]byte("consent")), Rejected(errors.New("busy")))
	require.NoError(t, sim.DownloadSubscription(ctx, "LPA:1$h$m", true, token))
	assert.Equal(t, euicc.ResultResolvableError, pub.last().Result.ResultCode)
	assert.Equal(t, []byte("consent"), pub.last().Payload)

	assert.Error(t, sim.DownloadSubscription(ctx, "LPA:1$h$m", true, token))
	assert.Len(t, sim.Downloads(), 2)

	sim.ScriptResolutions(Silent())
	require.NoError(t, sim.StartResolution(ctx, []byte("consent"), token))
	assert.Len(t, pub.msgs, 1)
	assert.Equal(t, [][]byte{[]byte("consent")}, sim.Resolutions())
}

func TestSwitch(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	sim := New(pub,
		WithInstalledProfile(euicc.Subscription{SubscriptionID: 3}, true),
		WithInstalledProfile(euicc.Subscription{SubscriptionID: 4}, false),
	)
	token := euicc.Token{RequestID: "s1"}

	require.NoError(t, sim.SwitchToSubscription(ctx, 4, token))
	assert.Equal(t, callback.ActionSwitch, pub.last().Action)
	subs, _ := sim.ListActiveSubscriptions(ctx)
	require.Len(t, subs, 1)
	assert.Equal(t, 4, subs[0].SubscriptionID)

	require.NoError(t, sim.SwitchToSubscription(ctx, 99, token))
	assert.Equal(t, euicc.ResultError, pub.last().Result.ResultCode)

	require.NoError(t, sim.SwitchToSubscription(ctx, euicc.NoSubscription, token))
	subs, _ = sim.ListActiveSubscriptions(ctx)
	assert.Empty(t, subs)
	assert.Equal(t, []int{4, 99, euicc.NoSubscription}, sim.Switches())
}

func TestPermissionDenied(t *testing.T) {
	sim := New(&capturePublisher{}, WithPermissionDenied())
	_, err := sim.ListActiveSubscriptions(context.Background())
	assert.ErrorIs(t, err, euicc.ErrPermissionDenied)
}
