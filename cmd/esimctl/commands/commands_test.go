package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esims/internal/callback"
	"esims/internal/euicc"
	"esims/internal/euicc/simulator"
	"esims/internal/events/feed"
	"esims/internal/profile"
	"esims/internal/provisioning/service"
	"esims/internal/switching"
	httptransport "esims/internal/transport/http"
)

const testCode = "LPA:1$smdp.io$57-262E95-176EZGS"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	bus := callback.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	sim := simulator.New(bus,
		simulator.WithPhysicalSIM(1, "Physical Carrier"),
		simulator.WithInstalledProfile(euicc.Subscription{SubscriptionID: 5, CarrierName: "acme"}, true),
	)
	caps, err := sim.Probe(ctx)
	require.NoError(t, err)
	eventFeed := feed.NewRingBuffer(16)

	orch, err := service.New(ctx, sim, caps, bus, service.WithEventSink(eventFeed))
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })
	switcher, err := switching.New(ctx, sim, caps, bus, switching.WithEventSink(eventFeed))
	require.NoError(t, err)
	t.Cleanup(func() { _ = switcher.Close() })
	registry, err := profile.New(sim, caps)
	require.NoError(t, err)

	h := httptransport.New(httptransport.Deps{
		Provisioner: orch,
		Profiles:    registry,
		Switcher:    switcher,
		Feed:        eventFeed,
	}, nil)
	srv := httptest.NewServer(httptransport.NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := Root()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--addr", addr}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDownloadPrintsRequestIDAndEvents(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, srv.URL, "download", testCode)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = execute(t, srv.URL, "events")
	require.NoError(t, err)
	assert.Contains(t, out, "1 download "+id+" state=requested")
}

func TestProfilesPrintsListing(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, srv.URL, "profiles")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "subscription=5")
	assert.Contains(t, lines[0], "embedded")
	assert.Contains(t, lines[1], "subscription=1")
}

func TestErrorsCarryTheServerCode(t *testing.T) {
	srv := newServer(t)

	_, err := execute(t, srv.URL, "download")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed_activation_code")

	_, err = execute(t, srv.URL, "activate", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_profile")

	_, err = execute(t, srv.URL, "activate", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription id must be an integer")
}
