package resolution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"esims/internal/euicc"
	"esims/internal/euicc/mocks"
	dErrors "esims/pkg/domain-errors"
)

var fullCaps = euicc.Capabilities{EUICC: true, Enabled: true, Subscriptions: true, Resolution: true}

func TestStart(t *testing.T) {
	ctx := context.Background()
	token := euicc.Token{RequestID: "r1"}

	t.Run("passes the payload through unchanged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		platform := mocks.NewMockPlatform(ctrl)
		payload := []byte{0x01, 0x02, 0xff}
		platform.EXPECT().StartResolution(gomock.Any(), payload, token).Return(nil)

		c, err := New(platform, fullCaps)
		require.NoError(t, err)
		require.NoError(t, c.Start(ctx, token, payload))
	})

	t.Run("unsupported without calling the platform", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		platform := mocks.NewMockPlatform(ctrl)

		caps := fullCaps
		caps.Resolution = false
		c, err := New(platform, caps)
		require.NoError(t, err)

		err = c.Start(ctx, token, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeResolutionUnsupported))
		assert.False(t, c.Supported())
	})

	t.Run("platform rejection is unavailable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		platform := mocks.NewMockPlatform(ctrl)
		platform.EXPECT().StartResolution(gomock.Any(), gomock.Any(), token).Return(errors.New("activity missing"))

		c, err := New(platform, fullCaps)
		require.NoError(t, err)
		err = c.Start(ctx, token, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePlatformUnavailable))
	})

	t.Run("requires a platform", func(t *testing.T) {
		_, err := New(nil, fullCaps)
		assert.Error(t, err)
	})
}

func TestGranted(t *testing.T) {
	assert.True(t, Granted(euicc.Result{ResultCode: euicc.ResultOK}))
	assert.False(t, Granted(euicc.Result{ResultCode: euicc.ResultResolvableError}))
	assert.False(t, Granted(euicc.Result{ResultCode: euicc.ResultError}))
	assert.False(t, Granted(euicc.Result{ResultCode: 42}))
}
