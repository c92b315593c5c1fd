package domainerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeInvalidProfile, "profile is not embedded")
		assert.True(t, HasCode(err, CodeInvalidProfile))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches wrapped domain code", func(t *testing.T) {
		inner := New(CodePermissionDenied, "read subscriptions not granted")
		err := Wrap(inner, CodeInternal, "list failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodePermissionDenied))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, CodePlatformUnavailable, "platform call failed")

	require.True(t, Is(err, cause))
	assert.Equal(t, "platform call failed: dial tcp: refused", err.Error())
	assert.Equal(t, CodePlatformUnavailable, CodeOf(err))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("unclassified")))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeMalformedActivationCode, http.StatusBadRequest},
		{CodeInvalidProfile, http.StatusBadRequest},
		{CodePermissionDenied, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeOperationInProgress, http.StatusConflict},
		{CodePlatformUnavailable, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeResolutionDenied, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.code))
		})
	}
}
