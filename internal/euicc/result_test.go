package euicc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	t.Run("empty string is the zero token", func(t *testing.T) {
		tok, err := ParseToken("")
		require.NoError(t, err)
		assert.True(t, tok.IsZero())
		assert.Equal(t, "", tok.String())
	})

	t.Run("round trips request id and attempt", func(t *testing.T) {
		tok, err := ParseToken(Token{RequestID: "abc", Attempt: 1}.String())
		require.NoError(t, err)
		assert.Equal(t, Token{RequestID: "abc", Attempt: 1}, tok)
	})

	t.Run("bare request id defaults to first attempt", func(t *testing.T) {
		tok, err := ParseToken("abc")
		require.NoError(t, err)
		assert.Equal(t, Token{RequestID: "abc"}, tok)
	})

	t.Run("rejects malformed tokens", func(t *testing.T) {
		for _, in := range []string{"#1", "abc#x", "abc#-1"} {
			_, err := ParseToken(in)
			assert.Error(t, err, in)
		}
	})
}

func TestTokenJSON(t *testing.T) {
	type envelope struct {
		Token Token `json:"token"`
	}
	b, err := json.Marshal(envelope{Token: Token{RequestID: "r1", Attempt: 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"r1#0"}`, string(b))

	var out envelope
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "r1", out.Token.RequestID)
}

func TestCapabilitiesEUICCReady(t *testing.T) {
	assert.True(t, Capabilities{EUICC: true, Enabled: true}.EUICCReady())
	assert.False(t, Capabilities{EUICC: true}.EUICCReady())
	assert.False(t, Capabilities{Enabled: true}.EUICCReady())
}
