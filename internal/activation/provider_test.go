package activation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "esims/pkg/domain-errors"
)

func TestStatic(t *testing.T) {
	p, err := NewStatic("LPA:1$smdp.io$57-262E95-176EZGS")
	require.NoError(t, err)

	code, err := p.ActivationCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "LPA:1$smdp.io$57-262E95-176EZGS", code)
}

func TestStaticRejectsMalformedCode(t *testing.T) {
	_, err := NewStatic("smdp.io")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedActivationCode))
}
