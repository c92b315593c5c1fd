package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esims/internal/euicc"
	"esims/internal/provisioning/models"
	dErrors "esims/pkg/domain-errors"
)

func TestSummary(t *testing.T) {
	e := Event{
		RequestID: "r1",
		Operation: models.OperationDownload,
		State:     models.StateCompleted,
		Outcome:   models.OutcomeFatal,
		ErrorKind: dErrors.CodePlatformError,
		Attempt:   1,
		Result:    &euicc.Result{ResultCode: euicc.ResultError, ErrorCode: 3, ReasonCode: 7},
	}
	assert.Equal(t,
		"download r1 state=completed attempt=1 outcome=fatal error=platform_error result=2 error=3 operation=0 detailed=0 subject=0 reason=7",
		e.Summary())
	assert.True(t, e.IsTerminal())
}

func TestMulti(t *testing.T) {
	rec := NewRecorder()
	boom := errors.New("boom")
	failing := SinkFunc(func(context.Context, Event) error { return boom })

	err := Multi{rec, nil, failing}.Emit(context.Background(), Event{RequestID: "r1"})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 1)
}

func TestRecorderWaitFor(t *testing.T) {
	rec := NewRecorder()
	go func() {
		_ = rec.Emit(context.Background(), Event{RequestID: "a", State: models.StateRequested})
		_ = rec.Emit(context.Background(), Event{RequestID: "a", State: models.StateCompleted})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := rec.WaitFor(ctx, Event.IsTerminal)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, got.State)
	assert.Len(t, rec.ForRequest("a"), 2)
}

func TestRecorderWaitForTimesOut(t *testing.T) {
	rec := NewRecorder()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := rec.WaitFor(ctx, Event.IsTerminal)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
