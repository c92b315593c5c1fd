package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esims/internal/events"
	"esims/internal/provisioning/models"
)

func event(id string) events.Event {
	return events.Event{RequestID: id, Operation: models.OperationDownload, State: models.StateRequested}
}

func ids(evts []events.Event) []string {
	out := make([]string, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.RequestID)
	}
	return out
}

func TestRingBuffer(t *testing.T) {
	t.Run("assigns increasing sequence numbers", func(t *testing.T) {
		b := NewRingBuffer(4)
		require.NoError(t, b.Emit(context.Background(), event("a")))
		require.NoError(t, b.Emit(context.Background(), event("b")))

		got := b.Since(0, 0)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].Seq)
		assert.Equal(t, uint64(2), got[1].Seq)
		assert.Equal(t, uint64(2), b.LastSeq())
	})

	t.Run("drops oldest when full", func(t *testing.T) {
		b := NewRingBuffer(2)
		b.Enqueue(event("a"))
		b.Enqueue(event("b"))
		b.Enqueue(event("c"))

		assert.Equal(t, 2, b.Len())
		assert.Equal(t, int64(1), b.Dropped())
		assert.Equal(t, []string{"b", "c"}, ids(b.Since(0, 0)))
	})

	t.Run("since resumes after a sequence number", func(t *testing.T) {
		b := NewRingBuffer(8)
		for _, id := range []string{"a", "b", "c", "d"} {
			b.Enqueue(event(id))
		}
		assert.Equal(t, []string{"c", "d"}, ids(b.Since(2, 0)))
		assert.Equal(t, []string{"b"}, ids(b.Since(1, 1)))
		assert.Empty(t, b.Since(4, 0))
	})

	t.Run("non positive capacity uses default", func(t *testing.T) {
		b := NewRingBuffer(0)
		assert.Equal(t, defaultCapacity, b.capacity)
	})
}
