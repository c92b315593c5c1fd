package pending

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esims/pkg/platform/sentinel"
)

func TestRegistry(t *testing.T) {
	t.Run("insert get remove", func(t *testing.T) {
		r := New[int]()
		require.NoError(t, r.Insert("a", 1))
		assert.ErrorIs(t, r.Insert("a", 2), sentinel.ErrConflict)

		v, err := r.Get("a")
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		v, err = r.Remove("a")
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		_, err = r.Get("a")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = r.Remove("a")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("exclusive insert admits one entry", func(t *testing.T) {
		r := New[string]()
		require.NoError(t, r.InsertExclusive("a", "x"))
		assert.ErrorIs(t, r.InsertExclusive("b", "y"), sentinel.ErrConflict)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("only matches a single entry", func(t *testing.T) {
		r := New[string]()
		_, _, err := r.Only()
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		require.NoError(t, r.Insert("a", "x"))
		id, v, err := r.Only()
		require.NoError(t, err)
		assert.Equal(t, "a", id)
		assert.Equal(t, "x", v)

		require.NoError(t, r.Insert("b", "y"))
		_, _, err = r.Only()
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("drain empties the registry", func(t *testing.T) {
		r := New[int]()
		require.NoError(t, r.Insert("a", 1))
		require.NoError(t, r.Insert("b", 2))
		assert.ElementsMatch(t, []int{1, 2}, r.Drain())
		assert.Zero(t, r.Len())
	})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := New[int]()
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("req-%d", i)
			_ = r.Insert(id, i)
			_, _ = r.Get(id)
			_, _ = r.Remove(id)
		}()
	}
	wg.Wait()
	assert.Zero(t, r.Len())
}
