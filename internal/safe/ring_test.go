package safe_test

import (
	"testing"

	"github.com/autom8ter/nanomongo/internal/safe"
	"github.com/stretchr/testify/assert"
)

func TestRing(t *testing.T) {
	t.Run("bounded at capacity", func(t *testing.T) {
		r := safe.NewRing[int](3)
		for i := 0; i < 10; i++ {
			r.Push(i)
		}
		assert.Equal(t, 3, r.Len())
	})
	t.Run("set last replaces newest", func(t *testing.T) {
		r := safe.NewRing[string](10)
		r.Push("pending")
		prev, ok := r.SetLast("result")
		assert.True(t, ok)
		assert.Equal(t, "pending", prev)
		newest, ok := r.Newest()
		assert.True(t, ok)
		assert.Equal(t, "result", newest)
	})
	t.Run("set last on empty ring fails", func(t *testing.T) {
		r := safe.NewRing[string](10)
		_, ok := r.SetLast("result")
		assert.False(t, ok)
	})
	t.Run("scan from newest skips the oldest entry", func(t *testing.T) {
		r := safe.NewRing[int](10)
		r.Push(1)
		r.Push(2)
		r.Push(3)
		_, distance, found := r.ScanFromNewest(func(distance int, value int) bool {
			return value == 1
		})
		assert.False(t, found)
		assert.Equal(t, -1, distance)

		value, distance, found := r.ScanFromNewest(func(distance int, value int) bool {
			return value == 2
		})
		assert.True(t, found)
		assert.Equal(t, 2, distance)
		assert.Equal(t, 2, value)
	})
	t.Run("clear empties the ring", func(t *testing.T) {
		r := safe.NewRing[int](10)
		r.Push(1)
		r.Clear()
		assert.Equal(t, 0, r.Len())
	})
}
