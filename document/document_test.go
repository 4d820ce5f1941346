package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/autom8ter/nanomongo/document"
)

func TestDoc(t *testing.T) {
	t.Run("set then get", func(t *testing.T) {
		d := document.New("_id", 1).Set("a", "x")
		v, ok := d.Get("a")
		assert.True(t, ok)
		assert.Equal(t, "x", v)
	})
	t.Run("set replaces in place, preserving order", func(t *testing.T) {
		d := document.New("a", 1, "b", 2)
		d = d.Set("a", 3)
		assert.Equal(t, []string{"a", "b"}, d.Keys())
		v, _ := d.Get("a")
		assert.Equal(t, 3, v)
	})
	t.Run("delete removes a field", func(t *testing.T) {
		d := document.New("a", 1, "b", 2).Delete("a")
		assert.False(t, d.Has("a"))
		assert.True(t, d.Has("b"))
	})
	t.Run("dotted path get", func(t *testing.T) {
		d := document.New("a", document.New("b", "c"))
		v, ok := d.Path("a.b")
		assert.True(t, ok)
		assert.Equal(t, "c", v)
	})
	t.Run("dotted path set", func(t *testing.T) {
		d := document.New("a", document.New("b", 1))
		d, err := d.SetPath("a.b", 2)
		assert.NoError(t, err)
		v, _ := d.Path("a.b")
		assert.EqualValues(t, 2, v)
	})
	t.Run("dotted path delete", func(t *testing.T) {
		d := document.New("a", document.New("b", 1, "c", 2))
		d, err := d.DeletePath("a.b")
		assert.NoError(t, err)
		_, ok := d.Path("a.b")
		assert.False(t, ok)
	})
	t.Run("from map sorts keys deterministically", func(t *testing.T) {
		d := document.FromMap(map[string]any{"z": 1, "a": 2})
		assert.Equal(t, []string{"a", "z"}, d.Keys())
	})
	t.Run("clone is independent", func(t *testing.T) {
		d := document.New("a", 1)
		clone := d.Clone()
		clone = clone.Set("a", 2)
		v, _ := d.Get("a")
		assert.Equal(t, 1, v)
		v2, _ := clone.Get("a")
		assert.Equal(t, 2, v2)
	})
}
