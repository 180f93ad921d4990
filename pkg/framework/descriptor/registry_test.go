package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("DeepCopy", func(t *testing.T) {
		r := NewRegistry()
		d := New(nil)
		d.PutInteger(k("Amnt"), 1)
		r.Set("com.example.invert", d, true)

		d.PutInteger(k("Amnt"), 2)
		got, persistent, err := r.Get("com.example.invert")
		require.NoError(t, err)
		assert.True(t, persistent)
		v, _ := got.Integer(k("Amnt"))
		assert.Equal(t, int32(1), v)

		got.PutInteger(k("Amnt"), 3)
		again, _, _ := r.Get("com.example.invert")
		v, _ = again.Integer(k("Amnt"))
		assert.Equal(t, int32(1), v)
	})

	t.Run("MissingKey", func(t *testing.T) {
		r := NewRegistry()
		_, _, err := r.Get("nope")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.ErrorIs(t, r.Erase("nope"), ErrKeyNotFound)
	})

	t.Run("Subsets", func(t *testing.T) {
		r := NewRegistry()
		r.Set("b", New(nil), false)
		r.Set("a", New(nil), true)
		r.Set("c", nil, false)

		assert.Equal(t, []string{"a", "b", "c"}, r.Keys())
		assert.Len(t, r.Persistent(), 1)
		assert.Len(t, r.Session(), 2)

		require.NoError(t, r.Erase("b"))
		assert.Equal(t, []string{"a", "c"}, r.Keys())
	})

	t.Run("SessionCache", func(t *testing.T) {
		cache := NewSessionCache()
		first := NewRegistry()
		d := New(nil)
		d.PutText(k("Txt "), "kept")
		first.Set("session", d, false)
		first.Set("disk", d, true)
		cache.Save("Invert", first)

		second := NewRegistry()
		cache.Restore("Invert", second)
		assert.Equal(t, []string{"session"}, second.Keys())
		got, persistent, err := second.Get("session")
		require.NoError(t, err)
		assert.False(t, persistent)
		s, _ := got.Text(k("Txt "))
		assert.Equal(t, "kept", s)

		other := NewRegistry()
		cache.Restore("Levels", other)
		assert.Empty(t, other.Keys())
	})
}

func TestObjects(t *testing.T) {
	o := NewObjects()
	dt := o.Put(New(nil))
	lt := o.Put(NewList())
	assert.NotZero(t, dt)
	assert.NotEqual(t, dt, lt)

	_, err := o.Descriptor(dt)
	require.NoError(t, err)
	_, err = o.Descriptor(lt)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = o.List(lt)
	require.NoError(t, err)

	require.NoError(t, o.Free(dt))
	assert.ErrorIs(t, o.Free(dt), ErrInvalidToken)
	_, err = o.Descriptor(dt)
	assert.ErrorIs(t, err, ErrInvalidToken)

	o.Put(NewReference())
	assert.Equal(t, 2, o.Len())
	assert.Equal(t, 2, o.Reset())
	assert.Zero(t, o.Len())
}
