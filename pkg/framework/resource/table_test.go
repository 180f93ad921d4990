package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

var (
	typeT = filterapi.MakeOSType("TEXT")
	typeU = filterapi.MakeOSType("PICT")
)

func TestDeleteReindexes(t *testing.T) {
	tbl := NewTable()
	for i := 0; i < 5; i++ {
		assert.Equal(t, i, tbl.Add(typeT, []byte{byte(i)}))
	}
	tbl.Add(typeU, []byte("other"))

	require.NoError(t, tbl.Delete(typeT, 2))
	assert.Equal(t, 4, tbl.Count(typeT))

	want := []byte{0, 1, 3, 4}
	for i, b := range want {
		got, err := tbl.Get(typeT, i)
		require.NoError(t, err)
		assert.Equal(t, []byte{b}, got, "index %d", i)
	}

	_, err := tbl.Get(typeT, 4)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, tbl.Count(typeU), "other types are untouched")
}

func TestNotFound(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Get(typeT, 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tbl.Get(typeT, -1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, tbl.Delete(typeT, 0), ErrNotFound)
	assert.Zero(t, tbl.Count(typeT))
}

func TestPayloadsAreCopied(t *testing.T) {
	tbl := NewTable()
	data := []byte("abc")
	tbl.Add(typeT, data)
	data[0] = 'x'

	got, err := tbl.Get(typeT, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _ := tbl.Get(typeT, 0)
	assert.Equal(t, "abc", string(again))
}

func TestEntriesAndLoad(t *testing.T) {
	tbl := NewTable()
	tbl.Add(typeU, []byte("1"))
	tbl.Add(typeT, []byte("2"))
	tbl.Add(typeU, []byte("3"))
	tbl.Add(typeT, nil)

	entries := tbl.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, []filterapi.OSType{typeU, typeT}, tbl.Types())
	assert.Equal(t, Entry{Type: typeU, Data: []byte("1")}, entries[0])
	assert.Equal(t, Entry{Type: typeU, Data: []byte("3")}, entries[1])
	assert.Equal(t, Entry{Type: typeT, Data: []byte{}}, entries[3])

	restored := NewTable()
	restored.Add(typeT, []byte("stale"))
	restored.Load(entries)
	assert.Equal(t, entries, restored.Entries())
	assert.Equal(t, 4, restored.Len())
}
