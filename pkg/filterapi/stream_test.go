package filterapi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	w := NewStreamWriter(binary.LittleEndian)
	w.WriteUint8(7)
	w.WritePString("abc")
	w.Align(4)
	w.WriteInt16(-2)
	w.WriteUint32(0xdeadbeef)
	w.WriteOSType(MakeOSType("8BIM"))
	w.WriteCString("hi")
	require.Equal(t, 21, w.Len())

	s := NewStream(w.Bytes(), binary.LittleEndian)
	v8, err := s.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), v8)

	str, err := s.ReadPString()
	require.NoError(t, err)
	assert.Equal(t, "abc", str)
	require.NoError(t, s.Align(4))
	assert.Equal(t, 8, s.Pos())

	v16, _ := s.ReadInt16()
	assert.Equal(t, int16(-2), v16)
	v32, _ := s.ReadUint32()
	assert.Equal(t, uint32(0xdeadbeef), v32)
	sig, _ := s.ReadOSType()
	assert.Equal(t, "8BIM", sig.String())
	cs, err := s.ReadCString(3)
	require.NoError(t, err)
	assert.Equal(t, "hi", cs)
	assert.Zero(t, s.Remaining())

	_, err = s.ReadUint16()
	assert.ErrorIs(t, err, ErrShortResource)
	assert.ErrorIs(t, s.Seek(100), ErrShortResource)
	require.NoError(t, s.Seek(0))
}
