package filter

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// padded asks for the whole 4x4 image plus a one pixel border on plane 0.
func padded(padding int16, seen *Plane) *script {
	return &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			rec := s.Record()
			rec.InputPadding = padding
			rec.InRect = filterapi.Rect{Top: -1, Left: -1, Bottom: 5, Right: 5}
			rec.InLoPlane, rec.InHiPlane = 0, 0
			return 0
		},
		filterapi.SelectorContinue: func(s *Session) int16 {
			in := s.Input()
			*seen = in
			seen.Data = append([]byte(nil), in.Data...)
			requestNothing(s)
			return 0
		},
	}}
}

func TestPaddingEdgeReplication(t *testing.T) {
	img := newMemImage(4, 4, 3)
	var in Plane
	res, err := newTestSession(t, padded(filterapi.PaddingEdgeReplication, &in), img).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Continues)

	require.Len(t, in.Data, 36)
	assert.Equal(t, 6, in.RowBytes)
	at := func(h, v int) byte { return in.Data[in.Offset(h, v)] }
	assert.Equal(t, img.at(0, 0, 0), at(-1, -1))
	assert.Equal(t, img.at(3, 2, 0), at(4, 2))
	assert.Equal(t, img.at(1, 3, 0), at(1, 4))
	assert.Equal(t, img.at(3, 3, 0), at(4, 4))
	assert.Equal(t, img.at(2, 1, 0), at(2, 1))

	require.Len(t, img.fetches, 1)
	assert.Equal(t, filterapi.Rect{Bottom: 4, Right: 4}, img.fetches[0].In.Rect, "the provider only sees the clipped rectangle")
}

func TestPaddingConstant(t *testing.T) {
	img := newMemImage(4, 4, 3)
	var in Plane
	_, err := newTestSession(t, padded(7, &in), img).Run(context.Background())
	require.NoError(t, err)

	at := func(h, v int) byte { return in.Data[in.Offset(h, v)] }
	assert.Equal(t, byte(7), at(-1, -1))
	assert.Equal(t, byte(7), at(4, 0))
	assert.Equal(t, byte(7), at(0, 4))
	assert.Equal(t, img.at(0, 0, 0), at(0, 0))
}

func TestPaddingNoneLeavesZeros(t *testing.T) {
	img := newMemImage(4, 4, 3)
	var in Plane
	_, err := newTestSession(t, padded(filterapi.PaddingNone, &in), img).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, byte(0), in.Data[in.Offset(-1, -1)])
	assert.Equal(t, img.at(3, 3, 0), in.Data[in.Offset(3, 3)])
}

func TestPaddingErrorOnBounds(t *testing.T) {
	img := newMemImage(4, 4, 3)
	var in Plane
	sc := padded(filterapi.PaddingErrorOnBounds, &in)
	res, err := newTestSession(t, sc, img).Run(context.Background())

	assert.ErrorIs(t, err, ErrOutOfBounds)
	var he *HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, HostImage, he.Kind)
	assert.Equal(t, HostFailure, res.Outcome)
	assert.Empty(t, img.fetches)
	assert.NotContains(t, sc.calls, filterapi.SelectorContinue)
	assert.Equal(t, filterapi.SelectorFinish, sc.calls[len(sc.calls)-1])
}

func TestOversizedPaddedRegion(t *testing.T) {
	img := newMemImage(4, 4, 3)
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			rec := s.Record()
			rec.InputPadding = filterapi.PaddingEdgeReplication
			rec.InRect = filterapi.Rect{Top: -32768, Left: -32768, Bottom: 32767, Right: 32767}
			rec.InLoPlane, rec.InHiPlane = 0, 2
			return 0
		},
	}}
	res, err := newTestSession(t, sc, img).Run(context.Background())

	var he *HostError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, HostMemory, he.Kind)
	assert.Equal(t, HostFailure, res.Outcome)
	assert.Empty(t, img.fetches)
	assert.Equal(t, filterapi.SelectorFinish, sc.calls[len(sc.calls)-1])
}

func TestAdvanceStateOversizedRegion(t *testing.T) {
	var got filterapi.OSErr
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			rec := s.Record()
			rec.InputPadding = 0
			rec.InRect = filterapi.Rect{Top: -32768, Left: -32768, Bottom: 32767, Right: 32767}
			rec.InLoPlane, rec.InHiPlane = 0, 0
			got = s.AdvanceState()
			requestNothing(s)
			return 0
		},
	}}
	_, err := newTestSession(t, sc, newMemImage(4, 4, 3)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filterapi.MemFullErr, got)
}

func TestPlaneRangeIsChecked(t *testing.T) {
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			requestAll(s)
			s.Record().InHiPlane = 5
			return 0
		},
	}}
	_, err := newTestSession(t, sc, newMemImage(2, 2, 3)).Run(context.Background())
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestAdvanceStateRowByRow(t *testing.T) {
	img := newMemImage(4, 4, 3)
	orig := append([]byte(nil), img.pix...)
	var codes []filterapi.OSErr
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			rec := s.Record()
			rec.InLoPlane, rec.InHiPlane = 0, 2
			rec.OutLoPlane, rec.OutHiPlane = 0, 2
			for row := int16(0); row < 4; row++ {
				rec.InRect = filterapi.Rect{Top: row, Bottom: row + 1, Right: 4}
				rec.OutRect = rec.InRect
				code := s.AdvanceState()
				codes = append(codes, code)
				if code != filterapi.NoErr {
					return int16(code)
				}
				invert(s)
			}
			requestNothing(s)
			return 0
		},
	}}
	res, err := newTestSession(t, sc, img).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []filterapi.OSErr{0, 0, 0, 0}, codes)
	assert.Equal(t, 0, res.Continues)
	assert.Equal(t, 4, res.Fetches)
	assert.Equal(t, 4, res.Stores, "the last row is stored when start returns")
	for i := range orig {
		assert.Equal(t, 255-orig[i], img.pix[i], "byte %d", i)
	}
}

func TestAdvanceStateOutsideStart(t *testing.T) {
	var code filterapi.OSErr
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorPrepare: func(s *Session) int16 {
			code = s.AdvanceState()
			return 0
		},
	}}
	_, err := newTestSession(t, sc, newMemImage(2, 2, 1)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filterapi.ParamErr, code)
}

func TestAdvanceStateOutOfBounds(t *testing.T) {
	var code filterapi.OSErr
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			s.Record().InRect = filterapi.Rect{Top: 0, Left: 0, Bottom: 9, Right: 9}
			code = s.AdvanceState()
			requestNothing(s)
			return 0
		},
	}}
	_, err := newTestSession(t, sc, newMemImage(2, 2, 1)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filterapi.ParamErr, code)
}

func TestMaskServedOnlyWithMask(t *testing.T) {
	for _, hasMask := range []bool{false, true} {
		img := newMemImage(3, 3, 3)
		img.info.HasMask = hasMask
		var mask Plane
		sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
			filterapi.SelectorStart: func(s *Session) int16 {
				requestAll(s)
				s.Record().MaskRect = s.Record().FilterRect
				return 0
			},
			filterapi.SelectorContinue: func(s *Session) int16 {
				mask = s.Mask()
				mask.Data = append([]byte(nil), mask.Data...)
				requestNothing(s)
				return 0
			},
		}}
		s := newTestSession(t, sc, img)
		_, err := s.Run(context.Background())
		require.NoError(t, err)

		if hasMask {
			assert.Len(t, mask.Data, 9)
			assert.Equal(t, byte(255), mask.Data[4])
		} else {
			assert.Empty(t, mask.Data)
			assert.True(t, img.fetches[0].Mask.Empty())
		}
	}
}

func TestRecordPointersFollowRegion(t *testing.T) {
	var inData, outData uintptr
	var inRow, outCol int32
	sc := &script{handlers: map[filterapi.Selector]func(*Session) int16{
		filterapi.SelectorStart: func(s *Session) int16 {
			requestAll(s)
			return 0
		},
		filterapi.SelectorContinue: func(s *Session) int16 {
			rec := s.Record()
			inData, outData = rec.InData, rec.OutData
			inRow, outCol = rec.InRowBytes, rec.OutColumnBytes
			requestNothing(s)
			return 0
		},
	}}
	s := newTestSession(t, sc, newMemImage(5, 2, 3))
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.NotZero(t, inData)
	assert.NotZero(t, outData)
	assert.NotEqual(t, inData, outData)
	assert.Equal(t, int32(15), inRow)
	assert.Equal(t, int32(3), outCol)
	assert.Zero(t, s.Record().InData, "buffers are released after the run")
}

func TestPadSample16(t *testing.T) {
	assert.Equal(t, []byte{7}, padSample(7, 8))
	b := padSample(255, 16)
	require.Len(t, b, 2)
	assert.Equal(t, uint16(32768), binary.NativeEndian.Uint16(b))
}
