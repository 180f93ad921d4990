package imaging

import (
	"encoding/binary"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 7, A: 0xff})
		}
	}
	return img
}

func rect(top, left, bottom, right int16) filterapi.Rect {
	return filterapi.Rect{Top: top, Left: left, Bottom: bottom, Right: right}
}

func TestFromImageInfo(t *testing.T) {
	p, err := FromImage(gradient(4, 3), WithTitle("grad"), WithResolution(300))
	require.NoError(t, err)
	info := p.Info()
	assert.Equal(t, 4, info.Width)
	assert.Equal(t, 3, info.Height)
	assert.Equal(t, 3, info.Planes)
	assert.Equal(t, 8, info.Depth)
	assert.Equal(t, filterapi.ModeRGBColor, info.Mode)
	assert.False(t, info.Transparency)
	assert.Equal(t, "grad", info.Title)
	assert.Equal(t, 300.0, info.Resolution)

	gray, err := FromImage(image.NewGray16(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	assert.Equal(t, filterapi.ModeGray16, gray.Info().Mode)
	assert.Equal(t, 1, gray.Info().Planes)
	assert.Equal(t, 16, gray.Info().Depth)

	nrgba := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	alpha, err := FromImage(nrgba)
	require.NoError(t, err)
	assert.Equal(t, 4, alpha.Info().Planes)
	assert.True(t, alpha.Info().Transparency)

	_, err = FromImage(image.NewRGBA(image.Rectangle{}))
	assert.Error(t, err)
}

func TestFetchPlanes(t *testing.T) {
	p, err := FromImage(gradient(4, 3))
	require.NoError(t, err)

	region, err := p.Fetch(&filter.RegionRequest{
		In: filter.PlaneRequest{Rect: rect(1, 1, 3, 3), LoPlane: 1, HiPlane: 2},
	})
	require.NoError(t, err)
	in := region.In
	assert.Equal(t, 4, in.RowBytes)
	require.Len(t, in.Data, 8)
	assert.Equal(t, []byte{10, 7}, in.Data[in.Offset(1, 1):in.Offset(1, 1)+2])
	assert.Equal(t, []byte{20, 7}, in.Data[in.Offset(2, 2):in.Offset(2, 2)+2])
	assert.True(t, region.Out.Empty())

	_, err = p.Fetch(&filter.RegionRequest{In: filter.PlaneRequest{Rect: rect(0, 0, 4, 4), HiPlane: 0}})
	assert.ErrorIs(t, err, ErrRegion)
	_, err = p.Fetch(&filter.RegionRequest{In: filter.PlaneRequest{Rect: rect(0, 0, 1, 1), HiPlane: 3}})
	assert.ErrorIs(t, err, ErrRegion)
}

func TestStoreKeepsSourceIntact(t *testing.T) {
	p, err := FromImage(gradient(4, 3))
	require.NoError(t, err)
	req := filter.PlaneRequest{Rect: rect(0, 0, 3, 4), LoPlane: 0, HiPlane: 2}

	region, err := p.Fetch(&filter.RegionRequest{In: req, Out: req})
	require.NoError(t, err)
	for i := range region.Out.Data {
		region.Out.Data[i] = 255 - region.In.Data[i]
	}
	require.NoError(t, p.Store(region))

	again, err := p.Fetch(&filter.RegionRequest{In: req, Out: req})
	require.NoError(t, err)
	assert.Equal(t, region.In.Data, again.In.Data, "source pixels are never overwritten")
	assert.Equal(t, region.Out.Data, again.Out.Data)

	out := p.Image()
	r, g, b, _ := out.At(2, 1).RGBA()
	assert.Equal(t, uint32(255-20), r>>8)
	assert.Equal(t, uint32(255-10), g>>8)
	assert.Equal(t, uint32(255-7), b>>8)

	region.Out.Data = region.Out.Data[:3]
	assert.ErrorIs(t, p.Store(region), ErrRegion)
}

func TestMaskAndSelection(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 4, 3))
	mask.SetGray(2, 1, color.Gray{Y: 200})
	p, err := FromImage(gradient(4, 3), WithMask(mask), WithSelection(image.Rect(1, 1, 3, 3)))
	require.NoError(t, err)
	info := p.Info()
	assert.True(t, info.HasMask)
	assert.Equal(t, rect(1, 1, 3, 3), info.FilterRect())

	region, err := p.Fetch(&filter.RegionRequest{
		Mask: filter.PlaneRequest{Rect: rect(1, 1, 3, 3)},
	})
	require.NoError(t, err)
	m := region.Mask
	assert.Equal(t, 8, m.Depth)
	assert.Equal(t, byte(200), m.Data[m.Offset(2, 1)])
	assert.Equal(t, byte(0), m.Data[m.Offset(1, 1)])
}

func TestSixteenBitRoundTrip(t *testing.T) {
	src := image.NewNRGBA64(image.Rect(0, 0, 2, 1))
	src.SetNRGBA64(1, 0, color.NRGBA64{R: 0xffff, G: 0x8000, B: 0, A: 0xffff})
	p, err := FromImage(src, WithColors(color.White, color.Black))
	require.NoError(t, err)
	info := p.Info()
	assert.Equal(t, filterapi.ModeRGB48, info.Mode)
	assert.Equal(t, 4, info.Planes)
	assert.Equal(t, filterapi.RGBColor{Red: 0xffff, Green: 0xffff, Blue: 0xffff}, info.Foreground)
	assert.Equal(t, filterapi.RGBColor{}, info.Background)

	region, err := p.Fetch(&filter.RegionRequest{In: filter.PlaneRequest{Rect: rect(0, 1, 1, 2), HiPlane: 0}})
	require.NoError(t, err)
	assert.Equal(t, uint16(32768), binary.NativeEndian.Uint16(region.In.Data), "full intensity is 32768")

	out := p.Image().(*image.NRGBA64)
	assert.Equal(t, src.NRGBA64At(1, 0), out.NRGBA64At(1, 0))
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, Save(path, gradient(3, 2)))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	r, _, _, _ := img.At(2, 0).RGBA()
	assert.Equal(t, uint32(20), r>>8)

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}
