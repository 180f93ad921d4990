package imaging

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	// Registered decoders for Load.
	_ "image/gif"
	_ "image/jpeg"

	"github.com/justyntemme/filterhost/pkg/framework/filter"
)

// max16 is full intensity of a 16-bit sample in the classic interface.
const max16 = 32768

// to16 and from16 convert between Go's 0..0xffff color range and 0..max16.
func to16(v uint32) uint16   { return uint16((v*max16 + 0x7fff) / 0xffff) }
func from16(v uint16) uint16 { return uint16(min((uint32(v)*0xffff+max16/2)/max16, 0xffff)) }

// encode lays img out as interleaved planes. 16-bit samples are native endian in the
// range 0..32768.
func encode(img image.Image, info filter.ImageInfo) []byte {
	b := img.Bounds()
	bpc := info.BytesPerChannel()
	buf := make([]byte, info.Width*info.Height*info.Planes*bpc)
	i := 0
	put := func(v uint32) {
		if bpc == 2 {
			binary.NativeEndian.PutUint16(buf[i:], to16(v))
		} else {
			buf[i] = uint8(v >> 8)
		}
		i += bpc
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if info.Planes == 1 {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				put(uint32(g.Y))
				continue
			}
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			put(uint32(c.R))
			put(uint32(c.G))
			put(uint32(c.B))
			if info.Planes == 4 {
				put(uint32(c.A))
			}
		}
	}
	return buf
}

// decode is the inverse of encode.
func decode(buf []byte, info filter.ImageInfo) image.Image {
	r := image.Rect(0, 0, info.Width, info.Height)
	bpc := info.BytesPerChannel()
	i := 0
	get := func() uint16 {
		defer func() { i += bpc }()
		if bpc == 2 {
			return from16(binary.NativeEndian.Uint16(buf[i:]))
		}
		return uint16(buf[i]) * 0x101
	}
	switch {
	case info.Planes == 1 && bpc == 1:
		img := image.NewGray(r)
		copy(img.Pix, buf)
		return img
	case info.Planes == 1:
		img := image.NewGray16(r)
		for p := 0; p < info.Width*info.Height; p++ {
			img.SetGray16(p%info.Width, p/info.Width, color.Gray16{Y: get()})
		}
		return img
	case bpc == 1:
		img := image.NewNRGBA(r)
		for p := 0; p < info.Width*info.Height; p++ {
			px := img.Pix[p*4 : p*4+4]
			copy(px, buf[p*info.Planes:p*info.Planes+3])
			px[3] = 0xff
			if info.Planes == 4 {
				px[3] = buf[p*info.Planes+3]
			}
		}
		return img
	default:
		img := image.NewNRGBA64(r)
		for y := 0; y < info.Height; y++ {
			for x := 0; x < info.Width; x++ {
				c := color.NRGBA64{R: get(), G: get(), B: get(), A: 0xffff}
				if info.Planes == 4 {
					c.A = get()
				}
				img.SetNRGBA64(x, y, c)
			}
		}
		return img
	}
}

// Load decodes a PNG, JPEG or GIF file.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// Save writes img as a PNG file.
func Save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
