// Package imaging serves Go images to filter sessions. A Provider keeps the document as
// interleaved planes in the classic layout and hands out copies of the regions a filter
// asks for; stored regions are written into a separate destination so every fetch of the
// source sees the original pixels.
package imaging

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
)

// ErrRegion is returned for requests the document cannot serve.
var ErrRegion = errors.New("imaging: bad region request")

// Provider implements filter.ImageProvider over an in-memory document.
type Provider struct {
	info filter.ImageInfo
	src  []byte
	dst  []byte
	mask []byte
}

var _ filter.ImageProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithSelection limits filtering to r.
func WithSelection(r image.Rectangle) Option {
	return func(p *Provider) {
		p.info.Selection = filterapi.Rect{
			Top: int16(r.Min.Y), Left: int16(r.Min.X), Bottom: int16(r.Max.Y), Right: int16(r.Max.X),
		}
	}
}

// WithMask serves m as the selection mask. m must cover the image bounds.
func WithMask(m *image.Gray) Option {
	return func(p *Provider) {
		w, h := p.info.Width, p.info.Height
		p.mask = make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p.mask[y*w+x] = m.GrayAt(m.Rect.Min.X+x, m.Rect.Min.Y+y).Y
			}
		}
		p.info.HasMask = true
	}
}

// WithTitle names the document.
func WithTitle(title string) Option {
	return func(p *Provider) { p.info.Title = title }
}

// WithColors sets the foreground and background colors.
func WithColors(fg, bg color.Color) Option {
	return func(p *Provider) {
		p.info.Foreground = rgbColor(fg)
		p.info.Background = rgbColor(bg)
	}
}

// WithResolution sets the document resolution in pixels per inch.
func WithResolution(ppi float64) Option {
	return func(p *Provider) { p.info.Resolution = ppi }
}

func rgbColor(c color.Color) filterapi.RGBColor {
	r, g, b, _ := c.RGBA()
	return filterapi.RGBColor{Red: uint16(r), Green: uint16(g), Blue: uint16(b)}
}

// FromImage builds a provider for img. Gray images become grayscale documents, everything
// else RGB; an image with any transparency gets a trailing transparency plane. 16-bit
// images keep their depth.
func FromImage(img image.Image, opts ...Option) (*Provider, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 || b.Dx() > 30000 || b.Dy() > 30000 {
		return nil, fmt.Errorf("imaging: unsupported image size %dx%d", b.Dx(), b.Dy())
	}
	p := &Provider{info: filter.ImageInfo{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Mode:       filterapi.ModeRGBColor,
		Depth:      8,
		Planes:     3,
		Foreground: filterapi.RGBColor{},
		Background: filterapi.RGBColor{Red: 0xffff, Green: 0xffff, Blue: 0xffff},
	}}
	switch img.(type) {
	case *image.Gray:
		p.info.Mode, p.info.Planes = filterapi.ModeGrayScale, 1
	case *image.Gray16:
		p.info.Mode, p.info.Planes, p.info.Depth = filterapi.ModeGrayScale, 1, 16
	case *image.RGBA64, *image.NRGBA64:
		p.info.Depth = 16
	}
	if p.info.Planes == 3 && !opaque(img) {
		p.info.Planes = 4
		p.info.Transparency = true
	}
	if p.info.Depth == 16 {
		p.info.Mode = mode16(p.info.Mode)
	}
	p.src = encode(img, p.info)
	p.dst = append([]byte(nil), p.src...)
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func mode16(m filterapi.ImageMode) filterapi.ImageMode {
	if m == filterapi.ModeGrayScale {
		return filterapi.ModeGray16
	}
	return filterapi.ModeRGB48
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

func (p *Provider) Info() filter.ImageInfo { return p.info }

func (p *Provider) pixelBytes() int { return p.info.Planes * p.info.BytesPerChannel() }

func (p *Provider) check(r filter.PlaneRequest, planes int) error {
	bounds := p.info.Bounds()
	if r.Rect.Top < bounds.Top || r.Rect.Left < bounds.Left ||
		r.Rect.Bottom > bounds.Bottom || r.Rect.Right > bounds.Right {
		return fmt.Errorf("%w: rectangle %+v outside %dx%d", ErrRegion, r.Rect, p.info.Width, p.info.Height)
	}
	if r.LoPlane < 0 || r.HiPlane >= planes {
		return fmt.Errorf("%w: planes %d..%d of %d", ErrRegion, r.LoPlane, r.HiPlane, planes)
	}
	return nil
}

// extract copies the requested planes of r out of doc.
func (p *Provider) extract(doc []byte, r filter.PlaneRequest, planes, depth int) filter.Plane {
	bpc := depth / 8
	out := filter.Plane{PlaneRequest: r, Depth: depth}
	if r.Empty() {
		return out
	}
	px := r.Planes() * bpc
	out.RowBytes = r.Rect.Width() * px
	out.Data = make([]byte, out.RowBytes*r.Rect.Height())
	stride := planes * bpc
	for v := int(r.Rect.Top); v < int(r.Rect.Bottom); v++ {
		for h := int(r.Rect.Left); h < int(r.Rect.Right); h++ {
			from := (v*p.info.Width+h)*stride + r.LoPlane*bpc
			copy(out.Data[out.Offset(h, v):out.Offset(h, v)+px], doc[from:from+px])
		}
	}
	return out
}

// Fetch serves source, destination and mask pixels.
func (p *Provider) Fetch(req *filter.RegionRequest) (*filter.Region, error) {
	region := &filter.Region{}
	if !req.In.Empty() {
		if err := p.check(req.In, p.info.Planes); err != nil {
			return nil, err
		}
		region.In = p.extract(p.src, req.In, p.info.Planes, p.info.Depth)
	}
	if !req.Out.Empty() {
		if err := p.check(req.Out, p.info.Planes); err != nil {
			return nil, err
		}
		region.Out = p.extract(p.dst, req.Out, p.info.Planes, p.info.Depth)
	}
	if !req.Mask.Empty() && p.mask != nil {
		m := req.Mask
		m.LoPlane, m.HiPlane = 0, 0
		if err := p.check(m, 1); err != nil {
			return nil, err
		}
		region.Mask = p.extract(p.mask, m, 1, 8)
		if p.info.Depth == 16 {
			region.Mask = widen(region.Mask)
		}
	}
	return region, nil
}

// widen converts an 8-bit plane to 16 bits per sample.
func widen(pl filter.Plane) filter.Plane {
	out := filter.Plane{PlaneRequest: pl.PlaneRequest, Depth: 16, RowBytes: pl.RowBytes * 2}
	out.Data = make([]byte, 0, len(pl.Data)*2)
	for _, v := range pl.Data {
		out.Data = binary.NativeEndian.AppendUint16(out.Data, to16(uint32(v)*0x101))
	}
	return out
}

// Store writes region.Out into the destination document.
func (p *Provider) Store(region *filter.Region) error {
	out := region.Out
	if out.Empty() {
		return nil
	}
	if err := p.check(out.PlaneRequest, p.info.Planes); err != nil {
		return err
	}
	bpc := p.info.BytesPerChannel()
	px := out.Planes() * bpc
	if len(out.Data) < out.RowBytes*(out.Rect.Height()-1)+out.Rect.Width()*px {
		return fmt.Errorf("%w: %d bytes for %+v", ErrRegion, len(out.Data), out.Rect)
	}
	stride := p.pixelBytes()
	for v := int(out.Rect.Top); v < int(out.Rect.Bottom); v++ {
		for h := int(out.Rect.Left); h < int(out.Rect.Right); h++ {
			to := (v*p.info.Width+h)*stride + out.LoPlane*bpc
			o := out.Offset(h, v)
			copy(p.dst[to:to+px], out.Data[o:o+px])
		}
	}
	return nil
}

// Image returns the destination document as an image.
func (p *Provider) Image() image.Image {
	return decode(p.dst, p.info)
}
