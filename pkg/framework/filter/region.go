package filter

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
)

// ErrOutOfBounds is returned for region requests outside the image that the plug-in asked
// the host to reject.
var ErrOutOfBounds = errors.New("filter: region outside image")

// nativePlane is the host buffer behind one of inData, outData and maskData.
type nativePlane struct {
	req      PlaneRequest
	clip     filterapi.Rect
	block    memory.Block
	rowBytes int
	pixel    int
	padding  int16
}

func (p *nativePlane) data() []byte {
	if p.req.Empty() {
		return nil
	}
	return p.block.Bytes()[:p.rowBytes*p.req.Rect.Height()]
}

func (p *nativePlane) addr() uintptr {
	if p.req.Empty() {
		return 0
	}
	return p.block.Addr()
}

type regionState struct {
	in, out, mask nativePlane
	loaded        bool
	stored        bool
}

// request reads the rectangles and planes the plug-in asked for from the record.
func (s *Session) request() RegionRequest {
	r := s.rec
	req := RegionRequest{
		In:  PlaneRequest{Rect: r.InRect, LoPlane: int(r.InLoPlane), HiPlane: int(r.InHiPlane)},
		Out: PlaneRequest{Rect: r.OutRect, LoPlane: int(r.OutLoPlane), HiPlane: int(r.OutHiPlane)},
	}
	if r.HaveMask != 0 {
		req.Mask = PlaneRequest{Rect: r.MaskRect}
	}
	return req
}

func (s *Session) requestEmpty() bool {
	req := s.request()
	return req.In.Empty() && req.Out.Empty() && req.Mask.Empty()
}

// prepare sizes the host buffer for r and checks r against the image and the padding rule.
func (s *Session) prepare(p *nativePlane, r PlaneRequest, planes int, padding int16) error {
	p.req = r
	p.padding = padding
	p.clip = intersect(r.Rect, s.info.Bounds())
	if r.Empty() {
		p.rowBytes, p.pixel = 0, 0
		return nil
	}
	if r.LoPlane < 0 || r.HiPlane >= planes {
		return fmt.Errorf("%w: planes %d..%d of %d", ErrOutOfBounds, r.LoPlane, r.HiPlane, planes)
	}
	if p.clip != r.Rect {
		switch {
		case padding == filterapi.PaddingErrorOnBounds:
			return fmt.Errorf("%w: %+v", ErrOutOfBounds, r.Rect)
		case padding == filterapi.PaddingEdgeReplication && p.clip.Empty():
			return fmt.Errorf("%w: nothing to replicate for %+v", ErrOutOfBounds, r.Rect)
		}
	}

	p.pixel = r.Planes() * s.info.BytesPerChannel()
	p.rowBytes = r.Rect.Width() * p.pixel
	need := p.rowBytes * r.Rect.Height()
	if limit := s.regionLimit(p.pixel); int64(need) > limit {
		p.rowBytes, p.pixel = 0, 0
		return &HostError{Kind: HostMemory, Err: fmt.Errorf("region %+v needs %d bytes, limit %d", r.Rect, need, limit)}
	}
	if p.block.Cap() < need {
		if !p.block.IsZero() {
			s.mem.Free(p.block)
			p.block = memory.Block{}
		}
		b, err := s.mem.Alloc(need)
		if err != nil {
			return &HostError{Kind: HostMemory, Err: err}
		}
		p.block = b
	}
	clear(p.data())
	return nil
}

// regionLimit is the largest buffer one plane request may take: the host's max space, or the
// whole image at pixel bytes per pixel when that is larger.
func (s *Session) regionLimit(pixel int) int64 {
	return max(s.host.maxSpace, int64(s.info.Width)*int64(s.info.Height)*int64(pixel))
}

func (p *nativePlane) clipped() PlaneRequest {
	if p.req.Empty() || p.clip.Empty() {
		return PlaneRequest{}
	}
	return PlaneRequest{Rect: p.clip, LoPlane: p.req.LoPlane, HiPlane: p.req.HiPlane}
}

// fill copies src into the host buffer and pads what lies outside the image.
func (p *nativePlane) fill(src Plane, depth int) error {
	if p.req.Empty() {
		return nil
	}
	dst := p.data()
	r, c := p.req.Rect, p.clip
	if !c.Empty() {
		width := c.Width() * p.pixel
		if src.RowBytes < width || len(src.Data) < src.RowBytes*(c.Height()-1)+width {
			return fmt.Errorf("provider returned %d bytes for %dx%d pixels of %d bytes", len(src.Data), c.Width(), c.Height(), p.pixel)
		}
		for v := int(c.Top); v < int(c.Bottom); v++ {
			so := (v - int(c.Top)) * src.RowBytes
			do := (v-int(r.Top))*p.rowBytes + (int(c.Left)-int(r.Left))*p.pixel
			copy(dst[do:do+width], src.Data[so:so+width])
		}
	}
	if c == r {
		return nil
	}

	switch {
	case p.padding == filterapi.PaddingEdgeReplication:
		for v := int(r.Top); v < int(r.Bottom); v++ {
			sv := clampInt(v, int(c.Top), int(c.Bottom)-1)
			for h := int(r.Left); h < int(r.Right); h++ {
				if v == sv && h >= int(c.Left) && h < int(c.Right) {
					continue
				}
				sh := clampInt(h, int(c.Left), int(c.Right)-1)
				copy(dst[p.offset(h, v):p.offset(h, v)+p.pixel], dst[p.offset(sh, sv):p.offset(sh, sv)+p.pixel])
			}
		}
	case p.padding >= 0:
		sample := padSample(p.padding, depth)
		for v := int(r.Top); v < int(r.Bottom); v++ {
			for h := int(r.Left); h < int(r.Right); h++ {
				if inside(c, h, v) {
					continue
				}
				px := dst[p.offset(h, v) : p.offset(h, v)+p.pixel]
				for i := 0; i < len(px); i += len(sample) {
					copy(px[i:], sample)
				}
			}
		}
	}
	return nil
}

func (p *nativePlane) offset(h, v int) int {
	return (v-int(p.req.Rect.Top))*p.rowBytes + (h-int(p.req.Rect.Left))*p.pixel
}

// extract copies the part of the host buffer inside the image.
func (p *nativePlane) extract(depth int) Plane {
	c := p.clipped()
	if c.Empty() {
		return Plane{}
	}
	width := c.Rect.Width() * p.pixel
	out := Plane{PlaneRequest: c, Depth: depth, RowBytes: width, Data: make([]byte, width*c.Rect.Height())}
	src := p.data()
	for v := int(c.Rect.Top); v < int(c.Rect.Bottom); v++ {
		so := p.offset(int(c.Rect.Left), v)
		copy(out.Data[(v-int(c.Rect.Top))*width:], src[so:so+width])
	}
	return out
}

func padSample(value int16, depth int) []byte {
	if depth == 16 {
		v := uint16((int(value)*32768 + 127) / 255)
		return binary.NativeEndian.AppendUint16(nil, v)
	}
	return []byte{byte(value)}
}

func inside(r filterapi.Rect, h, v int) bool {
	return h >= int(r.Left) && h < int(r.Right) && v >= int(r.Top) && v < int(r.Bottom)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// loadRegion serves the rectangles the plug-in currently asks for: one provider fetch, then
// the record's data pointers are set to the host buffers.
func (s *Session) loadRegion() error {
	req := s.request()
	st := &s.region
	st.loaded, st.stored = false, false
	planes := s.info.Planes
	if err := s.prepare(&st.in, req.In, planes, s.rec.InputPadding); err != nil {
		return s.regionError(err)
	}
	if err := s.prepare(&st.out, req.Out, planes, s.rec.OutputPadding); err != nil {
		return s.regionError(err)
	}
	if err := s.prepare(&st.mask, req.Mask, 1, s.rec.MaskPadding); err != nil {
		return s.regionError(err)
	}

	if !req.In.Empty() || !req.Out.Empty() || !req.Mask.Empty() {
		clipped := RegionRequest{In: st.in.clipped(), Out: st.out.clipped(), Mask: st.mask.clipped()}
		region, err := s.provider.Fetch(&clipped)
		s.fetches++
		if err != nil {
			return &HostError{Kind: HostImage, Err: fmt.Errorf("fetching region: %w", err)}
		}
		for _, f := range []struct {
			p   *nativePlane
			src Plane
		}{{&st.in, region.In}, {&st.out, region.Out}, {&st.mask, region.Mask}} {
			if err := f.p.fill(f.src, s.info.Depth); err != nil {
				return &HostError{Kind: HostImage, Err: err}
			}
		}
		st.loaded = true
	}

	bpc := int32(s.info.BytesPerChannel())
	rec := s.rec
	rec.InData, rec.InRowBytes = st.in.addr(), int32(st.in.rowBytes)
	rec.InColumnBytes, rec.InPlaneBytes = int32(st.in.pixel), bpc
	rec.OutData, rec.OutRowBytes = st.out.addr(), int32(st.out.rowBytes)
	rec.OutColumnBytes, rec.OutPlaneBytes = int32(st.out.pixel), bpc
	rec.MaskData, rec.MaskRowBytes = st.mask.addr(), int32(st.mask.rowBytes)
	return nil
}

func (s *Session) regionError(err error) error {
	var he *HostError
	if errors.As(err, &he) {
		return err
	}
	return &HostError{Kind: HostImage, Err: err}
}

// storeRegion hands the output of the last loaded region to the provider once.
func (s *Session) storeRegion() error {
	st := &s.region
	if !st.loaded || st.stored {
		return nil
	}
	st.stored = true
	out := st.out.extract(s.info.Depth)
	if out.Empty() {
		return nil
	}
	s.stores++
	if err := s.provider.Store(&Region{Out: out}); err != nil {
		return &HostError{Kind: HostImage, Err: fmt.Errorf("storing region: %w", err)}
	}
	return nil
}

// AdvanceState commits the output written so far and serves the rectangles the plug-in
// now asks for, without leaving the current selector.
func (s *Session) AdvanceState() filterapi.OSErr {
	if s.state != StateStart && s.state != StateContinue {
		return filterapi.ParamErr
	}
	if err := s.storeRegion(); err != nil {
		s.log.Warn("advance state: store failed", "error", err)
		return filterapi.WritErr
	}
	if err := s.loadRegion(); err != nil {
		s.log.Debug("advance state: load failed", "error", err)
		if errors.Is(err, ErrOutOfBounds) {
			return filterapi.ParamErr
		}
		var he *HostError
		if errors.As(err, &he) && he.Kind == HostMemory {
			return filterapi.MemFullErr
		}
		return filterapi.ReadErr
	}
	return filterapi.NoErr
}

// Input returns the source pixels currently served to the plug-in.
func (s *Session) Input() Plane { return s.region.in.view(s.info.Depth) }

// Output returns the destination buffer currently served to the plug-in.
func (s *Session) Output() Plane { return s.region.out.view(s.info.Depth) }

// Mask returns the mask pixels currently served to the plug-in.
func (s *Session) Mask() Plane { return s.region.mask.view(s.info.Depth) }

func (p *nativePlane) view(depth int) Plane {
	if p.req.Empty() {
		return Plane{}
	}
	return Plane{PlaneRequest: p.req, Depth: depth, RowBytes: p.rowBytes, Data: p.data()}
}

func (s *Session) freeRegion() {
	st := &s.region
	for _, p := range []*nativePlane{&st.in, &st.out, &st.mask} {
		if !p.block.IsZero() {
			s.mem.Free(p.block)
		}
		*p = nativePlane{}
	}
	st.loaded, st.stored = false, false
	if s.rec != nil {
		s.rec.InData, s.rec.OutData, s.rec.MaskData = 0, 0, 0
	}
}
