package filter

import (
	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// ImageInfo describes the document the filter runs on.
type ImageInfo struct {
	Width  int
	Height int
	// Planes counts every plane including a trailing transparency plane.
	Planes int
	Mode   filterapi.ImageMode
	// Depth is the number of bits per channel: 8 or 16.
	Depth int
	// Selection bounds the pixels to filter. An empty rectangle selects the whole image.
	Selection filterapi.Rect
	// HasMask reports whether the provider serves a selection mask.
	HasMask bool
	// Transparency reports whether the last plane is a layer transparency plane.
	Transparency bool
	// ProtectedTransparency means the transparency plane must not be changed.
	ProtectedTransparency bool
	Floating              bool
	// Resolution in pixels per inch; zero means 72.
	Resolution float64
	Title      string
	Foreground filterapi.RGBColor
	Background filterapi.RGBColor
}

// Bounds returns the image rectangle.
func (i ImageInfo) Bounds() filterapi.Rect {
	return filterapi.Rect{Bottom: int16(i.Height), Right: int16(i.Width)}
}

// FilterRect returns the rectangle to filter: the selection bounds, or the image.
func (i ImageInfo) FilterRect() filterapi.Rect {
	if i.Selection.Empty() {
		return i.Bounds()
	}
	return intersect(i.Selection, i.Bounds())
}

// HasSelection reports whether only part of the image is selected.
func (i ImageInfo) HasSelection() bool {
	return !i.Selection.Empty() && i.Selection != i.Bounds()
}

// FilterCase derives the filter case from the selection and transparency situation.
func (i ImageInfo) FilterCase() filterapi.FilterCase {
	sel := i.HasSelection() || i.HasMask
	switch {
	case i.Floating:
		return filterapi.FilterCaseFloatingSelection
	case i.Transparency && i.ProtectedTransparency && sel:
		return filterapi.FilterCaseProtectedTransparencyWithSelection
	case i.Transparency && i.ProtectedTransparency:
		return filterapi.FilterCaseProtectedTransparencyNoSelection
	case i.Transparency && sel:
		return filterapi.FilterCaseEditableTransparencyWithSelection
	case i.Transparency:
		return filterapi.FilterCaseEditableTransparencyNoSelection
	case sel:
		return filterapi.FilterCaseFlatImageWithSelection
	default:
		return filterapi.FilterCaseFlatImageNoSelection
	}
}

// BytesPerChannel returns the size of one channel sample.
func (i ImageInfo) BytesPerChannel() int {
	if i.Depth == 16 {
		return 2
	}
	return 1
}

// PlaneRequest names a rectangle and an inclusive plane range.
type PlaneRequest struct {
	Rect    filterapi.Rect
	LoPlane int
	HiPlane int
}

// Empty reports whether nothing is requested.
func (r PlaneRequest) Empty() bool {
	return r.Rect.Empty() || r.HiPlane < r.LoPlane
}

// Planes returns the number of planes requested.
func (r PlaneRequest) Planes() int {
	if r.HiPlane < r.LoPlane {
		return 0
	}
	return r.HiPlane - r.LoPlane + 1
}

// RegionRequest asks the provider for source, destination and mask pixels. Rectangles are
// always inside the image.
type RegionRequest struct {
	In   PlaneRequest
	Out  PlaneRequest
	Mask PlaneRequest
}

// Plane is interleaved pixel data of a PlaneRequest.
type Plane struct {
	PlaneRequest
	// Depth is the number of bits per channel.
	Depth    int
	RowBytes int
	Data     []byte
}

// PixelBytes returns the size of one interleaved pixel.
func (p Plane) PixelBytes() int {
	return p.Planes() * p.Depth / 8
}

// Offset returns the byte offset of the pixel at image coordinates (h, v).
func (p Plane) Offset(h, v int) int {
	return (v-int(p.Rect.Top))*p.RowBytes + (h-int(p.Rect.Left))*p.PixelBytes()
}

// Region is the pixel data of one RegionRequest.
type Region struct {
	In   Plane
	Out  Plane
	Mask Plane
}

// ImageProvider serves the pixels of the document and receives the filtered result.
type ImageProvider interface {
	Info() ImageInfo
	// Fetch returns the pixels for req. Out carries the current destination pixels.
	Fetch(req *RegionRequest) (*Region, error)
	// Store writes region.Out back to the destination.
	Store(region *Region) error
}

func intersect(a, b filterapi.Rect) filterapi.Rect {
	r := filterapi.Rect{
		Top:    max(a.Top, b.Top),
		Left:   max(a.Left, b.Left),
		Bottom: min(a.Bottom, b.Bottom),
		Right:  min(a.Right, b.Right),
	}
	if r.Empty() {
		return filterapi.Rect{}
	}
	return r
}
