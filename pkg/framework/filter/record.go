package filter

import (
	"fmt"
	"math"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/colorspace"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
	"github.com/justyntemme/filterhost/pkg/framework/state"
)

// sRGB primaries and white point.
var srgbMonitor = filterapi.PlugInMonitor{
	Gamma:  filterapi.FixedFromFloat(2.2),
	RedX:   filterapi.FixedFromFloat(0.64),
	RedY:   filterapi.FixedFromFloat(0.33),
	GreenX: filterapi.FixedFromFloat(0.30),
	GreenY: filterapi.FixedFromFloat(0.60),
	BlueX:  filterapi.FixedFromFloat(0.15),
	BlueY:  filterapi.FixedFromFloat(0.06),
	WhiteX: filterapi.FixedFromFloat(0.3127),
	WhiteY: filterapi.FixedFromFloat(0.3290),
}

// setupRecord fills the filter record with everything known before the first selector.
func (s *Session) setupRecord() {
	i := s.info
	rec := s.rec
	*rec = filterapi.FilterRecord{}

	rec.SerialNumber = s.host.serial
	rec.ImageSize = filterapi.Point{V: int16(i.Height), H: int16(i.Width)}
	rec.WholeSize = rec.ImageSize
	rec.Planes = int16(i.Planes)
	rec.FilterRect = i.FilterRect()
	rec.Background, rec.Foreground = i.Background, i.Foreground
	rec.BackColor = s.filterColor(i.Background)
	rec.ForeColor = s.filterColor(i.Foreground)
	rec.MaxSpace = int32(min(s.host.maxSpace, math.MaxInt32))
	rec.HostSig = s.host.signature

	rec.ImageMode = i.Mode
	res := i.Resolution
	if res <= 0 {
		res = 72
	}
	rec.ImageHRes = filterapi.FixedFromFloat(res)
	rec.ImageVRes = filterapi.FixedFromFloat(res)
	rec.Monitor = srgbMonitor

	rec.IsFloating = boolean(i.Floating)
	rec.HaveMask = boolean(i.HasMask)
	rec.FilterCase = i.FilterCase()
	rec.DummyPlaneValue = -1

	rec.SupportsPadding = 1
	rec.InputPadding = filterapi.PaddingErrorOnBounds
	rec.OutputPadding = filterapi.PaddingErrorOnBounds
	rec.MaskPadding = filterapi.PaddingErrorOnBounds
	rec.InputRate = filterapi.FixedFromInt(1)
	rec.MaskRate = filterapi.FixedFromInt(1)

	color, alpha := int16(i.Planes), int16(0)
	if i.Transparency {
		color, alpha = color-1, 1
	}
	rec.InLayerPlanes, rec.InTransparencyMask = color, alpha
	rec.OutLayerPlanes, rec.OutTransparencyMask = color, alpha
	rec.AbsLayerPlanes, rec.AbsTransparencyMask = color, alpha
	rec.Depth = int32(i.Depth)

	rec.DescriptorParameters = s.descBlock.Addr()
	rec.ErrorString = s.errBlock.Addr()

	*s.desc = filterapi.DescriptorParameters{
		Version:    filterapi.DescriptorParametersVersion,
		PlayInfo:   filterapi.PlayDialogNone,
		RecordInfo: filterapi.RecordDialogOptional,
	}
	if s.host.showDialogs {
		s.desc.PlayInfo = filterapi.PlayDialogOptional
	}
}

func boolean(b bool) filterapi.Boolean {
	if b {
		return 1
	}
	return 0
}

// modeSpace returns the color space whose components describe pixels of mode.
func modeSpace(mode filterapi.ImageMode) colorspace.Space {
	switch mode {
	case filterapi.ModeGrayScale, filterapi.ModeGray16, filterapi.ModeGray32,
		filterapi.ModeBitmap, filterapi.ModeDuotone, filterapi.ModeDuotone16:
		return colorspace.Gray
	case filterapi.ModeCMYKColor, filterapi.ModeCMYK64:
		return colorspace.CMYK
	case filterapi.ModeLabColor, filterapi.ModeLab48:
		return colorspace.Lab
	case filterapi.ModeHSLColor:
		return colorspace.HSL
	case filterapi.ModeHSBColor:
		return colorspace.HSB
	default:
		return colorspace.RGB
	}
}

func rgbUnit(c filterapi.RGBColor) colorspace.Unit {
	return colorspace.Unit{float64(c.Red) / 65535, float64(c.Green) / 65535, float64(c.Blue) / 65535}
}

// filterColor converts c to the image mode's components.
func (s *Session) filterColor(c filterapi.RGBColor) filterapi.FilterColor {
	u, _, err := colorspace.Convert(colorspace.RGB, modeSpace(s.info.Mode), rgbUnit(c))
	if err != nil {
		return filterapi.FilterColor{}
	}
	return filterapi.FilterColor(colorspace.To8(u))
}

// DescriptorToHandle stores d in a new handle in the form the descriptor procs read.
func (s *Session) DescriptorToHandle(d *descriptor.Descriptor) (filterapi.Handle, error) {
	b, err := descriptor.Marshal(d)
	if err != nil {
		return 0, err
	}
	h, err := s.handles.Allocate(len(b))
	if err != nil {
		return 0, err
	}
	dst, err := s.handles.Bytes(h)
	if err != nil {
		return 0, err
	}
	copy(dst, b)
	return h, nil
}

// DescriptorFromHandle decodes a handle written by DescriptorToHandle.
func (s *Session) DescriptorFromHandle(h filterapi.Handle) (*descriptor.Descriptor, error) {
	b, err := s.handles.Bytes(h)
	if err != nil {
		return nil, err
	}
	d, err := descriptor.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	d.SetFlagSource(s.Terminology())
	return d, nil
}

// captureDescriptor keeps the descriptor the plug-in left in the descriptor parameters.
func (s *Session) captureDescriptor() {
	h := s.desc.Descriptor
	if h == 0 || h == s.descHandle {
		return
	}
	d, err := s.DescriptorFromHandle(h)
	if err != nil {
		s.log.Warn("plug-in returned an unreadable descriptor", "error", err)
		return
	}
	s.descHandle = h
	s.lastDesc = d
	s.log.Debug("descriptor recorded", "keys", d.Len())
}

// restore feeds back what the plug-in asked to remember last time.
func (s *Session) restore() error {
	if s.plugin != "" {
		descriptor.ProcessCache.Restore(s.plugin, s.registry)
	}
	if s.store == nil {
		return nil
	}
	snap, err := s.store.LoadParameters(s.plugin)
	if err != nil {
		return &HostError{Kind: HostState, Err: err}
	}
	if snap == nil {
		return nil
	}

	if len(snap.Parameters) > 0 {
		h, err := s.handles.Allocate(len(snap.Parameters))
		if err != nil {
			return &HostError{Kind: HostMemory, Err: err}
		}
		b, _ := s.handles.Bytes(h)
		copy(b, snap.Parameters)
		s.rec.Parameters = h
	}
	s.resources.Load(snap.Resources)
	if snap.Descriptor != nil {
		h, err := s.DescriptorToHandle(snap.Descriptor)
		if err != nil {
			return &HostError{Kind: HostState, Err: fmt.Errorf("restoring descriptor: %w", err)}
		}
		s.desc.Descriptor, s.descHandle = h, h
		s.lastDesc = snap.Descriptor
	}
	s.registry.Load(snap.Registry, true)
	s.log.Debug("parameters restored",
		"parameters", len(snap.Parameters),
		"resources", len(snap.Resources),
		"registry", len(snap.Registry))
	return nil
}

// save stores what the plug-in wants remembered. It runs only after a successful invocation.
func (s *Session) save() error {
	if s.store == nil {
		return nil
	}
	snap := &state.Snapshot{
		Resources:  s.resources.Entries(),
		Descriptor: s.lastDesc,
		Registry:   s.registry.Persistent(),
	}
	if h := s.rec.Parameters; h != 0 {
		b, err := s.handles.Bytes(h)
		if err != nil {
			s.log.Warn("parameters handle is not a host handle", "handle", uintptr(h), "error", err)
		} else {
			snap.Parameters = append([]byte(nil), b...)
		}
	}
	if err := s.store.SaveParameters(s.plugin, snap); err != nil {
		return &HostError{Kind: HostState, Err: err}
	}
	return nil
}

// CountResources returns the number of pseudo-resources of type t.
func (s *Session) CountResources(t filterapi.OSType) int16 {
	return int16(min(s.resources.Count(t), math.MaxInt16))
}

// GetResource returns a new handle holding a copy of the resource at the 1-based index.
func (s *Session) GetResource(t filterapi.OSType, index int16) (filterapi.Handle, error) {
	data, err := s.resources.Get(t, int(index)-1)
	if err != nil {
		return 0, err
	}
	h, err := s.handles.Allocate(len(data))
	if err != nil {
		return 0, err
	}
	b, _ := s.handles.Bytes(h)
	copy(b, data)
	return h, nil
}

// DeleteResource removes the resource at the 1-based index.
func (s *Session) DeleteResource(t filterapi.OSType, index int16) error {
	return s.resources.Delete(t, int(index)-1)
}

// AddResource appends the contents of h as a resource of type t.
func (s *Session) AddResource(t filterapi.OSType, h filterapi.Handle) error {
	b, err := s.handles.Bytes(h)
	if err != nil {
		return err
	}
	s.resources.Add(t, b)
	return nil
}
