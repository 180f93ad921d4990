package filter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/colorspace"
	"github.com/justyntemme/filterhost/pkg/framework/suite"
)

// ErrPropertyUndefined is returned for properties the host does not answer or set.
var ErrPropertyUndefined = errors.New("filter: property undefined")

// hostVersion is reported for the host version property: major in the high word.
const hostVersion = 0x000D0000

type property struct {
	simple  int64
	complex []byte
}

var settable = map[filterapi.OSType]bool{
	filterapi.PropCopyright:       true,
	filterapi.PropURL:             true,
	filterapi.PropWatchSuspension: true,
}

func (s *Session) registerSuites() {
	static := func(table any) suite.Factory {
		return func() (any, func(), error) { return table, nil, nil }
	}
	b := s.broker
	b.Register(filterapi.SuiteHandle, 1, static(s.handles))
	b.Register(filterapi.SuiteHandle, 2, static(s.handles))
	b.Register(filterapi.SuiteBuffer, 1, static(s.buffers))
	b.Register(filterapi.SuiteActionDescriptor, 2, static(s.objects))
	b.Register(filterapi.SuiteActionList, 1, static(s.objects))
	b.Register(filterapi.SuiteActionReference, 2, static(s.objects))
	b.Register(filterapi.SuiteDescriptorRegistry, 1, static(s.registry))
	b.Register(filterapi.SuiteProperty, 1, static(s))
	b.Register(filterapi.SuiteUIHooks, 1, static(s))
	b.Register(filterapi.SuiteError, 1, static(s))
	b.Register(filterapi.SuiteColorSpace, 1, func() (any, func(), error) {
		t := colorspace.NewTable()
		s.colors = t
		return t, func() {
			s.log.Debug("color space suite torn down", "colors", t.Len())
			s.colors = nil
		}, nil
	})
}

// AcquireSuite negotiates a suite for the plug-in.
func (s *Session) AcquireSuite(name string, version int32) (any, error) {
	return s.broker.Acquire(name, version)
}

// ReleaseSuite drops the plug-in's reference to a suite.
func (s *Session) ReleaseSuite(name string, version int32) error {
	return s.broker.Release(name, version)
}

// Colors returns the color space suite instance while it is acquired.
func (s *Session) Colors() (*colorspace.Table, bool) {
	return s.colors, s.colors != nil
}

// TickCount returns sixtieths of a second since the session was created.
func (s *Session) TickCount() uint32 {
	return uint32(time.Since(s.created) * 60 / time.Second)
}

// GetProperty answers a property request. Numeric properties come back in simple, text and
// blob properties in complex.
func (s *Session) GetProperty(sig, key filterapi.OSType, index int32) (simple int64, complex []byte, err error) {
	if sig != s.host.signature && sig != filterapi.HostSignature {
		return 0, nil, fmt.Errorf("%w: signature '%s'", ErrPropertyUndefined, sig)
	}
	if p, ok := s.props[key]; ok {
		return p.simple, append([]byte(nil), p.complex...), nil
	}

	i := s.info
	switch key {
	case filterapi.PropNumberOfChannels:
		return int64(i.Planes), nil, nil
	case filterapi.PropImageMode:
		return int64(i.Mode), nil, nil
	case filterapi.PropChannelName:
		name, ok := channelName(i, int(index))
		if !ok {
			return 0, nil, fmt.Errorf("%w: channel %d", ErrPropertyUndefined, index)
		}
		return 0, []byte(name), nil
	case filterapi.PropSerialString:
		return 0, []byte(strconv.Itoa(int(s.host.serial))), nil
	case filterapi.PropTitle:
		title := i.Title
		if title == "" {
			title = "Untitled"
		}
		return 0, []byte(title), nil
	case filterapi.PropBigNudgeH, filterapi.PropBigNudgeV:
		return int64(filterapi.FixedFromInt(10)), nil, nil
	case filterapi.PropInterpolation:
		// bicubic
		return 2, nil, nil
	case filterapi.PropRulerUnits:
		// pixels
		return 0, nil, nil
	case filterapi.PropToolTips:
		return 1, nil, nil
	case filterapi.PropHostVersion:
		return hostVersion, nil, nil
	case filterapi.PropDocumentID:
		return int64(s.id.ID()), nil, nil
	case filterapi.PropCopyright, filterapi.PropWatchSuspension:
		return 0, nil, nil
	case filterapi.PropURL:
		return 0, []byte{}, nil
	}
	return 0, nil, fmt.Errorf("%w: '%s'", ErrPropertyUndefined, key)
}

// SetProperty stores one of the properties a plug-in may set.
func (s *Session) SetProperty(sig, key filterapi.OSType, index int32, simple int64, complex []byte) error {
	if sig != s.host.signature && sig != filterapi.HostSignature {
		return fmt.Errorf("%w: signature '%s'", ErrPropertyUndefined, sig)
	}
	if !settable[key] {
		return fmt.Errorf("%w: '%s' is read only", ErrPropertyUndefined, key)
	}
	s.props[key] = property{simple: simple, complex: append([]byte(nil), complex...)}
	s.log.Debug("property set", "key", key.String(), "simple", simple, "complex", len(complex))
	return nil
}

func channelName(i ImageInfo, index int) (string, bool) {
	var names []string
	switch modeSpace(i.Mode) {
	case colorspace.Gray:
		names = []string{"Gray"}
	case colorspace.CMYK:
		names = []string{"Cyan", "Magenta", "Yellow", "Black"}
	case colorspace.Lab:
		names = []string{"Lightness", "a", "b"}
	default:
		names = []string{"Red", "Green", "Blue"}
	}
	if i.Transparency && index == i.Planes-1 {
		return "Transparency", true
	}
	if index < 0 || index >= len(names) || index >= i.Planes {
		return "", false
	}
	return names[index], true
}

// ColorServices answers the colorServices callback. point is the sample point for the
// sample selector and may be nil otherwise.
func (s *Session) ColorServices(info *filterapi.ColorServicesInfo, point *filterapi.Point) filterapi.OSErr {
	switch info.Selector {
	case filterapi.ColorServicesChooseColor:
		// No picker is shown; the color offered is the color chosen.
		return s.convertServices(info)
	case filterapi.ColorServicesConvertColor:
		return s.convertServices(info)
	case filterapi.ColorServicesSamplePoint:
		if point == nil {
			return filterapi.ParamErr
		}
		space := modeSpace(s.info.Mode)
		u, err := s.samplePoint(*point, space)
		if err != nil {
			s.log.Debug("sample point failed", "v", point.V, "h", point.H, "error", err)
			return filterapi.ErrInvalidSamplePoint
		}
		info.SourceSpace = int16(space)
		info.ColorComponents = colorspace.ToServices(space, u)
		return s.convertServices(info)
	case filterapi.ColorServicesGetSpecialColor:
		var c filterapi.RGBColor
		switch int32(info.SelectorParameter) {
		case filterapi.SpecialColorForeground:
			c = s.info.Foreground
		case filterapi.SpecialColorBackground:
			c = s.info.Background
		default:
			return filterapi.ParamErr
		}
		info.SourceSpace = int16(colorspace.RGB)
		info.ColorComponents = colorspace.ToServices(colorspace.RGB, rgbUnit(c))
		return s.convertServices(info)
	}
	return filterapi.ParamErr
}

func (s *Session) convertServices(info *filterapi.ColorServicesInfo) filterapi.OSErr {
	if info.ResultSpace == filterapi.ColorServicesChosenSpace {
		info.ResultSpace = info.SourceSpace
	}
	from, to := colorspace.Space(info.SourceSpace), colorspace.Space(info.ResultSpace)
	u, inGamut, err := colorspace.Convert(from, to, colorspace.FromServices(from, info.ColorComponents))
	if err != nil {
		return filterapi.ParamErr
	}
	info.ColorComponents = colorspace.ToServices(to, u)
	info.ResultGamutInfoValid = 1
	info.ResultInGamut = boolean(inGamut)
	return filterapi.NoErr
}

// samplePoint reads the source pixel at p as components of space.
func (s *Session) samplePoint(p filterapi.Point, space colorspace.Space) (colorspace.Unit, error) {
	if !inside(s.info.Bounds(), int(p.H), int(p.V)) {
		return colorspace.Unit{}, fmt.Errorf("%w: %d,%d", ErrOutOfBounds, p.H, p.V)
	}
	channels := 3
	switch space {
	case colorspace.Gray:
		channels = 1
	case colorspace.CMYK:
		channels = 4
	}
	channels = min(channels, s.info.Planes)
	req := RegionRequest{In: PlaneRequest{
		Rect:    filterapi.Rect{Top: p.V, Left: p.H, Bottom: p.V + 1, Right: p.H + 1},
		HiPlane: channels - 1,
	}}
	region, err := s.provider.Fetch(&req)
	if err != nil {
		return colorspace.Unit{}, err
	}
	bpc := s.info.BytesPerChannel()
	if len(region.In.Data) < channels*bpc {
		return colorspace.Unit{}, fmt.Errorf("provider returned %d bytes for one pixel", len(region.In.Data))
	}
	var u colorspace.Unit
	for c := 0; c < channels; c++ {
		if bpc == 2 {
			u[c] = float64(binary.NativeEndian.Uint16(region.In.Data[2*c:])) / 32768
		} else {
			u[c] = float64(region.In.Data[c]) / 255
		}
	}
	return u, nil
}
