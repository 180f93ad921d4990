// Package filterapi mirrors the fixed-layout records, selector codes and result codes of the
// classic filter plug-in ABI. Nothing in here has behaviour beyond conversions: every
// struct is laid out field for field as the native module was compiled against, using the
// natural alignment of the 64-bit SDK headers.
package filterapi

import (
	"encoding/binary"
	"fmt"
)

// Basic scalar types of the filter API.
type (
	OSErr   int16
	OSType  uint32
	Boolean uint8
	Fixed   int32
	// Handle is the opaque value handed to the plug-in for a handle allocation.
	Handle uintptr
	// BufferID is the opaque token for a buffer allocation.
	BufferID uintptr
)

// Selector identifies the phase of filter execution to run.
type Selector int16

const (
	SelectorAbout      Selector = 0
	SelectorParameters Selector = 1
	SelectorPrepare    Selector = 2
	SelectorStart      Selector = 3
	SelectorContinue   Selector = 4
	SelectorFinish     Selector = 5
)

func (s Selector) String() string {
	switch s {
	case SelectorAbout:
		return "about"
	case SelectorParameters:
		return "parameters"
	case SelectorPrepare:
		return "prepare"
	case SelectorStart:
		return "start"
	case SelectorContinue:
		return "continue"
	case SelectorFinish:
		return "finish"
	default:
		return fmt.Sprintf("selector(%d)", int16(s))
	}
}

// Result codes returned by the plug-in and by host callbacks.
const (
	NoErr                      OSErr = 0
	CoercedParamErr            OSErr = 2
	ReadErr                    OSErr = -19
	WritErr                    OSErr = -20
	OpenErr                    OSErr = -23
	DskFulErr                  OSErr = -34
	IOErr                      OSErr = -36
	EOFErr                     OSErr = -39
	FnfErr                     OSErr = -43
	ParamErr                   OSErr = -50
	MemFullErr                 OSErr = -108
	NilHandleErr               OSErr = -109
	UserCanceledErr            OSErr = -128
	ResNotFound                OSErr = -192
	ErrAECoercionFail          OSErr = -1700
	ErrAEDescNotFound          OSErr = -1701
	ErrAEParamMissed           OSErr = -1715
	FilterBadParameters        OSErr = -30100
	FilterBadMode              OSErr = -30101
	ErrPlugInHostInsufficient  OSErr = -30900
	ErrPlugInPropertyUndefined OSErr = -30901
	ErrHostDoesNotSupportColor OSErr = -30902
	ErrInvalidSamplePoint      OSErr = -30903
	ErrReportString            OSErr = -30904
)

// SPErr is the 32-bit error type used by the suite broker callbacks.
type SPErr int32

const (
	SPNoError             SPErr = 0
	SPOutOfMemoryError    SPErr = -108
	SPSuiteNotFoundError  SPErr = SPErr('S'<<24 | '!'<<16 | 'F'<<8 | 'd')
	SPBadParameterError   SPErr = SPErr('P'<<24 | 'a'<<16 | 'r'<<8 | 'm')
	SPUnimplementedError  SPErr = SPErr('!'<<24 | 'I'<<16 | 'M'<<8 | 'P')
	SPAlreadyReleasedErr  SPErr = SPErr('R'<<24 | 'e'<<16 | 'l'<<8 | 'd')
	SPCantAcquirePlugin   SPErr = SPErr('!'<<24 | 'A'<<16 | 'c'<<8 | 'q')
	SPNotAnASZStringError SPErr = SPErr('!'<<24 | 'A'<<16 | 'S'<<8 | 'Z')
)

// ImageMode is the document color mode reported in the filter record.
type ImageMode int16

const (
	ModeBitmap           ImageMode = 0
	ModeGrayScale        ImageMode = 1
	ModeIndexedColor     ImageMode = 2
	ModeRGBColor         ImageMode = 3
	ModeCMYKColor        ImageMode = 4
	ModeHSLColor         ImageMode = 5
	ModeHSBColor         ImageMode = 6
	ModeMultichannel     ImageMode = 7
	ModeDuotone          ImageMode = 8
	ModeLabColor         ImageMode = 9
	ModeGray16           ImageMode = 10
	ModeRGB48            ImageMode = 11
	ModeLab48            ImageMode = 12
	ModeCMYK64           ImageMode = 13
	ModeDeepMultichannel ImageMode = 14
	ModeDuotone16        ImageMode = 15
	ModeRGB96            ImageMode = 16
	ModeGray32           ImageMode = 17
)

// FilterCase describes the selection/transparency situation the filter runs in.
type FilterCase int16

const (
	FilterCaseUnsupported                        FilterCase = -1
	FilterCaseFlatImageNoSelection               FilterCase = 1
	FilterCaseFlatImageWithSelection             FilterCase = 2
	FilterCaseFloatingSelection                  FilterCase = 3
	FilterCaseEditableTransparencyNoSelection    FilterCase = 4
	FilterCaseEditableTransparencyWithSelection  FilterCase = 5
	FilterCaseProtectedTransparencyNoSelection   FilterCase = 6
	FilterCaseProtectedTransparencyWithSelection FilterCase = 7
)

// Padding values understood in inputPadding/outputPadding/maskPadding.
const (
	PaddingEdgeReplication int16 = -1
	PaddingNone            int16 = -2
	PaddingErrorOnBounds   int16 = -3
)

// Descriptor play info values.
const (
	PlayDialogOptional   int16 = 0
	PlayDialogRequired   int16 = 1
	PlayDialogNone       int16 = 2
	RecordDialogOptional int16 = 0
)

// HostSignature is the default host signature '8BIM'.
var HostSignature = MakeOSType("8BIM")

// MakeOSType packs a four character code.
func MakeOSType(s string) OSType {
	var b [4]byte
	copy(b[:], s)
	for i := len(s); i < 4; i++ {
		b[i] = ' '
	}
	return OSType(binary.BigEndian.Uint32(b[:]))
}

// String renders the four character code.
func (t OSType) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(t))
	return string(b[:])
}

// FixedFromInt returns n as a 16.16 fixed point value.
func FixedFromInt(n int) Fixed {
	return Fixed(n << 16)
}

// FixedFromFloat returns f as a 16.16 fixed point value.
func FixedFromFloat(f float64) Fixed {
	return Fixed(f * 65536)
}

// Float returns the fixed value as a float.
func (f Fixed) Float() float64 {
	return float64(f) / 65536
}

// Point is a 16-bit vertical/horizontal pair.
// Layout: v (2) + h (2) = 4 bytes
type Point struct {
	V int16
	H int16
}

// Rect is the classic 16-bit rectangle.
// Layout: top, left, bottom, right (2 each) = 8 bytes
type Rect struct {
	Top    int16
	Left   int16
	Bottom int16
	Right  int16
}

// Empty reports whether the rectangle encloses no pixels.
func (r Rect) Empty() bool {
	return r.Bottom <= r.Top || r.Right <= r.Left
}

// Width returns the horizontal extent.
func (r Rect) Width() int {
	if r.Empty() {
		return 0
	}
	return int(r.Right) - int(r.Left)
}

// Height returns the vertical extent.
func (r Rect) Height() int {
	if r.Empty() {
		return 0
	}
	return int(r.Bottom) - int(r.Top)
}

// VRect is the 32-bit rectangle used by the pixel and property APIs.
type VRect struct {
	Top    int32
	Left   int32
	Bottom int32
	Right  int32
}

// RGBColor is the 16 bit per component color.
// Layout: 3 x uint16 = 6 bytes
type RGBColor struct {
	Red   uint16
	Green uint16
	Blue  uint16
}

// FilterColor holds up to four 8-bit components in the document's color space.
type FilterColor [4]uint8

// Str255 is a Pascal string: length byte followed by up to 255 characters.
type Str255 [256]byte

// String decodes the Pascal string.
func (s *Str255) String() string {
	n := int(s[0])
	return string(s[1 : 1+n])
}

// Set stores str, truncated to 255 bytes.
func (s *Str255) Set(str string) {
	if len(str) > 255 {
		str = str[:255]
	}
	s[0] = byte(len(str))
	copy(s[1:], str)
}

// PlugInMonitor describes the display characteristics.
// Layout: 10 x Fixed = 40 bytes
type PlugInMonitor struct {
	Gamma   Fixed
	RedX    Fixed
	RedY    Fixed
	GreenX  Fixed
	GreenY  Fixed
	BlueX   Fixed
	BlueY   Fixed
	WhiteX  Fixed
	WhiteY  Fixed
	Ambient Fixed
}

// PlatformData carries the parent window handle on Windows.
type PlatformData struct {
	Hwnd uintptr
}
