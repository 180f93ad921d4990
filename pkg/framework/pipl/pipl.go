// Package pipl reads the capability block ("PiPL") a filter module ships as a resource: its
// kind, name, category, entry points, supported image modes, filter case handling and the
// terminology it answers to.
package pipl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

var (
	ErrNotFilter  = errors.New("pipl: module is not a filter")
	ErrNoEntry    = errors.New("pipl: no entry point for this platform")
	ErrBadVersion = errors.New("pipl: unsupported version")
)

// Property keys.
var (
	KeyKind        = filterapi.MakeOSType("kind")
	KeyName        = filterapi.MakeOSType("name")
	KeyCategory    = filterapi.MakeOSType("catg")
	KeyVersion     = filterapi.MakeOSType("vers")
	KeyModes       = filterapi.MakeOSType("mode")
	KeyFilterCase  = filterapi.MakeOSType("fici")
	KeyTerminology = filterapi.MakeOSType("hstm")
	KeyEnable      = filterapi.MakeOSType("enbl")
	KeyWin64       = filterapi.MakeOSType("8664")
	KeyWinARM64    = filterapi.MakeOSType("wa64")
	KeyWin32       = filterapi.MakeOSType("wx86")
	KeyMacIntel64  = filterapi.MakeOSType("mi64")
	KeyMacARM64    = filterapi.MakeOSType("ma64")

	// KindFilter is the kind of filter modules.
	KindFilter = filterapi.MakeOSType("8BFM")
)

// Handling of the pixels of one filter case.
type Handling uint8

const (
	CantFilter Handling = iota
	HandleNone
	BlackMat
	GrayMat
	WhiteMat
	Defringe
	BlackZap
	GrayZap
	WhiteZap
	FillMask
	BackgroundZap
	ForegroundZap
)

// Filter case flag bits.
const (
	FlagDontCopyToDestination  uint8 = 1 << 0
	FlagWorksWithBlankData     uint8 = 1 << 1
	FlagFiltersLayerMasks      uint8 = 1 << 2
	FlagWritesOutsideSelection uint8 = 1 << 3
)

// FilterCaseInfo says how one filter case is handled.
// Layout: input (1) + output (1) + flags1 (1) + flags2 (1) = 4 bytes
type FilterCaseInfo struct {
	Input  Handling
	Output Handling
	Flags1 uint8
	Flags2 uint8
}

// Terminology names the scripting event the filter answers to.
type Terminology struct {
	Version int32
	Class   filterapi.OSType
	Event   filterapi.OSType
	ID      int16
	Scope   string
}

// Property is one raw property of the block.
type Property struct {
	Vendor filterapi.OSType
	Key    filterapi.OSType
	ID     int32
	Data   []byte
}

// Info is the decoded capability block.
type Info struct {
	Kind        filterapi.OSType
	Name        string
	Category    string
	Version     int32
	EntryPoints map[filterapi.OSType]string
	Modes       []byte
	FilterCases []FilterCaseInfo
	Terminology *Terminology
	Properties  []Property
}

// Parse decodes a PiPL resource.
func Parse(data []byte, order binary.ByteOrder) (*Info, error) {
	s := filterapi.NewStream(data, order)
	if _, err := s.ReadInt16(); err != nil {
		return nil, err
	}
	v, err := s.ReadInt32()
	if err != nil {
		return nil, err
	}
	if v != 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	count, err := s.ReadInt32()
	if err != nil {
		return nil, err
	}

	info := &Info{EntryPoints: make(map[filterapi.OSType]string)}
	for i := int32(0); i < count; i++ {
		p, err := readProperty(s)
		if err != nil {
			return nil, fmt.Errorf("pipl property %d: %w", i, err)
		}
		info.Properties = append(info.Properties, p)
		if err := info.apply(p, order); err != nil {
			return nil, fmt.Errorf("pipl property '%s': %w", p.Key, err)
		}
	}
	return info, nil
}

func readProperty(s *filterapi.Stream) (Property, error) {
	var p Property
	var err error
	if p.Vendor, err = s.ReadOSType(); err != nil {
		return p, err
	}
	if p.Key, err = s.ReadOSType(); err != nil {
		return p, err
	}
	if p.ID, err = s.ReadInt32(); err != nil {
		return p, err
	}
	n, err := s.ReadInt32()
	if err != nil {
		return p, err
	}
	if p.Data, err = s.Read(int(n)); err != nil {
		return p, err
	}
	// Property data is padded to four bytes; the final pad may be missing.
	if pad := (4 - int(n)%4) % 4; pad > 0 && s.Remaining() >= pad {
		err = s.Skip(pad)
	}
	return p, err
}

func (info *Info) apply(p Property, order binary.ByteOrder) error {
	ps := filterapi.NewStream(p.Data, order)
	var err error
	switch p.Key {
	case KeyKind:
		info.Kind, err = ps.ReadOSType()
	case KeyName:
		info.Name, err = ps.ReadPString()
	case KeyCategory:
		info.Category, err = ps.ReadPString()
	case KeyVersion:
		info.Version, err = ps.ReadInt32()
	case KeyWin64, KeyWinARM64, KeyWin32, KeyMacIntel64, KeyMacARM64:
		info.EntryPoints[p.Key], err = ps.ReadCString(len(p.Data))
	case KeyModes:
		info.Modes = append([]byte(nil), p.Data...)
	case KeyFilterCase:
		info.FilterCases = nil
		for ps.Remaining() >= 4 {
			b, _ := ps.Read(4)
			info.FilterCases = append(info.FilterCases, FilterCaseInfo{
				Input: Handling(b[0]), Output: Handling(b[1]), Flags1: b[2], Flags2: b[3],
			})
		}
	case KeyTerminology:
		t := &Terminology{}
		if t.Version, err = ps.ReadInt32(); err != nil {
			return err
		}
		if t.Class, err = ps.ReadOSType(); err != nil {
			return err
		}
		if t.Event, err = ps.ReadOSType(); err != nil {
			return err
		}
		if t.ID, err = ps.ReadInt16(); err != nil {
			return err
		}
		t.Scope, err = ps.ReadCString(ps.Remaining())
		info.Terminology = t
	}
	return err
}

// IsFilter reports whether the block describes a filter module.
func (info *Info) IsFilter() bool { return info.Kind == KindFilter }

// PlatformKey returns the entry point key for the running platform.
func PlatformKey() filterapi.OSType {
	switch {
	case runtime.GOOS == "darwin" && runtime.GOARCH == "arm64":
		return KeyMacARM64
	case runtime.GOOS == "darwin":
		return KeyMacIntel64
	case runtime.GOARCH == "arm64":
		return KeyWinARM64
	default:
		return KeyWin64
	}
}

// Entry returns the entry point symbol for the running platform.
func (info *Info) Entry() (string, error) {
	if name, ok := info.EntryPoints[PlatformKey()]; ok && name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: want '%s'", ErrNoEntry, PlatformKey())
}

// SupportsMode reports whether the filter accepts the image mode. A block without a mode
// property accepts every mode.
func (info *Info) SupportsMode(mode filterapi.ImageMode) bool {
	if info.Modes == nil {
		return true
	}
	i := int(mode)
	if i < 0 || i/8 >= len(info.Modes) {
		return false
	}
	return info.Modes[i/8]&(0x80>>(i%8)) != 0
}

// Case returns the handling of a filter case. A block without filter case information
// handles every case with default handling.
func (info *Info) Case(fc filterapi.FilterCase) (FilterCaseInfo, bool) {
	if fc < filterapi.FilterCaseFlatImageNoSelection || fc > filterapi.FilterCaseProtectedTransparencyWithSelection {
		return FilterCaseInfo{}, false
	}
	if info.FilterCases == nil {
		return FilterCaseInfo{Input: HandleNone, Output: HandleNone}, true
	}
	i := int(fc) - 1
	if i >= len(info.FilterCases) {
		return FilterCaseInfo{}, false
	}
	c := info.FilterCases[i]
	return c, c.Input != CantFilter
}

// Supports reports whether the filter can run on an image of the given mode and case.
func (info *Info) Supports(mode filterapi.ImageMode, fc filterapi.FilterCase) bool {
	_, ok := info.Case(fc)
	return ok && info.SupportsMode(mode)
}
