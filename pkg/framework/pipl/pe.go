package pipl

import (
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"
)

// ErrNoResource is returned when a module carries no resource of the wanted type.
var ErrNoResource = errors.New("pipl: resource not found")

// Resource is one resource of a module.
type Resource struct {
	Type string
	ID   uint32
	Name string
	Data []byte
}

// Resources are the PiPL and terminology resources of a module.
type Resources struct {
	PiPL  []Resource
	AETE  []Resource
	Order binary.ByteOrder
}

// FindAETE returns the terminology resource with the given id.
func (r *Resources) FindAETE(id int16) (Resource, bool) {
	for _, res := range r.AETE {
		if res.ID == uint32(uint16(id)) {
			return res, true
		}
	}
	return Resource{}, false
}

const (
	dirHeaderSize   = 16
	dirEntrySize    = 8
	highBit         = 0x80000000
	maxResourceSize = 16 << 20
)

// ReadPE extracts the PIPL and AETE resources of a Windows module.
func ReadPE(r io.ReaderAt) (*Resources, error) {
	f, err := pe.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("reading PE: %w", err)
	}
	defer f.Close()

	sec := f.Section(".rsrc")
	if sec == nil {
		return nil, fmt.Errorf("%w: no .rsrc section", ErrNoResource)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("reading .rsrc: %w", err)
	}

	w := rsrcWalker{data: data, base: sec.VirtualAddress}
	res := &Resources{Order: binary.LittleEndian}
	if res.PiPL, err = w.resources("PIPL"); err != nil {
		return nil, err
	}
	if res.AETE, err = w.resources("AETE"); err != nil {
		return nil, err
	}
	if len(res.PiPL) == 0 {
		return nil, fmt.Errorf("%w: PIPL", ErrNoResource)
	}
	return res, nil
}

type rsrcEntry struct {
	name   string
	id     uint32
	offset uint32
	subdir bool
}

type rsrcWalker struct {
	data []byte
	base uint32
}

func (w rsrcWalker) u16(off uint32) (uint16, error) {
	if int(off)+2 > len(w.data) {
		return 0, fmt.Errorf("%w: .rsrc offset %d", ErrNoResource, off)
	}
	return binary.LittleEndian.Uint16(w.data[off:]), nil
}

func (w rsrcWalker) u32(off uint32) (uint32, error) {
	if int(off)+4 > len(w.data) {
		return 0, fmt.Errorf("%w: .rsrc offset %d", ErrNoResource, off)
	}
	return binary.LittleEndian.Uint32(w.data[off:]), nil
}

func (w rsrcWalker) dir(off uint32) ([]rsrcEntry, error) {
	named, err := w.u16(off + 12)
	if err != nil {
		return nil, err
	}
	ids, err := w.u16(off + 14)
	if err != nil {
		return nil, err
	}

	entries := make([]rsrcEntry, 0, int(named)+int(ids))
	for i := uint32(0); i < uint32(named)+uint32(ids); i++ {
		at := off + dirHeaderSize + i*dirEntrySize
		nameField, err := w.u32(at)
		if err != nil {
			return nil, err
		}
		dataField, err := w.u32(at + 4)
		if err != nil {
			return nil, err
		}
		e := rsrcEntry{offset: dataField &^ highBit, subdir: dataField&highBit != 0}
		if nameField&highBit != 0 {
			if e.name, err = w.name(nameField &^ highBit); err != nil {
				return nil, err
			}
		} else {
			e.id = nameField
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (w rsrcWalker) name(off uint32) (string, error) {
	n, err := w.u16(off)
	if err != nil {
		return "", err
	}
	chars := make([]uint16, n)
	for i := range chars {
		if chars[i], err = w.u16(off + 2 + uint32(i)*2); err != nil {
			return "", err
		}
	}
	return string(utf16.Decode(chars)), nil
}

// resources returns every resource of the named type, first language of each.
func (w rsrcWalker) resources(typ string) ([]Resource, error) {
	types, err := w.dir(0)
	if err != nil {
		return nil, err
	}
	var out []Resource
	for _, t := range types {
		if !t.subdir || !strings.EqualFold(t.name, typ) {
			continue
		}
		names, err := w.dir(t.offset)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if !n.subdir {
				continue
			}
			langs, err := w.dir(n.offset)
			if err != nil {
				return nil, err
			}
			if len(langs) == 0 || langs[0].subdir {
				continue
			}
			data, err := w.leaf(langs[0].offset)
			if err != nil {
				return nil, err
			}
			out = append(out, Resource{Type: typ, ID: n.id, Name: n.name, Data: data})
		}
	}
	return out, nil
}

func (w rsrcWalker) leaf(off uint32) ([]byte, error) {
	rva, err := w.u32(off)
	if err != nil {
		return nil, err
	}
	size, err := w.u32(off + 4)
	if err != nil {
		return nil, err
	}
	if size > maxResourceSize || rva < w.base {
		return nil, fmt.Errorf("%w: bad data entry rva=%#x size=%d", ErrNoResource, rva, size)
	}
	start := rva - w.base
	if uint64(start)+uint64(size) > uint64(len(w.data)) {
		return nil, fmt.Errorf("%w: data entry outside .rsrc", ErrNoResource)
	}
	return append([]byte(nil), w.data[start:start+size]...), nil
}

// SidecarPath returns the file next to a module that holds its PiPL when the module
// format has no resource section.
func SidecarPath(module string) string {
	return strings.TrimSuffix(module, filepath.Ext(module)) + ".pipl"
}

// Load returns the capability block and resources of the module at path. Windows modules
// are read from their resource section; other modules from a sidecar file holding a
// big-endian PiPL.
func Load(path string) (*Info, *Resources, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	res, err := ReadPE(f)
	if err != nil {
		data, serr := os.ReadFile(SidecarPath(path))
		if serr != nil {
			return nil, nil, fmt.Errorf("%s: %w (no sidecar: %v)", path, err, serr)
		}
		res = &Resources{
			PiPL:  []Resource{{Type: "PIPL", Data: data}},
			Order: binary.BigEndian,
		}
	}

	info, err := Parse(res.PiPL[0].Data, res.Order)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if !info.IsFilter() {
		return nil, nil, fmt.Errorf("%s: %w (kind '%s')", path, ErrNotFilter, info.Kind)
	}
	return info, res, nil
}
