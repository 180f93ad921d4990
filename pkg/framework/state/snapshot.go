package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
	"github.com/justyntemme/filterhost/pkg/framework/resource"
)

const (
	magic   = "FLTRHOST"
	version = uint32(1)

	// maxSection bounds a single length-prefixed section of a state file.
	maxSection = 1 << 30
)

// ErrInvalidFormat is returned for data that is not a state file.
var ErrInvalidFormat = errors.New("state: invalid state format")

// Snapshot is what the host keeps of a plug-in between invocations: the raw contents of
// its parameters handle, its pseudo-resources, the last descriptor it returned and the
// persistent part of its descriptor registry.
type Snapshot struct {
	Parameters []byte
	Resources  []resource.Entry
	Descriptor *descriptor.Descriptor
	Registry   map[string]*descriptor.Descriptor
}

// Empty reports whether the snapshot carries nothing worth storing.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.Parameters) == 0 && len(s.Resources) == 0 &&
		s.Descriptor.Len() == 0 && len(s.Registry) == 0)
}

// Save writes snap to w.
func Save(w io.Writer, snap *Snapshot) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, version); err != nil {
		return err
	}

	if err := writeSection(w, snap.Parameters); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(snap.Resources))); err != nil {
		return err
	}
	for _, e := range snap.Resources {
		if err := binary.Write(w, binary.LittleEndian, uint32(e.Type)); err != nil {
			return err
		}
		if err := writeSection(w, e.Data); err != nil {
			return fmt.Errorf("resource '%s': %w", e.Type, err)
		}
	}

	var desc []byte
	if snap.Descriptor != nil {
		b, err := descriptor.Marshal(snap.Descriptor)
		if err != nil {
			return fmt.Errorf("descriptor: %w", err)
		}
		desc = b
	}
	if err := writeSection(w, desc); err != nil {
		return fmt.Errorf("descriptor: %w", err)
	}

	var reg []byte
	if len(snap.Registry) > 0 {
		b, err := descriptor.MarshalEntries(snap.Registry)
		if err != nil {
			return fmt.Errorf("registry: %w", err)
		}
		reg = b
	}
	return writeSection(w, reg)
}

// Load reads a snapshot written by Save.
func Load(r io.Reader) (*Snapshot, error) {
	header := make([]byte, len(magic))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if string(header) != magic {
		return nil, ErrInvalidFormat
	}

	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return nil, err
	}
	if v > version {
		return nil, fmt.Errorf("state version %d is newer than supported version %d", v, version)
	}

	snap := &Snapshot{}
	var err error
	if snap.Parameters, err = readSection(r); err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		var t uint32
		if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
			return nil, err
		}
		data, err := readSection(r)
		if err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
		snap.Resources = append(snap.Resources, resource.Entry{Type: filterapi.OSType(t), Data: data})
	}

	desc, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("descriptor: %w", err)
	}
	if len(desc) > 0 {
		if snap.Descriptor, err = descriptor.Unmarshal(desc); err != nil {
			return nil, err
		}
	}

	reg, err := readSection(r)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	if len(reg) > 0 {
		if snap.Registry, err = descriptor.UnmarshalEntries(reg); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func writeSection(w io.Writer, b []byte) error {
	if len(b) > maxSection {
		return fmt.Errorf("section of %d bytes exceeds %d", len(b), maxSection)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readSection(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxSection {
		return nil, fmt.Errorf("%w: section of %d bytes", ErrInvalidFormat, n)
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
