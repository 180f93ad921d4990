// Package aete parses the terminology resource a scriptable plug-in ships with. The host
// only needs it for one thing: the flags word of each parameter key, which is attached to
// descriptor items the plug-in writes without explicit flags.
package aete

import (
	"encoding/binary"
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// Parameter flag bits.
const (
	FlagOptional   uint16 = 0x8000
	FlagListOfItem uint16 = 0x4000
	FlagEnumerated uint16 = 0x2000
)

// Parameter is one keyed argument of an event.
type Parameter struct {
	Name        string
	Key         filterapi.OSType
	Type        filterapi.OSType
	Description string
	Flags       uint16
}

// Event is one scriptable event and its parameters.
type Event struct {
	Name        string
	Description string
	Class       filterapi.OSType
	ID          filterapi.OSType
	ReplyType   filterapi.OSType
	DirectType  filterapi.OSType
	Parameters  []Parameter
}

// Flags implements the descriptor flag source for this event's parameters.
func (e *Event) Flags(key filterapi.OSType) (uint32, bool) {
	if e == nil {
		return 0, false
	}
	for _, p := range e.Parameters {
		if p.Key == key {
			return uint32(p.Flags), true
		}
	}
	return 0, false
}

// Suite groups events.
type Suite struct {
	Name        string
	Description string
	ID          filterapi.OSType
	Level       int16
	Version     int16
	Events      []Event
}

// Table is a parsed terminology resource.
type Table struct {
	Major    uint8
	Minor    uint8
	Language int16
	Script   int16
	Suites   []Suite
}

// Event returns the event with the given class and id.
func (t *Table) Event(class, id filterapi.OSType) (*Event, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Suites {
		for j := range t.Suites[i].Events {
			e := &t.Suites[i].Events[j]
			if e.Class == class && e.ID == id {
				return e, true
			}
		}
	}
	return nil, false
}

// First returns the first event in the table; filters declare exactly one.
func (t *Table) First() *Event {
	if t == nil {
		return nil
	}
	for i := range t.Suites {
		if len(t.Suites[i].Events) > 0 {
			return &t.Suites[i].Events[0]
		}
	}
	return nil
}

// Flags looks the key up in the first event.
func (t *Table) Flags(key filterapi.OSType) (uint32, bool) {
	return t.First().Flags(key)
}

// Parse decodes a terminology resource. Classes, comparison operators and enumerations
// that follow the events are not needed by the host and are left unread.
func Parse(data []byte, order binary.ByteOrder) (*Table, error) {
	s := filterapi.NewStream(data, order)
	t := &Table{}
	var err error

	if t.Major, err = s.ReadUint8(); err != nil {
		return nil, fmt.Errorf("aete header: %w", err)
	}
	if t.Minor, err = s.ReadUint8(); err != nil {
		return nil, fmt.Errorf("aete header: %w", err)
	}
	if t.Language, err = s.ReadInt16(); err != nil {
		return nil, fmt.Errorf("aete header: %w", err)
	}
	if t.Script, err = s.ReadInt16(); err != nil {
		return nil, fmt.Errorf("aete header: %w", err)
	}
	count, err := s.ReadInt16()
	if err != nil {
		return nil, fmt.Errorf("aete header: %w", err)
	}

	for i := 0; i < int(count); i++ {
		suite, err := parseSuite(s)
		if err != nil {
			return nil, fmt.Errorf("aete suite %d: %w", i, err)
		}
		t.Suites = append(t.Suites, suite)
	}
	return t, nil
}

func parseSuite(s *filterapi.Stream) (Suite, error) {
	var su Suite
	var err error
	if su.Name, err = s.ReadPString(); err != nil {
		return su, err
	}
	if su.Description, err = s.ReadPString(); err != nil {
		return su, err
	}
	if err = s.Align(2); err != nil {
		return su, err
	}
	if su.ID, err = s.ReadOSType(); err != nil {
		return su, err
	}
	if su.Level, err = s.ReadInt16(); err != nil {
		return su, err
	}
	if su.Version, err = s.ReadInt16(); err != nil {
		return su, err
	}
	count, err := s.ReadInt16()
	if err != nil {
		return su, err
	}
	for i := 0; i < int(count); i++ {
		ev, err := parseEvent(s)
		if err != nil {
			return su, fmt.Errorf("event %d: %w", i, err)
		}
		su.Events = append(su.Events, ev)
	}
	return su, nil
}

func parseEvent(s *filterapi.Stream) (Event, error) {
	var ev Event
	var err error
	if ev.Name, err = s.ReadPString(); err != nil {
		return ev, err
	}
	if ev.Description, err = s.ReadPString(); err != nil {
		return ev, err
	}
	if err = s.Align(2); err != nil {
		return ev, err
	}
	if ev.Class, err = s.ReadOSType(); err != nil {
		return ev, err
	}
	if ev.ID, err = s.ReadOSType(); err != nil {
		return ev, err
	}
	if ev.ReplyType, err = s.ReadOSType(); err != nil {
		return ev, err
	}
	if err = skipDescAndFlags(s); err != nil {
		return ev, err
	}
	if ev.DirectType, err = s.ReadOSType(); err != nil {
		return ev, err
	}
	if err = skipDescAndFlags(s); err != nil {
		return ev, err
	}

	count, err := s.ReadInt16()
	if err != nil {
		return ev, err
	}
	for i := 0; i < int(count); i++ {
		p, err := parseParameter(s)
		if err != nil {
			return ev, fmt.Errorf("parameter %d: %w", i, err)
		}
		ev.Parameters = append(ev.Parameters, p)
	}
	return ev, nil
}

// skipDescAndFlags skips the description and flags of an event's reply or direct parameter.
func skipDescAndFlags(s *filterapi.Stream) error {
	if _, err := s.ReadPString(); err != nil {
		return err
	}
	if err := s.Align(2); err != nil {
		return err
	}
	_, err := s.ReadInt16()
	return err
}

func parseParameter(s *filterapi.Stream) (Parameter, error) {
	var p Parameter
	var err error
	if p.Name, err = s.ReadPString(); err != nil {
		return p, err
	}
	if err = s.Align(2); err != nil {
		return p, err
	}
	if p.Key, err = s.ReadOSType(); err != nil {
		return p, err
	}
	if p.Type, err = s.ReadOSType(); err != nil {
		return p, err
	}
	if p.Description, err = s.ReadPString(); err != nil {
		return p, err
	}
	if err = s.Align(2); err != nil {
		return p, err
	}
	if p.Flags, err = s.ReadUint16(); err != nil {
		return p, err
	}
	return p, nil
}

// Encode serializes t in the layout Parse reads. Go-implemented filters use it to describe
// their parameters.
func Encode(t *Table, order binary.AppendByteOrder) []byte {
	w := filterapi.NewStreamWriter(order)
	w.WriteUint8(t.Major)
	w.WriteUint8(t.Minor)
	w.WriteInt16(t.Language)
	w.WriteInt16(t.Script)
	w.WriteInt16(int16(len(t.Suites)))
	for _, su := range t.Suites {
		w.WritePString(su.Name)
		w.WritePString(su.Description)
		w.Align(2)
		w.WriteOSType(su.ID)
		w.WriteInt16(su.Level)
		w.WriteInt16(su.Version)
		w.WriteInt16(int16(len(su.Events)))
		for _, ev := range su.Events {
			w.WritePString(ev.Name)
			w.WritePString(ev.Description)
			w.Align(2)
			w.WriteOSType(ev.Class)
			w.WriteOSType(ev.ID)
			w.WriteOSType(ev.ReplyType)
			w.WritePString("")
			w.Align(2)
			w.WriteInt16(0)
			w.WriteOSType(ev.DirectType)
			w.WritePString("")
			w.Align(2)
			w.WriteInt16(0)
			w.WriteInt16(int16(len(ev.Parameters)))
			for _, p := range ev.Parameters {
				w.WritePString(p.Name)
				w.Align(2)
				w.WriteOSType(p.Key)
				w.WriteOSType(p.Type)
				w.WritePString(p.Description)
				w.Align(2)
				w.WriteUint16(p.Flags)
			}
		}
	}
	// classes, comparison operators, enumerations
	w.WriteInt16(0)
	w.WriteInt16(0)
	w.WriteInt16(0)
	return w.Bytes()
}
