package descriptor

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// ErrMalformed is returned when decoding bytes that are not a descriptor.
var ErrMalformed = errors.New("descriptor: malformed encoding")

const codecVersion = 1

// Wire forms. Every item names its variant explicitly so decoding never guesses. Text
// travels as byte strings: plug-ins hand over MacRoman or Latin-1 bytes, not UTF-8.
type wireDescriptor struct {
	Items []wireItem `cbor:"1,keyasint"`
}

type wireItem struct {
	Key   uint32          `cbor:"1,keyasint,omitempty"`
	Kind  uint32          `cbor:"2,keyasint"`
	Flags uint32          `cbor:"3,keyasint,omitempty"`
	Bool  bool            `cbor:"4,keyasint,omitempty"`
	Int   int32           `cbor:"5,keyasint,omitempty"`
	Float float64         `cbor:"6,keyasint,omitempty"`
	Text  []byte          `cbor:"7,keyasint,omitempty"`
	Data  []byte          `cbor:"8,keyasint,omitempty"`
	Type  uint32          `cbor:"9,keyasint,omitempty"`
	Code  uint32          `cbor:"10,keyasint,omitempty"`
	Desc  *wireDescriptor `cbor:"11,keyasint,omitempty"`
	List  []wireItem      `cbor:"12,keyasint,omitempty"`
	Ref   []wireHop       `cbor:"13,keyasint,omitempty"`
}

type wireHop struct {
	Form     uint32 `cbor:"1,keyasint"`
	Class    uint32 `cbor:"2,keyasint,omitempty"`
	Key      uint32 `cbor:"3,keyasint,omitempty"`
	EnumType uint32 `cbor:"4,keyasint,omitempty"`
	Index    int32  `cbor:"5,keyasint,omitempty"`
	ID       uint32 `cbor:"6,keyasint,omitempty"`
	Name     []byte `cbor:"7,keyasint,omitempty"`
}

type wireEnvelope struct {
	Version int                        `cbor:"1,keyasint"`
	Root    *wireDescriptor            `cbor:"2,keyasint,omitempty"`
	Entries map[string]*wireDescriptor `cbor:"3,keyasint,omitempty"`
}

var encMode, decMode = func() (cbor.EncMode, cbor.DecMode) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	// Registry entry keys are map keys and stay text strings; accept whatever bytes they hold.
	dec, err := cbor.DecOptions{MaxNestedLevels: 64, UTF8: cbor.UTF8DecodeInvalid}.DecMode()
	if err != nil {
		panic(err)
	}
	return enc, dec
}()

// Marshal encodes d.
func Marshal(d *Descriptor) ([]byte, error) {
	w, err := toWire(d)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(wireEnvelope{Version: codecVersion, Root: w})
}

// Unmarshal decodes bytes produced by Marshal. An empty input yields an empty descriptor.
func Unmarshal(b []byte) (*Descriptor, error) {
	if len(b) == 0 {
		return New(nil), nil
	}
	var env wireEnvelope
	if err := decMode.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Version != codecVersion || env.Root == nil {
		return nil, fmt.Errorf("%w: version %d", ErrMalformed, env.Version)
	}
	return fromWire(env.Root)
}

// MarshalEntries encodes a set of named descriptors.
func MarshalEntries(entries map[string]*Descriptor) ([]byte, error) {
	env := wireEnvelope{Version: codecVersion, Entries: make(map[string]*wireDescriptor, len(entries))}
	for k, d := range entries {
		w, err := toWire(d)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", k, err)
		}
		env.Entries[k] = w
	}
	return encMode.Marshal(env)
}

// UnmarshalEntries decodes bytes produced by MarshalEntries.
func UnmarshalEntries(b []byte) (map[string]*Descriptor, error) {
	out := make(map[string]*Descriptor)
	if len(b) == 0 {
		return out, nil
	}
	var env wireEnvelope
	if err := decMode.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Version != codecVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformed, env.Version)
	}
	for k, w := range env.Entries {
		d, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}

func toWire(d *Descriptor) (*wireDescriptor, error) {
	if d == nil {
		return nil, nil
	}
	w := &wireDescriptor{Items: make([]wireItem, 0, d.Len())}
	for _, k := range d.keys {
		it := d.items[k]
		wi, err := itemToWire(it)
		if err != nil {
			return nil, fmt.Errorf("key '%s': %w", k, err)
		}
		wi.Key = uint32(k)
		w.Items = append(w.Items, wi)
	}
	return w, nil
}

func itemToWire(it Item) (wireItem, error) {
	if it.Value == nil {
		return wireItem{}, errors.New("nil value")
	}
	w := wireItem{Kind: uint32(it.Value.Kind()), Flags: it.Flags}
	switch v := it.Value.(type) {
	case Boolean:
		w.Bool = bool(v)
	case Integer:
		w.Int = int32(v)
	case Float:
		w.Float = float64(v)
	case UnitFloat:
		w.Type, w.Float = uint32(v.Unit), v.Value
	case Text:
		w.Text = []byte(v)
	case Data:
		w.Data = []byte(v)
	case Class:
		w.Type = uint32(v)
	case GlobalClass:
		w.Type = uint32(v)
	case Enumerated:
		w.Type, w.Code = uint32(v.Type), uint32(v.Value)
	case Object:
		w.Type = uint32(v.Class)
		desc, err := toWire(v.Descriptor)
		if err != nil {
			return w, err
		}
		w.Desc = desc
	case GlobalObject:
		w.Type = uint32(v.Class)
		desc, err := toWire(v.Descriptor)
		if err != nil {
			return w, err
		}
		w.Desc = desc
	case *List:
		for _, li := range v.items {
			wli, err := itemToWire(li)
			if err != nil {
				return w, err
			}
			w.List = append(w.List, wli)
		}
	case *Reference:
		for _, h := range v.Hops {
			w.Ref = append(w.Ref, wireHop{
				Form: uint32(h.Form), Class: uint32(h.Class), Key: uint32(h.Key),
				EnumType: uint32(h.EnumType), Index: h.Index, ID: h.ID, Name: []byte(h.Name),
			})
		}
	case Alias:
		w.Text = []byte(v)
	case Null:
	default:
		return w, fmt.Errorf("unsupported value %T", v)
	}
	return w, nil
}

func fromWire(w *wireDescriptor) (*Descriptor, error) {
	if w == nil {
		return nil, nil
	}
	d := New(nil)
	for _, wi := range w.Items {
		it, err := itemFromWire(wi)
		if err != nil {
			return nil, err
		}
		d.PutItem(filterapi.OSType(wi.Key), it)
	}
	return d, nil
}

func itemFromWire(w wireItem) (Item, error) {
	var v Value
	switch kind := filterapi.OSType(w.Kind); kind {
	case TypeBoolean:
		v = Boolean(w.Bool)
	case TypeInteger:
		v = Integer(w.Int)
	case TypeFloat:
		v = Float(w.Float)
	case TypeUnitFloat:
		v = UnitFloat{Unit: filterapi.OSType(w.Type), Value: w.Float}
	case TypeText:
		v = Text(w.Text)
	case TypeData:
		v = Data(append([]byte{}, w.Data...))
	case TypeClass:
		v = Class(w.Type)
	case TypeGlobalClass:
		v = GlobalClass(w.Type)
	case TypeEnumerated:
		v = Enumerated{Type: filterapi.OSType(w.Type), Value: filterapi.OSType(w.Code)}
	case TypeObject, TypeGlobalObject:
		desc, err := fromWire(w.Desc)
		if err != nil {
			return Item{}, err
		}
		if kind == TypeObject {
			v = Object{Class: filterapi.OSType(w.Type), Descriptor: desc}
		} else {
			v = GlobalObject{Class: filterapi.OSType(w.Type), Descriptor: desc}
		}
	case TypeList:
		l := &List{}
		for _, wli := range w.List {
			li, err := itemFromWire(wli)
			if err != nil {
				return Item{}, err
			}
			l.items = append(l.items, li)
		}
		v = l
	case TypeReference:
		r := &Reference{}
		for _, h := range w.Ref {
			r.Hops = append(r.Hops, Hop{
				Form: filterapi.OSType(h.Form), Class: filterapi.OSType(h.Class), Key: filterapi.OSType(h.Key),
				EnumType: filterapi.OSType(h.EnumType), Index: h.Index, ID: h.ID, Name: string(h.Name),
			})
		}
		v = r
	case TypeAlias:
		v = Alias(w.Text)
	case TypeNull:
		v = Null{}
	default:
		return Item{}, fmt.Errorf("%w: unknown type '%s'", ErrMalformed, kind)
	}
	return Item{Value: v, Flags: w.Flags}, nil
}
