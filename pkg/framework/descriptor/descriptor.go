package descriptor

import (
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// Descriptor is an ordered mapping from 32-bit keys to items. Writing an existing key
// replaces its item and keeps its position.
type Descriptor struct {
	keys  []filterapi.OSType
	items map[filterapi.OSType]Item
	flags FlagSource
}

// New creates an empty descriptor. flags, if not nil, supplies the flags word of keys
// written without explicit flags.
func New(flags FlagSource) *Descriptor {
	return &Descriptor{items: make(map[filterapi.OSType]Item), flags: flags}
}

// SetFlagSource replaces the descriptor's flag source.
func (d *Descriptor) SetFlagSource(flags FlagSource) {
	d.flags = flags
}

func (d *Descriptor) defaultFlags(key filterapi.OSType) uint32 {
	if d.flags == nil {
		return 0
	}
	if f, ok := d.flags.Flags(key); ok {
		return f
	}
	return 0
}

// Put stores v under key. A key seen for the first time takes its flags from the
// descriptor's flag source; an overwritten key keeps the flags it had.
func (d *Descriptor) Put(key filterapi.OSType, v Value) {
	if it, ok := d.items[key]; ok {
		d.items[key] = Item{Value: v, Flags: it.Flags}
		return
	}
	d.PutItem(key, Item{Value: v, Flags: d.defaultFlags(key)})
}

// PutItem stores an item with explicit flags.
func (d *Descriptor) PutItem(key filterapi.OSType, it Item) {
	if d.items == nil {
		d.items = make(map[filterapi.OSType]Item)
	}
	if _, ok := d.items[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.items[key] = it
}

func (d *Descriptor) PutInteger(key filterapi.OSType, v int32)   { d.Put(key, Integer(v)) }
func (d *Descriptor) PutFloat(key filterapi.OSType, v float64)   { d.Put(key, Float(v)) }
func (d *Descriptor) PutBoolean(key filterapi.OSType, v bool)    { d.Put(key, Boolean(v)) }
func (d *Descriptor) PutText(key filterapi.OSType, v string)     { d.Put(key, Text(v)) }
func (d *Descriptor) PutData(key filterapi.OSType, v []byte)     { d.Put(key, Data(v)) }
func (d *Descriptor) PutAlias(key filterapi.OSType, path string) { d.Put(key, Alias(path)) }

func (d *Descriptor) PutUnitFloat(key, unit filterapi.OSType, v float64) {
	d.Put(key, UnitFloat{Unit: unit, Value: v})
}

func (d *Descriptor) PutEnumerated(key, enumType, value filterapi.OSType) {
	d.Put(key, Enumerated{Type: enumType, Value: value})
}

func (d *Descriptor) PutClass(key, class filterapi.OSType) { d.Put(key, Class(class)) }

func (d *Descriptor) PutObject(key, class filterapi.OSType, obj *Descriptor) {
	d.Put(key, Object{Class: class, Descriptor: obj})
}

func (d *Descriptor) PutList(key filterapi.OSType, l *List)           { d.Put(key, l) }
func (d *Descriptor) PutReference(key filterapi.OSType, r *Reference) { d.Put(key, r) }

// Get returns the item stored under key.
func (d *Descriptor) Get(key filterapi.OSType) (Item, error) {
	if d == nil {
		return Item{}, fmt.Errorf("%w: '%s'", ErrKeyNotFound, key)
	}
	it, ok := d.items[key]
	if !ok {
		return Item{}, fmt.Errorf("%w: '%s'", ErrKeyNotFound, key)
	}
	return it, nil
}

func mismatch(key, want, got filterapi.OSType) error {
	return fmt.Errorf("%w: '%s' holds '%s', not '%s'", ErrTypeMismatch, key, got, want)
}

func get[T Value](d *Descriptor, key filterapi.OSType, want filterapi.OSType) (T, error) {
	var zero T
	it, err := d.Get(key)
	if err != nil {
		return zero, err
	}
	v, ok := it.Value.(T)
	if !ok {
		return zero, mismatch(key, want, it.Value.Kind())
	}
	return v, nil
}

func (d *Descriptor) Integer(key filterapi.OSType) (int32, error) {
	v, err := get[Integer](d, key, TypeInteger)
	return int32(v), err
}

func (d *Descriptor) Float(key filterapi.OSType) (float64, error) {
	v, err := get[Float](d, key, TypeFloat)
	return float64(v), err
}

func (d *Descriptor) UnitFloat(key filterapi.OSType) (UnitFloat, error) {
	return get[UnitFloat](d, key, TypeUnitFloat)
}

func (d *Descriptor) Boolean(key filterapi.OSType) (bool, error) {
	v, err := get[Boolean](d, key, TypeBoolean)
	return bool(v), err
}

func (d *Descriptor) Text(key filterapi.OSType) (string, error) {
	v, err := get[Text](d, key, TypeText)
	return string(v), err
}

func (d *Descriptor) Data(key filterapi.OSType) ([]byte, error) {
	v, err := get[Data](d, key, TypeData)
	return []byte(v), err
}

func (d *Descriptor) Alias(key filterapi.OSType) (string, error) {
	v, err := get[Alias](d, key, TypeAlias)
	return string(v), err
}

// Class accepts both class and global class values.
func (d *Descriptor) Class(key filterapi.OSType) (filterapi.OSType, error) {
	it, err := d.Get(key)
	if err != nil {
		return 0, err
	}
	switch v := it.Value.(type) {
	case Class:
		return filterapi.OSType(v), nil
	case GlobalClass:
		return filterapi.OSType(v), nil
	}
	return 0, mismatch(key, TypeClass, it.Value.Kind())
}

func (d *Descriptor) Enumerated(key filterapi.OSType) (Enumerated, error) {
	return get[Enumerated](d, key, TypeEnumerated)
}

// Object accepts both object and global object values.
func (d *Descriptor) Object(key filterapi.OSType) (filterapi.OSType, *Descriptor, error) {
	it, err := d.Get(key)
	if err != nil {
		return 0, nil, err
	}
	switch v := it.Value.(type) {
	case Object:
		return v.Class, v.Descriptor, nil
	case GlobalObject:
		return v.Class, v.Descriptor, nil
	}
	return 0, nil, mismatch(key, TypeObject, it.Value.Kind())
}

func (d *Descriptor) List(key filterapi.OSType) (*List, error) {
	return get[*List](d, key, TypeList)
}

func (d *Descriptor) Reference(key filterapi.OSType) (*Reference, error) {
	return get[*Reference](d, key, TypeReference)
}

// Has reports whether key is present.
func (d *Descriptor) Has(key filterapi.OSType) bool {
	if d == nil {
		return false
	}
	_, ok := d.items[key]
	return ok
}

// Erase removes key. Erasing an absent key does nothing.
func (d *Descriptor) Erase(key filterapi.OSType) {
	if _, ok := d.items[key]; !ok {
		return
	}
	delete(d.items, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i:i], d.keys[i+1:]...)
			break
		}
	}
}

// Clear removes every key.
func (d *Descriptor) Clear() {
	d.keys = nil
	d.items = make(map[filterapi.OSType]Item)
}

// Len returns the number of keys.
func (d *Descriptor) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d *Descriptor) Keys() []filterapi.OSType {
	if d == nil {
		return nil
	}
	return append([]filterapi.OSType(nil), d.keys...)
}

// KeyAt returns the key at position i.
func (d *Descriptor) KeyAt(i int) (filterapi.OSType, error) {
	if i < 0 || i >= d.Len() {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, i)
	}
	return d.keys[i], nil
}

// Clone returns a deep copy sharing nothing mutable with d.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := &Descriptor{
		keys:  append([]filterapi.OSType(nil), d.keys...),
		items: make(map[filterapi.OSType]Item, len(d.items)),
		flags: d.flags,
	}
	for k, it := range d.items {
		c.items[k] = it.clone()
	}
	return c
}

// Equal compares key order, flags and values.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d.Len() != o.Len() {
		return false
	}
	if d.Len() == 0 {
		return true
	}
	for i, k := range d.keys {
		if o.keys[i] != k {
			return false
		}
		if !d.items[k].equal(o.items[k]) {
			return false
		}
	}
	return true
}
