package descriptor

import (
	"errors"
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// ErrValuePinned is recorded when a pinned read had to clamp the stored value.
var ErrValuePinned = errors.New("descriptor: value pinned to range")

// ReadCursor walks a descriptor key by key, the way the classic read procs do. The first
// error of the walk is kept and reported again when the cursor is closed.
type ReadCursor struct {
	desc     *Descriptor
	expected []filterapi.OSType
	pos      int
	current  filterapi.OSType
	valid    bool
	err      error
}

// NewReadCursor starts a walk over d. expected is the plug-in's key array; keys that are
// read are replaced by TypeNull in it.
func NewReadCursor(d *Descriptor, expected []filterapi.OSType) *ReadCursor {
	if d == nil {
		d = New(nil)
	}
	return &ReadCursor{desc: d, expected: append([]filterapi.OSType(nil), expected...)}
}

// Next advances to the next key and returns its key, type code and flags.
func (c *ReadCursor) Next() (key, typ filterapi.OSType, flags uint32, ok bool) {
	if c.pos >= c.desc.Len() {
		c.valid = false
		return 0, 0, 0, false
	}
	key = c.desc.keys[c.pos]
	c.pos++
	c.current, c.valid = key, true

	for i, k := range c.expected {
		if k == key {
			c.expected[i] = TypeNull
			break
		}
	}

	it := c.desc.items[key]
	return key, it.Value.Kind(), it.Flags, true
}

// Expected returns the key array with every key read so far replaced by TypeNull.
func (c *ReadCursor) Expected() []filterapi.OSType {
	return append([]filterapi.OSType(nil), c.expected...)
}

// Err returns the first error recorded during the walk.
func (c *ReadCursor) Err() error {
	return c.err
}

// Close ends the walk and returns the first error recorded.
func (c *ReadCursor) Close() error {
	c.valid = false
	return c.err
}

func (c *ReadCursor) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return err
}

func (c *ReadCursor) key() (filterapi.OSType, error) {
	if !c.valid {
		return 0, c.fail(fmt.Errorf("%w: no current key", ErrKeyNotFound))
	}
	return c.current, nil
}

func readValue[T any](c *ReadCursor, read func(filterapi.OSType) (T, error)) (T, error) {
	var zero T
	key, err := c.key()
	if err != nil {
		return zero, err
	}
	v, err := read(key)
	if err != nil {
		return zero, c.fail(err)
	}
	return v, nil
}

func (c *ReadCursor) Integer() (int32, error)          { return readValue(c, c.desc.Integer) }
func (c *ReadCursor) Float() (float64, error)          { return readValue(c, c.desc.Float) }
func (c *ReadCursor) UnitFloat() (UnitFloat, error)    { return readValue(c, c.desc.UnitFloat) }
func (c *ReadCursor) Boolean() (bool, error)           { return readValue(c, c.desc.Boolean) }
func (c *ReadCursor) Text() (string, error)            { return readValue(c, c.desc.Text) }
func (c *ReadCursor) Alias() (string, error)           { return readValue(c, c.desc.Alias) }
func (c *ReadCursor) Class() (filterapi.OSType, error) { return readValue(c, c.desc.Class) }
func (c *ReadCursor) Enumerated() (Enumerated, error)  { return readValue(c, c.desc.Enumerated) }
func (c *ReadCursor) Reference() (*Reference, error)   { return readValue(c, c.desc.Reference) }

// Object returns the class and a copy of the nested descriptor.
func (c *ReadCursor) Object() (filterapi.OSType, *Descriptor, error) {
	key, err := c.key()
	if err != nil {
		return 0, nil, err
	}
	class, d, err := c.desc.Object(key)
	if err != nil {
		return 0, nil, c.fail(err)
	}
	return class, d.Clone(), nil
}

// Count returns the number of items of a list value.
func (c *ReadCursor) Count() (uint32, error) {
	l, err := readValue(c, c.desc.List)
	if err != nil {
		return 0, err
	}
	return uint32(l.Len()), nil
}

// PinnedInteger reads an integer clamped to [lo, hi]. Clamping records ErrValuePinned.
func (c *ReadCursor) PinnedInteger(lo, hi int32) (int32, error) {
	v, err := c.Integer()
	if err != nil {
		return 0, err
	}
	if v < lo {
		return lo, c.fail(fmt.Errorf("%w: %d below %d", ErrValuePinned, v, lo))
	}
	if v > hi {
		return hi, c.fail(fmt.Errorf("%w: %d above %d", ErrValuePinned, v, hi))
	}
	return v, nil
}

// PinnedFloat reads a float clamped to [lo, hi].
func (c *ReadCursor) PinnedFloat(lo, hi float64) (float64, error) {
	v, err := c.Float()
	if err != nil {
		return 0, err
	}
	return c.pin(v, lo, hi)
}

// PinnedUnitFloat reads a unit float clamped to [lo, hi], keeping its unit.
func (c *ReadCursor) PinnedUnitFloat(lo, hi float64) (UnitFloat, error) {
	v, err := c.UnitFloat()
	if err != nil {
		return UnitFloat{}, err
	}
	pinned, err := c.pin(v.Value, lo, hi)
	return UnitFloat{Unit: v.Unit, Value: pinned}, err
}

func (c *ReadCursor) pin(v, lo, hi float64) (float64, error) {
	if v < lo {
		return lo, c.fail(fmt.Errorf("%w: %g below %g", ErrValuePinned, v, lo))
	}
	if v > hi {
		return hi, c.fail(fmt.Errorf("%w: %g above %g", ErrValuePinned, v, hi))
	}
	return v, nil
}

// WriteCursor builds a descriptor the way the classic write procs do.
type WriteCursor struct {
	desc *Descriptor
}

// NewWriteCursor starts a new descriptor whose keys take flags from flags.
func NewWriteCursor(flags FlagSource) *WriteCursor {
	return &WriteCursor{desc: New(flags)}
}

func (w *WriteCursor) Put(key filterapi.OSType, v Value) { w.desc.Put(key, v) }

func (w *WriteCursor) PutInteger(key filterapi.OSType, v int32) { w.desc.PutInteger(key, v) }
func (w *WriteCursor) PutFloat(key filterapi.OSType, v float64) { w.desc.PutFloat(key, v) }
func (w *WriteCursor) PutBoolean(key filterapi.OSType, v bool)  { w.desc.PutBoolean(key, v) }
func (w *WriteCursor) PutText(key filterapi.OSType, v string)   { w.desc.PutText(key, v) }
func (w *WriteCursor) PutAlias(key filterapi.OSType, p string)  { w.desc.PutAlias(key, p) }

func (w *WriteCursor) PutUnitFloat(key, unit filterapi.OSType, v float64) {
	w.desc.PutUnitFloat(key, unit, v)
}

func (w *WriteCursor) PutEnumerated(key, enumType, value filterapi.OSType) {
	w.desc.PutEnumerated(key, enumType, value)
}

func (w *WriteCursor) PutClass(key, class filterapi.OSType) { w.desc.PutClass(key, class) }

func (w *WriteCursor) PutScopedClass(key, class filterapi.OSType) {
	w.desc.Put(key, GlobalClass(class))
}

func (w *WriteCursor) PutObject(key, class filterapi.OSType, d *Descriptor) {
	w.desc.PutObject(key, class, d.Clone())
}

func (w *WriteCursor) PutScopedObject(key, class filterapi.OSType, d *Descriptor) {
	w.desc.Put(key, GlobalObject{Class: class, Descriptor: d.Clone()})
}

func (w *WriteCursor) PutReference(key filterapi.OSType, r *Reference) {
	w.desc.PutReference(key, r.Clone())
}

// PutCount stores a list of count null items.
func (w *WriteCursor) PutCount(key filterapi.OSType, count uint32) {
	l := &List{}
	for i := uint32(0); i < count; i++ {
		l.Append(Null{})
	}
	w.desc.PutList(key, l)
}

// Close returns the finished descriptor.
func (w *WriteCursor) Close() *Descriptor {
	return w.desc
}
