package bridge

import (
	"errors"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
)

func (b *binding) reader(t uintptr) (*descriptor.ReadCursor, error) {
	return b.s.Objects().ReadCursor(descriptor.Token(t))
}

func (b *binding) writer(t uintptr) (*descriptor.WriteCursor, error) {
	return b.s.Objects().WriteCursor(descriptor.Token(t))
}

// handleBytes copies the contents of a plug-in handle.
func (b *binding) handleBytes(h uintptr) ([]byte, error) {
	data, err := b.s.Handles().Bytes(filterapi.Handle(h))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

// newHandle returns a host handle holding data.
func (b *binding) newHandle(data []byte) (filterapi.Handle, error) {
	h, err := b.s.Handles().Allocate(len(data))
	if err != nil {
		return 0, err
	}
	dst, err := b.s.Handles().Bytes(h)
	if err != nil {
		return 0, err
	}
	copy(dst, data)
	return h, nil
}

// descriptorAt decodes a descriptor handle; a null handle is an empty descriptor.
func (b *binding) descriptorAt(h uintptr) (*descriptor.Descriptor, error) {
	if h == 0 {
		return descriptor.New(b.s.Terminology()), nil
	}
	return b.s.DescriptorFromHandle(filterapi.Handle(h))
}

// PIReadDescriptor (PIDescriptorHandle h, DescriptorKeyIDArray keys)
func (b *binding) openRead(h, keys uintptr) uintptr {
	d, err := b.descriptorAt(h)
	if err != nil {
		b.result("open read", err)
		return 0
	}
	t := b.s.Objects().Put(descriptor.NewReadCursor(d, keyArray(keys)))
	b.keys[t] = keys
	return uintptr(t)
}

// OSErr (PIReadDescriptor token). The key array is rewritten with every key read
// replaced by the null type.
func (b *binding) closeRead(t uintptr) uintptr {
	c, err := b.reader(t)
	if err != nil {
		return b.result("close read", err)
	}
	tok := descriptor.Token(t)
	writeKeyArray(b.keys[tok], c.Expected())
	delete(b.keys, tok)
	return b.result("close read", errors.Join(c.Close(), b.s.Objects().Free(tok)))
}

// Boolean (PIReadDescriptor token, DescriptorKeyID *key, DescType *type, int32 *flags)
func (b *binding) getKey(t, key, typ, flags uintptr) uintptr {
	c, err := b.reader(t)
	if err != nil {
		return 0
	}
	k, kt, f, ok := c.Next()
	if !ok {
		return 0
	}
	store(key, k)
	store(typ, kt)
	store(flags, int32(f))
	return 1
}

// readInto runs a cursor read and stores its value unless the read failed outright.
// Pinned values are stored along with their warning code.
func readInto[T any](b *binding, op string, t, dest uintptr, read func(*descriptor.ReadCursor) (T, error)) uintptr {
	c, err := b.reader(t)
	if err != nil {
		return b.result(op, err)
	}
	v, err := read(c)
	if err == nil || codeFor(err) == filterapi.CoercedParamErr {
		store(dest, v)
	}
	return b.result(op, err)
}

// OSErr (PIReadDescriptor token, int32 *dest)
func (b *binding) readInteger(t, dest uintptr) uintptr {
	return readInto(b, "read integer", t, dest, (*descriptor.ReadCursor).Integer)
}

// OSErr (PIReadDescriptor token, double *dest)
func (b *binding) readFloat(t, dest uintptr) uintptr {
	return readInto(b, "read float", t, dest, (*descriptor.ReadCursor).Float)
}

// OSErr (PIReadDescriptor token, DescriptorUnitID *unit, double *dest)
func (b *binding) readUnitFloat(t, unit, dest uintptr) uintptr {
	return readInto(b, "read unit float", t, dest, func(c *descriptor.ReadCursor) (float64, error) {
		v, err := c.UnitFloat()
		if err == nil {
			store(unit, v.Unit)
		}
		return v.Value, err
	})
}

// OSErr (PIReadDescriptor token, Boolean *dest)
func (b *binding) readBoolean(t, dest uintptr) uintptr {
	return readInto(b, "read boolean", t, dest, func(c *descriptor.ReadCursor) (uint8, error) {
		v, err := c.Boolean()
		return uint8(boolean(v)), err
	})
}

// OSErr (PIReadDescriptor token, Handle *dest). The handle holds the characters without
// a terminator.
func (b *binding) readText(t, dest uintptr) uintptr {
	return readInto(b, "read text", t, dest, func(c *descriptor.ReadCursor) (filterapi.Handle, error) {
		v, err := c.Text()
		if err != nil {
			return 0, err
		}
		return b.newHandle([]byte(v))
	})
}

// OSErr (PIReadDescriptor token, Handle *dest). The handle holds the path.
func (b *binding) readAlias(t, dest uintptr) uintptr {
	return readInto(b, "read alias", t, dest, func(c *descriptor.ReadCursor) (filterapi.Handle, error) {
		v, err := c.Alias()
		if err != nil {
			return 0, err
		}
		return b.newHandle([]byte(v))
	})
}

// OSErr (PIReadDescriptor token, DescriptorEnumID *dest)
func (b *binding) readEnumerated(t, dest uintptr) uintptr {
	return readInto(b, "read enumerated", t, dest, func(c *descriptor.ReadCursor) (filterapi.OSType, error) {
		v, err := c.Enumerated()
		return v.Value, err
	})
}

// OSErr (PIReadDescriptor token, DescriptorClassID *dest)
func (b *binding) readClass(t, dest uintptr) uintptr {
	return readInto(b, "read class", t, dest, (*descriptor.ReadCursor).Class)
}

// OSErr (PIReadDescriptor token, PIDescriptorSimpleReference *dest)
func (b *binding) readSimpleReference(t, dest uintptr) uintptr {
	return readInto(b, "read reference", t, dest, func(c *descriptor.ReadCursor) (filterapi.SimpleReference, error) {
		r, err := c.Reference()
		if err != nil {
			return filterapi.SimpleReference{}, err
		}
		return r.ToSimple()
	})
}

// OSErr (PIReadDescriptor token, DescriptorClassID *class, PIDescriptorHandle *dest)
func (b *binding) readObject(t, class, dest uintptr) uintptr {
	return readInto(b, "read object", t, dest, func(c *descriptor.ReadCursor) (filterapi.Handle, error) {
		cls, d, err := c.Object()
		if err != nil {
			return 0, err
		}
		store(class, cls)
		return b.s.DescriptorToHandle(d)
	})
}

// OSErr (PIReadDescriptor token, uint32 *dest)
func (b *binding) readCount(t, dest uintptr) uintptr {
	return readInto(b, "read count", t, dest, (*descriptor.ReadCursor).Count)
}

// OSErr (PIReadDescriptor token, Str255 *dest)
func (b *binding) readString(t, dest uintptr) uintptr {
	return readInto(b, "read string", t, dest, func(c *descriptor.ReadCursor) (filterapi.Str255, error) {
		var s filterapi.Str255
		v, err := c.Text()
		s.Set(v)
		return s, err
	})
}

// OSErr (PIReadDescriptor token, int32 min, int32 max, int32 *dest)
func (b *binding) readPinnedInteger(t uintptr, lo, hi int32, dest uintptr) uintptr {
	return readInto(b, "read pinned integer", t, dest, func(c *descriptor.ReadCursor) (int32, error) {
		return c.PinnedInteger(lo, hi)
	})
}

// OSErr (PIReadDescriptor token, const double *min, const double *max, double *dest)
func (b *binding) readPinnedFloat(t, lo, hi, dest uintptr) uintptr {
	if lo == 0 || hi == 0 {
		return osErr(filterapi.ParamErr)
	}
	return readInto(b, "read pinned float", t, dest, func(c *descriptor.ReadCursor) (float64, error) {
		return c.PinnedFloat(*at[float64](lo), *at[float64](hi))
	})
}

// OSErr (PIReadDescriptor token, const double *min, const double *max,
// DescriptorUnitID *unit, double *dest)
func (b *binding) readPinnedUnitFloat(t, lo, hi, unit, dest uintptr) uintptr {
	if lo == 0 || hi == 0 {
		return osErr(filterapi.ParamErr)
	}
	return readInto(b, "read pinned unit float", t, dest, func(c *descriptor.ReadCursor) (float64, error) {
		v, err := c.PinnedUnitFloat(*at[float64](lo), *at[float64](hi))
		store(unit, v.Unit)
		return v.Value, err
	})
}

// PIWriteDescriptor (void)
func (b *binding) openWrite() uintptr {
	return uintptr(b.s.Objects().Put(descriptor.NewWriteCursor(b.s.Terminology())))
}

// OSErr (PIWriteDescriptor token, PIDescriptorHandle *newDescriptor)
func (b *binding) closeWrite(t, dest uintptr) uintptr {
	w, err := b.writer(t)
	if err != nil {
		return b.result("close write", err)
	}
	if err := b.s.Objects().Free(descriptor.Token(t)); err != nil {
		b.log.Debug("close write: token not freed", "token", t, "error", err)
	}
	h, err := b.s.DescriptorToHandle(w.Close())
	if err != nil {
		return b.result("close write", err)
	}
	store(dest, h)
	return 0
}

// writeWith runs put on the write cursor behind t.
func (b *binding) writeWith(op string, t uintptr, put func(*descriptor.WriteCursor) error) uintptr {
	w, err := b.writer(t)
	if err != nil {
		return b.result(op, err)
	}
	return b.result(op, put(w))
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, int32 value)
func (b *binding) writeInteger(t uintptr, key uint32, v int32) uintptr {
	return b.writeWith("write integer", t, func(w *descriptor.WriteCursor) error {
		w.PutInteger(filterapi.OSType(key), v)
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, const double *value)
func (b *binding) writeFloat(t uintptr, key uint32, v uintptr) uintptr {
	if v == 0 {
		return osErr(filterapi.ParamErr)
	}
	return b.writeWith("write float", t, func(w *descriptor.WriteCursor) error {
		w.PutFloat(filterapi.OSType(key), *at[float64](v))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, DescriptorUnitID unit,
// const double *value)
func (b *binding) writeUnitFloat(t uintptr, key, unit uint32, v uintptr) uintptr {
	if v == 0 {
		return osErr(filterapi.ParamErr)
	}
	return b.writeWith("write unit float", t, func(w *descriptor.WriteCursor) error {
		w.PutUnitFloat(filterapi.OSType(key), filterapi.OSType(unit), *at[float64](v))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, Boolean value)
func (b *binding) writeBoolean(t uintptr, key uint32, v uint8) uintptr {
	return b.writeWith("write boolean", t, func(w *descriptor.WriteCursor) error {
		w.PutBoolean(filterapi.OSType(key), v != 0)
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, Handle text)
func (b *binding) writeText(t uintptr, key uint32, h uintptr) uintptr {
	return b.writeWith("write text", t, func(w *descriptor.WriteCursor) error {
		data, err := b.handleBytes(h)
		if err != nil {
			return err
		}
		w.PutText(filterapi.OSType(key), string(data))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, Handle alias)
func (b *binding) writeAlias(t uintptr, key uint32, h uintptr) uintptr {
	return b.writeWith("write alias", t, func(w *descriptor.WriteCursor) error {
		data, err := b.handleBytes(h)
		if err != nil {
			return err
		}
		w.PutAlias(filterapi.OSType(key), string(data))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, DescriptorTypeID type,
// DescriptorEnumID value)
func (b *binding) writeEnumerated(t uintptr, key, typ, value uint32) uintptr {
	return b.writeWith("write enumerated", t, func(w *descriptor.WriteCursor) error {
		w.PutEnumerated(filterapi.OSType(key), filterapi.OSType(typ), filterapi.OSType(value))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, DescriptorTypeID class)
func (b *binding) writeClass(t uintptr, key, class uint32) uintptr {
	return b.writeWith("write class", t, func(w *descriptor.WriteCursor) error {
		w.PutClass(filterapi.OSType(key), filterapi.OSType(class))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key,
// const PIDescriptorSimpleReference *ref)
func (b *binding) writeSimpleReference(t uintptr, key uint32, ref uintptr) uintptr {
	if ref == 0 {
		return osErr(filterapi.ParamErr)
	}
	return b.writeWith("write reference", t, func(w *descriptor.WriteCursor) error {
		w.PutReference(filterapi.OSType(key), descriptor.FromSimple(at[filterapi.SimpleReference](ref)))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, DescriptorTypeID class,
// PIDescriptorHandle object)
func (b *binding) writeObject(t uintptr, key, class uint32, h uintptr) uintptr {
	return b.writeWith("write object", t, func(w *descriptor.WriteCursor) error {
		d, err := b.descriptorAt(h)
		if err != nil {
			return err
		}
		w.PutObject(filterapi.OSType(key), filterapi.OSType(class), d)
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, uint32 count)
func (b *binding) writeCount(t uintptr, key, count uint32) uintptr {
	return b.writeWith("write count", t, func(w *descriptor.WriteCursor) error {
		w.PutCount(filterapi.OSType(key), count)
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, ConstStr255Param s)
func (b *binding) writeString(t uintptr, key uint32, s uintptr) uintptr {
	return b.writeWith("write string", t, func(w *descriptor.WriteCursor) error {
		w.PutText(filterapi.OSType(key), pString(s))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, DescriptorTypeID class)
func (b *binding) writeScopedClass(t uintptr, key, class uint32) uintptr {
	return b.writeWith("write scoped class", t, func(w *descriptor.WriteCursor) error {
		w.PutScopedClass(filterapi.OSType(key), filterapi.OSType(class))
		return nil
	})
}

// OSErr (PIWriteDescriptor token, DescriptorKeyID key, DescriptorTypeID class,
// PIDescriptorHandle object)
func (b *binding) writeScopedObject(t uintptr, key, class uint32, h uintptr) uintptr {
	return b.writeWith("write scoped object", t, func(w *descriptor.WriteCursor) error {
		d, err := b.descriptorAt(h)
		if err != nil {
			return err
		}
		w.PutScopedObject(filterapi.OSType(key), filterapi.OSType(class), d)
		return nil
	})
}
