package bridge

import (
	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
)

func actionDescriptorSuite(bad, unimplemented uintptr) filterapi.ActionDescriptorSuite2 {
	return filterapi.ActionDescriptorSuite2{
		Make:               bound(bad, (*binding).adMake),
		Free:               bound(bad, (*binding).adFree),
		GetType:            bound(bad, (*binding).adGetType),
		GetKey:             bound(bad, (*binding).adGetKey),
		HasKey:             bound(bad, (*binding).adHasKey),
		GetCount:           bound(bad, (*binding).adGetCount),
		IsEqual:            bound(bad, (*binding).adIsEqual),
		Erase:              bound(bad, (*binding).adErase),
		Clear:              bound(bad, (*binding).adClear),
		PutInteger:         bound(bad, (*binding).adPutInteger),
		PutFloat:           bound(bad, (*binding).adPutFloat),
		PutUnitFloat:       bound(bad, (*binding).adPutUnitFloat),
		PutString:          bound(bad, (*binding).adPutString),
		PutBoolean:         bound(bad, (*binding).adPutBoolean),
		PutList:            bound(bad, (*binding).adPutList),
		PutObject:          bound(bad, (*binding).adPutObject),
		PutGlobalObject:    bound(bad, (*binding).adPutGlobalObject),
		PutEnumerated:      bound(bad, (*binding).adPutEnumerated),
		PutReference:       bound(bad, (*binding).adPutReference),
		PutClass:           bound(bad, (*binding).adPutClass),
		PutGlobalClass:     bound(bad, (*binding).adPutGlobalClass),
		PutAlias:           bound(bad, (*binding).adPutAlias),
		GetInteger:         bound(bad, (*binding).adGetInteger),
		GetFloat:           bound(bad, (*binding).adGetFloat),
		GetUnitFloat:       bound(bad, (*binding).adGetUnitFloat),
		GetStringLength:    bound(bad, (*binding).adGetStringLength),
		GetString:          bound(bad, (*binding).adGetString),
		GetBoolean:         bound(bad, (*binding).adGetBoolean),
		GetList:            bound(bad, (*binding).adGetList),
		GetObject:          bound(bad, (*binding).adGetObject),
		GetGlobalObject:    bound(bad, (*binding).adGetObject),
		GetEnumerated:      bound(bad, (*binding).adGetEnumerated),
		GetReference:       bound(bad, (*binding).adGetReference),
		GetClass:           bound(bad, (*binding).adGetClass),
		GetGlobalClass:     bound(bad, (*binding).adGetClass),
		GetAlias:           bound(bad, (*binding).adGetAlias),
		HasKeys:            bound(bad, (*binding).adHasKeys),
		PutIntegers:        bound(bad, (*binding).adPutIntegers),
		GetIntegers:        bound(bad, (*binding).adGetIntegers),
		AsHandle:           bound(bad, (*binding).adAsHandle),
		HandleToDescriptor: bound(bad, (*binding).adHandleToDescriptor),
		PutZString:         unimplemented,
		GetZString:         unimplemented,
		PutData:            bound(bad, (*binding).adPutData),
		GetDataLength:      bound(bad, (*binding).adGetDataLength),
		GetData:            bound(bad, (*binding).adGetData),
	}
}

func actionListSuite(bad, unimplemented uintptr) filterapi.ActionListSuite1 {
	return filterapi.ActionListSuite1{
		Make:            bound(bad, (*binding).alMake),
		Free:            bound(bad, (*binding).alFree),
		GetType:         bound(bad, (*binding).alGetType),
		GetCount:        bound(bad, (*binding).alGetCount),
		PutInteger:      bound(bad, (*binding).alPutInteger),
		PutFloat:        bound(bad, (*binding).alPutFloat),
		PutUnitFloat:    bound(bad, (*binding).alPutUnitFloat),
		PutString:       bound(bad, (*binding).alPutString),
		PutBoolean:      bound(bad, (*binding).alPutBoolean),
		PutList:         bound(bad, (*binding).alPutList),
		PutObject:       bound(bad, (*binding).alPutObject),
		PutGlobalObject: bound(bad, (*binding).alPutGlobalObject),
		PutEnumerated:   bound(bad, (*binding).alPutEnumerated),
		PutReference:    bound(bad, (*binding).alPutReference),
		PutClass:        bound(bad, (*binding).alPutClass),
		PutGlobalClass:  bound(bad, (*binding).alPutGlobalClass),
		PutAlias:        bound(bad, (*binding).alPutAlias),
		GetInteger:      bound(bad, (*binding).alGetInteger),
		GetFloat:        bound(bad, (*binding).alGetFloat),
		GetUnitFloat:    bound(bad, (*binding).alGetUnitFloat),
		GetStringLength: bound(bad, (*binding).alGetStringLength),
		GetString:       bound(bad, (*binding).alGetString),
		GetBoolean:      bound(bad, (*binding).alGetBoolean),
		GetList:         bound(bad, (*binding).alGetList),
		GetObject:       bound(bad, (*binding).alGetObject),
		GetGlobalObject: bound(bad, (*binding).alGetObject),
		GetEnumerated:   bound(bad, (*binding).alGetEnumerated),
		GetReference:    bound(bad, (*binding).alGetReference),
		GetClass:        bound(bad, (*binding).alGetClass),
		GetGlobalClass:  bound(bad, (*binding).alGetClass),
		GetAlias:        bound(bad, (*binding).alGetAlias),
		PutIntegers:     bound(bad, (*binding).alPutIntegers),
		GetIntegers:     bound(bad, (*binding).alGetIntegers),
		PutData:         bound(bad, (*binding).alPutData),
		GetDataLength:   bound(bad, (*binding).alGetDataLength),
		GetData:         bound(bad, (*binding).alGetData),
		PutZString:      unimplemented,
		GetZString:      unimplemented,
	}
}

func actionReferenceSuite(bad uintptr) filterapi.ActionReferenceSuite2 {
	return filterapi.ActionReferenceSuite2{
		Make:            bound(bad, (*binding).arMake),
		Free:            bound(bad, (*binding).arFree),
		GetForm:         bound(bad, (*binding).arGetForm),
		GetDesiredClass: bound(bad, (*binding).arGetDesiredClass),
		PutName:         bound(bad, (*binding).arPutName),
		PutIndex:        bound(bad, (*binding).arPutIndex),
		PutIdentifier:   bound(bad, (*binding).arPutIdentifier),
		PutOffset:       bound(bad, (*binding).arPutOffset),
		PutEnumerated:   bound(bad, (*binding).arPutEnumerated),
		PutProperty:     bound(bad, (*binding).arPutProperty),
		PutClass:        bound(bad, (*binding).arPutClass),
		GetNameLength:   bound(bad, (*binding).arGetNameLength),
		GetName:         bound(bad, (*binding).arGetName),
		GetIndex:        bound(bad, (*binding).arGetIndex),
		GetIdentifier:   bound(bad, (*binding).arGetIdentifier),
		GetOffset:       bound(bad, (*binding).arGetOffset),
		GetEnumerated:   bound(bad, (*binding).arGetEnumerated),
		GetProperty:     bound(bad, (*binding).arGetProperty),
		GetContainer:    bound(bad, (*binding).arGetContainer),
	}
}

// storeIf writes v through dest when err is nil and passes err on.
func storeIf[T any](dest uintptr, v T, err error) error {
	if err == nil {
		store(dest, v)
	}
	return err
}

func (b *binding) token(obj any) uintptr {
	return uintptr(b.s.Objects().Put(obj))
}

func (b *binding) onDesc(op string, t uintptr, fn func(*descriptor.Descriptor) error) uintptr {
	d, err := b.s.Objects().Descriptor(descriptor.Token(t))
	if err != nil {
		return b.suiteResult(op, err)
	}
	return b.suiteResult(op, fn(d))
}

func (b *binding) onList(op string, t uintptr, fn func(*descriptor.List) error) uintptr {
	l, err := b.s.Objects().List(descriptor.Token(t))
	if err != nil {
		return b.suiteResult(op, err)
	}
	return b.suiteResult(op, fn(l))
}

func (b *binding) onRef(op string, t uintptr, fn func(*descriptor.Reference) error) uintptr {
	r, err := b.s.Objects().Reference(descriptor.Token(t))
	if err != nil {
		return b.suiteResult(op, err)
	}
	return b.suiteResult(op, fn(r))
}

// descValue, listValue and refValue resolve a token into a copy that can be stored.
func (b *binding) descValue(t uintptr) (*descriptor.Descriptor, error) {
	d, err := b.s.Objects().Descriptor(descriptor.Token(t))
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

func (b *binding) listValue(t uintptr) (*descriptor.List, error) {
	l, err := b.s.Objects().List(descriptor.Token(t))
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

func (b *binding) refValue(t uintptr) (*descriptor.Reference, error) {
	r, err := b.s.Objects().Reference(descriptor.Token(t))
	if err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// Descriptor suite.

func (b *binding) adMake(dest uintptr) uintptr {
	if dest == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	store(dest, b.token(descriptor.New(b.s.Terminology())))
	return 0
}

func (b *binding) adFree(t uintptr) uintptr {
	return b.suiteResult("descriptor free", b.s.Objects().Free(descriptor.Token(t)))
}

func (b *binding) adGetType(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get type", t, func(d *descriptor.Descriptor) error {
		it, err := d.Get(filterapi.OSType(key))
		if err != nil {
			return err
		}
		store(dest, it.Value.Kind())
		return nil
	})
}

func (b *binding) adGetKey(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get key", t, func(d *descriptor.Descriptor) error {
		k, err := d.KeyAt(int(index))
		return storeIf(dest, k, err)
	})
}

func (b *binding) adHasKey(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor has key", t, func(d *descriptor.Descriptor) error {
		store(dest, uint8(boolean(d.Has(filterapi.OSType(key)))))
		return nil
	})
}

func (b *binding) adGetCount(t, dest uintptr) uintptr {
	return b.onDesc("descriptor count", t, func(d *descriptor.Descriptor) error {
		store(dest, uint32(d.Len()))
		return nil
	})
}

func (b *binding) adIsEqual(t, other, dest uintptr) uintptr {
	return b.onDesc("descriptor equal", t, func(d *descriptor.Descriptor) error {
		o, err := b.s.Objects().Descriptor(descriptor.Token(other))
		if err != nil {
			return err
		}
		store(dest, uint8(boolean(d.Equal(o))))
		return nil
	})
}

func (b *binding) adErase(t uintptr, key uint32) uintptr {
	return b.onDesc("descriptor erase", t, func(d *descriptor.Descriptor) error {
		d.Erase(filterapi.OSType(key))
		return nil
	})
}

func (b *binding) adClear(t uintptr) uintptr {
	return b.onDesc("descriptor clear", t, func(d *descriptor.Descriptor) error {
		d.Clear()
		return nil
	})
}

func (b *binding) adPutInteger(t uintptr, key uint32, v int32) uintptr {
	return b.onDesc("descriptor put integer", t, func(d *descriptor.Descriptor) error {
		d.PutInteger(filterapi.OSType(key), v)
		return nil
	})
}

func (b *binding) adPutFloat(t uintptr, key uint32, v float64) uintptr {
	return b.onDesc("descriptor put float", t, func(d *descriptor.Descriptor) error {
		d.PutFloat(filterapi.OSType(key), v)
		return nil
	})
}

func (b *binding) adPutUnitFloat(t uintptr, key, unit uint32, v float64) uintptr {
	return b.onDesc("descriptor put unit float", t, func(d *descriptor.Descriptor) error {
		d.PutUnitFloat(filterapi.OSType(key), filterapi.OSType(unit), v)
		return nil
	})
}

func (b *binding) adPutString(t uintptr, key uint32, s uintptr) uintptr {
	return b.onDesc("descriptor put string", t, func(d *descriptor.Descriptor) error {
		d.PutText(filterapi.OSType(key), cString(s))
		return nil
	})
}

func (b *binding) adPutBoolean(t uintptr, key uint32, v uint8) uintptr {
	return b.onDesc("descriptor put boolean", t, func(d *descriptor.Descriptor) error {
		d.PutBoolean(filterapi.OSType(key), v != 0)
		return nil
	})
}

func (b *binding) adPutList(t uintptr, key uint32, l uintptr) uintptr {
	return b.onDesc("descriptor put list", t, func(d *descriptor.Descriptor) error {
		v, err := b.listValue(l)
		if err != nil {
			return err
		}
		d.PutList(filterapi.OSType(key), v)
		return nil
	})
}

func (b *binding) adPutObject(t uintptr, key, class uint32, obj uintptr) uintptr {
	return b.onDesc("descriptor put object", t, func(d *descriptor.Descriptor) error {
		v, err := b.descValue(obj)
		if err != nil {
			return err
		}
		d.PutObject(filterapi.OSType(key), filterapi.OSType(class), v)
		return nil
	})
}

func (b *binding) adPutGlobalObject(t uintptr, key, class uint32, obj uintptr) uintptr {
	return b.onDesc("descriptor put global object", t, func(d *descriptor.Descriptor) error {
		v, err := b.descValue(obj)
		if err != nil {
			return err
		}
		d.Put(filterapi.OSType(key), descriptor.GlobalObject{Class: filterapi.OSType(class), Descriptor: v})
		return nil
	})
}

func (b *binding) adPutEnumerated(t uintptr, key, typ, value uint32) uintptr {
	return b.onDesc("descriptor put enumerated", t, func(d *descriptor.Descriptor) error {
		d.PutEnumerated(filterapi.OSType(key), filterapi.OSType(typ), filterapi.OSType(value))
		return nil
	})
}

func (b *binding) adPutReference(t uintptr, key uint32, ref uintptr) uintptr {
	return b.onDesc("descriptor put reference", t, func(d *descriptor.Descriptor) error {
		v, err := b.refValue(ref)
		if err != nil {
			return err
		}
		d.PutReference(filterapi.OSType(key), v)
		return nil
	})
}

func (b *binding) adPutClass(t uintptr, key, class uint32) uintptr {
	return b.onDesc("descriptor put class", t, func(d *descriptor.Descriptor) error {
		d.PutClass(filterapi.OSType(key), filterapi.OSType(class))
		return nil
	})
}

func (b *binding) adPutGlobalClass(t uintptr, key, class uint32) uintptr {
	return b.onDesc("descriptor put global class", t, func(d *descriptor.Descriptor) error {
		d.Put(filterapi.OSType(key), descriptor.GlobalClass(class))
		return nil
	})
}

func (b *binding) adPutAlias(t uintptr, key uint32, h uintptr) uintptr {
	return b.onDesc("descriptor put alias", t, func(d *descriptor.Descriptor) error {
		data, err := b.handleBytes(h)
		if err != nil {
			return err
		}
		d.PutAlias(filterapi.OSType(key), string(data))
		return nil
	})
}

func (b *binding) adGetInteger(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get integer", t, func(d *descriptor.Descriptor) error {
		v, err := d.Integer(filterapi.OSType(key))
		return storeIf(dest, v, err)
	})
}

func (b *binding) adGetFloat(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get float", t, func(d *descriptor.Descriptor) error {
		v, err := d.Float(filterapi.OSType(key))
		return storeIf(dest, v, err)
	})
}

func (b *binding) adGetUnitFloat(t uintptr, key uint32, unit, dest uintptr) uintptr {
	return b.onDesc("descriptor get unit float", t, func(d *descriptor.Descriptor) error {
		v, err := d.UnitFloat(filterapi.OSType(key))
		if err != nil {
			return err
		}
		store(unit, v.Unit)
		store(dest, v.Value)
		return nil
	})
}

func (b *binding) adGetStringLength(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get string length", t, func(d *descriptor.Descriptor) error {
		v, err := d.Text(filterapi.OSType(key))
		return storeIf(dest, uint32(len(v)), err)
	})
}

func (b *binding) adGetString(t uintptr, key uint32, dest uintptr, size uint32) uintptr {
	return b.onDesc("descriptor get string", t, func(d *descriptor.Descriptor) error {
		v, err := d.Text(filterapi.OSType(key))
		if err == nil {
			putCString(dest, size, v)
		}
		return err
	})
}

func (b *binding) adGetBoolean(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get boolean", t, func(d *descriptor.Descriptor) error {
		v, err := d.Boolean(filterapi.OSType(key))
		return storeIf(dest, uint8(boolean(v)), err)
	})
}

func (b *binding) adGetList(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get list", t, func(d *descriptor.Descriptor) error {
		l, err := d.List(filterapi.OSType(key))
		if err != nil {
			return err
		}
		store(dest, b.token(l.Clone()))
		return nil
	})
}

func (b *binding) adGetObject(t uintptr, key uint32, class, dest uintptr) uintptr {
	return b.onDesc("descriptor get object", t, func(d *descriptor.Descriptor) error {
		cls, obj, err := d.Object(filterapi.OSType(key))
		if err != nil {
			return err
		}
		store(class, cls)
		store(dest, b.token(obj.Clone()))
		return nil
	})
}

func (b *binding) adGetEnumerated(t uintptr, key uint32, typ, dest uintptr) uintptr {
	return b.onDesc("descriptor get enumerated", t, func(d *descriptor.Descriptor) error {
		v, err := d.Enumerated(filterapi.OSType(key))
		if err != nil {
			return err
		}
		store(typ, v.Type)
		store(dest, v.Value)
		return nil
	})
}

func (b *binding) adGetReference(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get reference", t, func(d *descriptor.Descriptor) error {
		r, err := d.Reference(filterapi.OSType(key))
		if err != nil {
			return err
		}
		store(dest, b.token(r.Clone()))
		return nil
	})
}

func (b *binding) adGetClass(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get class", t, func(d *descriptor.Descriptor) error {
		v, err := d.Class(filterapi.OSType(key))
		return storeIf(dest, v, err)
	})
}

func (b *binding) adGetAlias(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get alias", t, func(d *descriptor.Descriptor) error {
		v, err := d.Alias(filterapi.OSType(key))
		if err != nil {
			return err
		}
		h, err := b.newHandle([]byte(v))
		return storeIf(dest, h, err)
	})
}

func (b *binding) adHasKeys(t, keys, dest uintptr) uintptr {
	return b.onDesc("descriptor has keys", t, func(d *descriptor.Descriptor) error {
		all := true
		for _, k := range keyArray(keys) {
			all = all && d.Has(k)
		}
		store(dest, uint8(boolean(all)))
		return nil
	})
}

func (b *binding) adPutIntegers(t uintptr, key, count uint32, values uintptr) uintptr {
	return b.onDesc("descriptor put integers", t, func(d *descriptor.Descriptor) error {
		l := descriptor.NewList()
		for i := uint32(0); i < count; i++ {
			l.PutInteger(*at[int32](values + uintptr(i)*4))
		}
		d.PutList(filterapi.OSType(key), l)
		return nil
	})
}

func (b *binding) adGetIntegers(t uintptr, key, count uint32, values uintptr) uintptr {
	return b.onDesc("descriptor get integers", t, func(d *descriptor.Descriptor) error {
		l, err := d.List(filterapi.OSType(key))
		if err != nil {
			return err
		}
		return readIntegers(l, count, values)
	})
}

func readIntegers(l *descriptor.List, count uint32, values uintptr) error {
	for i := uint32(0); i < count; i++ {
		v, err := l.Integer(int(i))
		if err != nil {
			return err
		}
		*at[int32](values + uintptr(i)*4) = v
	}
	return nil
}

func (b *binding) adAsHandle(t, dest uintptr) uintptr {
	return b.onDesc("descriptor as handle", t, func(d *descriptor.Descriptor) error {
		h, err := b.s.DescriptorToHandle(d)
		return storeIf(dest, h, err)
	})
}

func (b *binding) adHandleToDescriptor(h, dest uintptr) uintptr {
	d, err := b.descriptorAt(h)
	if err != nil {
		return b.suiteResult("handle to descriptor", err)
	}
	store(dest, b.token(d))
	return 0
}

func (b *binding) adPutData(t uintptr, key uint32, length int32, value uintptr) uintptr {
	return b.onDesc("descriptor put data", t, func(d *descriptor.Descriptor) error {
		d.PutData(filterapi.OSType(key), append([]byte{}, bytesAt(value, int(length))...))
		return nil
	})
}

func (b *binding) adGetDataLength(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get data length", t, func(d *descriptor.Descriptor) error {
		v, err := d.Data(filterapi.OSType(key))
		return storeIf(dest, int32(len(v)), err)
	})
}

func (b *binding) adGetData(t uintptr, key uint32, dest uintptr) uintptr {
	return b.onDesc("descriptor get data", t, func(d *descriptor.Descriptor) error {
		v, err := d.Data(filterapi.OSType(key))
		if err == nil {
			copy(bytesAt(dest, len(v)), v)
		}
		return err
	})
}

// List suite.

func (b *binding) alMake(dest uintptr) uintptr {
	if dest == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	store(dest, b.token(descriptor.NewList()))
	return 0
}

func (b *binding) alFree(t uintptr) uintptr {
	return b.suiteResult("list free", b.s.Objects().Free(descriptor.Token(t)))
}

func (b *binding) alGetType(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get type", t, func(l *descriptor.List) error {
		v, err := l.Type(int(index))
		return storeIf(dest, v, err)
	})
}

func (b *binding) alGetCount(t, dest uintptr) uintptr {
	return b.onList("list count", t, func(l *descriptor.List) error {
		store(dest, uint32(l.Len()))
		return nil
	})
}

func (b *binding) alPutInteger(t uintptr, v int32) uintptr {
	return b.onList("list put integer", t, func(l *descriptor.List) error {
		l.PutInteger(v)
		return nil
	})
}

func (b *binding) alPutFloat(t uintptr, v float64) uintptr {
	return b.onList("list put float", t, func(l *descriptor.List) error {
		l.PutFloat(v)
		return nil
	})
}

func (b *binding) alPutUnitFloat(t uintptr, unit uint32, v float64) uintptr {
	return b.onList("list put unit float", t, func(l *descriptor.List) error {
		l.Append(descriptor.UnitFloat{Unit: filterapi.OSType(unit), Value: v})
		return nil
	})
}

func (b *binding) alPutString(t, s uintptr) uintptr {
	return b.onList("list put string", t, func(l *descriptor.List) error {
		l.PutText(cString(s))
		return nil
	})
}

func (b *binding) alPutBoolean(t uintptr, v uint8) uintptr {
	return b.onList("list put boolean", t, func(l *descriptor.List) error {
		l.PutBoolean(v != 0)
		return nil
	})
}

func (b *binding) alPutList(t, other uintptr) uintptr {
	return b.onList("list put list", t, func(l *descriptor.List) error {
		v, err := b.listValue(other)
		if err != nil {
			return err
		}
		l.Append(v)
		return nil
	})
}

func (b *binding) alPutObject(t uintptr, class uint32, obj uintptr) uintptr {
	return b.onList("list put object", t, func(l *descriptor.List) error {
		v, err := b.descValue(obj)
		if err != nil {
			return err
		}
		l.Append(descriptor.Object{Class: filterapi.OSType(class), Descriptor: v})
		return nil
	})
}

func (b *binding) alPutGlobalObject(t uintptr, class uint32, obj uintptr) uintptr {
	return b.onList("list put global object", t, func(l *descriptor.List) error {
		v, err := b.descValue(obj)
		if err != nil {
			return err
		}
		l.Append(descriptor.GlobalObject{Class: filterapi.OSType(class), Descriptor: v})
		return nil
	})
}

func (b *binding) alPutEnumerated(t uintptr, typ, value uint32) uintptr {
	return b.onList("list put enumerated", t, func(l *descriptor.List) error {
		l.Append(descriptor.Enumerated{Type: filterapi.OSType(typ), Value: filterapi.OSType(value)})
		return nil
	})
}

func (b *binding) alPutReference(t, ref uintptr) uintptr {
	return b.onList("list put reference", t, func(l *descriptor.List) error {
		v, err := b.refValue(ref)
		if err != nil {
			return err
		}
		l.Append(v)
		return nil
	})
}

func (b *binding) alPutClass(t uintptr, class uint32) uintptr {
	return b.onList("list put class", t, func(l *descriptor.List) error {
		l.Append(descriptor.Class(class))
		return nil
	})
}

func (b *binding) alPutGlobalClass(t uintptr, class uint32) uintptr {
	return b.onList("list put global class", t, func(l *descriptor.List) error {
		l.Append(descriptor.GlobalClass(class))
		return nil
	})
}

func (b *binding) alPutAlias(t, h uintptr) uintptr {
	return b.onList("list put alias", t, func(l *descriptor.List) error {
		data, err := b.handleBytes(h)
		if err != nil {
			return err
		}
		l.PutAlias(string(data))
		return nil
	})
}

func (b *binding) alGetInteger(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get integer", t, func(l *descriptor.List) error {
		v, err := l.Integer(int(index))
		return storeIf(dest, v, err)
	})
}

func (b *binding) alGetFloat(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get float", t, func(l *descriptor.List) error {
		v, err := l.Float(int(index))
		return storeIf(dest, v, err)
	})
}

func (b *binding) alGetUnitFloat(t uintptr, index uint32, unit, dest uintptr) uintptr {
	return b.onList("list get unit float", t, func(l *descriptor.List) error {
		v, err := l.UnitFloat(int(index))
		if err != nil {
			return err
		}
		store(unit, v.Unit)
		store(dest, v.Value)
		return nil
	})
}

func (b *binding) alGetStringLength(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get string length", t, func(l *descriptor.List) error {
		v, err := l.Text(int(index))
		return storeIf(dest, uint32(len(v)), err)
	})
}

func (b *binding) alGetString(t uintptr, index uint32, dest uintptr, size uint32) uintptr {
	return b.onList("list get string", t, func(l *descriptor.List) error {
		v, err := l.Text(int(index))
		if err == nil {
			putCString(dest, size, v)
		}
		return err
	})
}

func (b *binding) alGetBoolean(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get boolean", t, func(l *descriptor.List) error {
		v, err := l.Boolean(int(index))
		return storeIf(dest, uint8(boolean(v)), err)
	})
}

func (b *binding) alGetList(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get list", t, func(l *descriptor.List) error {
		v, err := l.List(int(index))
		if err != nil {
			return err
		}
		store(dest, b.token(v.Clone()))
		return nil
	})
}

func (b *binding) alGetObject(t uintptr, index uint32, class, dest uintptr) uintptr {
	return b.onList("list get object", t, func(l *descriptor.List) error {
		cls, obj, err := l.Object(int(index))
		if err != nil {
			return err
		}
		store(class, cls)
		store(dest, b.token(obj.Clone()))
		return nil
	})
}

func (b *binding) alGetEnumerated(t uintptr, index uint32, typ, dest uintptr) uintptr {
	return b.onList("list get enumerated", t, func(l *descriptor.List) error {
		v, err := l.Enumerated(int(index))
		if err != nil {
			return err
		}
		store(typ, v.Type)
		store(dest, v.Value)
		return nil
	})
}

func (b *binding) alGetReference(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get reference", t, func(l *descriptor.List) error {
		r, err := l.Reference(int(index))
		if err != nil {
			return err
		}
		store(dest, b.token(r.Clone()))
		return nil
	})
}

func (b *binding) alGetClass(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get class", t, func(l *descriptor.List) error {
		v, err := l.Class(int(index))
		return storeIf(dest, v, err)
	})
}

func (b *binding) alGetAlias(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get alias", t, func(l *descriptor.List) error {
		v, err := l.Alias(int(index))
		if err != nil {
			return err
		}
		h, err := b.newHandle([]byte(v))
		return storeIf(dest, h, err)
	})
}

func (b *binding) alPutIntegers(t uintptr, count uint32, values uintptr) uintptr {
	return b.onList("list put integers", t, func(l *descriptor.List) error {
		for i := uint32(0); i < count; i++ {
			l.PutInteger(*at[int32](values + uintptr(i)*4))
		}
		return nil
	})
}

func (b *binding) alGetIntegers(t uintptr, count uint32, values uintptr) uintptr {
	return b.onList("list get integers", t, func(l *descriptor.List) error {
		return readIntegers(l, count, values)
	})
}

func (b *binding) alPutData(t uintptr, length int32, value uintptr) uintptr {
	return b.onList("list put data", t, func(l *descriptor.List) error {
		l.PutData(append([]byte{}, bytesAt(value, int(length))...))
		return nil
	})
}

func (b *binding) alGetDataLength(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get data length", t, func(l *descriptor.List) error {
		v, err := l.Data(int(index))
		return storeIf(dest, int32(len(v)), err)
	})
}

func (b *binding) alGetData(t uintptr, index uint32, dest uintptr) uintptr {
	return b.onList("list get data", t, func(l *descriptor.List) error {
		v, err := l.Data(int(index))
		if err == nil {
			copy(bytesAt(dest, len(v)), v)
		}
		return err
	})
}

// Reference suite.

func (b *binding) arMake(dest uintptr) uintptr {
	if dest == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	store(dest, b.token(descriptor.NewReference()))
	return 0
}

func (b *binding) arFree(t uintptr) uintptr {
	return b.suiteResult("reference free", b.s.Objects().Free(descriptor.Token(t)))
}

// onHop runs fn against the first hop of the reference behind t.
func (b *binding) onHop(op string, t uintptr, fn func(descriptor.Hop) error) uintptr {
	return b.onRef(op, t, func(r *descriptor.Reference) error {
		h, err := r.First()
		if err != nil {
			return err
		}
		return fn(h)
	})
}

func (b *binding) arGetForm(t, dest uintptr) uintptr {
	return b.onHop("reference get form", t, func(h descriptor.Hop) error {
		store(dest, h.Form)
		return nil
	})
}

func (b *binding) arGetDesiredClass(t, dest uintptr) uintptr {
	return b.onHop("reference get class", t, func(h descriptor.Hop) error {
		store(dest, h.Class)
		return nil
	})
}

func (b *binding) arPutName(t uintptr, class uint32, name uintptr) uintptr {
	return b.onRef("reference put name", t, func(r *descriptor.Reference) error {
		r.PutName(filterapi.OSType(class), cString(name))
		return nil
	})
}

func (b *binding) arPutIndex(t uintptr, class, index uint32) uintptr {
	return b.onRef("reference put index", t, func(r *descriptor.Reference) error {
		r.PutIndex(filterapi.OSType(class), int32(index))
		return nil
	})
}

func (b *binding) arPutIdentifier(t uintptr, class, id uint32) uintptr {
	return b.onRef("reference put identifier", t, func(r *descriptor.Reference) error {
		r.PutIdentifier(filterapi.OSType(class), id)
		return nil
	})
}

func (b *binding) arPutOffset(t uintptr, class uint32, offset int32) uintptr {
	return b.onRef("reference put offset", t, func(r *descriptor.Reference) error {
		r.PutOffset(filterapi.OSType(class), offset)
		return nil
	})
}

func (b *binding) arPutEnumerated(t uintptr, class, typ, value uint32) uintptr {
	return b.onRef("reference put enumerated", t, func(r *descriptor.Reference) error {
		r.PutEnumerated(filterapi.OSType(class), filterapi.OSType(typ), filterapi.OSType(value))
		return nil
	})
}

func (b *binding) arPutProperty(t uintptr, class, key uint32) uintptr {
	return b.onRef("reference put property", t, func(r *descriptor.Reference) error {
		r.PutProperty(filterapi.OSType(class), filterapi.OSType(key))
		return nil
	})
}

func (b *binding) arPutClass(t uintptr, class uint32) uintptr {
	return b.onRef("reference put class", t, func(r *descriptor.Reference) error {
		r.PutClass(filterapi.OSType(class))
		return nil
	})
}

func (b *binding) arGetNameLength(t, dest uintptr) uintptr {
	return b.onHop("reference get name length", t, func(h descriptor.Hop) error {
		store(dest, uint32(len(h.Name)))
		return nil
	})
}

func (b *binding) arGetName(t, dest uintptr, size uint32) uintptr {
	return b.onHop("reference get name", t, func(h descriptor.Hop) error {
		putCString(dest, size, h.Name)
		return nil
	})
}

func (b *binding) arGetIndex(t, dest uintptr) uintptr {
	return b.onHop("reference get index", t, func(h descriptor.Hop) error {
		store(dest, uint32(h.Index))
		return nil
	})
}

func (b *binding) arGetIdentifier(t, dest uintptr) uintptr {
	return b.onHop("reference get identifier", t, func(h descriptor.Hop) error {
		store(dest, h.ID)
		return nil
	})
}

func (b *binding) arGetOffset(t, dest uintptr) uintptr {
	return b.onHop("reference get offset", t, func(h descriptor.Hop) error {
		store(dest, h.Index)
		return nil
	})
}

func (b *binding) arGetEnumerated(t, typ, dest uintptr) uintptr {
	return b.onHop("reference get enumerated", t, func(h descriptor.Hop) error {
		store(typ, h.EnumType)
		store(dest, h.Key)
		return nil
	})
}

func (b *binding) arGetProperty(t, dest uintptr) uintptr {
	return b.onHop("reference get property", t, func(h descriptor.Hop) error {
		store(dest, h.Key)
		return nil
	})
}

// The container of the last hop is a null reference token.
func (b *binding) arGetContainer(t, dest uintptr) uintptr {
	return b.onRef("reference get container", t, func(r *descriptor.Reference) error {
		c := r.Container()
		if c == nil {
			store(dest, uintptr(0))
			return nil
		}
		store(dest, b.token(c))
		return nil
	})
}
