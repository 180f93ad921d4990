package bridge

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/colorspace"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
)

// SPErr (const char *name, int32 version, const void **suite)
func (b *binding) acquireSuite(name uintptr, version int32, dest uintptr) uintptr {
	n := cString(name)
	table, ok := b.suites[suiteKey{n, version}]
	if !ok {
		b.log.Debug("suite not provided", "suite", n, "version", version)
		store(dest, uintptr(0))
		return spErr(filterapi.SPSuiteNotFoundError)
	}
	if _, err := b.s.AcquireSuite(n, version); err != nil {
		store(dest, uintptr(0))
		return b.suiteResult("acquire suite", err)
	}
	store(dest, table)
	return 0
}

// SPErr (const char *name, int32 version)
func (b *binding) releaseSuite(name uintptr, version int32) uintptr {
	return b.suiteResult("release suite", b.s.ReleaseSuite(cString(name), version))
}

// SPBoolean (const char *a, const char *b)
func (b *binding) isEqual(x, y uintptr) uintptr {
	return boolean(cString(x) == cString(y))
}

// SPErr (size_t size, void **block). Blocks are buffer manager allocations, locked for
// their whole life so the address stays valid.
func (b *binding) allocateBlock(size, dest uintptr) uintptr {
	if dest == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	p, err := b.lockedBuffer(int(size))
	if err != nil {
		store(dest, uintptr(0))
		return b.suiteResult("allocate block", err)
	}
	store(dest, p)
	return 0
}

func (b *binding) lockedBuffer(size int) (uintptr, error) {
	m := b.s.Buffers()
	id, err := m.Allocate(max(size, 1))
	if err != nil {
		return 0, err
	}
	p, err := m.Lock(id)
	if err != nil {
		return 0, errors.Join(err, m.Free(id))
	}
	return p, nil
}

// SPErr (void *block)
func (b *binding) freeBlock(block uintptr) uintptr {
	if block == 0 {
		return 0
	}
	m := b.s.Buffers()
	id, ok := m.FindByAddress(block)
	if !ok {
		return spErr(filterapi.SPBadParameterError)
	}
	return b.suiteResult("free block", errors.Join(m.Unlock(id), m.Free(id)))
}

// SPErr (void *block, size_t newSize, void **newblock)
func (b *binding) reallocateBlock(block, size, dest uintptr) uintptr {
	if dest == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	if block == 0 {
		return b.allocateBlock(size, dest)
	}
	m := b.s.Buffers()
	id, ok := m.FindByAddress(block)
	if !ok {
		return spErr(filterapi.SPBadParameterError)
	}
	old, err := m.Bytes(id)
	if err != nil {
		return b.suiteResult("reallocate block", err)
	}
	p, err := b.lockedBuffer(int(size))
	if err != nil {
		return b.suiteResult("reallocate block", err)
	}
	copy(bytesAt(p, int(size)), old)
	if err := errors.Join(m.Unlock(id), m.Free(id)); err != nil {
		b.log.Debug("reallocate block: old block not freed", "error", err)
	}
	store(dest, p)
	return 0
}

// SPErr (const char *key, PIActionDescriptor d, Boolean isPersistent)
func (b *binding) registryRegister(key, d uintptr, persistent uint8) uintptr {
	desc, err := b.s.Objects().Descriptor(descriptor.Token(d))
	if err != nil {
		return b.suiteResult("registry register", err)
	}
	b.s.Registry().Set(cString(key), desc, persistent != 0)
	return 0
}

// SPErr (const char *key)
func (b *binding) registryErase(key uintptr) uintptr {
	return b.suiteResult("registry erase", b.s.Registry().Erase(cString(key)))
}

// SPErr (const char *key, PIActionDescriptor *d). The plug-in owns the returned
// descriptor and frees it through the descriptor suite.
func (b *binding) registryGet(key, dest uintptr) uintptr {
	d, _, err := b.s.Registry().Get(cString(key))
	if err != nil {
		store(dest, uintptr(0))
		return b.suiteResult("registry get", err)
	}
	store(dest, uintptr(b.s.Objects().Put(d)))
	return 0
}

// SPErr (const Str255 message)
func (b *binding) setErrorFromPString(msg uintptr) uintptr {
	if msg == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	b.s.SetErrorString(pString(msg))
	return 0
}

// SPErr (const char *message)
func (b *binding) setErrorFromCString(msg uintptr) uintptr {
	if msg == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	b.s.SetErrorString(cString(msg))
	return 0
}

func (b *binding) colors() (*colorspace.Table, error) {
	t, ok := b.s.Colors()
	if !ok {
		return nil, fmt.Errorf("%w: color space suite not acquired", colorspace.ErrUnknownColor)
	}
	return t, nil
}

// SPErr (ColorID *id)
func (b *binding) colorMake(dest uintptr) uintptr {
	t, err := b.colors()
	if err != nil || dest == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	store(dest, t.Make())
	return 0
}

// SPErr (ColorID *id)
func (b *binding) colorDelete(id uintptr) uintptr {
	t, err := b.colors()
	if err != nil || id == 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	if err := t.Delete(*at[colorspace.ID](id)); err != nil {
		return b.suiteResult("color delete", err)
	}
	store(id, colorspace.ID(0))
	return 0
}

// SPErr (ColorID id, int16 space, uint8 c0, uint8 c1, uint8 c2, uint8 c3)
func (b *binding) colorStuff(id uintptr, space int16, c0, c1, c2, c3 uint8) uintptr {
	t, err := b.colors()
	if err != nil {
		return b.suiteResult("color stuff", err)
	}
	u := colorspace.From8(colorspace.Color8{c0, c1, c2, c3})
	return b.suiteResult("color stuff", t.Stuff(colorspace.ID(id), colorspace.Space(space), u))
}

// SPErr (ColorID id, int16 space, uint8 *c0, uint8 *c1, uint8 *c2, uint8 *c3, Boolean *gamut)
func (b *binding) colorExtract(id uintptr, space int16, c0, c1, c2, c3, gamut uintptr) uintptr {
	t, err := b.colors()
	if err != nil {
		return b.suiteResult("color extract", err)
	}
	u, err := t.Extract(colorspace.ID(id), colorspace.Space(space))
	if err != nil {
		return b.suiteResult("color extract", err)
	}
	c := colorspace.To8(u)
	for i, p := range []uintptr{c0, c1, c2, c3} {
		store(p, c[i])
	}
	if gamut != 0 {
		native, _ := t.Native(colorspace.ID(id))
		_, in, _ := colorspace.Convert(colorspace.Space(space), native, u)
		store(gamut, uint8(boolean(in)))
	}
	return 0
}

// xyzArg reads a CS_XYZ passed by value. Six bytes travel in one register on the
// System V and AArch64 conventions; Windows passes a pointer to a copy.
func xyzArg(v uintptr) colorspace.Color16 {
	if runtime.GOOS == "windows" {
		if v == 0 {
			return colorspace.Color16{}
		}
		xyz := at[[3]uint16](v)
		return colorspace.Color16{xyz[0], xyz[1], xyz[2]}
	}
	return colorspace.Color16{uint16(v), uint16(v >> 16), uint16(v >> 32)}
}

// SPErr (ColorID id, CS_XYZ xyz)
func (b *binding) colorStuffXYZ(id, xyz uintptr) uintptr {
	t, err := b.colors()
	if err != nil {
		return b.suiteResult("color stuff xyz", err)
	}
	u := colorspace.From16(xyzArg(xyz))
	return b.suiteResult("color stuff xyz", t.Stuff(colorspace.ID(id), colorspace.XYZ, u))
}

// SPErr (ColorID id, CS_XYZ *xyz)
func (b *binding) colorExtractXYZ(id, dest uintptr) uintptr {
	t, err := b.colors()
	if err != nil {
		return b.suiteResult("color extract xyz", err)
	}
	u, err := t.Extract(colorspace.ID(id), colorspace.XYZ)
	if err != nil {
		return b.suiteResult("color extract xyz", err)
	}
	c := colorspace.To16(u)
	store(dest, [3]uint16{c[0], c[1], c[2]})
	return 0
}

// convertEach converts count colors in place from space in to space out.
func convertEach[C any](in, out int16, colors uintptr, count int16, from func(C) colorspace.Unit, to func(colorspace.Unit) C) error {
	if colors == 0 || count < 0 {
		return fmt.Errorf("%w: no colors", colorspace.ErrUnknownColor)
	}
	var zero C
	size := sizeOf(zero)
	for i := 0; i < int(count); i++ {
		c := at[C](colors + uintptr(i)*size)
		u, _, err := colorspace.Convert(colorspace.Space(in), colorspace.Space(out), from(*c))
		if err != nil {
			return err
		}
		*c = to(u)
	}
	return nil
}

// SPErr (int16 in, int16 out, Color8 *colors, int16 count)
func (b *binding) colorConvert8(in, out int16, colors uintptr, count int16) uintptr {
	return b.suiteResult("color convert 8", convertEach(in, out, colors, count, colorspace.From8, colorspace.To8))
}

// SPErr (int16 in, int16 out, Color16 *colors, int16 count)
func (b *binding) colorConvert16(in, out int16, colors uintptr, count int16) uintptr {
	return b.suiteResult("color convert 16", convertEach(in, out, colors, count, colorspace.From16, colorspace.To16))
}

// SPErr (int16 in, int16 out, Color8 *src, Color16 *dst, int16 count)
func (b *binding) colorConvert8to16(in, out int16, src, dst uintptr, count int16) uintptr {
	if src == 0 || dst == 0 || count < 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	for i := 0; i < int(count); i++ {
		c := *at[colorspace.Color8](src + uintptr(i)*4)
		u, _, err := colorspace.Convert(colorspace.Space(in), colorspace.Space(out), colorspace.From8(c))
		if err != nil {
			return b.suiteResult("color convert 8 to 16", err)
		}
		*at[colorspace.Color16](dst + uintptr(i)*8) = colorspace.To16(u)
	}
	return 0
}

// SPErr (int16 in, int16 out, Color16 *src, Color8 *dst, int16 count)
func (b *binding) colorConvert16to8(in, out int16, src, dst uintptr, count int16) uintptr {
	if src == 0 || dst == 0 || count < 0 {
		return spErr(filterapi.SPBadParameterError)
	}
	for i := 0; i < int(count); i++ {
		c := *at[colorspace.Color16](src + uintptr(i)*8)
		u, _, err := colorspace.Convert(colorspace.Space(in), colorspace.Space(out), colorspace.From16(c))
		if err != nil {
			return b.suiteResult("color convert 16 to 8", err)
		}
		*at[colorspace.Color8](dst + uintptr(i)*4) = colorspace.To8(u)
	}
	return 0
}

// SPErr (ColorID id, int16 *space)
func (b *binding) colorNativeSpace(id, dest uintptr) uintptr {
	t, err := b.colors()
	if err != nil {
		return b.suiteResult("color native space", err)
	}
	s, err := t.Native(colorspace.ID(id))
	if err != nil {
		return b.suiteResult("color native space", err)
	}
	store(dest, int16(s))
	return 0
}

// SPErr (ColorID id, Boolean *isBook). There are no book colors.
func (b *binding) colorIsBook(id, dest uintptr) uintptr {
	if _, err := b.colors(); err != nil {
		return b.suiteResult("color is book", err)
	}
	store(dest, uint8(0))
	return 0
}
