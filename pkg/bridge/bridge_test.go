package bridge

import (
	"errors"
	"fmt"
	"image"
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/buffer"
	"github.com/justyntemme/filterhost/pkg/framework/colorspace"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
	"github.com/justyntemme/filterhost/pkg/framework/handle"
	"github.com/justyntemme/filterhost/pkg/framework/suite"
	"github.com/justyntemme/filterhost/pkg/imaging"
)

var (
	keyAmount = filterapi.MakeOSType("Amnt")
	keyName   = filterapi.MakeOSType("Nm  ")
	keyOn     = filterapi.MakeOSType("On  ")
	keyMode   = filterapi.MakeOSType("Md  ")
)

func newSession(t *testing.T) *filter.Session {
	t.Helper()
	p, err := imaging.FromImage(image.NewGray(image.Rect(0, 0, 8, 8)))
	require.NoError(t, err)
	s, err := filter.NewSession(filter.EntryFunc(func(filterapi.Selector, *filter.Session) int16 { return 0 }), p,
		filter.WithLogger(debug.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newBinding returns a binding for direct calls; no tables are installed.
func newBinding(t *testing.T) *binding {
	s := newSession(t)
	return &binding{
		s:      s,
		log:    debug.NewTestLogger(t),
		suites: make(map[suiteKey]uintptr),
		keys:   make(map[descriptor.Token]uintptr),
	}
}

// cell allocates an out parameter in session memory, where native code would put it.
func cell[T any](t *testing.T, b *binding) (*T, uintptr) {
	t.Helper()
	var zero T
	blk, err := b.s.Memory().Alloc(int(unsafe.Sizeof(zero)))
	require.NoError(t, err)
	return (*T)(unsafe.Pointer(&blk.Bytes()[0])), blk.Addr()
}

func cStringCell(t *testing.T, b *binding, s string) uintptr {
	t.Helper()
	blk, err := b.s.Memory().Alloc(len(s) + 1)
	require.NoError(t, err)
	copy(blk.Bytes(), s)
	return blk.Addr()
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want filterapi.OSErr
	}{
		{nil, filterapi.NoErr},
		{handle.ErrInvalidHandle, filterapi.NilHandleErr},
		{fmt.Errorf("wrapped: %w", buffer.ErrInvalidBuffer), filterapi.NilHandleErr},
		{handle.ErrOutOfMemory, filterapi.MemFullErr},
		{descriptor.ErrKeyNotFound, filterapi.ErrAEDescNotFound},
		{descriptor.ErrTypeMismatch, filterapi.ErrAECoercionFail},
		{descriptor.ErrValuePinned, filterapi.CoercedParamErr},
		{filter.ErrPropertyUndefined, filterapi.ErrPlugInPropertyUndefined},
		{filter.ErrUserCanceled, filterapi.UserCanceledErr},
		{errors.New("anything else"), filterapi.ParamErr},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, codeFor(tt.err), "%v", tt.err)
	}
}

func TestSPErrFor(t *testing.T) {
	assert.Equal(t, filterapi.SPNoError, spErrFor(nil))
	assert.Equal(t, filterapi.SPSuiteNotFoundError, spErrFor(suite.ErrSuiteNotAvailable))
	assert.Equal(t, filterapi.SPAlreadyReleasedErr, spErrFor(suite.ErrNotAcquired))
	assert.Equal(t, filterapi.SPBadParameterError, spErrFor(colorspace.ErrUnknownColor))
	assert.Equal(t, filterapi.SPBadParameterError, spErrFor(descriptor.ErrInvalidToken))
	assert.Equal(t, filterapi.SPOutOfMemoryError, spErrFor(buffer.ErrOutOfMemory))
	assert.Equal(t, filterapi.SPErr(filterapi.ErrAEDescNotFound), spErrFor(descriptor.ErrKeyNotFound))
}

func TestNativeStrings(t *testing.T) {
	b := newBinding(t)
	src := cStringCell(t, b, "hello")
	assert.Equal(t, "hello", cString(src))
	assert.Equal(t, "", cString(0))

	buf, dst := cell[[8]byte](t, b)
	putCString(dst, 4, "hello")
	assert.Equal(t, [8]byte{'h', 'e', 'l', 0}, *buf)

	keys, addr := cell[[4]filterapi.OSType](t, b)
	*keys = [4]filterapi.OSType{keyAmount, keyName, keyOn, 0}
	assert.Equal(t, []filterapi.OSType{keyAmount, keyName, keyOn}, keyArray(addr))
	writeKeyArray(addr, []filterapi.OSType{keyAmount})
	assert.Equal(t, []filterapi.OSType{keyAmount}, keyArray(addr))
}

func TestHandleProcs(t *testing.T) {
	b := newBinding(t)

	h := b.handleNew(16)
	require.NotZero(t, h)
	assert.Equal(t, uintptr(16), b.handleGetSize(h))
	assert.Zero(t, b.handleSetSize(h, 32))
	assert.Equal(t, uintptr(32), b.handleGetSize(h))

	p := b.handleLock(h, 0)
	require.NotZero(t, p)
	bytesAt(p, 4)[0] = 0x7f

	old, oldAddr := cell[uint8](t, b)
	ptr, ptrAddr := cell[uintptr](t, b)
	b.handleSetLock(h, 0, ptrAddr, oldAddr)
	assert.Equal(t, uint8(1), *old)
	assert.Zero(t, *ptr)

	data, err := b.s.Handles().Bytes(filterapi.Handle(h))
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), data[0])

	b.handleDispose(h)
	assert.False(t, b.s.Handles().Valid(filterapi.Handle(h)))
	assert.Zero(t, b.handleGetSize(h))
	assert.Equal(t, osErr(filterapi.NilHandleErr), b.handleSetSize(h, 8))

	// A handle from another allocator is not ours to free.
	b.handleDisposeRegular(0xdead0)
	assert.Zero(t, b.handleNew(-1))
}

func TestBufferProcs(t *testing.T) {
	b := newBinding(t)

	id, idAddr := cell[filterapi.BufferID](t, b)
	require.Zero(t, b.bufferAllocate(64, idAddr))
	require.NotZero(t, *id)
	p := b.bufferLock(uintptr(*id), 0)
	require.NotZero(t, p)
	b.bufferUnlock(uintptr(*id))
	b.bufferFree(uintptr(*id))
	assert.Zero(t, b.bufferLock(uintptr(*id), 0))
	assert.Equal(t, osErr(filterapi.ParamErr), b.bufferAllocate(-1, idAddr))
	assert.NotZero(t, b.bufferSpace())

	size, sizeAddr := cell[uint32](t, b)
	*size = 128
	mem := b.bufferNew(sizeAddr, 16)
	require.NotZero(t, mem)
	assert.GreaterOrEqual(t, *size, uint32(16))
	assert.Equal(t, uintptr(*size), b.bufferGetSize(mem))

	holder, holderAddr := cell[uintptr](t, b)
	*holder = mem
	b.bufferDispose(holderAddr)
	assert.Zero(t, *holder)
	assert.Zero(t, b.bufferGetSize(mem))
}

func TestDescriptorProcsRoundTrip(t *testing.T) {
	b := newBinding(t)

	w := b.openWrite()
	require.NotZero(t, w)
	assert.Zero(t, b.writeInteger(w, uint32(keyAmount), 250))
	name, nameAddr := cell[filterapi.Str255](t, b)
	name.Set("levels")
	assert.Zero(t, b.writeString(w, uint32(keyName), nameAddr))
	assert.Zero(t, b.writeBoolean(w, uint32(keyOn), 1))
	assert.Zero(t, b.writeEnumerated(w, uint32(keyMode), uint32(keyMode), uint32(keyOn)))

	h, hAddr := cell[filterapi.Handle](t, b)
	require.Zero(t, b.closeWrite(w, hAddr))
	require.NotZero(t, *h)
	assert.Equal(t, osErr(filterapi.ParamErr), b.writeInteger(w, uint32(keyAmount), 1), "token is gone after close")

	keys, keysAddr := cell[[5]filterapi.OSType](t, b)
	*keys = [5]filterapi.OSType{keyAmount, keyName, keyOn, keyMode, 0}
	r := b.openRead(uintptr(*h), keysAddr)
	require.NotZero(t, r)

	key, keyAddr := cell[filterapi.OSType](t, b)
	typ, typAddr := cell[filterapi.OSType](t, b)
	require.Equal(t, uintptr(1), b.getKey(r, keyAddr, typAddr, 0))
	assert.Equal(t, keyAmount, *key)
	assert.Equal(t, descriptor.TypeInteger, *typ)
	v, vAddr := cell[int32](t, b)
	assert.Equal(t, osErr(filterapi.CoercedParamErr), b.readPinnedInteger(r, 0, 100, vAddr))
	assert.Equal(t, int32(100), *v, "pinned values are still stored")

	require.Equal(t, uintptr(1), b.getKey(r, keyAddr, typAddr, 0))
	got, gotAddr := cell[filterapi.Str255](t, b)
	assert.Zero(t, b.readString(r, gotAddr))
	assert.Equal(t, "levels", got.String())

	require.Equal(t, uintptr(1), b.getKey(r, keyAddr, typAddr, 0))
	on, onAddr := cell[uint8](t, b)
	assert.Zero(t, b.readBoolean(r, onAddr))
	assert.Equal(t, uint8(1), *on)

	// The enumeration is left unread and stays in the key array.
	assert.Equal(t, osErr(filterapi.CoercedParamErr), b.closeRead(r))
	assert.Equal(t, []filterapi.OSType{descriptor.TypeNull, descriptor.TypeNull, descriptor.TypeNull, keyMode}, keyArray(keysAddr))
}

func TestReadTypeMismatch(t *testing.T) {
	b := newBinding(t)
	d := descriptor.New(nil)
	d.PutText(keyAmount, "not a number")
	h, err := b.s.DescriptorToHandle(d)
	require.NoError(t, err)

	r := b.openRead(uintptr(h), 0)
	require.Equal(t, uintptr(1), b.getKey(r, 0, 0, 0))
	v, vAddr := cell[int32](t, b)
	*v = 42
	assert.Equal(t, osErr(filterapi.ErrAECoercionFail), b.readInteger(r, vAddr))
	assert.Equal(t, int32(42), *v, "failed reads leave the destination alone")
	assert.Zero(t, b.getKey(r, 0, 0, 0))
	assert.Equal(t, osErr(filterapi.ErrAECoercionFail), b.closeRead(r))
}

func TestPropertyProcs(t *testing.T) {
	b := newBinding(t)
	simple, simpleAddr := cell[int64](t, b)
	complex, complexAddr := cell[filterapi.Handle](t, b)

	assert.Zero(t, b.getProperty(uint32(filterapi.HostSignature), uint32(filterapi.PropNumberOfChannels), 0, simpleAddr, 0))
	assert.Equal(t, int64(1), *simple)

	assert.Zero(t, b.getProperty(uint32(filterapi.HostSignature), uint32(filterapi.PropChannelName), 0, 0, complexAddr))
	require.NotZero(t, *complex)
	name, err := b.s.Handles().Bytes(*complex)
	require.NoError(t, err)
	assert.NotEmpty(t, name)

	assert.Equal(t, osErr(filterapi.ErrPlugInPropertyUndefined),
		b.getProperty(uint32(filterapi.HostSignature), uint32(filterapi.MakeOSType("????")), 0, simpleAddr, 0))
	assert.Equal(t, osErr(filterapi.ErrPlugInPropertyUndefined),
		b.setProperty(uint32(filterapi.HostSignature), uint32(filterapi.PropTitle), 0, 0, 0))
}

func TestSuiteAcquire(t *testing.T) {
	b := newBinding(t)
	b.suites[suiteKey{filterapi.SuiteColorSpace, 1}] = 0x1000

	name := cStringCell(t, b, filterapi.SuiteColorSpace)
	table, tableAddr := cell[uintptr](t, b)
	require.Zero(t, b.acquireSuite(name, 1, tableAddr))
	assert.Equal(t, uintptr(0x1000), *table)
	assert.Equal(t, spErr(filterapi.SPSuiteNotFoundError), b.acquireSuite(name, 9, tableAddr))
	assert.Zero(t, *table)

	assert.Zero(t, b.releaseSuite(name, 1))
	assert.Equal(t, spErr(filterapi.SPAlreadyReleasedErr), b.releaseSuite(name, 1))

	assert.Equal(t, uintptr(1), b.isEqual(name, cStringCell(t, b, filterapi.SuiteColorSpace)))
	assert.Zero(t, b.isEqual(name, cStringCell(t, b, "other")))
}

func TestBlocks(t *testing.T) {
	b := newBinding(t)
	p, pAddr := cell[uintptr](t, b)
	require.Zero(t, b.allocateBlock(8, pAddr))
	require.NotZero(t, *p)
	copy(bytesAt(*p, 8), "abcdefgh")

	q, qAddr := cell[uintptr](t, b)
	require.Zero(t, b.reallocateBlock(*p, 32, qAddr))
	assert.Equal(t, "abcdefgh", string(bytesAt(*q, 8)))
	assert.Equal(t, spErr(filterapi.SPBadParameterError), b.freeBlock(*p), "old block is gone")
	assert.Zero(t, b.freeBlock(*q))
	assert.Zero(t, b.s.Buffers().Live())
}

func TestClosingReleasesObjects(t *testing.T) {
	b := newBinding(t)
	before := b.s.Objects().Len()

	w := b.openWrite()
	require.Zero(t, b.writeInteger(w, uint32(keyAmount), 1))
	h, hAddr := cell[filterapi.Handle](t, b)
	require.Zero(t, b.closeWrite(w, hAddr))
	assert.Equal(t, before, b.s.Objects().Len())

	keys, keysAddr := cell[[2]filterapi.OSType](t, b)
	*keys = [2]filterapi.OSType{keyAmount, 0}
	r := b.openRead(uintptr(*h), keysAddr)
	require.NotZero(t, r)
	assert.Equal(t, before+1, b.s.Objects().Len())
	b.closeRead(r)
	assert.Equal(t, before, b.s.Objects().Len())
	assert.NotZero(t, b.closeRead(r), "closing twice reports the stale token")

	p, pAddr := cell[uintptr](t, b)
	require.Zero(t, b.allocateBlock(8, pAddr))
	q, qAddr := cell[uintptr](t, b)
	require.Zero(t, b.reallocateBlock(*p, 16, qAddr))
	assert.Equal(t, 1, b.s.Buffers().Live())
	require.Zero(t, b.freeBlock(*q))
	assert.Zero(t, b.s.Buffers().Live())
}

func TestRegistrySuite(t *testing.T) {
	b := newBinding(t)
	d := descriptor.New(nil)
	d.PutInteger(keyAmount, 7)
	tok := b.s.Objects().Put(d)
	key := cStringCell(t, b, "com.example.levels")

	require.Zero(t, b.registryRegister(key, uintptr(tok), 1))
	got, gotAddr := cell[uintptr](t, b)
	require.Zero(t, b.registryGet(key, gotAddr))
	stored, err := b.s.Objects().Descriptor(descriptor.Token(*got))
	require.NoError(t, err)
	assert.True(t, d.Equal(stored))

	require.Zero(t, b.registryErase(key))
	assert.NotZero(t, b.registryGet(key, gotAddr))
	assert.Zero(t, *got)
}

func TestColorSpaceSuite(t *testing.T) {
	b := newBinding(t)
	id, idAddr := cell[colorspace.ID](t, b)
	assert.Equal(t, spErr(filterapi.SPBadParameterError), b.colorMake(idAddr), "suite not acquired")

	_, err := b.s.AcquireSuite(filterapi.SuiteColorSpace, 1)
	require.NoError(t, err)
	require.Zero(t, b.colorMake(idAddr))
	require.Zero(t, b.colorStuff(uintptr(*id), int16(colorspace.RGB), 255, 0, 0, 0))

	c, cAddr := cell[[4]uint8](t, b)
	addr := func(i int) uintptr { return cAddr + uintptr(i) }
	gamut, gamutAddr := cell[uint8](t, b)
	require.Zero(t, b.colorExtract(uintptr(*id), int16(colorspace.RGB), addr(0), addr(1), addr(2), addr(3), gamutAddr))
	assert.Equal(t, [4]uint8{255, 0, 0, 0}, *c)
	assert.Equal(t, uint8(1), *gamut)

	space, spaceAddr := cell[int16](t, b)
	require.Zero(t, b.colorNativeSpace(uintptr(*id), spaceAddr))
	assert.Equal(t, int16(colorspace.RGB), *space)

	colors, colorsAddr := cell[[2]colorspace.Color8](t, b)
	*colors = [2]colorspace.Color8{{255, 255, 255, 0}, {0, 0, 0, 0}}
	require.Zero(t, b.colorConvert8(int16(colorspace.RGB), int16(colorspace.Gray), colorsAddr, 2))
	assert.Equal(t, uint8(255), colors[0][0])
	assert.Equal(t, uint8(0), colors[1][0])
	assert.Equal(t, spErr(filterapi.SPBadParameterError), b.colorConvert8(99, 0, colorsAddr, 1))

	require.Zero(t, b.colorDelete(idAddr))
	assert.Zero(t, *id)
}

func TestActionDescriptorSuite(t *testing.T) {
	b := newBinding(t)
	d, dAddr := cell[uintptr](t, b)
	require.Zero(t, b.adMake(dAddr))

	assert.Zero(t, b.adPutInteger(*d, uint32(keyAmount), 12))
	assert.Zero(t, b.adPutString(*d, uint32(keyName), cStringCell(t, b, "curve")))
	assert.Zero(t, b.adPutBoolean(*d, uint32(keyOn), 1))

	count, countAddr := cell[uint32](t, b)
	require.Zero(t, b.adGetCount(*d, countAddr))
	assert.Equal(t, uint32(3), *count)

	typ, typAddr := cell[filterapi.OSType](t, b)
	require.Zero(t, b.adGetType(*d, uint32(keyName), typAddr))
	assert.Equal(t, descriptor.TypeText, *typ)
	assert.Equal(t, spErr(filterapi.SPErr(filterapi.ErrAEDescNotFound)), b.adGetType(*d, uint32(keyMode), typAddr))

	buf, bufAddr := cell[[16]byte](t, b)
	require.Zero(t, b.adGetString(*d, uint32(keyName), bufAddr, 16))
	assert.Equal(t, "curve", cString(bufAddr))
	assert.Equal(t, byte(0), buf[5])

	v, vAddr := cell[int32](t, b)
	require.Zero(t, b.adGetInteger(*d, uint32(keyAmount), vAddr))
	assert.Equal(t, int32(12), *v)

	h, hAddr := cell[filterapi.Handle](t, b)
	require.Zero(t, b.adAsHandle(*d, hAddr))
	other, otherAddr := cell[uintptr](t, b)
	require.Zero(t, b.adHandleToDescriptor(uintptr(*h), otherAddr))
	equal, equalAddr := cell[uint8](t, b)
	require.Zero(t, b.adIsEqual(*d, *other, equalAddr))
	assert.Equal(t, uint8(1), *equal)

	assert.Zero(t, b.adErase(*d, uint32(keyAmount)))
	has, hasAddr := cell[uint8](t, b)
	require.Zero(t, b.adHasKey(*d, uint32(keyAmount), hasAddr))
	assert.Zero(t, *has)

	assert.Zero(t, b.adFree(*d))
	assert.Equal(t, spErr(filterapi.SPBadParameterError), b.adGetCount(*d, countAddr))
}

func TestActionListSuite(t *testing.T) {
	b := newBinding(t)
	l, lAddr := cell[uintptr](t, b)
	require.Zero(t, b.alMake(lAddr))
	assert.Zero(t, b.alPutInteger(*l, 3))
	assert.Zero(t, b.alPutString(*l, cStringCell(t, b, "x")))

	count, countAddr := cell[uint32](t, b)
	require.Zero(t, b.alGetCount(*l, countAddr))
	assert.Equal(t, uint32(2), *count)

	v, vAddr := cell[int32](t, b)
	require.Zero(t, b.alGetInteger(*l, 0, vAddr))
	assert.Equal(t, int32(3), *v)
	assert.NotZero(t, b.alGetInteger(*l, 1, vAddr))

	d, dAddr := cell[uintptr](t, b)
	require.Zero(t, b.adMake(dAddr))
	require.Zero(t, b.adPutList(*d, uint32(keyMode), *l))
	assert.Zero(t, b.alPutInteger(*l, 4))
	got, gotAddr := cell[uintptr](t, b)
	require.Zero(t, b.adGetList(*d, uint32(keyMode), gotAddr))
	require.Zero(t, b.alGetCount(*got, countAddr))
	assert.Equal(t, uint32(2), *count, "stored lists are copies")
}

func TestBindInstallsTables(t *testing.T) {
	if !nativeCallbacks() {
		t.Skip("no native callbacks on this platform")
	}
	s := newSession(t)
	unbind, err := Bind(s)
	require.NoError(t, err)

	rec := s.Record()
	assert.NotZero(t, rec.AbortProc)
	assert.NotZero(t, rec.SSPBasic)
	require.NotZero(t, rec.HandleProcs)
	procs := at[filterapi.HandleProcs](rec.HandleProcs)
	assert.Equal(t, int16(filterapi.HandleProcsCount), procs.NumProcs)
	assert.NotZero(t, procs.New)
	assert.NotZero(t, s.DescriptorParameters().ReadDescriptorProcs)
	assert.Equal(t, rec.SSPBasic, s.AboutRecord().SSPBasic)

	b, ok := current()
	require.True(t, ok)
	assert.Same(t, s, b.s)
	assert.Contains(t, b.suites, suiteKey{filterapi.SuiteColorSpace, 1})

	unbind()
	unbind()
	_, ok = current()
	assert.False(t, ok)
	assert.Zero(t, rec.AbortProc)
	assert.Zero(t, rec.HandleProcs)
	assert.Zero(t, s.DescriptorParameters().WriteDescriptorProcs)

	// The lock is released, so a second session binds right away.
	unbind2, err := Bind(newSession(t))
	require.NoError(t, err)
	unbind2()
}

func TestCallbackPanicIsContained(t *testing.T) {
	r := func() (r uintptr) {
		defer recoverPanic("test", &r, 7)
		panic("boom")
	}()
	assert.Equal(t, uintptr(7), r)

	assert.Equal(t, "handleGetSize", opName(reflect.ValueOf((*binding).handleGetSize).Pointer()))
}
