package bridge

import (
	"errors"
	"runtime"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

func (b *binding) unimplemented() uintptr {
	return spErr(filterapi.SPUnimplementedError)
}

// Boolean (void)
func (b *binding) abort() uintptr {
	return boolean(b.s.Abort())
}

// void (int32 done, int32 total)
func (b *binding) progress(done, total int32) uintptr {
	b.s.Progress(done, total)
	return 0
}

// No dialogs are shown, so there are never events to hand on.
func (b *binding) processEvent(event uintptr) uintptr {
	return 0
}

// OSErr (void)
func (b *binding) advanceState() uintptr {
	return osErr(b.s.AdvanceState())
}

// OSErr (ColorServicesInfo *info)
func (b *binding) colorServices(info uintptr) uintptr {
	ci := at[filterapi.ColorServicesInfo](info)
	if ci == nil {
		return osErr(filterapi.ParamErr)
	}
	var point *filterapi.Point
	if ci.Selector == filterapi.ColorServicesSamplePoint {
		point = at[filterapi.Point](ci.SelectorParameter)
	}
	return osErr(b.s.ColorServices(ci, point))
}

// Handle (int32 size)
func (b *binding) handleNew(size int32) uintptr {
	if size < 0 {
		return 0
	}
	h, err := b.s.Handles().Allocate(int(size))
	if err != nil {
		b.result("handle new", err)
		return 0
	}
	return uintptr(h)
}

// void (Handle h)
func (b *binding) handleDispose(h uintptr) uintptr {
	if h == 0 {
		return 0
	}
	b.result("handle dispose", b.s.Handles().Free(filterapi.Handle(h)))
	return 0
}

// void (Handle h). Handles this host did not allocate are left alone.
func (b *binding) handleDisposeRegular(h uintptr) uintptr {
	if !b.s.Handles().Valid(filterapi.Handle(h)) {
		b.log.Debug("dispose of foreign handle ignored", "handle", h)
		return 0
	}
	return b.handleDispose(h)
}

// int32 (Handle h)
func (b *binding) handleGetSize(h uintptr) uintptr {
	n, err := b.s.Handles().Size(filterapi.Handle(h))
	if err != nil {
		b.result("handle size", err)
		return 0
	}
	return uintptr(int32(n))
}

// OSErr (Handle h, int32 size)
func (b *binding) handleSetSize(h uintptr, size int32) uintptr {
	if size < 0 {
		return osErr(filterapi.ParamErr)
	}
	return b.result("handle resize", b.s.Handles().Resize(filterapi.Handle(h), int(size)))
}

// Ptr (Handle h, Boolean moveHigh)
func (b *binding) handleLock(h uintptr, moveHigh uint8) uintptr {
	p, err := b.s.Handles().Lock(filterapi.Handle(h), moveHigh != 0)
	if err != nil {
		b.result("handle lock", err)
		return 0
	}
	return p
}

// void (Handle h)
func (b *binding) handleUnlock(h uintptr) uintptr {
	b.result("handle unlock", b.s.Handles().Unlock(filterapi.Handle(h)))
	return 0
}

// void (Handle h, Boolean lock, Ptr *address, Boolean *oldLock)
func (b *binding) handleSetLock(h uintptr, lock uint8, address, oldLock uintptr) uintptr {
	m := b.s.Handles()
	was, err := m.Locked(filterapi.Handle(h))
	if err != nil {
		b.result("handle set lock", err)
		store(address, uintptr(0))
		return 0
	}
	store(oldLock, uint8(boolean(was)))
	if lock == 0 {
		b.result("handle set lock", m.Unlock(filterapi.Handle(h)))
		store(address, uintptr(0))
		return 0
	}
	p, err := m.Lock(filterapi.Handle(h), false)
	if err != nil {
		b.result("handle set lock", err)
	}
	store(address, p)
	return 0
}

// void (int32 size)
func (b *binding) handleRecover(size int32) uintptr {
	b.s.Handles().RecoverSpace(int(size))
	return 0
}

// OSErr (int32 size, BufferID *id)
func (b *binding) bufferAllocate(size int32, id uintptr) uintptr {
	if size < 0 || id == 0 {
		return osErr(filterapi.ParamErr)
	}
	buf, err := b.s.Buffers().Allocate(int(size))
	if err != nil {
		store(id, filterapi.BufferID(0))
		return b.result("buffer allocate", err)
	}
	store(id, buf)
	return 0
}

// Ptr (BufferID id, Boolean moveHigh)
func (b *binding) bufferLock(id uintptr, moveHigh uint8) uintptr {
	p, err := b.s.Buffers().Lock(filterapi.BufferID(id))
	if err != nil {
		b.result("buffer lock", err)
		return 0
	}
	return p
}

// void (BufferID id)
func (b *binding) bufferUnlock(id uintptr) uintptr {
	b.result("buffer unlock", b.s.Buffers().Unlock(filterapi.BufferID(id)))
	return 0
}

// void (BufferID id)
func (b *binding) bufferFree(id uintptr) uintptr {
	b.result("buffer free", b.s.Buffers().Free(filterapi.BufferID(id)))
	return 0
}

// int32 (void), also the uint32 GetSpace of the buffer suite.
func (b *binding) bufferSpace() uintptr {
	return uintptr(int32(min(b.s.Buffers().AvailableSpace(), 1<<31-1)))
}

// Ptr (uint32 *requestedSize, uint32 minimumSize). The suite hands out locked memory
// and reports the size it granted.
func (b *binding) bufferNew(requested uintptr, minimum uint32) uintptr {
	req := int(minimum)
	if requested != 0 {
		req = int(*at[uint32](requested))
	}
	m := b.s.Buffers()
	id, size, err := m.AllocateAtLeast(req, int(minimum))
	if err != nil {
		b.result("buffer suite new", err)
		return 0
	}
	p, err := m.Lock(id)
	if err != nil {
		b.result("buffer suite new", m.Free(id))
		return 0
	}
	store(requested, uint32(size))
	return p
}

// void (Ptr *buffer)
func (b *binding) bufferDispose(buffer uintptr) uintptr {
	if buffer == 0 {
		return 0
	}
	m := b.s.Buffers()
	if id, ok := m.FindByAddress(*at[uintptr](buffer)); ok {
		b.result("buffer suite dispose", errors.Join(m.Unlock(id), m.Free(id)))
	}
	*at[uintptr](buffer) = 0
	return 0
}

// uint32 (Ptr buffer)
func (b *binding) bufferGetSize(p uintptr) uintptr {
	m := b.s.Buffers()
	id, ok := m.FindByAddress(p)
	if !ok {
		return 0
	}
	n, _ := m.Size(id)
	return uintptr(uint32(n))
}

// int16 (ResType type)
func (b *binding) resourceCount(t uint32) uintptr {
	return uintptr(b.s.CountResources(filterapi.OSType(t)))
}

// Handle (ResType type, int16 index)
func (b *binding) resourceGet(t uint32, index int16) uintptr {
	h, err := b.s.GetResource(filterapi.OSType(t), index)
	if err != nil {
		b.result("resource get", err)
		return 0
	}
	return uintptr(h)
}

// void (ResType type, int16 index)
func (b *binding) resourceDelete(t uint32, index int16) uintptr {
	b.result("resource delete", b.s.DeleteResource(filterapi.OSType(t), index))
	return 0
}

// OSErr (ResType type, Handle data)
func (b *binding) resourceAdd(t uint32, h uintptr) uintptr {
	return b.result("resource add", b.s.AddResource(filterapi.OSType(t), filterapi.Handle(h)))
}

// OSErr (PIType sig, PIType key, int32 index, intptr_t *simple, Handle *complex)
func (b *binding) getProperty(sig, key uint32, index int32, simple, complex uintptr) uintptr {
	v, data, err := b.s.GetProperty(filterapi.OSType(sig), filterapi.OSType(key), index)
	if err != nil {
		return b.result("get property", err)
	}
	store(simple, int64(v))
	if complex == 0 || data == nil {
		return 0
	}
	h, err := b.s.Handles().Allocate(len(data))
	if err != nil {
		return b.result("get property", err)
	}
	dst, _ := b.s.Handles().Bytes(h)
	copy(dst, data)
	store(complex, h)
	return 0
}

// OSErr (PIType sig, PIType key, int32 index, intptr_t simple, Handle complex)
func (b *binding) setProperty(sig, key uint32, index int32, simple int64, complex uintptr) uintptr {
	var data []byte
	if complex != 0 {
		d, err := b.s.Handles().Bytes(filterapi.Handle(complex))
		if err != nil {
			return b.result("set property", err)
		}
		data = d
	}
	return b.result("set property", b.s.SetProperty(filterapi.OSType(sig), filterapi.OSType(key), index, simple, data))
}

// HWND (void). Only Windows hosts have a main window to report and this one has none.
func (b *binding) mainAppWindow() uintptr {
	return 0
}

// SPErr (int32 cursor)
func (b *binding) setCursor(cursor uintptr) uintptr {
	return 0
}

// uint32 (void)
func (b *binding) tickCount() uintptr {
	return uintptr(b.s.TickCount())
}

// nativeCallbacks reports whether this platform can create callbacks at all.
func nativeCallbacks() bool {
	switch runtime.GOOS {
	case "darwin", "freebsd", "windows":
		return true
	case "linux":
		return runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	}
	return false
}
