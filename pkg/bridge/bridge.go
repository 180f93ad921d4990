// Package bridge connects native filter modules to a session. It places the host's
// callback tables in session memory, points the records at them and routes every callback
// the module makes to the bound session.
//
// Callback addresses are created once per process and shared, so only one session can be
// bound at a time. Bind blocks until the previous binding is released.
package bridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/debug"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
)

var (
	// bindMu is held from Bind until the returned unbind runs.
	bindMu sync.Mutex
	active atomic.Pointer[binding]
)

type suiteKey struct {
	name    string
	version int32
}

// binding is the native side of one bound session.
type binding struct {
	s      *filter.Session
	log    debug.Logger
	blocks []memory.Block
	suites map[suiteKey]uintptr
	// keys remembers the key array passed to openRead so closeRead can report the
	// keys the plug-in never read.
	keys map[descriptor.Token]uintptr
}

// Binder binds sessions to the native callback tables. It satisfies filter.Binder.
type Binder struct{}

func (Binder) Bind(s *filter.Session) (func(), error) { return Bind(s) }

// Bind installs the callback tables in s's records and makes s the target of native
// callbacks until the returned function runs.
func Bind(s *filter.Session) (func(), error) {
	p, err := loadProcs()
	if err != nil {
		return nil, err
	}

	bindMu.Lock()
	b := &binding{
		s:      s,
		log:    debug.With(s.Logger(), "component", "bridge"),
		suites: make(map[suiteKey]uintptr),
		keys:   make(map[descriptor.Token]uintptr),
	}
	if err := b.install(p); err != nil {
		b.free()
		bindMu.Unlock()
		return nil, err
	}
	active.Store(b)
	b.log.Debug("session bound", "session", s.ID(), "tables", len(b.blocks), "suites", len(b.suites))

	var once sync.Once
	return func() {
		once.Do(func() {
			active.Store(nil)
			b.uninstall()
			b.free()
			b.log.Debug("session unbound", "session", s.ID())
			bindMu.Unlock()
		})
	}, nil
}

// current returns the bound session's binding.
func current() (*binding, bool) {
	b := active.Load()
	return b, b != nil
}

// place copies v into a block of session memory and returns its address.
func place[T any](b *binding, v T) (uintptr, error) {
	size := int(unsafe.Sizeof(v))
	blk, err := b.s.Memory().Alloc(size)
	if err != nil {
		return 0, fmt.Errorf("bridge: placing %T: %w", v, err)
	}
	*(*T)(unsafe.Pointer(&blk.Bytes()[0])) = v
	b.blocks = append(b.blocks, blk)
	return blk.Addr(), nil
}

func (b *binding) install(p *procs) error {
	var err error
	put := func(addr uintptr, e error) uintptr {
		if err == nil {
			err = e
		}
		return addr
	}

	basic := put(place(b, p.basic))
	platform := put(place(b, filterapi.PlatformData{}))
	if err := b.placeSuites(p); err != nil {
		return err
	}

	rec := b.s.Record()
	rec.AbortProc = p.abort
	rec.ProgressProc = p.progress
	rec.ProcessEvent = p.processEvent
	rec.AdvanceState = p.advanceState
	rec.ColorServices = p.colorServices
	rec.GetPropertyObsolete = p.property.Get
	rec.HandleProcs = put(place(b, p.handles))
	rec.BufferProcs = put(place(b, p.buffers))
	rec.ResourceProcs = put(place(b, p.resources))
	rec.PropertyProcs = put(place(b, p.property))
	rec.PlatformData = platform
	rec.SSPBasic = basic

	desc := b.s.DescriptorParameters()
	desc.ReadDescriptorProcs = put(place(b, p.read))
	desc.WriteDescriptorProcs = put(place(b, p.write))

	about := b.s.AboutRecord()
	about.PlatformData = platform
	about.SSPBasic = basic
	return err
}

func (b *binding) placeSuites(p *procs) error {
	tables := []struct {
		name    string
		version int32
		place   func() (uintptr, error)
	}{
		{filterapi.SuiteHandle, 1, func() (uintptr, error) { return place(b, p.handle1) }},
		{filterapi.SuiteHandle, 2, func() (uintptr, error) { return place(b, p.handle2) }},
		{filterapi.SuiteBuffer, 1, func() (uintptr, error) { return place(b, p.buffer1) }},
		{filterapi.SuiteProperty, 1, func() (uintptr, error) { return place(b, p.property1) }},
		{filterapi.SuiteDescriptorRegistry, 1, func() (uintptr, error) { return place(b, p.registry1) }},
		{filterapi.SuiteError, 1, func() (uintptr, error) { return place(b, p.error1) }},
		{filterapi.SuiteUIHooks, 1, func() (uintptr, error) { return place(b, p.uiHooks1) }},
		{filterapi.SuiteColorSpace, 1, func() (uintptr, error) { return place(b, p.color1) }},
		{filterapi.SuiteActionDescriptor, 2, func() (uintptr, error) { return place(b, p.action2) }},
		{filterapi.SuiteActionList, 1, func() (uintptr, error) { return place(b, p.list1) }},
		{filterapi.SuiteActionReference, 2, func() (uintptr, error) { return place(b, p.ref2) }},
	}
	for _, t := range tables {
		if !b.s.Suites().Available(t.name, t.version) {
			continue
		}
		addr, err := t.place()
		if err != nil {
			return err
		}
		b.suites[suiteKey{t.name, t.version}] = addr
	}
	return nil
}

// uninstall clears every address install wrote so nothing points at freed tables.
func (b *binding) uninstall() {
	if rec := b.s.Record(); rec != nil {
		rec.AbortProc, rec.ProgressProc = 0, 0
		rec.ProcessEvent, rec.AdvanceState, rec.ColorServices = 0, 0, 0
		rec.GetPropertyObsolete = 0
		rec.HandleProcs, rec.BufferProcs, rec.ResourceProcs, rec.PropertyProcs = 0, 0, 0, 0
		rec.PlatformData, rec.SSPBasic = 0, 0
	}
	if desc := b.s.DescriptorParameters(); desc != nil {
		desc.ReadDescriptorProcs, desc.WriteDescriptorProcs = 0, 0
	}
	if about := b.s.AboutRecord(); about != nil {
		about.PlatformData, about.SSPBasic = 0, 0
	}
}

func (b *binding) free() {
	for _, blk := range b.blocks {
		if err := b.s.Memory().Free(blk); err != nil {
			b.log.Warn("freeing callback table", "error", err)
		}
	}
	b.blocks = nil
}
