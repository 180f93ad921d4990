package bridge

import (
	"errors"
	"reflect"
	"sync"

	"github.com/ebitengine/purego"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// ErrUnsupported is returned by Bind on platforms where native callbacks cannot be
// created.
var ErrUnsupported = errors.New("bridge: native callbacks are not supported on this platform")

// procs holds every callback address and the table templates built from them. Each
// binding places its own copies of the tables.
type procs struct {
	abort         uintptr
	progress      uintptr
	processEvent  uintptr
	advanceState  uintptr
	colorServices uintptr

	handles   filterapi.HandleProcs
	buffers   filterapi.BufferProcs
	resources filterapi.ResourceProcs
	property  filterapi.PropertyProcs
	read      filterapi.ReadDescriptorProcs
	write     filterapi.WriteDescriptorProcs

	basic     filterapi.SPBasicSuite
	handle1   filterapi.HandleSuite1
	handle2   filterapi.HandleSuite2
	buffer1   filterapi.BufferSuite1
	property1 filterapi.PropertySuite1
	registry1 filterapi.DescriptorRegistrySuite1
	error1    filterapi.ErrorSuite1
	uiHooks1  filterapi.UIHooksSuite1
	color1    filterapi.ColorSpaceSuite1
	action2   filterapi.ActionDescriptorSuite2
	list1     filterapi.ActionListSuite1
	ref2      filterapi.ActionReferenceSuite2
}

var (
	procsOnce sync.Once
	shared    *procs
	procsErr  error
)

// loadProcs creates the process-wide callbacks on first use. Callbacks are never freed,
// so they must not be created per session.
func loadProcs() (*procs, error) {
	procsOnce.Do(func() {
		if !nativeCallbacks() {
			procsErr = ErrUnsupported
			return
		}
		shared = newProcs()
		if shared.abort == 0 {
			procsErr = ErrUnsupported
		}
	})
	return shared, procsErr
}

// newCallback returns 0 when the platform cannot express fn as a C function pointer.
// Windows has no callbacks taking floating point arguments.
func newCallback(fn any) (addr uintptr) {
	defer func() {
		if recover() != nil {
			addr = 0
		}
	}()
	return purego.NewCallback(fn)
}

var uintptrType = reflect.TypeOf(uintptr(0))

// bound creates a callback from a binding method expression. The callback has the
// method's parameters, runs the method on the binding active at call time and returns
// fail when nothing is bound or the method panics.
func bound(fail uintptr, method any) uintptr {
	mv := reflect.ValueOf(method)
	mt := mv.Type()
	in := make([]reflect.Type, mt.NumIn()-1)
	for i := range in {
		in[i] = mt.In(i + 1)
	}
	op := opName(mv.Pointer())
	ft := reflect.FuncOf(in, []reflect.Type{uintptrType}, false)

	fn := reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		r := fail
		func() {
			defer recoverPanic(op, &r, fail)
			b, ok := current()
			if !ok {
				return
			}
			out := mv.Call(append([]reflect.Value{reflect.ValueOf(b)}, args...))
			r = uintptr(out[0].Uint())
		}()
		return []reflect.Value{reflect.ValueOf(r)}
	})
	return newCallback(fn.Interface())
}

func newProcs() *procs {
	p := &procs{}
	param := osErr(filterapi.ParamErr)
	bad := spErr(filterapi.SPBadParameterError)
	unimplemented := bound(spErr(filterapi.SPUnimplementedError), (*binding).unimplemented)

	p.abort = bound(1, (*binding).abort)
	p.progress = bound(0, (*binding).progress)
	p.processEvent = bound(0, (*binding).processEvent)
	p.advanceState = bound(param, (*binding).advanceState)
	p.colorServices = bound(param, (*binding).colorServices)

	handleNew := bound(0, (*binding).handleNew)
	handleDispose := bound(0, (*binding).handleDispose)
	handleDisposeRegular := bound(0, (*binding).handleDisposeRegular)
	handleGetSize := bound(0, (*binding).handleGetSize)
	handleSetSize := bound(osErr(filterapi.NilHandleErr), (*binding).handleSetSize)
	handleRecover := bound(0, (*binding).handleRecover)
	handleSetLock := bound(0, (*binding).handleSetLock)
	p.handles = filterapi.HandleProcs{
		Version:        filterapi.HandleProcsVersion,
		NumProcs:       filterapi.HandleProcsCount,
		New:            handleNew,
		Dispose:        handleDispose,
		GetSize:        handleGetSize,
		SetSize:        handleSetSize,
		Lock:           bound(0, (*binding).handleLock),
		Unlock:         bound(0, (*binding).handleUnlock),
		RecoverSpace:   handleRecover,
		DisposeRegular: handleDisposeRegular,
	}
	p.handle1 = filterapi.HandleSuite1{
		New:          handleNew,
		Dispose:      handleDispose,
		SetLock:      handleSetLock,
		GetSize:      handleGetSize,
		SetSize:      handleSetSize,
		RecoverSpace: handleRecover,
	}
	p.handle2 = filterapi.HandleSuite2{
		New:                  handleNew,
		Dispose:              handleDispose,
		DisposeRegularHandle: handleDisposeRegular,
		SetLock:              handleSetLock,
		GetSize:              handleGetSize,
		SetSize:              handleSetSize,
		RecoverSpace:         handleRecover,
	}

	p.buffers = filterapi.BufferProcs{
		Version:  filterapi.BufferProcsVersion,
		NumProcs: filterapi.BufferProcsCount,
		Allocate: bound(osErr(filterapi.MemFullErr), (*binding).bufferAllocate),
		Lock:     bound(0, (*binding).bufferLock),
		Unlock:   bound(0, (*binding).bufferUnlock),
		Free:     bound(0, (*binding).bufferFree),
		Space:    bound(0, (*binding).bufferSpace),
	}
	p.buffer1 = filterapi.BufferSuite1{
		New:      bound(0, (*binding).bufferNew),
		Dispose:  bound(0, (*binding).bufferDispose),
		GetSize:  bound(0, (*binding).bufferGetSize),
		GetSpace: bound(0, (*binding).bufferSpace),
	}

	p.resources = filterapi.ResourceProcs{
		Version:  filterapi.ResourceProcsVersion,
		NumProcs: filterapi.ResourceProcsCount,
		Count:    bound(0, (*binding).resourceCount),
		Get:      bound(0, (*binding).resourceGet),
		Delete:   bound(0, (*binding).resourceDelete),
		Add:      bound(param, (*binding).resourceAdd),
	}

	getProperty := bound(osErr(filterapi.ErrPlugInPropertyUndefined), (*binding).getProperty)
	setProperty := bound(osErr(filterapi.ErrPlugInPropertyUndefined), (*binding).setProperty)
	p.property = filterapi.PropertyProcs{
		Version:  filterapi.PropertyProcsVersion,
		NumProcs: filterapi.PropertyProcsCount,
		Get:      getProperty,
		Set:      setProperty,
	}
	p.property1 = filterapi.PropertySuite1{GetProperty: getProperty, SetProperty: setProperty}

	p.read = filterapi.ReadDescriptorProcs{
		Version:            filterapi.ReadDescriptorProcsVersion,
		NumProcs:           filterapi.ReadDescriptorProcsCount,
		OpenRead:           bound(0, (*binding).openRead),
		CloseRead:          bound(param, (*binding).closeRead),
		GetKey:             bound(0, (*binding).getKey),
		GetInteger:         bound(param, (*binding).readInteger),
		GetFloat:           bound(param, (*binding).readFloat),
		GetUnitFloat:       bound(param, (*binding).readUnitFloat),
		GetBoolean:         bound(param, (*binding).readBoolean),
		GetText:            bound(param, (*binding).readText),
		GetAlias:           bound(param, (*binding).readAlias),
		GetEnumerated:      bound(param, (*binding).readEnumerated),
		GetClass:           bound(param, (*binding).readClass),
		GetSimpleReference: bound(param, (*binding).readSimpleReference),
		GetObject:          bound(param, (*binding).readObject),
		GetCount:           bound(param, (*binding).readCount),
		GetString:          bound(param, (*binding).readString),
		GetPinnedInteger:   bound(param, (*binding).readPinnedInteger),
		GetPinnedFloat:     bound(param, (*binding).readPinnedFloat),
		GetPinnedUnitFloat: bound(param, (*binding).readPinnedUnitFloat),
	}
	p.write = filterapi.WriteDescriptorProcs{
		Version:            filterapi.WriteDescriptorProcsVersion,
		NumProcs:           filterapi.WriteDescriptorProcsCount,
		OpenWrite:          bound(0, (*binding).openWrite),
		CloseWrite:         bound(param, (*binding).closeWrite),
		PutInteger:         bound(param, (*binding).writeInteger),
		PutFloat:           bound(param, (*binding).writeFloat),
		PutUnitFloat:       bound(param, (*binding).writeUnitFloat),
		PutBoolean:         bound(param, (*binding).writeBoolean),
		PutText:            bound(param, (*binding).writeText),
		PutAlias:           bound(param, (*binding).writeAlias),
		PutEnumerated:      bound(param, (*binding).writeEnumerated),
		PutClass:           bound(param, (*binding).writeClass),
		PutSimpleReference: bound(param, (*binding).writeSimpleReference),
		PutObject:          bound(param, (*binding).writeObject),
		PutCount:           bound(param, (*binding).writeCount),
		PutString:          bound(param, (*binding).writeString),
		PutScopedClass:     bound(param, (*binding).writeScopedClass),
		PutScopedObject:    bound(param, (*binding).writeScopedObject),
	}

	p.basic = filterapi.SPBasicSuite{
		AcquireSuite:    bound(spErr(filterapi.SPSuiteNotFoundError), (*binding).acquireSuite),
		ReleaseSuite:    bound(bad, (*binding).releaseSuite),
		IsEqual:         bound(0, (*binding).isEqual),
		AllocateBlock:   bound(spErr(filterapi.SPOutOfMemoryError), (*binding).allocateBlock),
		FreeBlock:       bound(bad, (*binding).freeBlock),
		ReallocateBlock: bound(spErr(filterapi.SPOutOfMemoryError), (*binding).reallocateBlock),
		Undefined:       unimplemented,
	}
	p.registry1 = filterapi.DescriptorRegistrySuite1{
		Register: bound(bad, (*binding).registryRegister),
		Erase:    bound(bad, (*binding).registryErase),
		Get:      bound(bad, (*binding).registryGet),
	}
	p.error1 = filterapi.ErrorSuite1{
		SetErrorFromPString: bound(bad, (*binding).setErrorFromPString),
		SetErrorFromCString: bound(bad, (*binding).setErrorFromCString),
		SetErrorFromZString: unimplemented,
	}
	p.uiHooks1 = filterapi.UIHooksSuite1{
		ProcessEvent:  p.processEvent,
		DisplayPixels: unimplemented,
		Progress:      p.progress,
		MainAppWindow: bound(0, (*binding).mainAppWindow),
		SetCursor:     bound(0, (*binding).setCursor),
		TickCount:     bound(0, (*binding).tickCount),
		GetPluginName: unimplemented,
	}
	p.color1 = filterapi.ColorSpaceSuite1{
		Make:              bound(bad, (*binding).colorMake),
		Delete:            bound(bad, (*binding).colorDelete),
		StuffComponents:   bound(bad, (*binding).colorStuff),
		ExtractComponents: bound(bad, (*binding).colorExtract),
		StuffXYZ:          bound(bad, (*binding).colorStuffXYZ),
		ExtractXYZ:        bound(bad, (*binding).colorExtractXYZ),
		Convert8:          bound(bad, (*binding).colorConvert8),
		Convert16:         bound(bad, (*binding).colorConvert16),
		GetNativeSpace:    bound(bad, (*binding).colorNativeSpace),
		IsBookColor:       bound(bad, (*binding).colorIsBook),
		ExtractColorName:  unimplemented,
		PickColor:         unimplemented,
		Convert8to16:      bound(bad, (*binding).colorConvert8to16),
		Convert16to8:      bound(bad, (*binding).colorConvert16to8),
	}

	p.action2 = actionDescriptorSuite(bad, unimplemented)
	p.list1 = actionListSuite(bad, unimplemented)
	p.ref2 = actionReferenceSuite(bad)
	return p
}
