package bridge

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/buffer"
	"github.com/justyntemme/filterhost/pkg/framework/colorspace"
	"github.com/justyntemme/filterhost/pkg/framework/descriptor"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
	"github.com/justyntemme/filterhost/pkg/framework/handle"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
	"github.com/justyntemme/filterhost/pkg/framework/resource"
	"github.com/justyntemme/filterhost/pkg/framework/suite"
)

// codeFor maps a host error to the result code a plug-in expects.
func codeFor(err error) filterapi.OSErr {
	switch {
	case err == nil:
		return filterapi.NoErr
	case errors.Is(err, handle.ErrInvalidHandle), errors.Is(err, buffer.ErrInvalidBuffer):
		return filterapi.NilHandleErr
	case errors.Is(err, handle.ErrOutOfMemory), errors.Is(err, buffer.ErrOutOfMemory),
		errors.Is(err, memory.ErrOutOfMemory):
		return filterapi.MemFullErr
	case errors.Is(err, descriptor.ErrKeyNotFound):
		return filterapi.ErrAEDescNotFound
	case errors.Is(err, descriptor.ErrTypeMismatch):
		return filterapi.ErrAECoercionFail
	case errors.Is(err, descriptor.ErrValuePinned):
		return filterapi.CoercedParamErr
	case errors.Is(err, resource.ErrNotFound):
		return filterapi.ResNotFound
	case errors.Is(err, filter.ErrPropertyUndefined):
		return filterapi.ErrPlugInPropertyUndefined
	case errors.Is(err, filter.ErrUserCanceled):
		return filterapi.UserCanceledErr
	}
	return filterapi.ParamErr
}

// spErrFor maps a host error to a suite result. Errors without a suite meaning keep
// their classic code.
func spErrFor(err error) filterapi.SPErr {
	switch {
	case err == nil:
		return filterapi.SPNoError
	case errors.Is(err, suite.ErrSuiteNotAvailable):
		return filterapi.SPSuiteNotFoundError
	case errors.Is(err, suite.ErrNotAcquired):
		return filterapi.SPAlreadyReleasedErr
	case errors.Is(err, colorspace.ErrUnknownColor), errors.Is(err, colorspace.ErrUnknownSpace),
		errors.Is(err, descriptor.ErrInvalidToken):
		return filterapi.SPBadParameterError
	case errors.Is(err, handle.ErrOutOfMemory), errors.Is(err, buffer.ErrOutOfMemory),
		errors.Is(err, memory.ErrOutOfMemory):
		return filterapi.SPOutOfMemoryError
	}
	return filterapi.SPErr(codeFor(err))
}

func osErr(code filterapi.OSErr) uintptr { return uintptr(code) }

func spErr(code filterapi.SPErr) uintptr { return uintptr(uint32(code)) }

// result reports err to the plug-in as a classic code.
func (b *binding) result(op string, err error) uintptr {
	if err == nil {
		return 0
	}
	code := codeFor(err)
	b.log.Debug("callback failed", "op", op, "code", code, "error", err)
	return osErr(code)
}

// suiteResult reports err to the plug-in as a suite code.
func (b *binding) suiteResult(op string, err error) uintptr {
	if err == nil {
		return 0
	}
	code := spErrFor(err)
	b.log.Debug("suite call failed", "op", op, "code", code, "error", err)
	return spErr(code)
}

// recoverPanic keeps a panic inside a callback from unwinding into plug-in frames.
func recoverPanic(op string, result *uintptr, fail uintptr) {
	if r := recover(); r != nil {
		if b, ok := current(); ok {
			b.log.Error("panic in callback", "op", op, "panic", fmt.Sprint(r))
		}
		*result = fail
	}
}

// opName turns a method expression's symbol into a short operation name.
func opName(pc uintptr) string {
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "callback"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
