package filter

import (
	"errors"
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// Outcome is the terminal result of a filter invocation.
type Outcome int

const (
	Success Outcome = iota
	UserCanceled
	PluginReportedError
	HostFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case UserCanceled:
		return "user canceled"
	case PluginReportedError:
		return "plugin reported error"
	case HostFailure:
		return "host error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrUserCanceled is returned when the plug-in or the caller aborted the invocation.
var ErrUserCanceled = errors.New("filter: user canceled")

// PluginError is a non-zero result code returned by the plug-in.
type PluginError struct {
	Selector filterapi.Selector
	Code     filterapi.OSErr
	// Message is the plug-in's own text for errReportString.
	Message string
}

func (e *PluginError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("plugin failed in %s: %s (%d)", e.Selector, e.Message, e.Code)
	}
	if name := codeName(e.Code); name != "" {
		return fmt.Sprintf("plugin failed in %s: %s (%d)", e.Selector, name, e.Code)
	}
	return fmt.Sprintf("plugin failed in %s with code %d", e.Selector, e.Code)
}

func codeName(code filterapi.OSErr) string {
	switch code {
	case filterapi.ParamErr:
		return "bad parameter"
	case filterapi.MemFullErr:
		return "not enough memory"
	case filterapi.NilHandleErr:
		return "nil handle"
	case filterapi.FilterBadParameters:
		return "bad filter parameters"
	case filterapi.FilterBadMode:
		return "image mode not supported"
	case filterapi.ErrPlugInHostInsufficient:
		return "host insufficient"
	case filterapi.ReadErr, filterapi.WritErr, filterapi.IOErr:
		return "i/o error"
	}
	return ""
}

// HostErrorKind classifies failures on the host side of an invocation.
type HostErrorKind int

const (
	// HostFault is an inconsistent host state, such as a selector out of order or a
	// transition attempted from inside a plug-in call.
	HostFault HostErrorKind = iota
	// HostUnsupported means the plug-in cannot run on this image.
	HostUnsupported
	// HostImage is a failure of the image provider or a bad region request.
	HostImage
	// HostMemory means the host could not allocate its own records.
	HostMemory
	// HostBinding is a failure installing the native callback tables.
	HostBinding
	// HostState is a failure loading or saving remembered parameters.
	HostState
)

func (k HostErrorKind) String() string {
	switch k {
	case HostFault:
		return "fault"
	case HostUnsupported:
		return "unsupported"
	case HostImage:
		return "image"
	case HostMemory:
		return "memory"
	case HostBinding:
		return "binding"
	case HostState:
		return "state"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// HostError is a failure of the host while driving the plug-in.
type HostError struct {
	Kind HostErrorKind
	Err  error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host %s error: %v", e.Kind, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

func hostError(kind HostErrorKind, format string, args ...interface{}) *HostError {
	return &HostError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// IsHostFault reports whether err is a HostError of kind HostFault.
func IsHostFault(err error) bool {
	var he *HostError
	return errors.As(err, &he) && he.Kind == HostFault
}

// OutcomeOf classifies an error returned by Run.
func OutcomeOf(err error) Outcome {
	var pe *PluginError
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrUserCanceled):
		return UserCanceled
	case errors.As(err, &pe):
		return PluginReportedError
	default:
		return HostFailure
	}
}
