package filter

import (
	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/state"
)

// Entry is the filter's main entry point. Call runs one selector against the session and
// returns the plug-in's result code.
type Entry interface {
	Call(selector filterapi.Selector, s *Session) int16
}

// EntryFunc adapts a function to Entry.
type EntryFunc func(selector filterapi.Selector, s *Session) int16

func (f EntryFunc) Call(selector filterapi.Selector, s *Session) int16 { return f(selector, s) }

// Binder is implemented by entries that need callback tables installed in the session's
// records before they are called. The returned function removes them again.
type Binder interface {
	Bind(s *Session) (unbind func(), err error)
}

// ParameterStore keeps what a plug-in asked to remember between invocations, keyed by
// plug-in identity. LoadParameters returns nil when nothing was saved.
type ParameterStore interface {
	LoadParameters(plugin string) (*state.Snapshot, error)
	SaveParameters(plugin string, snap *state.Snapshot) error
}

var (
	_ ParameterStore = (*state.FileStore)(nil)
	_ ParameterStore = (*state.MemoryStore)(nil)
)
