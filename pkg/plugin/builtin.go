package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/justyntemme/filterhost/pkg/framework/aete"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
	"github.com/justyntemme/filterhost/pkg/framework/pipl"
)

// Filter is a filter written in Go. It runs through the same session as a native module
// but needs no callback tables.
type Filter interface {
	filter.Entry
	// Info returns the capability block the filter would ship as a resource.
	Info() *pipl.Info
}

// Terminologist is implemented by filters that answer to scripting terminology.
type Terminologist interface {
	Terminology() *aete.Table
}

var (
	builtins   = make(map[string]Filter)
	builtinsMu sync.RWMutex
)

// Register makes f available under name. Filters usually register from an init function.
func Register(name string, f Filter) {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	if _, dup := builtins[name]; dup {
		panic(fmt.Sprintf("plugin: filter %q registered twice", name))
	}
	builtins[name] = f
}

// Builtin returns the filter registered under name.
func Builtin(name string) (Filter, bool) {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()
	f, ok := builtins[name]
	return f, ok
}

// Builtins returns the registered names in order.
func Builtins() []string {
	builtinsMu.RLock()
	defer builtinsMu.RUnlock()
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinOptions returns the session options describing f.
func BuiltinOptions(f Filter) []filter.Option {
	opts := []filter.Option{filter.WithCapabilities(f.Info())}
	if t, ok := f.(Terminologist); ok {
		if terms := t.Terminology(); terms != nil {
			opts = append(opts, filter.WithTerminology(terms))
		}
	}
	return opts
}
