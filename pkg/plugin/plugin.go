// Package plugin loads native filter modules and makes them callable from a session.
//
// A Module is a filter.Entry: every selector becomes one call of the module's main entry
//
//	void PluginMain(int16 selector, void *paramBlock, intptr_t *data, int16 *result)
//
// and a filter.Binder, so the session installs the native callback tables before the
// first call.
package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/justyntemme/filterhost/pkg/bridge"
	"github.com/justyntemme/filterhost/pkg/filterapi"
	"github.com/justyntemme/filterhost/pkg/framework/aete"
	"github.com/justyntemme/filterhost/pkg/framework/filter"
	"github.com/justyntemme/filterhost/pkg/framework/memory"
	"github.com/justyntemme/filterhost/pkg/framework/pipl"
)

var (
	// ErrClosed is returned when a closed module is called.
	ErrClosed = errors.New("plugin: module closed")
	// ErrNotFound is returned when a module is not found on the search path.
	ErrNotFound = errors.New("plugin: module not found")
)

// Module is a loaded filter module.
type Module struct {
	Path  string
	Info  *pipl.Info
	Terms *aete.Table

	mu    sync.Mutex
	lib   library
	entry uintptr
	// data is the module's global data word, kept between calls and sessions.
	data uintptr
	// mem backs every session of the module, outside the Go heap.
	mem *memory.Arena
}

var (
	_ filter.Entry  = (*Module)(nil)
	_ filter.Binder = (*Module)(nil)
)

// Describe reads a module's capability block and terminology without loading its code.
func Describe(path string) (*pipl.Info, *aete.Table, error) {
	info, res, err := pipl.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if info.Terminology == nil {
		return info, nil, nil
	}
	r, ok := res.FindAETE(info.Terminology.ID)
	if !ok {
		return info, nil, nil
	}
	terms, err := aete.Parse(r.Data, res.Order)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: terminology: %w", path, err)
	}
	return info, terms, nil
}

// Open loads the module at path and resolves its entry point for this platform.
func Open(path string) (*Module, error) {
	info, terms, err := Describe(path)
	if err != nil {
		return nil, err
	}
	name, err := info.Entry()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lib, err := openLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	entry, err := lib.symbol(name)
	if err != nil {
		lib.close()
		return nil, fmt.Errorf("%s: entry point %q: %w", path, name, err)
	}
	return &Module{Path: path, Info: info, Terms: terms, lib: lib, entry: entry, mem: memory.NewArena()}, nil
}

// Identity names the module for saved parameters.
func (m *Module) Identity() string {
	if m.Info != nil && m.Info.Name != "" {
		return m.Info.Name
	}
	return filepath.Base(m.Path)
}

// Options returns the session options describing the module. Sessions of an open module
// allocate from its arena and hand out master-pointer handles, which classic modules
// dereference directly.
func (m *Module) Options() []filter.Option {
	opts := []filter.Option{filter.WithCapabilities(m.Info)}
	if m.Terms != nil {
		opts = append(opts, filter.WithTerminology(m.Terms))
	}
	if m.mem != nil {
		opts = append(opts, filter.WithMemory(m.mem), filter.WithMasterPointers())
	}
	return opts
}

// Call runs one selector. The data word and result travel through session memory so
// the module never holds a pointer into the Go heap.
func (m *Module) Call(sel filterapi.Selector, s *filter.Session) int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == 0 {
		s.Logger().Error("call on closed module", "module", m.Path, "selector", sel)
		return int16(filterapi.ParamErr)
	}

	blk, err := s.Memory().Alloc(int(unsafe.Sizeof(uintptr(0))) * 2)
	if err != nil {
		s.Logger().Error("allocating call cells", "error", err)
		return int16(filterapi.MemFullErr)
	}
	defer s.Memory().Free(blk)
	data := (*uintptr)(unsafe.Pointer(&blk.Bytes()[0]))
	result := (*int16)(unsafe.Pointer(&blk.Bytes()[unsafe.Sizeof(uintptr(0))]))
	*data = m.data

	runtime.LockOSThread()
	purego.SyscallN(m.entry, uintptr(uint16(sel)), s.ParamBlock(), blk.Addr(), blk.Addr()+unsafe.Sizeof(uintptr(0)))
	runtime.UnlockOSThread()

	m.data = *data
	return *result
}

// Bind installs the native callback tables for s.
func (m *Module) Bind(s *filter.Session) (func(), error) {
	return bridge.Bind(s)
}

// Close unloads the module. Modules are usually kept for the life of the process: some
// never expect to be unloaded.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.entry != 0 {
		m.entry = 0
		errs = append(errs, m.lib.close())
	}
	if m.mem != nil {
		errs = append(errs, m.mem.Close())
		m.mem = nil
	}
	return errors.Join(errs...)
}

// moduleExts are the file extensions tried when a bare name is looked up.
var moduleExts = []string{".8bf", ".so", ".dylib", ".dll"}

// Find resolves name to a module file. A name with a path separator or an existing file
// is used as is; otherwise each search path is tried with and without the usual
// extensions.
func Find(name string, searchPaths []string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) || strings.ContainsRune(name, '/') {
		if _, err := os.Stat(name); err != nil {
			return "", err
		}
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		candidates := []string{filepath.Join(dir, name)}
		for _, ext := range moduleExts {
			candidates = append(candidates, filepath.Join(dir, name+ext))
		}
		for _, c := range candidates {
			if st, err := os.Stat(c); err == nil && !st.IsDir() {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q in %v", ErrNotFound, name, searchPaths)
}

// Listing is a module found by Scan.
type Listing struct {
	Path string
	Info *pipl.Info
}

// Scan describes every filter module in the search paths. Files that carry no filter
// capability block are skipped; unreadable directories are reported.
func Scan(searchPaths []string) ([]Listing, error) {
	var found []Listing
	var errs []error
	for _, dir := range searchPaths {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(moduleExts, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, _, err := Describe(path)
			if err != nil {
				continue
			}
			found = append(found, Listing{Path: path, Info: info})
		}
	}
	return found, errors.Join(errs...)
}
