//go:build darwin || freebsd || linux

package plugin

import (
	"github.com/ebitengine/purego"
)

type library struct {
	handle uintptr
}

func openLibrary(path string) (library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return library{}, err
	}
	return library{handle: h}, nil
}

func (l library) symbol(name string) (uintptr, error) {
	return purego.Dlsym(l.handle, name)
}

func (l library) close() error {
	return purego.Dlclose(l.handle)
}
