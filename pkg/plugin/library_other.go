//go:build !(darwin || freebsd || linux || windows)

package plugin

import (
	"fmt"
	"runtime"
)

type library struct{}

func openLibrary(string) (library, error) {
	return library{}, fmt.Errorf("native modules are not supported on %s", runtime.GOOS)
}

func (library) symbol(string) (uintptr, error) { return 0, fmt.Errorf("no library") }

func (library) close() error { return nil }
