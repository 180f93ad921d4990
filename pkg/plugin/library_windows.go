//go:build windows

package plugin

import (
	"golang.org/x/sys/windows"
)

type library struct {
	handle windows.Handle
}

func openLibrary(path string) (library, error) {
	h, err := windows.LoadLibraryEx(path, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return library{}, err
	}
	return library{handle: h}, nil
}

func (l library) symbol(name string) (uintptr, error) {
	return windows.GetProcAddress(l.handle, name)
}

func (l library) close() error {
	return windows.FreeLibrary(l.handle)
}
