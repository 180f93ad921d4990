package bridge

import (
	"unsafe"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// Longest C string or key array read from plug-in memory.
const maxNative = 1 << 16

// at views plug-in memory at p as a T. It returns nil for a null pointer.
func at[T any](p uintptr) *T {
	return (*T)(unsafe.Pointer(p))
}

// store writes v through the out pointer p if the plug-in supplied one.
func store[T any](p uintptr, v T) {
	if p != 0 {
		*at[T](p) = v
	}
}

// bytesAt views n bytes of plug-in memory.
func bytesAt(p uintptr, n int) []byte {
	if p == 0 || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), n)
}

// cString reads a NUL terminated string.
func cString(p uintptr) string {
	if p == 0 {
		return ""
	}
	var buf []byte
	for i := uintptr(0); i < maxNative; i++ {
		c := *(*byte)(unsafe.Pointer(p + i))
		if c == 0 {
			break
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// putCString copies s into dst, truncating to size bytes including the terminator.
func putCString(dst uintptr, size uint32, s string) {
	if dst == 0 || size == 0 {
		return
	}
	n := min(len(s), int(size)-1)
	b := bytesAt(dst, n+1)
	copy(b, s[:n])
	b[n] = 0
}

func pString(p uintptr) string {
	if p == 0 {
		return ""
	}
	return at[filterapi.Str255](p).String()
}

// keyArray reads a zero terminated key array.
func keyArray(p uintptr) []filterapi.OSType {
	if p == 0 {
		return nil
	}
	var keys []filterapi.OSType
	for i := 0; i < maxNative; i++ {
		k := *at[filterapi.OSType](p + uintptr(i)*4)
		if k == 0 {
			break
		}
		keys = append(keys, k)
	}
	return keys
}

// writeKeyArray rewrites a key array in place with keys followed by a terminator. The
// array is never grown: keys is always a subset of what was read from it.
func writeKeyArray(p uintptr, keys []filterapi.OSType) {
	if p == 0 {
		return
	}
	for i, k := range keys {
		*at[filterapi.OSType](p + uintptr(i)*4) = k
	}
	*at[filterapi.OSType](p + uintptr(len(keys))*4) = 0
}

func boolean(v bool) uintptr {
	if v {
		return 1
	}
	return 0
}

func sizeOf[T any](v T) uintptr {
	return unsafe.Sizeof(v)
}
