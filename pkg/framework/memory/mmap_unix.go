//go:build unix

package memory

import (
	"golang.org/x/sys/unix"
)

func pageSize() int {
	return unix.Getpagesize()
}

func mapPages(n int) ([]byte, error) {
	return unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapPages(b []byte) error {
	return unix.Munmap(b)
}
