// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.
//
// Modifications (c) 2017 The Memory Authors.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

package memory

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmap requests a zero-filled, read/write anonymous region of size
// bytes from the kernel. It is the sole OS-primitive dependency spec.md
// §6 lists as map_anonymous.
//
// Ground: mmap0 in cznic/memory's mmap_unix.go, rebuilt on
// golang.org/x/sys/unix instead of the teacher's raw syscall numbers —
// the idiomatic modern replacement this pack's other x/sys consumers
// (SeleniaProject-Orizon, nmxmxh-inos_v1) reach for.
func mmap(size int) ([]byte, error) {
	for {
		b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, err
		}
		if uintptr(unsafe.Pointer(&b[0]))&uintptr(osPageSize-1) != 0 {
			panic("memory: internal error: mmap returned a non-page-aligned address")
		}
		return b, nil
	}
}

// unmap releases a region previously obtained from mmap.
func unmap(addr unsafe.Pointer, size int) error {
	b := unsafe.Slice((*byte)(addr), size)
	return unix.Munmap(b)
}
