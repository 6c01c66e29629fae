// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// UnsafeAllocate is like Allocate except it returns an unsafe.Pointer
// instead of a bounds-checked []byte. The caller is responsible for not
// reading or writing outside the requested size.
//
// Ground: UnsafeMalloc in cznic/memory's memory.go.
func (a *Allocator) UnsafeAllocate(size int) (unsafe.Pointer, error) {
	if size < 0 {
		panic("memory: invalid UnsafeAllocate size")
	}
	a.requireReady()
	if size == 0 {
		return nil, nil
	}

	a.lock()
	defer a.unlock()

	p, err := a.allocateLocked(size)
	if err != nil || p == nil {
		return nil, err
	}
	a.allocs++
	return p, nil
}

// UnsafeFree is like Free except its argument is an unsafe.Pointer
// returned by UnsafeAllocate or UnsafeReallocate. A nil pointer is a
// no-op.
//
// Ground: UnsafeFree in cznic/memory's memory.go.
func (a *Allocator) UnsafeFree(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}
	a.requireReady()

	a.lock()
	defer a.unlock()
	return a.freeLocked(p)
}

// UnsafeReallocate is like Reallocate except its first argument and
// result are unsafe.Pointer values.
//
// Ground: UnsafeRealloc in cznic/memory's memory.go.
func (a *Allocator) UnsafeReallocate(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	if size < 0 {
		panic("memory: invalid UnsafeReallocate size")
	}
	if p == nil {
		return a.UnsafeAllocate(size)
	}
	if size == 0 {
		return nil, a.UnsafeFree(p)
	}

	a.requireReady()
	a.lock()
	defer a.unlock()
	return a.reallocateLocked(p, size)
}
