// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memory implements a best-fit, coalescing, segregated-pool
// allocator on top of anonymous OS memory mappings. It is the Go
// rendering of Totto16/my_malloc's best-fit free-list engine, built in
// the style of github.com/cznic/memory: in-band headers reached through
// unsafe.Pointer, a package-level trace toggle, and platform-specific
// mmap/munmap files.
//
// An Allocator's zero value is not ready for use; construct one with
// New. Two synchronization disciplines are available through
// Config.PoolMode: a process-global pool guarded by a mutex
// (PoolGlobal), and a pool meant to be owned by a single goroutine and
// never shared (PoolPerGoroutine).
package memory

import (
	"fmt"
	"os"
	"reflect"
	"sync"
	"unsafe"
)

const mallocAlign = 16 // must be a power of 2, >= alignof(blockHeader)

var osPageSize = os.Getpagesize()

// roundup rounds n up to the next multiple of m. m must be a power of 2.
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

// Allocator allocates, frees and reallocates memory backed by OS
// mappings acquired on demand. Construct one with New; release its
// mappings with Destroy when done (not required at process exit).
type Allocator struct {
	mu  sync.Mutex
	cfg Config

	regions *regionHeader // head of the region list
	blocks  *blockHeader  // first block of the first region, or nil

	defaultRegionSize int
	ready             bool

	allocs      int // outstanding allocation count
	mmaps       int // live region count
	mappedBytes int // bytes currently held via mmap
}

// New constructs an Allocator per cfg. In eager mode (the default via
// DefaultConfig) it maps the first region immediately; in lazy mode the
// first region is mapped by the first Allocate call that needs one.
//
// Ground: my_allocator_init in my_malloc_with_pointers.c, reshaped into
// a constructor the way idiomatic Go types are built (the source's
// explicit init()/destroy() pair becomes New/Destroy).
func New(cfg Config) *Allocator {
	if cfg.DefaultRegionSize <= 0 {
		panic("memory: Config.DefaultRegionSize must be positive")
	}

	a := &Allocator{cfg: cfg, defaultRegionSize: cfg.DefaultRegionSize, ready: true}
	if cfg.Eager {
		if _, err := a.acquireRegion(0); err != nil {
			fatal(kindOSPrimitive, "failed to map initial region: %v", err)
		}
	}
	return a
}

// requireReady enforces the "use-before-init" fatal disposition of
// spec.md §7: calling Allocate, Free, Reallocate or their Unsafe
// variants on an Allocator that was never constructed via New (its zero
// value), or after Destroy, is fatal. Freeing a nil (or zero-capacity)
// slice or pointer returns before this check, and Destroy and Stats do
// not check at all.
func (a *Allocator) requireReady() {
	if !a.ready {
		fatal(kindUseBeforeInit, "allocator method called before New")
	}
}

func (a *Allocator) lock() {
	if a.cfg.PoolMode == PoolGlobal {
		a.mu.Lock()
	}
}

func (a *Allocator) unlock() {
	if a.cfg.PoolMode == PoolGlobal {
		a.mu.Unlock()
	}
}

// Destroy unmaps every region the Allocator holds and resets it to a
// not-ready state. It is not necessary to call Destroy when the process
// is about to exit. Calling Destroy more than once is a safe no-op.
//
// Ground: my_allocator_destroy.
func (a *Allocator) Destroy() {
	a.lock()
	defer a.unlock()

	for r := a.regions; r != nil; {
		next := r.next
		if err := a.releaseRegion(r); err != nil {
			fatal(kindOSPrimitive, "munmap failed: %v", err)
		}
		r = next
	}
	a.regions = nil
	a.blocks = nil
	a.ready = false
}

// Stats reports bookkeeping counters useful for tests and benchmarks:
// the number of outstanding allocations, the number of live regions,
// and the number of bytes currently held via mmap.
func (a *Allocator) Stats() (allocs, regions, mappedBytes int) {
	a.lock()
	defer a.unlock()
	return a.allocs, a.mmaps, a.mappedBytes
}

// Allocate reserves size bytes and returns a byte slice over the
// uninitialized payload, or (nil, nil) on a zero-size request, or
// (nil, err) if the host OS refused to hand out more memory. Allocate
// panics for size < 0.
//
// Ground: Malloc in cznic/memory's memory.go (the defer-based trace
// wrapper, the size<0 panic, the size==0 no-op) combined with the
// best-fit search and split discipline of spec.md §4.3/§4.4 in place of
// cznic/memory's segregated size classes.
func (a *Allocator) Allocate(size int) (r []byte, err error) {
	if trace {
		defer func() {
			var p *byte
			if len(r) != 0 {
				p = &r[0]
			}
			fmt.Fprintf(os.Stderr, "Allocate(%#x) %p, %v\n", size, p, err)
		}()
	}
	if size < 0 {
		panic("memory: invalid Allocate size")
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
	return bytesOf(p, size), nil
}

// allocateLocked performs the best-fit search, growing the pool on a
// miss, and the subsequent split. Must be called with the lock held.
//
// Ground: __internal__my_malloc.
func (a *Allocator) allocateLocked(size int) (unsafe.Pointer, error) {
	best := a.selectBestFit(size)
	if !a.fits(best, size) {
		r, err := a.acquireRegion(size)
		if err != nil {
			return nil, err
		}
		best = firstBlockOf(r)
	}
	a.splitOnAllocate(best, size)
	return blockPayload(best), nil
}

// Free releases the memory designated by b, which must have been
// returned by Allocate or Reallocate and not yet freed. A b with zero
// capacity (such as nil) is a no-op; a zero-length b that still has
// capacity, such as b[:0], frees the block it was sliced from.
//
// Ground: Free in cznic/memory's memory.go for the nil-safety idiom
// (b = b[:cap(b)]); the double-free check and coalescing are from
// __internal__my_free.
func (a *Allocator) Free(b []byte) (err error) {
	if trace {
		var p *byte
		if len(b) != 0 {
			p = &b[0]
		}
		defer func() {
			fmt.Fprintf(os.Stderr, "Free(%p) %v\n", p, err)
		}()
	}
	b = b[:cap(b)]
	if len(b) == 0 {
		return nil
	}
	a.requireReady()

	a.lock()
	defer a.unlock()
	return a.freeLocked(unsafe.Pointer(&b[0]))
}

// freeLocked validates and frees the block owning payload p. Must be
// called with the lock held.
func (a *Allocator) freeLocked(p unsafe.Pointer) error {
	blk := blockFromPayload(p)
	if a.cfg.ValidateBlocks {
		a.validateBlock(blk)
	}
	if blk.status == blockFree {
		fatal(kindDoubleFree, "pointer %p was already freed", p)
	}

	a.allocs--
	leader := a.mergeOnFree(blk)
	_, err := a.reclaimIfEmpty(leader)
	return err
}

// bytesOf builds a []byte of length/cap size over the memory at p,
// without copying or zeroing it. Mirrors the reflect.SliceHeader
// construction cznic/memory's Malloc uses to hand back a view into raw
// mmap'd bytes.
func bytesOf(p unsafe.Pointer, size int) []byte {
	var b []byte
	sh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh.Data = uintptr(p)
	sh.Len = size
	sh.Cap = size
	return b
}

// copyBytes copies the first n bytes from src to dst, both raw
// payload pointers owned by the allocator (never touching bytes
// outside the allocator's own regions).
func copyBytes(dst, src unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}
