// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// Reallocate changes the size of the allocation designated by b.
//
//   - b == nil (cap(b) == 0): identical to Allocate(size).
//   - size == 0: identical to Free(b), returns (nil, nil).
//   - Otherwise see spec.md §4.5: the result may be b unchanged, b
//     truncated/extended in place, or a freshly allocated and copied
//     block, in which case b is freed.
//
// Ground: Realloc in cznic/memory's memory.go for the nil/zero-size
// aliasing idiom; the case analysis is my_realloc's (cases A.1-A.3,
// B.1-B.4) from my_malloc_with_pointers.c.
func (a *Allocator) Reallocate(b []byte, size int) (r []byte, err error) {
	if size < 0 {
		panic("memory: invalid Reallocate size")
	}
	if cap(b) == 0 {
		return a.Allocate(size)
	}
	if size == 0 {
		return nil, a.Free(b)
	}

	a.requireReady()
	a.lock()
	defer a.unlock()

	b = b[:cap(b)]
	p, err := a.reallocateLocked(unsafe.Pointer(&b[0]), size)
	if err != nil || p == nil {
		return nil, err
	}
	return bytesOf(p, size), nil
}

// reallocateLocked implements spec.md §4.5. Must be called with the
// lock held.
func (a *Allocator) reallocateLocked(p unsafe.Pointer, size int) (unsafe.Pointer, error) {
	blk := blockFromPayload(p)
	if a.cfg.ValidateBlocks {
		a.validateBlock(blk)
	}
	if blk.status == blockFree {
		fatal(kindReallocFreed, "pointer %p already free", p)
	}

	pc := a.payloadSize(blk)
	H := blockHeaderSize

	if !a.cfg.ReallocEnabled {
		// Mirrors the source's _WITH_REALLOC compiled out: every
		// Reallocate is a relocate-and-copy, never one of the in-place
		// fast paths below.
		copyLen := pc
		if size < copyLen {
			copyLen = size
		}
		return a.reallocRelocate(p, copyLen, size)
	}

	if size <= pc {
		return a.reallocShrink(blk, p, pc, size, H)
	}
	return a.reallocGrow(blk, p, pc, size, H)
}

// reallocRelocate allocates a fresh block of size, copies copyLen bytes
// from p's block into it, and frees p. It reports (nil, err) on an
// allocation failure (out of memory), leaving p untouched, so callers that
// treat relocation as an optional fast path (A.2) can fall back to an
// in-place strategy.
//
// allocateLocked, unlike the public Allocate, does not bump a.allocs; a
// relocate is logically one free and one allocate, so the net change to
// a.allocs must be zero. freeLocked below decrements it, so this must
// increment it first, or else every relocating realloc silently drops the
// outstanding-allocation count by one.
func (a *Allocator) reallocRelocate(p unsafe.Pointer, copyLen, size int) (unsafe.Pointer, error) {
	fresh, err := a.allocateLocked(size)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, nil
	}
	a.allocs++

	copyBytes(fresh, p, copyLen)
	if err := a.freeLocked(p); err != nil {
		return nil, err
	}
	return fresh, nil
}

// reallocShrink handles spec.md §4.5 Case A (s <= pc).
func (a *Allocator) reallocShrink(blk *blockHeader, p unsafe.Pointer, pc, size, H int) (unsafe.Pointer, error) {
	if pc-size <= H {
		// A.1: no room to carve a new header, keep ptr unchanged.
		return p, nil
	}

	if size*2 < pc {
		// A.2: shrinking to less than half; try to relocate to a
		// better-fitting site. On allocation failure, fall through to
		// A.3 rather than fail the shrink outright.
		if fresh, err := a.reallocRelocate(p, size, size); err == nil && fresh != nil {
			return fresh, nil
		}
	}

	// A.3: split off a trailing free block, keep ptr.
	a.carveTrailingFree(blk, size)
	return p, nil
}

// reallocGrow handles spec.md §4.5 Case B (s > pc).
func (a *Allocator) reallocGrow(blk *blockHeader, p unsafe.Pointer, pc, size, H int) (unsafe.Pointer, error) {
	n := blockNext(blk)
	if n != nil && n.status == blockFree && n.regionNumber == blk.regionNumber {
		total := pc + H + a.payloadSize(n)
		if total >= size {
			if total-size <= H {
				// B.1: consume n entirely.
				linkNext(blk, blockNext(n))
				return p, nil
			}
			// B.2: consume n, then carve a new trailing free block.
			linkNext(blk, blockNext(n))
			a.carveTrailingFree(blk, size)
			return p, nil
		}
	}

	// B.4: relocate. The original block remains allocated and valid if
	// this fails.
	return a.reallocRelocate(p, pc, size)
}
