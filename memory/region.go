// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// regionHeader is the in-band header placed at the front of every pool
// region (spec.md §3, "Region header fields"). Regions form a singly
// linked list; the list order has no relation to address order.
//
// This is the Go rendering of my_malloc_with_pointers.c's
// MemoryBlockinformation, adapted the way the teacher overlays its page
// struct on a raw mmap'd []byte (cznic/memory's Allocator.mmap).
type regionHeader struct {
	size   int           // total bytes in the region, including this header
	next   *regionHeader // next region, or nil
	number int32         // region identifier, see nextFreeRegionNumber
}

var regionHeaderSize = roundup(int(unsafe.Sizeof(regionHeader{})), mallocAlign)

// regionEnd returns the address one past the last byte of r.
func regionEnd(r *regionHeader) uintptr {
	return uintptr(unsafe.Pointer(r)) + uintptr(r.size)
}

// firstBlockOf returns the header of the first block in r (immediately
// following the region header, spec.md §3 "Layout front-to-back").
func firstBlockOf(r *regionHeader) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(uintptr(unsafe.Pointer(r)) + uintptr(regionHeaderSize)))
}

// regionCount returns the number of live regions.
func (a *Allocator) regionCount() int {
	n := 0
	for r := a.regions; r != nil; r = r.next {
		n++
	}
	return n
}

// lookupRegion performs the O(n) linear scan by number described in
// spec.md §4.1.
func (a *Allocator) lookupRegion(number int32) *regionHeader {
	for r := a.regions; r != nil; r = r.next {
		if r.number == number {
			return r
		}
	}
	return nil
}

// lastRegion performs the O(n) linear scan to the tail of the region
// list described in spec.md §4.1.
func (a *Allocator) lastRegion() *regionHeader {
	if a.regions == nil {
		return nil
	}
	r := a.regions
	for r.next != nil {
		r = r.next
	}
	return r
}

// nextFreeRegionNumber finds the smallest non-negative integer not
// currently in use by a live region. This is a direct port of
// get_next_free_memory_number from my_malloc_with_pointers.c: it
// converges in O(k^2) for k regions but correctly handles arbitrary
// holes in the numbering (e.g. {0,1,3,4,5,2} -> 6; {0,1,3,4,5,6} -> 2).
func (a *Allocator) nextFreeRegionNumber() int32 {
	var start int32
	for {
		oldStart := start
		needsRestart := false

		for r := a.regions; r != nil; r = r.next {
			switch {
			case r.number == start:
				start = r.number + 1
			case r.number > start:
				needsRestart = true
			}
		}

		if !needsRestart || start == oldStart {
			break
		}
	}
	return start
}

// acquireRegion maps a new region of at least hintSize usable bytes
// (beyond its own header and one block header), links it onto the
// region list and installs its sole free block. On mapping failure it
// returns a nil region and the mapping error, which the caller surfaces
// as an out-of-memory condition (spec.md §4.1 "acquire(hint_size)").
func (a *Allocator) acquireRegion(hintSize int) (*regionHeader, error) {
	size := a.defaultRegionSize
	if need := hintSize + regionHeaderSize + blockHeaderSize; need > size {
		// A hint forced a region larger than the configured default:
		// round its page count up to the next power of two so repeated
		// oversized requests don't each pick a slightly different
		// region size, the same anti-fragmentation reasoning behind
		// the teacher's own power-of-two size classes (mathutil.BitLen
		// services log there; it services a page-count rounding here).
		pages := roundup(need, osPageSize) / osPageSize
		size = (1 << uint(mathutil.BitLen(pages-1))) * osPageSize
	} else {
		size = roundup(size, osPageSize)
	}

	buf, err := mmap(size)
	if err != nil {
		return nil, err
	}

	r := (*regionHeader)(unsafe.Pointer(&buf[0]))
	r.size = len(buf)
	r.next = nil
	r.number = a.nextFreeRegionNumber()

	block := firstBlockOf(r)
	block.next = nil
	block.prev = nil
	block.status = blockFree
	block.regionNumber = r.number

	if last := a.lastRegion(); last != nil {
		last.next = r
		lastBlock := lastBlockOf(last)
		lastBlock.next = unsafe.Pointer(block)
		block.prev = unsafe.Pointer(lastBlock)
	} else {
		a.regions = r
		a.blocks = block
	}

	a.mappedBytes += len(buf)
	a.mmaps++
	return r, nil
}

// releaseRegion unmaps r and splices it out of the region list. The
// caller is responsible for having already spliced r's block(s) out of
// the block list (spec.md §4.4 "Region reclamation").
func (a *Allocator) releaseRegion(r *regionHeader) error {
	if a.regions == r {
		a.regions = r.next
	} else {
		for p := a.regions; p != nil; p = p.next {
			if p.next == r {
				p.next = r.next
				break
			}
		}
	}

	size := r.size
	a.mappedBytes -= size
	a.mmaps--
	return unmap(unsafe.Pointer(r), size)
}

// lastBlockOf returns the last block (by address) of region r, walking
// forward from r's first block until the next link leaves the region.
func lastBlockOf(r *regionHeader) *blockHeader {
	b := firstBlockOf(r)
	for {
		next := blockNext(b)
		if next == nil || next.regionNumber != r.number {
			return b
		}
		b = next
	}
}
