// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

type blockStatus uint8

const (
	blockFree blockStatus = iota
	blockAllocated
)

// blockHeader is the in-band header placed immediately before every
// block's payload (spec.md §3, "Block header fields"). next/prev are
// stored as unsafe.Pointer rather than *blockHeader so that a block
// freshly carved by splitOnAllocate can be written into raw mmap'd
// bytes without going through the Go pointer-typed allocator.
//
// Ground: BlockInformation in my_malloc_with_pointers.c, rendered the
// way the teacher overlays its own page/node headers on raw bytes via
// unsafe.Pointer (cznic/memory's Allocator.mmap / Malloc).
type blockHeader struct {
	next         unsafe.Pointer // *blockHeader, nil if last block of last region
	prev         unsafe.Pointer // *blockHeader, nil if first block of first region
	status       blockStatus
	regionNumber int32
}

var blockHeaderSize = roundup(int(unsafe.Sizeof(blockHeader{})), mallocAlign)

func blockNext(b *blockHeader) *blockHeader { return (*blockHeader)(b.next) }
func blockPrev(b *blockHeader) *blockHeader { return (*blockHeader)(b.prev) }

func setBlockNext(b, n *blockHeader) { b.next = unsafe.Pointer(n) }
func setBlockPrev(b, p *blockHeader) { b.prev = unsafe.Pointer(p) }

// linkNext sets b.next = n and, per spec.md §4.2 ("every mutation of a
// block's next_block must set the mirrored prev_block of the
// neighbor"), fixes up n.prev to point back at b when n is non-nil.
func linkNext(b, n *blockHeader) {
	setBlockNext(b, n)
	if n != nil {
		setBlockPrev(n, b)
	}
}

// blockPayload returns a pointer to the first payload byte of b.
func blockPayload(b *blockHeader) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(b)) + uintptr(blockHeaderSize))
}

// blockFromPayload recovers the header of the block owning payload
// pointer p (the inverse of blockPayload).
func blockFromPayload(p unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(uintptr(p) - uintptr(blockHeaderSize)))
}

// newBlockAt overlays a fresh blockHeader at address addr.
func newBlockAt(addr uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(addr))
}

// payloadSize computes the derived payload size of b (spec.md §3,
// "Derived size"): it is never stored, only computed from neighbor
// addresses and the end of b's region.
//
// Ground: size_of_double_pointer_block in my_malloc_with_pointers.c.
func (a *Allocator) payloadSize(b *blockHeader) int {
	next := blockNext(b)
	if next == nil || next.regionNumber != b.regionNumber {
		r := a.lookupRegion(b.regionNumber)
		if r == nil {
			fatal(kindInvalidBlock, "block references unknown region %d", b.regionNumber)
		}
		return int(regionEnd(r) - uintptr(unsafe.Pointer(b))) - blockHeaderSize
	}
	return int(uintptr(unsafe.Pointer(next))-uintptr(unsafe.Pointer(b))) - blockHeaderSize
}

// isFirstBlockOfRegion reports whether b sits at the very front of its
// region (spec.md §4.4 "Region reclamation": "If L is the first block
// of its region...").
func (a *Allocator) isFirstBlockOfRegion(b *blockHeader) bool {
	r := a.lookupRegion(b.regionNumber)
	if r == nil {
		fatal(kindInvalidBlock, "block references unknown region %d", b.regionNumber)
	}
	return uintptr(unsafe.Pointer(b)) == uintptr(unsafe.Pointer(r))+uintptr(regionHeaderSize)
}

// spansWholeRegion reports whether b, assumed FREE, is the sole block
// of its region: it starts at the region's first block position and
// its next_block either is nil or belongs to a different region.
func (a *Allocator) spansWholeRegion(b *blockHeader) bool {
	if !a.isFirstBlockOfRegion(b) {
		return false
	}
	next := blockNext(b)
	return next == nil || next.regionNumber != b.regionNumber
}
