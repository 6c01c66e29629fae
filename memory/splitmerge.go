// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// splitOnAllocate converts the chosen free block b wholesale to
// ALLOCATED, or splits it in two when there is enough spare payload to
// carve a new free block off the tail (spec.md §4.4 "Split on
// allocate"). size is the number of payload bytes the caller requested.
//
// Ground: the split branch of __internal__my_malloc in
// my_malloc_with_pointers.c.
func (a *Allocator) splitOnAllocate(b *blockHeader, size int) {
	pb := a.payloadSize(b)
	H := blockHeaderSize

	if pb-size <= H {
		b.status = blockAllocated
		return
	}

	a.carveTrailingFree(b, size)
	b.status = blockAllocated
}

// carveTrailingFree installs a new FREE block header at
// blockPayload(b)+size, handing it whatever followed b, and wires b's
// next link to it. The caller is responsible for b's status; this only
// ever shrinks the usable payload b reports (via payloadSize) down to
// size. Shared by splitOnAllocate and the realloc grow/shrink paths
// that also need to carve a trailing free block (spec.md §4.4, §4.5
// cases A.3 and B.2).
func (a *Allocator) carveTrailingFree(b *blockHeader, size int) *blockHeader {
	newAddr := uintptr(blockPayload(b)) + uintptr(size)
	nb := newBlockAt(newAddr)
	nb.status = blockFree
	nb.regionNumber = b.regionNumber

	oldNext := blockNext(b)
	linkNext(nb, oldNext)
	linkNext(b, nb)
	return nb
}

// mergeOnFree marks c FREE and coalesces it with its immediate
// predecessor and/or successor when they are FREE and reside in the
// same region (spec.md §4.4 "Merge on free"). It returns the leading
// block of the (possibly larger) resulting free run, which the caller
// passes to reclaimIfEmpty.
//
// Ground: the three-way coalesce in __internal__my_free.
func (a *Allocator) mergeOnFree(c *blockHeader) *blockHeader {
	c.status = blockFree

	n := blockNext(c)
	p := blockPrev(c)

	pFree := p != nil && p.status == blockFree && p.regionNumber == c.regionNumber
	nFree := n != nil && n.status == blockFree && n.regionNumber == c.regionNumber

	switch {
	case pFree && nFree:
		linkNext(p, blockNext(n))
		return p
	case pFree:
		linkNext(p, n)
		return p
	case nFree:
		linkNext(c, blockNext(n))
		return c
	default:
		return c
	}
}

// reclaimIfEmpty releases leader's region when leader is FREE and spans
// the entire region (spec.md §4.4 "Region reclamation", I5). Per the
// Open Questions decision recorded in SPEC_FULL.md, an eagerly
// initialized allocator never drops below one live region; every other
// empty region is released immediately. It reports whether a region was
// released.
func (a *Allocator) reclaimIfEmpty(leader *blockHeader) (bool, error) {
	if leader.status != blockFree || !a.spansWholeRegion(leader) {
		return false, nil
	}
	if a.cfg.Eager && a.regionCount() == 1 {
		return false, nil
	}

	r := a.lookupRegion(leader.regionNumber)
	if r == nil {
		fatal(kindInvalidBlock, "block references unknown region %d", leader.regionNumber)
	}

	next := blockNext(leader)
	prev := blockPrev(leader)
	switch {
	case prev != nil && next != nil:
		linkNext(prev, next)
	case prev != nil:
		setBlockNext(prev, nil)
	case next != nil:
		setBlockPrev(next, nil)
		a.blocks = next
	default:
		a.blocks = nil
	}

	if err := a.releaseRegion(r); err != nil {
		return false, err
	}
	return true, nil
}
