// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// blockFitsBetter implements the fits_better decision table of spec.md
// §4.3: does candidate c fit request s better than the current best b?
//
// Ground: __my_malloc_block_fitsBetter in my_malloc_with_pointers.c.
// The table is reproduced top-to-bottom exactly as specified; each
// branch returns as soon as its condition is decided, matching the
// original's early returns.
func (a *Allocator) blockFitsBetter(c, b *blockHeader, s int) bool {
	if c.status != blockFree {
		return false
	}
	if b.status != blockFree {
		return true
	}

	pc := a.payloadSize(c)
	H := blockHeaderSize

	if blockNext(c) == nil {
		switch {
		case pc == s:
			return true
		case pc < H+s:
			return false
		case pc == H+s:
			return true
		}
		// pc > H+s: fall through to the generic rules below.
	}

	if pc < s {
		return false
	}
	if pc == s {
		return true
	}

	pb := a.payloadSize(b)
	if pb > s+H && pc <= s+H {
		return false
	}

	return (pc - s) < (pb - s)
}

// selectBestFit walks the block list once, tracking the running best
// candidate per blockFitsBetter, and returns it. It returns nil only
// when the allocator holds no blocks at all (never true once any
// region has been acquired). Early-exits on a perfect fit.
//
// Ground: the scan loop in __internal__my_malloc.
func (a *Allocator) selectBestFit(size int) *blockHeader {
	best := a.blocks
	if best == nil {
		return nil
	}
	for c := blockNext(best); c != nil; c = blockNext(c) {
		if a.blockFitsBetter(c, best, size) {
			best = c
			if a.payloadSize(best) == size {
				break
			}
		}
	}
	return best
}

// fits reports whether candidate is FREE and large enough to satisfy
// size without further negotiation (spec.md §4.3 "Failure to fit").
func (a *Allocator) fits(candidate *blockHeader, size int) bool {
	return candidate != nil && candidate.status == blockFree && a.payloadSize(candidate) >= size
}
