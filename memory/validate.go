// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

// validateBlock runs the best-effort structural checks spec.md §7 calls
// "Invalid pointer (optional, compile-time gated)": it does not try to
// catch every malformed caller pointer (that would cost as much as not
// trusting in-band headers at all), only the cheap checks that a
// corrupted or bogus pointer is statistically likely to fail.
func (a *Allocator) validateBlock(b *blockHeader) {
	r := a.lookupRegion(b.regionNumber)
	if r == nil {
		fatal(kindInvalidBlock, "block %p names unknown region %d", b, b.regionNumber)
	}

	addr := uintptr(unsafe.Pointer(b))
	start := uintptr(unsafe.Pointer(r)) + uintptr(regionHeaderSize)
	end := regionEnd(r)
	if addr < start || addr+uintptr(blockHeaderSize) > end {
		fatal(kindInvalidBlock, "block %p lies outside region %d bounds", b, b.regionNumber)
	}
	if b.status != blockFree && b.status != blockAllocated {
		fatal(kindInvalidBlock, "block %p has corrupt status byte %d", b, b.status)
	}
}
