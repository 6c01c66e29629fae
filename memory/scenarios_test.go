// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"testing"
	"unsafe"
)

// addr returns the address of a slice's backing array for pointer-identity
// comparisons, the same trick allocator_tests.c plays on raw void*.
func addr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// TestBestFitScenario walks the same sequence of allocations, frees and
// re-allocations as test_best_fit_allocator in
// original_source/src/manual_tests/allocator_tests.c: pointer reuse after a
// single free, a best-fit hole fill with two allocations, and a three-way
// coalesce before a final, larger allocation reclaims the merged run. The
// pool here grows on demand rather than being a fixed-size arena, so the
// OOM probe at the end of the source test is replaced with a region-growth
// check (S7 in spec.md's boundary scenarios).
func TestBestFitScenario(t *testing.T) {
	a := newTestAllocator()
	defer a.Destroy()

	ptr1, err := a.Allocate(1024)
	if err != nil || ptr1 == nil {
		t.Fatalf("Allocate ptr1: %v", err)
	}
	for i := range ptr1 {
		ptr1[i] = 0xFF
	}

	ptr2, err := a.Allocate(1024)
	if err != nil || ptr2 == nil {
		t.Fatalf("Allocate ptr2: %v", err)
	}
	if addr(ptr2) <= addr(ptr1) {
		t.Fatalf("ptr2 (%x) not after ptr1 (%x)", addr(ptr2), addr(ptr1))
	}
	for i := range ptr2 {
		ptr2[i] = 0xFF
	}
	overhead := int(addr(ptr2)) - int(addr(ptr1)) - 1024

	if err := a.Free(ptr1); err != nil {
		t.Fatal(err)
	}

	// Reuse the just-freed block.
	ptr3, err := a.Allocate(1024)
	if err != nil || ptr3 == nil {
		t.Fatalf("Allocate ptr3: %v", err)
	}
	if addr(ptr3) != addr(ptr1) {
		t.Fatalf("ptr3 (%x) != ptr1 (%x), want reuse", addr(ptr3), addr(ptr1))
	}

	// Carve out a 2048-byte hole between two other live allocations.
	ptr4, err := a.Allocate(3072)
	if err != nil || ptr4 == nil {
		t.Fatalf("Allocate ptr4: %v", err)
	}
	for i := range ptr4 {
		ptr4[i] = 0xFF
	}
	ptr5, err := a.Allocate(2048)
	if err != nil || ptr5 == nil {
		t.Fatalf("Allocate ptr5: %v", err)
	}
	for i := range ptr5 {
		ptr5[i] = 0xFF
	}
	ptr6, err := a.Allocate(2048)
	if err != nil || ptr6 == nil {
		t.Fatalf("Allocate ptr6: %v", err)
	}
	for i := range ptr6 {
		ptr6[i] = 0xFF
	}
	if addr(ptr5) <= addr(ptr4) {
		t.Fatal("ptr5 not after ptr4")
	}
	if addr(ptr6) <= addr(ptr5) {
		t.Fatal("ptr6 not after ptr5")
	}
	if err := a.Free(ptr5); err != nil {
		t.Fatal(err)
	}

	// Fill the 2048-byte hole with two new allocations: a 1024-byte block
	// followed by a block sized to exactly exhaust the remainder.
	ptr7, err := a.Allocate(1024)
	if err != nil || ptr7 == nil {
		t.Fatalf("Allocate ptr7: %v", err)
	}
	for i := range ptr7 {
		ptr7[i] = 0xFF
	}
	ptr8, err := a.Allocate(1024 - overhead)
	if err != nil || ptr8 == nil {
		t.Fatalf("Allocate ptr8: %v", err)
	}
	if addr(ptr7) != addr(ptr5) {
		t.Fatalf("ptr7 (%x) != ptr5 (%x), want the hole reused", addr(ptr7), addr(ptr5))
	}
	if want := addr(ptr5) + 1024 + uintptr(overhead); addr(ptr8) != want {
		t.Fatalf("ptr8 (%x) != %x", addr(ptr8), want)
	}

	// Freeing all three neighbors merges them into one free run.
	if err := a.Free(ptr4); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ptr8); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ptr7); err != nil {
		t.Fatal(err)
	}

	ptr9, err := a.Allocate(4096)
	if err != nil || ptr9 == nil {
		t.Fatalf("Allocate ptr9: %v", err)
	}
	if addr(ptr9) != addr(ptr4) {
		t.Fatalf("ptr9 (%x) != ptr4 (%x), want the merged run reused", addr(ptr9), addr(ptr4))
	}

	if err := a.Free(ptr9); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ptr6); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ptr2); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ptr3); err != nil {
		t.Fatal(err)
	}

	if allocs, regions, _ := a.Stats(); allocs != 0 || regions != 1 {
		t.Fatalf("allocs=%d regions=%d, want 0, 1 (eager allocator keeps its sole region)", allocs, regions)
	}

	// Unlike the fixed-size source pool, this allocator grows: a request
	// far larger than the initial region acquires a second one instead of
	// failing.
	big, err := a.Allocate(testRegionSize * 4)
	if err != nil || big == nil {
		t.Fatalf("Allocate(big): %v", err)
	}
	if _, regions, _ := a.Stats(); regions < 2 {
		t.Fatalf("regions = %d after an over-sized request, want growth", regions)
	}
	if err := a.Free(big); err != nil {
		t.Fatal(err)
	}
}

// TestReallocScenario mirrors test_realloc in the same source file: a
// two-step grow sequence that must preserve payload contents across an
// in-place grow and, when the grow cannot be satisfied in place, across a
// relocate-and-copy.
func TestReallocScenario(t *testing.T) {
	a := newTestAllocator()
	defer a.Destroy()

	ptr1, err := a.Allocate(1024)
	if err != nil || ptr1 == nil {
		t.Fatalf("Allocate ptr1: %v", err)
	}
	for i := range ptr1 {
		ptr1[i] = 0xEE
	}

	ptr2, err := a.Reallocate(ptr1, 3072)
	if err != nil || ptr2 == nil {
		t.Fatalf("Reallocate grow: %v", err)
	}
	if addr(ptr2) != addr(ptr1) {
		t.Fatalf("ptr2 (%x) != ptr1 (%x), want in-place grow", addr(ptr2), addr(ptr1))
	}
	for i := 0; i < 1024; i++ {
		if ptr2[i] != 0xEE {
			t.Fatalf("ptr2[%d] = %#x, want 0xEE (grow must preserve payload)", i, ptr2[i])
		}
	}
	for i := 1024; i < 3072; i++ {
		ptr2[i] = 0xFF
	}

	ptr3, err := a.Allocate(35353)
	if err != nil || ptr3 == nil {
		t.Fatalf("Allocate ptr3: %v", err)
	}
	for i := range ptr3 {
		ptr3[i] = 0xDD
	}

	// Grow far enough that the neighbor (now ptr3) cannot be consumed in
	// place: this must relocate and copy.
	ptr4, err := a.Reallocate(ptr2, 256<<10)
	if err != nil || ptr4 == nil {
		t.Fatalf("Reallocate relocate: %v", err)
	}
	if addr(ptr4) == addr(ptr2) {
		t.Fatal("ptr4 == ptr2, want relocation once the neighbor can't be consumed")
	}
	for i := 0; i < 1024; i++ {
		if ptr4[i] != 0xEE {
			t.Fatalf("ptr4[%d] = %#x, want 0xEE", i, ptr4[i])
		}
	}
	for i := 1024; i < 3072; i++ {
		if ptr4[i] != 0xFF {
			t.Fatalf("ptr4[%d] = %#x, want 0xFF", i, ptr4[i])
		}
	}

	if err := a.Free(ptr3); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ptr4); err != nil {
		t.Fatal(err)
	}

	if allocs, _, _ := a.Stats(); allocs != 0 {
		t.Fatalf("allocs = %d, want 0", allocs)
	}
}

// TestReallocShrinkBelowHalfRelocates exercises case A.2 of spec.md §4.5:
// shrinking to under half the current payload should try to relocate to a
// better-fitting site rather than leaving a large trailing free block
// sitting under an oversized header.
func TestReallocShrinkBelowHalfRelocates(t *testing.T) {
	a := newTestAllocator()
	defer a.Destroy()

	big, err := a.Allocate(4096)
	if err != nil || big == nil {
		t.Fatalf("Allocate: %v", err)
	}
	for i := range big {
		big[i] = byte(i)
	}

	small, err := a.Reallocate(big, 512)
	if err != nil || small == nil {
		t.Fatalf("Reallocate shrink: %v", err)
	}
	if len(small) != 512 {
		t.Fatalf("len = %d, want 512", len(small))
	}
	if addr(small) == addr(big) {
		t.Fatal("Reallocate kept the same pointer, want relocation to the free block after it")
	}
	for i := 0; i < 512; i++ {
		if small[i] != byte(i) {
			t.Fatalf("small[%d] = %d, want %d", i, small[i], byte(i))
		}
	}

	if err := a.Free(small); err != nil {
		t.Fatal(err)
	}
}

// TestReallocNoOpWhenRemainderTooSmall exercises case A.1: shrinking by
// less than one block header's worth of bytes must not carve a new header,
// and must return the same pointer.
func TestReallocNoOpWhenRemainderTooSmall(t *testing.T) {
	a := newTestAllocator()
	defer a.Destroy()

	b, err := a.Allocate(64)
	if err != nil || b == nil {
		t.Fatalf("Allocate: %v", err)
	}

	shrunk, err := a.Reallocate(b, 63)
	if err != nil || shrunk == nil {
		t.Fatalf("Reallocate: %v", err)
	}
	if addr(shrunk) != addr(b) {
		t.Fatal("Reallocate relocated a shrink that left no room to split")
	}

	if err := a.Free(shrunk); err != nil {
		t.Fatal(err)
	}
}

// TestReallocToZeroFrees and TestReallocFromNilAllocates exercise
// Reallocate's nil/zero-size aliasing with Allocate/Free (spec.md §4.5).
func TestReallocToZeroFrees(t *testing.T) {
	a := newTestAllocator()
	defer a.Destroy()

	b, err := a.Allocate(128)
	if err != nil {
		t.Fatal(err)
	}
	r, err := a.Reallocate(b, 0)
	if err != nil || r != nil {
		t.Fatalf("Reallocate(b, 0) = %v, %v, want nil, nil", r, err)
	}
	if allocs, _, _ := a.Stats(); allocs != 0 {
		t.Fatalf("allocs = %d, want 0", allocs)
	}
}

func TestReallocFromNilAllocates(t *testing.T) {
	a := newTestAllocator()
	defer a.Destroy()

	r, err := a.Reallocate(nil, 128)
	if err != nil || r == nil {
		t.Fatalf("Reallocate(nil, 128): %v", err)
	}
	if len(r) != 128 {
		t.Fatalf("len = %d, want 128", len(r))
	}
	if err := a.Free(r); err != nil {
		t.Fatal(err)
	}
}

// TestReallocateRelocateKeepsAllocsBalanced guards against allocateLocked's
// relocate path (A.2, B.4) losing a count: a relocate is one free plus one
// allocate and must be a net no-op on Stats' outstanding-allocation count,
// even though allocateLocked itself (unlike the public Allocate) never
// touches a.allocs.
func TestReallocateRelocateKeepsAllocsBalanced(t *testing.T) {
	a := newTestAllocator()
	defer a.Destroy()

	ptr1, err := a.Allocate(1024)
	if err != nil || ptr1 == nil {
		t.Fatalf("Allocate ptr1: %v", err)
	}

	ptr2, err := a.Reallocate(ptr1, 3072) // in-place grow, no relocate
	if err != nil || ptr2 == nil {
		t.Fatalf("Reallocate grow: %v", err)
	}

	// Occupy the neighbor block so the next grow cannot consume it and
	// must relocate (case B.4).
	ptr3, err := a.Allocate(4096)
	if err != nil || ptr3 == nil {
		t.Fatalf("Allocate ptr3: %v", err)
	}

	if allocs, _, _ := a.Stats(); allocs != 2 {
		t.Fatalf("allocs = %d, want 2 before relocate", allocs)
	}

	ptr4, err := a.Reallocate(ptr2, testRegionSize*4) // forces B.4 relocate
	if err != nil || ptr4 == nil {
		t.Fatalf("Reallocate relocate: %v", err)
	}

	if allocs, _, _ := a.Stats(); allocs != 2 {
		t.Fatalf("allocs = %d after relocate, want 2 (ptr3, ptr4 still live)", allocs)
	}

	if err := a.Free(ptr3); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(ptr4); err != nil {
		t.Fatal(err)
	}
	if allocs, _, _ := a.Stats(); allocs != 0 {
		t.Fatalf("allocs = %d, want 0 after freeing everything", allocs)
	}
}

// TestReallocDisabledAlwaysRelocates exercises Config.ReallocEnabled ==
// false: every Reallocate must relocate-and-copy rather than taking one of
// the in-place fast paths, even a trivial same-size "no-op" shrink that
// would otherwise hit case A.1.
func TestReallocDisabledAlwaysRelocates(t *testing.T) {
	cfg := DefaultConfig(testRegionSize)
	cfg.ReallocEnabled = false
	a := New(cfg)
	defer a.Destroy()

	b, err := a.Allocate(1024)
	if err != nil || b == nil {
		t.Fatalf("Allocate: %v", err)
	}
	for i := range b {
		b[i] = byte(i)
	}

	// A same-size "reallocate" would be case A.1 (no-op, same pointer)
	// with the fast paths enabled; with them disabled it must still
	// relocate to a freshly allocated block.
	r, err := a.Reallocate(b, 1024)
	if err != nil || r == nil {
		t.Fatalf("Reallocate: %v", err)
	}
	if addr(r) == addr(b) {
		t.Fatal("Reallocate kept the same pointer with ReallocEnabled == false")
	}
	for i := 0; i < 1024; i++ {
		if r[i] != byte(i) {
			t.Fatalf("r[%d] = %d, want %d", i, r[i], byte(i))
		}
	}

	if err := a.Free(r); err != nil {
		t.Fatal(err)
	}
	if allocs, _, _ := a.Stats(); allocs != 0 {
		t.Fatalf("allocs = %d, want 0", allocs)
	}
}
