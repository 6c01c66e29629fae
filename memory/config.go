// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// HeaderLayout selects how block/region headers are packed in memory.
type HeaderLayout uint8

const (
	// HeaderLayoutNatural lays out header fields in their natural Go
	// alignment (the default, and the only layout this port exercises).
	HeaderLayoutNatural HeaderLayout = iota
	// HeaderLayoutPacked requests a byte-packed header. Reserved for
	// parity with the source's compile-time bitfield-header flag; no
	// packed variant is implemented because nothing in this port needs
	// to shrink header size below its natural alignment.
	HeaderLayoutPacked
)

// PoolMode selects the synchronization shell (spec.md §4.6).
type PoolMode uint8

const (
	// PoolGlobal guards every public entry point with a single mutex.
	// Use this when one Allocator is shared across goroutines.
	PoolGlobal PoolMode = iota
	// PoolPerGoroutine disables locking entirely. The caller must
	// guarantee that the Allocator is only ever touched by the
	// goroutine that constructed it, and that any pointer it hands out
	// is freed by that same goroutine.
	PoolPerGoroutine
)

// Config is the build/instantiation-time configuration record described
// in spec.md §9 ("compile-time configuration flags -> configuration
// record"). The teacher resolves equivalent choices (mallocAllign,
// maxSlotSize) as package constants; here they are resolved once, when
// an Allocator is constructed, because the source exposes them as
// per-invocation choices (_PER_THREAD_ALLOCATOR, _WITH_REALLOC).
type Config struct {
	// DefaultRegionSize is the size requested for the first region
	// (eager init) and the floor size for any subsequently acquired
	// region (spec.md §4.1).
	DefaultRegionSize int
	// Eager, when true, acquires the first region during New instead
	// of lazily on the first allocation that needs one.
	Eager bool
	// HeaderLayout selects the header packing. See HeaderLayoutNatural.
	HeaderLayout HeaderLayout
	// ValidateBlocks turns on best-effort structural validation of a
	// block header before Free/Reallocate trust it (spec.md §7,
	// "Invalid pointer (optional, compile-time gated)").
	ValidateBlocks bool
	// PoolMode selects the synchronization shell.
	PoolMode PoolMode
	// ReallocEnabled mirrors the source's _WITH_REALLOC flag: when
	// false, Reallocate is still safe to call but always relocates
	// (never attempts the in-place grow/shrink fast paths). The zero
	// value Config has ReallocEnabled == false, which disables the fast
	// paths, so DefaultConfig sets it to true explicitly.
	ReallocEnabled bool
}

// DefaultConfig returns the configuration used when none is supplied:
// eager global pool, natural header layout, validation on, realloc fast
// paths enabled.
func DefaultConfig(regionSize int) Config {
	return Config{
		DefaultRegionSize: regionSize,
		Eager:             true,
		HeaderLayout:      HeaderLayoutNatural,
		ValidateBlocks:    true,
		PoolMode:          PoolGlobal,
		ReallocEnabled:    true,
	}
}
