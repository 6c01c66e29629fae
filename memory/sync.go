// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// NewPerGoroutinePool is a convenience constructor for the
// PoolPerGoroutine synchronization discipline (spec.md §4.6). Go has no
// first-class thread-local storage equivalent to the source's
// _Thread_local GlobalObject, so this models "per-thread pool" the way
// a goroutine-based systems library does: one Allocator instance,
// created and used by exactly one goroutine, never shared. The caller
// is responsible for that discipline, exactly as the source's comment
// on its _Thread_local global warns ("each Thread also has to call
// my_allocator_init... I DON'T check if it's NULL ANYWHERE").
//
// Calling Destroy from the owning goroutine before it exits is good
// practice but not required; relying on process exit to reclaim the
// mapping is also fine, mirroring the source's atexit(my_allocator_destroy)
// registration for its thread-local variant.
func NewPerGoroutinePool(regionSize int) *Allocator {
	cfg := DefaultConfig(regionSize)
	cfg.PoolMode = PoolPerGoroutine
	return New(cfg)
}
