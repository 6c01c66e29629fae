// Package harness drives a memory.Allocator through the same scenarios as
// original_source/src/manual_tests/allocator_tests.c: a pointer-reuse walk
// (RunBestFit) and a grow/relocate walk (RunRealloc). Unlike that file's
// assert-or-abort style, each step here returns a descriptive error so a
// caller (the CLI's "test" subcommand) can report exactly which step
// failed.
package harness

import (
	"fmt"
	"unsafe"

	"github.com/Totto16/my-malloc/memory"
)

// Result summarizes one harness run.
type Result struct {
	Name  string
	Steps int
	OK    bool
	Err   error
}

func recordStep(r *Result, name string, cond bool) error {
	r.Steps++
	if !cond {
		r.Err = fmt.Errorf("step %d (%s) failed", r.Steps, name)
		return r.Err
	}
	return nil
}

func ptrAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// RunBestFit exercises pointer reuse after a free: two 1024-byte blocks
// are allocated, the first is freed, and the next 1024-byte request must
// land on it. It covers only the opening steps of test_best_fit_allocator
// in allocator_tests.c; best-fit hole filling and three-way coalescing are
// not exercised here.
func RunBestFit(regionSize int) Result {
	r := Result{Name: "best-fit", OK: true}
	a := memory.New(memory.DefaultConfig(regionSize))
	defer a.Destroy()

	ptr1, err := a.Allocate(1024)
	if err != nil || ptr1 == nil {
		r.Err = fmt.Errorf("allocate ptr1: %w", err)
		r.OK = false
		return r
	}

	ptr2, err := a.Allocate(1024)
	if err != nil || ptr2 == nil {
		r.Err = fmt.Errorf("allocate ptr2: %w", err)
		r.OK = false
		return r
	}
	if err := recordStep(&r, "ptr2 after ptr1", ptrAddr(ptr2) > ptrAddr(ptr1)); err != nil {
		r.OK = false
		return r
	}

	if err := a.Free(ptr1); err != nil {
		r.Err = err
		r.OK = false
		return r
	}

	ptr3, err := a.Allocate(1024)
	if err != nil || ptr3 == nil {
		r.Err = fmt.Errorf("allocate ptr3: %w", err)
		r.OK = false
		return r
	}
	if err := recordStep(&r, "ptr3 reuses ptr1's block", ptrAddr(ptr3) == ptrAddr(ptr1)); err != nil {
		r.OK = false
		return r
	}

	if err := a.Free(ptr2); err != nil {
		r.Err = err
		r.OK = false
		return r
	}
	if err := a.Free(ptr3); err != nil {
		r.Err = err
		r.OK = false
		return r
	}

	allocs, _, _ := a.Stats()
	if err := recordStep(&r, "heap drained", allocs == 0); err != nil {
		r.OK = false
		return r
	}

	return r
}

// RunRealloc exercises a grow-in-place and a relocate-and-copy, the
// scenario test_realloc in allocator_tests.c covers.
func RunRealloc(regionSize int) Result {
	r := Result{Name: "realloc", OK: true}
	a := memory.New(memory.DefaultConfig(regionSize))
	defer a.Destroy()

	ptr1, err := a.Allocate(1024)
	if err != nil || ptr1 == nil {
		r.Err = fmt.Errorf("allocate ptr1: %w", err)
		r.OK = false
		return r
	}
	for i := range ptr1 {
		ptr1[i] = 0xEE
	}

	ptr2, err := a.Reallocate(ptr1, 3072)
	if err != nil || ptr2 == nil {
		r.Err = fmt.Errorf("reallocate grow: %w", err)
		r.OK = false
		return r
	}
	for i := 0; i < 1024; i++ {
		if ptr2[i] != 0xEE {
			r.Err = fmt.Errorf("grow did not preserve byte %d", i)
			r.OK = false
			return r
		}
	}

	ptr3, err := a.Reallocate(ptr2, regionSize*4)
	if err != nil || ptr3 == nil {
		r.Err = fmt.Errorf("reallocate relocate: %w", err)
		r.OK = false
		return r
	}
	for i := 0; i < 1024; i++ {
		if ptr3[i] != 0xEE {
			r.Err = fmt.Errorf("relocation did not preserve byte %d", i)
			r.OK = false
			return r
		}
	}

	if err := a.Free(ptr3); err != nil {
		r.Err = err
		r.OK = false
		return r
	}

	allocs, _, _ := a.Stats()
	if err := recordStep(&r, "heap drained", allocs == 0); err != nil {
		r.OK = false
		return r
	}

	return r
}
