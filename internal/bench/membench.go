// Package bench is the Go rendering of
// original_source/src/manual_tests/membench.c: it drives a memory.Allocator
// and Go's built-in allocator (make/append, backed by the runtime's own
// allocator and garbage collector) through the same allocate/free-half/
// reallocate-half/free-all workload, across the same thread-count and
// allocation-count configurations, and reports which was faster.
//
// The source spawns one pthread per configured thread count and measures
// wall-clock time per thread with gettimeofday; here that becomes one
// goroutine per thread count entry and time.Now/time.Since, coordinated
// with a sync.WaitGroup instead of pthread_join.
package bench

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Totto16/my-malloc/memory"
)

// maxAllocMultiplier mirrors MAX_ALLOC_MULTIPLIER in membench.c.
const maxAllocMultiplier = 4

// config mirrors one row of membench.c's configs table: thread count,
// allocation count per thread, and base allocation size.
type config struct {
	threads     int
	allocations int
	size        int
}

// defaultConfigs reproduces membench.c's configs table verbatim.
var defaultConfigs = []config{
	{threads: 1, allocations: 1000, size: 256},
	{threads: 10, allocations: 1000, size: 256},
	{threads: 50, allocations: 1000, size: 256},
	{threads: 100, allocations: 1000, size: 32},
}

// ConfigResult reports one configuration's timing comparison.
type ConfigResult struct {
	RunID               string
	Threads             int
	Allocations         int
	BaseSize            int
	SystemAvg           time.Duration
	CustomAvg           time.Duration
	CustomFasterByRatio float64
}

// Run drives every entry of defaultConfigs against both the allocator built
// from newAllocator and Go's built-in allocator, returning one
// ConfigResult per entry. Each result is tagged with a fresh UUID so
// separate runs of the same configuration (e.g. across regionSize choices)
// can be told apart downstream.
//
// Ground: run_membench_global/run_membench_thread_local in membench.c; the
// source's init_per_thread flag becomes newAllocator being called once
// (global pool) or once per goroutine (per-goroutine pool) by Run.
func Run(newAllocator func() *memory.Allocator, perGoroutineInit bool) []ConfigResult {
	results := make([]ConfigResult, 0, len(defaultConfigs))

	var shared *memory.Allocator
	if !perGoroutineInit {
		shared = newAllocator()
		defer shared.Destroy()
	}

	for _, cfg := range defaultConfigs {
		systemAvg := runConfig(cfg, func() workload { return systemWorkload{} })

		var custom time.Duration
		if perGoroutineInit {
			custom = runConfig(cfg, func() workload {
				a := newAllocator()
				return allocatorWorkload{a: a, destroy: true}
			})
		} else {
			custom = runConfig(cfg, func() workload {
				return allocatorWorkload{a: shared}
			})
		}

		ratio := systemAvg.Seconds() / custom.Seconds()
		if custom > systemAvg {
			ratio = custom.Seconds() / systemAvg.Seconds()
		}

		results = append(results, ConfigResult{
			RunID:               uuid.NewString(),
			Threads:             cfg.threads,
			Allocations:         cfg.allocations,
			BaseSize:            cfg.size,
			SystemAvg:           systemAvg,
			CustomAvg:           custom,
			CustomFasterByRatio: ratio,
		})
	}

	return results
}

// workload abstracts the allocate/free pattern thread_fn in membench.c runs,
// so the same driver loop exercises both Go's built-in allocator and a
// memory.Allocator.
type workload interface {
	alloc(size int) []byte
	free(b []byte)
	teardown()
}

type systemWorkload struct{}

func (systemWorkload) alloc(size int) []byte { return make([]byte, size) }
func (systemWorkload) free([]byte)           {}
func (systemWorkload) teardown()             {}

type allocatorWorkload struct {
	a       *memory.Allocator
	destroy bool
}

func (w allocatorWorkload) alloc(size int) []byte {
	b, err := w.a.Allocate(size)
	if err != nil {
		panic(err)
	}
	return b
}

func (w allocatorWorkload) free(b []byte) {
	if err := w.a.Free(b); err != nil {
		panic(err)
	}
}

func (w allocatorWorkload) teardown() {
	if w.destroy {
		w.a.Destroy()
	}
}

// runConfig spawns cfg.threads goroutines, each running threadBody against
// its own workload instance, and returns the average elapsed time per
// goroutine, the same statistic run_config computes in membench.c.
func runConfig(cfg config, newWorkload func() workload) time.Duration {
	var wg sync.WaitGroup
	durations := make([]time.Duration, cfg.threads)

	for i := 0; i < cfg.threads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			durations[i] = threadBody(cfg, newWorkload())
		}(i)
	}
	wg.Wait()

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return sum / time.Duration(cfg.threads)
}

// threadBody is the Go analog of thread_fn in membench.c: allocate N
// buffers of random size, free roughly half, reallocate those, then free
// everything, timing only that section.
func threadBody(cfg config, w workload) time.Duration {
	defer w.teardown()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	bufs := make([][]byte, cfg.allocations)

	start := time.Now()

	for i := range bufs {
		size := cfg.size * (1 + rng.Intn(maxAllocMultiplier))
		b := w.alloc(size)
		for j := range b {
			b[j] = 0xFF
		}
		bufs[i] = b
	}

	for i := range bufs {
		if rng.Intn(2) == 0 {
			w.free(bufs[i])
			bufs[i] = nil
		}
	}

	for i := range bufs {
		if bufs[i] == nil {
			size := cfg.size * (1 + rng.Intn(maxAllocMultiplier))
			bufs[i] = w.alloc(size)
		}
	}

	for _, b := range bufs {
		w.free(b)
	}

	return time.Since(start)
}
