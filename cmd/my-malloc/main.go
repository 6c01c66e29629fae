// Command my-malloc is the Go rendering of executable.c's four-mode
// driver (--test, --bench, --realloc, --all), rebuilt as cobra
// subcommands instead of a single executable switched by one string flag.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Totto16/my-malloc/internal/bench"
	"github.com/Totto16/my-malloc/internal/harness"
	"github.com/Totto16/my-malloc/memory"
)

const defaultRegionSize = 1 << 20

var perGoroutine bool

func main() {
	root := &cobra.Command{
		Use:   "my-malloc",
		Short: "Exercise the best-fit coalescing allocator",
	}
	root.PersistentFlags().BoolVar(&perGoroutine, "per-goroutine", false,
		"use a PoolPerGoroutine allocator instead of the default PoolGlobal one")

	root.AddCommand(testCmd(), benchCmd(), reallocCmd(), allCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the best-fit allocator scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Now testing the free list allocator:")
			return report(harness.RunBestFit(defaultRegionSize))
		},
	}
}

func reallocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "realloc",
		Short: "Run the grow/relocate realloc scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Now testing realloc:")
			return report(harness.RunRealloc(defaultRegionSize))
		},
	}
}

func benchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the allocator against Go's built-in allocator",
		RunE: func(cmd *cobra.Command, args []string) error {
			label := "global"
			if perGoroutine {
				label = "per-goroutine"
			}
			fmt.Printf("Now running the memory benchmark with a %s pool:\n", label)
			newAllocator := func() *memory.Allocator {
				if perGoroutine {
					return memory.NewPerGoroutinePool(defaultRegionSize)
				}
				return memory.New(memory.DefaultConfig(defaultRegionSize))
			}
			for _, r := range bench.Run(newAllocator, perGoroutine) {
				fmt.Printf("%d thread(s), %d allocations of size %d-%d byte per thread [run %s]:\n",
					r.Threads, r.Allocations, r.BaseSize, r.BaseSize*4, r.RunID)
				fmt.Printf("\tSystem: %v\n", r.SystemAvg)
				fmt.Printf("\tCustom: %v\n", r.CustomAvg)
				verdict := "faster"
				if r.CustomAvg > r.SystemAvg {
					verdict = "slower"
				}
				fmt.Printf("\tCustom is %.2fx %s than System\n", r.CustomFasterByRatio, verdict)
			}
			return nil
		},
	}
}

func allCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run test, realloc and bench in sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range []*cobra.Command{testCmd(), reallocCmd(), benchCmd()} {
				if err := c.RunE(c, nil); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func report(r harness.Result) error {
	if !r.OK {
		return fmt.Errorf("%s scenario failed after %d step(s): %w", r.Name, r.Steps, r.Err)
	}
	fmt.Printf("%s scenario passed (%d steps). All good!\n", r.Name, r.Steps)
	return nil
}
