// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"fmt"
	"os"
)

// fatalExitCode is the distinct process exit code spec.md §7 calls for
// on an unrecoverable invariant violation. The source's printErrorAndExit
// (utils.h) always exits with EXIT_FAILURE (1); we keep a dedicated,
// more specific code so a caller's shell script can tell an allocator
// fault apart from a generic failure.
const fatalExitCode = 97

// FatalError describes an unrecoverable allocator fault: use-before-init,
// double-free, realloc-of-freed, a failed structural validation, or an
// OS-primitive failure other than mapping-OOM. Per spec.md §7 there is
// no recovery path once one of these is detected, so production code
// calls fatal, which prints and terminates the process; FatalError
// exists so the diagnostic has one consistent shape.
type FatalError struct {
	Kind    string
	Message string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// fatal prints a diagnostic to stderr and terminates the process. There
// is intentionally no returned error: callers of the public API cannot
// recover from a violated allocator invariant (spec.md §7).
func fatal(kind, format string, args ...interface{}) {
	e := &FatalError{Kind: kind, Message: fmt.Sprintf(format, args...)}
	fmt.Fprintf(os.Stderr, "my-malloc: fatal: %v\n", e)
	os.Exit(fatalExitCode)
}

const (
	kindUseBeforeInit = "use-before-init"
	kindDoubleFree    = "double-free"
	kindReallocFreed  = "realloc-of-freed"
	kindInvalidBlock  = "invalid-pointer"
	kindOSPrimitive   = "os-primitive-failure"
)
