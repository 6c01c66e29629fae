// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// trace, when true, makes Allocate and Free write a one-line
// call/result trace to stderr; the other entry points do not trace. It mirrors the teacher's package-level
// trace toggle (cznic/memory's memory.go), which the original gates at
// compile time; we keep it a plain var rather than a build tag so tests
// can flip it without a second build.
var trace = false
