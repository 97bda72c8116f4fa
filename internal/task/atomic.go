package task

// Atomics used by the primitives in this package. Mutator threads are real
// OS threads, so these are the real atomic types.

import "sync/atomic"

type (
	Uintptr = atomic.Uintptr
	Uint32  = atomic.Uint32
	Uint64  = atomic.Uint64
	Int32   = atomic.Int32
)
