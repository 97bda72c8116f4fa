// Package task provides the native primitives mutator threads block on:
// futexes, mutexes, a counting semaphore and thread handles. None of them know
// anything about safepoints; the heap package wraps them so that blocking on
// them never holds up a collector.
package task

import (
	"runtime"
	"sync/atomic"
)

// If true, print verbose debug logs.
const verbose = false

// Task is a handle for a thread of execution. Tasks created with Start run on
// their own OS thread; a Task returned by Init describes the calling
// goroutine.
type Task struct {
	// Task ID. The number here is not really significant, but it is never
	// zero and never reused, which makes it usable as a lock owner.
	id uintptr

	// Set to 1 once the task function has returned.
	done Futex
}

// Task counter. Zero is reserved so that it can mean "no task".
var taskID uintptr

func newTask() *Task {
	return &Task{id: atomic.AddUintptr(&taskID, 1)}
}

// Init returns a Task for the calling goroutine, for threads that were not
// started through Start (the main thread, test goroutines). The task is never
// considered done.
func Init() *Task {
	t := newTask()
	if verbose {
		println("*** init:   ", t.id)
	}
	return t
}

// Start a new OS thread running fn.
func Start(fn func(t *Task)) *Task {
	t := newTask()
	if verbose {
		println("*** start:  ", t.id)
	}
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer t.exited()
		fn(t)
	}()
	return t
}

func (t *Task) exited() {
	if verbose {
		println("*** exit:   ", t.id)
	}
	t.done.Store(1)
	t.done.WakeAll()
}

// ID returns the task ID.
func (t *Task) ID() uintptr {
	return t.id
}

// Done reports whether the task function has returned.
func (t *Task) Done() bool {
	return t.done.Load() != 0
}

// Join blocks until the task function has returned.
func (t *Task) Join() {
	for t.done.Load() == 0 {
		t.done.Wait(0)
	}
}
