package heap

import (
	"github.com/ilikethese/v8/heap/lockorder"
	"github.com/ilikethese/v8/internal/task"
)

// State bits of a LocalHeap.
//
//	0                              Active: may touch the heap, must poll Safepoint.
//	stateSafepointRequested        Active, and a stop is waiting for this thread.
//	stateParked                    Parked: blocked outside the heap.
//	stateParked|stateSafepointRequested
//	                               Parked during a stop; must not become
//	                               Active until the stop is over.
//
// Only the owning thread sets or clears stateParked. Only the thread holding
// Safepoint.mu sets or clears stateSafepointRequested.
const (
	stateParked             uint32 = 1 << 0
	stateSafepointRequested uint32 = 1 << 1
)

// LocalHeap is the execution state of one mutator thread. It is created by
// Safepoint.Attach, used only by the thread it belongs to, and destroyed by
// Detach.
type LocalHeap struct {
	sp   *Safepoint
	task *task.Task

	state task.Uint32

	// Next heap in Safepoint.heaps. Guarded by Safepoint.mu.
	next *LocalHeap

	// Number of park transitions, for diagnostics and tests.
	parks task.Uint64

	// Depth of DisallowGarbageCollection regions. Owner only.
	noGC int32

	// Locks taken through parked guards, oldest first. Owner only, and only
	// maintained when the lock-order recorder is on.
	held []heldLock

	detached bool
}

type heldLock struct {
	key  any // lockorder.Key(lock)
	lock any
}

// Task returns the thread this heap belongs to.
func (lh *LocalHeap) Task() *task.Task {
	return lh.task
}

// Coordinator returns the Safepoint this heap is attached to.
func (lh *LocalHeap) Coordinator() *Safepoint {
	return lh.sp
}

// IsParked reports whether the thread is currently parked. It may be called
// from any thread.
func (lh *LocalHeap) IsParked() bool {
	return lh.state.Load()&stateParked != 0
}

// SafepointRequested reports whether a stop is waiting on this thread.
func (lh *LocalHeap) SafepointRequested() bool {
	return lh.state.Load()&stateSafepointRequested != 0
}

// ParkCount returns how many times the thread has parked since it attached,
// including parks done on its behalf by Safepoint checkpoints.
func (lh *LocalHeap) ParkCount() uint64 {
	return lh.parks.Load()
}

// Safepoint is the checkpoint an Active thread polls. If a stop was requested,
// the thread reports itself stopped and blocks until the stop is over.
func (lh *LocalHeap) Safepoint() {
	s := lh.state.Load()
	if s&stateParked != 0 {
		fatal("safepoint poll on a parked thread")
	}
	if s&stateSafepointRequested == 0 {
		return
	}
	lh.trace("*** safepoint:")
	// Stopping at a checkpoint is parking for the duration of the stop: park
	// tells the collector we arrived, unpark waits until it is done.
	lh.park()
	lh.unpark()
}

// DisallowGarbageCollection marks the start of a region in which the thread
// must not park. The returned function ends the region. Regions nest.
func (lh *LocalHeap) DisallowGarbageCollection() (restore func()) {
	lh.noGC++
	return func() {
		if lh.noGC <= 0 {
			fatal("unbalanced DisallowGarbageCollection")
		}
		lh.noGC--
	}
}

// GarbageCollectionAllowed reports whether the thread may park right now.
func (lh *LocalHeap) GarbageCollectionAllowed() bool {
	return lh.noGC == 0
}

func (lh *LocalHeap) assertParkingAllowed() {
	if lh.sp.cfg.Checks && lh.noGC != 0 {
		fatal("parking while garbage collection is disallowed")
	}
}

// park moves the thread from Active to Parked.
func (lh *LocalHeap) park() {
	if lh.detached {
		fatal("park of a detached heap")
	}
	// Fast path: no stop in progress.
	if !lh.state.CompareAndSwap(0, stateParked) {
		lh.parkSlowPath()
	} else {
		lh.sp.active.Add(-1)
	}
	lh.parks.Add(1)
	lh.trace("*** park:   ")
}

func (lh *LocalHeap) parkSlowPath() {
	for {
		old := lh.state.Load()
		if old&stateParked != 0 {
			fatal("park of a parked thread")
		}
		if lh.state.CompareAndSwap(old, old|stateParked) {
			lh.sp.active.Add(-1)
			if old&stateSafepointRequested != 0 {
				// The collector counted us as running. Parking is
				// as good as stopping.
				lh.sp.arrive()
			}
			return
		}
	}
}

// unpark moves the thread from Parked back to Active, waiting out any stop
// that is in progress.
func (lh *LocalHeap) unpark() {
	// Fast path: no stop in progress.
	if !lh.state.CompareAndSwap(stateParked, 0) {
		lh.unparkSlowPath()
	}
	lh.sp.active.Add(1)
	lh.trace("*** unpark: ")
}

func (lh *LocalHeap) unparkSlowPath() {
	for {
		old := lh.state.Load()
		if old&stateParked == 0 {
			fatal("unpark of a running thread")
		}
		if old&stateSafepointRequested != 0 {
			lh.sp.waitWhileStopped()
			continue
		}
		if lh.state.CompareAndSwap(old, old&^stateParked) {
			return
		}
	}
}

// requestSafepoint is called by the collector, holding Safepoint.mu. It
// reports whether the thread was Active, meaning the collector has to wait for
// it to arrive.
func (lh *LocalHeap) requestSafepoint() bool {
	for {
		old := lh.state.Load()
		if old&stateSafepointRequested != 0 {
			fatal("safepoint requested twice")
		}
		if lh.state.CompareAndSwap(old, old|stateSafepointRequested) {
			return old&stateParked == 0
		}
	}
}

// clearSafepointRequest is called by the collector, holding Safepoint.mu.
func (lh *LocalHeap) clearSafepointRequest() {
	for {
		old := lh.state.Load()
		if lh.state.CompareAndSwap(old, old&^stateSafepointRequested) {
			return
		}
	}
}

// acquired and released maintain the held-lock list that feeds the lock-order
// recorder. Re-entering a lock that is already held records nothing.
func (lh *LocalHeap) acquired(lock any) {
	rec := lh.sp.lockOrder
	if rec == nil {
		return
	}
	k := lockorder.Key(lock)
	for _, h := range lh.held {
		if h.key == k {
			lh.held = append(lh.held, heldLock{k, lock})
			return
		}
	}
	for _, h := range lh.held {
		rec.Edge(h.lock, lock)
	}
	lh.held = append(lh.held, heldLock{k, lock})
}

func (lh *LocalHeap) released(lock any) {
	if lh.sp.lockOrder == nil {
		return
	}
	k := lockorder.Key(lock)
	for i := len(lh.held) - 1; i >= 0; i-- {
		if lh.held[i].key == k {
			lh.held = append(lh.held[:i], lh.held[i+1:]...)
			return
		}
	}
}

func (lh *LocalHeap) trace(msg string) {
	if lh.sp.cfg.Verbose {
		println(msg, lh.task.ID())
	}
}
