// Package heap implements the safepoint protocol between mutator threads and
// a stop-the-world collector, and the blocking primitives that keep a thread
// out of the collector's way while it waits.
//
// Every mutator thread owns a LocalHeap. While Active, the thread may touch
// managed memory and must poll LocalHeap.Safepoint regularly. Before it blocks
// on anything outside the heap (a lock, a semaphore, another thread) it parks,
// which tells the collector not to wait for it:
//
//	g := heap.LockParked(lh, &mu)
//	defer g.Unlock()
//
// A parked thread that wants to become Active again while a stop is in
// progress waits until the collector resumes the world.
package heap

import (
	"time"

	"github.com/ilikethese/v8/heap/lockorder"
	"github.com/ilikethese/v8/internal/task"
)

// Safepoint coordinates global stops of all attached mutator threads. There
// is normally one per runtime; it is created at startup and handed to every
// thread that attaches.
type Safepoint struct {
	cfg Config

	// Serializes stops, and guards heaps. Held for the whole duration of a
	// stop, so threads cannot attach or detach while the world is stopped.
	mu task.PMutex

	// Attached heaps. Guarded by mu.
	heaps  *LocalHeap
	nheaps int

	// Number of attached heaps that are Active.
	active task.Int32

	// Stop generation. Odd while a stop is in progress, even otherwise.
	// Threads waiting for a stop to end sleep on it.
	gen task.Futex

	// Number of Active threads the current stop still waits for, plus one
	// held by the collector while it is still requesting. Arriving threads
	// count it down and wake the collector at zero.
	running task.Futex

	statsLock task.PMutex
	pauses    pauseRing
	ttsp      pauseRing

	lockOrder *lockorder.Recorder
}

// NewSafepoint returns a coordinator with no attached threads.
func NewSafepoint(cfg Config) *Safepoint {
	sp := &Safepoint{cfg: cfg}
	if cfg.LockGraph {
		sp.lockOrder = lockorder.New()
	}
	return sp
}

// Config returns the configuration sp was created with.
func (sp *Safepoint) Config() Config {
	return sp.cfg
}

// LockOrder returns the lock-order recorder, or nil unless Config.LockGraph
// is set.
func (sp *Safepoint) LockOrder() *lockorder.Recorder {
	return sp.lockOrder
}

// ActiveCount returns the number of attached threads that are currently
// Active. Threads stopped at a checkpoint count as parked.
func (sp *Safepoint) ActiveCount() int {
	return int(sp.active.Load())
}

// NumHeaps returns the number of attached threads.
func (sp *Safepoint) NumHeaps() int {
	sp.mu.Lock()
	n := sp.nheaps
	sp.mu.Unlock()
	return n
}

// Attach registers the calling thread t and returns its LocalHeap, Active.
// If a stop is in progress, Attach returns once it is over.
func (sp *Safepoint) Attach(t *task.Task) *LocalHeap {
	lh := &LocalHeap{sp: sp, task: t}
	lh.state.Store(stateParked)

	// Not attached yet, so nobody waits for us: a plain Lock is fine here.
	sp.mu.Lock()
	lh.next = sp.heaps
	sp.heaps = lh
	sp.nheaps++
	sp.mu.Unlock()

	lh.trace("*** attach: ")
	lh.unpark()
	return lh
}

// Detach parks the thread for good and unregisters it. lh must not be used
// afterwards.
func (lh *LocalHeap) Detach() {
	if lh.detached {
		fatal("detach of a detached heap")
	}
	if lh.noGC != 0 {
		fatal("detach while garbage collection is disallowed")
	}
	if !lh.IsParked() {
		lh.park()
	}
	lh.detached = true

	sp := lh.sp
	sp.mu.Lock()
	found := false
	for q := &sp.heaps; *q != nil; q = &(*q).next {
		if *q == lh {
			*q = lh.next
			sp.nheaps--
			found = true
			break
		}
	}
	sp.mu.Unlock()

	// Sanity check.
	if !found {
		fatal("detach of a heap that was never attached")
	}
	lh.trace("*** detach: ")
}

// Start runs fn on a new mutator thread with its own attached LocalHeap, and
// detaches it when fn returns.
func (sp *Safepoint) Start(fn func(lh *LocalHeap)) *task.Task {
	return task.Start(func(t *task.Task) {
		lh := sp.Attach(t)
		defer lh.Detach()
		fn(lh)
	})
}

// SafepointScope is a stopped world. Every attached thread other than the
// initiator is either parked or waiting at a checkpoint until Resume.
type SafepointScope struct {
	sp        *Safepoint
	initiator *LocalHeap
	guard     ParkedMutexGuard
	start     time.Time
}

// StopTheWorld requests a global stop and blocks until every attached thread
// other than initiator has stopped at a checkpoint or is parked. initiator is
// the calling thread's LocalHeap, or nil if the caller is not a mutator.
//
// The caller must call Resume on the result.
func (sp *Safepoint) StopTheWorld(initiator *LocalHeap) *SafepointScope {
	s := &SafepointScope{sp: sp, initiator: initiator}
	if initiator != nil {
		if initiator.sp != sp {
			fatal("stop initiated by a heap of another safepoint")
		}
		if initiator.IsParked() {
			fatal("stop initiated by a parked thread")
		}
		// Another mutator may be stopping the world right now and
		// waiting for us, so wait for the lock parked.
		s.guard = LockParked(initiator, &sp.mu)
	} else {
		sp.mu.Lock()
	}
	s.start = time.Now()

	if sp.cfg.Verbose {
		println("*** stop:    generation", sp.gen.Load()+1)
	}
	sp.gen.Add(1)

	// The collector's own token keeps running above zero until every heap
	// has been asked, so early arrivals cannot finish the stop.
	sp.running.Store(1)
	need := uint32(0)
	for lh := sp.heaps; lh != nil; lh = lh.next {
		if lh == initiator {
			continue
		}
		if lh.requestSafepoint() {
			need++
		}
	}
	if sp.running.Add(need-1) != 0 {
		for {
			v := sp.running.Load()
			if v == 0 {
				break
			}
			sp.running.Wait(v)
		}
	}
	sp.record(&sp.ttsp, time.Since(s.start))
	return s
}

// Heaps calls fn for every attached heap while the world is stopped, in no
// particular order. This is where a collector would scan thread roots.
func (s *SafepointScope) Heaps(fn func(lh *LocalHeap)) {
	if s.sp == nil {
		fatal("use of a resumed SafepointScope")
	}
	for lh := s.sp.heaps; lh != nil; lh = lh.next {
		fn(lh)
	}
}

// Resume ends the stop and lets every thread run again.
func (s *SafepointScope) Resume() {
	sp := s.sp
	if sp == nil {
		fatal("resume of a resumed SafepointScope")
	}
	s.sp = nil

	for lh := sp.heaps; lh != nil; lh = lh.next {
		if lh == s.initiator {
			continue
		}
		lh.clearSafepointRequest()
	}
	sp.gen.Add(1)
	sp.gen.WakeAll()
	sp.record(&sp.pauses, time.Since(s.start))

	if sp.cfg.Verbose {
		println("*** resume:  generation", sp.gen.Load())
	}
	if s.initiator != nil {
		s.guard.Unlock()
	} else {
		sp.mu.Unlock()
	}
}

// RunStopped stops the world, calls fn, and resumes the world, also when fn
// panics.
func (sp *Safepoint) RunStopped(initiator *LocalHeap, fn func(s *SafepointScope)) {
	s := sp.StopTheWorld(initiator)
	defer s.Resume()
	fn(s)
}

// IsStopped reports whether a stop is in progress.
func (sp *Safepoint) IsStopped() bool {
	return sp.gen.Load()&1 != 0
}

// arrive reports one running thread as stopped.
func (sp *Safepoint) arrive() {
	if sp.running.Add(^uint32(0)) == 0 {
		sp.running.Wake()
	}
}

// waitWhileStopped blocks until the stop in progress, if any, is over.
func (sp *Safepoint) waitWhileStopped() {
	g := sp.gen.Load()
	if g&1 == 0 {
		return
	}
	for sp.gen.Load() == g {
		sp.gen.Wait(g)
	}
}
