package heap

// ParkedScope is proof that a thread is parked. Operations that must only run
// parked, such as ParkingSemaphore.ParkedWaitIn, take one as an argument.
type ParkedScope struct {
	lh     *LocalHeap
	closed bool
}

// Park parks the thread and returns the scope. The caller must call Unpark on
// it, normally deferred, before touching the heap again.
func (lh *LocalHeap) Park() *ParkedScope {
	lh.assertParkingAllowed()
	lh.park()
	return &ParkedScope{lh: lh}
}

// Unpark ends the scope, making the thread Active again. If a stop is in
// progress it first waits for the stop to end.
func (ps *ParkedScope) Unpark() {
	ps.check()
	ps.closed = true
	ps.lh.unpark()
}

// LocalHeap returns the parked heap.
func (ps *ParkedScope) LocalHeap() *LocalHeap {
	return ps.lh
}

// Unparked runs fn with the thread Active again, then parks it again. Use it
// for short bursts of heap work inside a long parked region.
func (ps *ParkedScope) Unparked(fn func()) {
	ps.check()
	ps.lh.unpark()
	defer func() {
		ps.lh.assertParkingAllowed()
		ps.lh.park()
	}()
	fn()
}

func (ps *ParkedScope) check() {
	if ps == nil || ps.closed {
		fatal("use of a closed ParkedScope")
	}
	if !ps.lh.IsParked() {
		fatal("ParkedScope of a running thread")
	}
}

// BlockWhileParked parks the thread, calls fn, and unparks the thread again,
// waiting out any stop that began in the meantime. fn is where the thread
// blocks on something outside the heap.
//
// The thread unparks even if fn panics. Calling BlockWhileParked on a parked
// thread is fatal.
func (lh *LocalHeap) BlockWhileParked(fn func(ps *ParkedScope)) {
	ps := lh.Park()
	defer ps.Unpark()
	fn(ps)
}
