package heap

// Joiner is a thread that can be waited for. *task.Task implements it.
type Joiner interface {
	Join()
}

// ParkedJoin parks the thread until t has finished.
func ParkedJoin(lh *LocalHeap, t Joiner) {
	lh.BlockWhileParked(func(ps *ParkedScope) {
		ParkedJoinIn(ps, t)
	})
}

// ParkedJoinIn is ParkedJoin for a thread that is already parked.
func ParkedJoinIn(ps *ParkedScope, t Joiner) {
	ps.check()
	t.Join()
}

// ParkedJoinAll parks the thread once and waits until every thread in threads
// has finished.
func ParkedJoinAll[T Joiner](lh *LocalHeap, threads []T) {
	lh.BlockWhileParked(func(ps *ParkedScope) {
		ParkedJoinAllIn(ps, threads)
	})
}

// ParkedJoinAllIn is ParkedJoinAll for a thread that is already parked.
func ParkedJoinAllIn[T Joiner](ps *ParkedScope, threads []T) {
	ps.check()
	for _, t := range threads {
		t.Join()
	}
}
