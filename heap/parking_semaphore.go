package heap

import (
	"time"

	"github.com/ilikethese/v8/internal/task"
)

// ParkingSemaphore is a counting semaphore whose waits park the waiting
// thread. There is no fast path: its users expect to block, so every wait
// parks first.
type ParkingSemaphore struct {
	sem *task.Semaphore
}

// NewParkingSemaphore returns a semaphore with the given initial count.
func NewParkingSemaphore(count uint32) *ParkingSemaphore {
	return &ParkingSemaphore{sem: task.NewSemaphore(count)}
}

// Signal increments the semaphore, releasing one waiter.
func (s *ParkingSemaphore) Signal() {
	s.sem.Post()
}

// ParkedWait parks the thread and decrements the semaphore, blocking while it
// is zero.
func (s *ParkingSemaphore) ParkedWait(lh *LocalHeap) {
	ps := lh.Park()
	defer ps.Unpark()
	s.ParkedWaitIn(ps)
}

// ParkedWaitIn is ParkedWait for a thread that is already parked.
func (s *ParkingSemaphore) ParkedWaitIn(ps *ParkedScope) {
	ps.check()
	s.sem.Wait()
}

// ParkedWaitFor is like ParkedWait but gives up after timeout. It reports
// whether the semaphore was decremented.
func (s *ParkingSemaphore) ParkedWaitFor(lh *LocalHeap, timeout time.Duration) bool {
	var ok bool
	lh.BlockWhileParked(func(ps *ParkedScope) {
		ok = s.ParkedWaitForIn(ps, timeout)
	})
	return ok
}

// ParkedWaitForIn is ParkedWaitFor for a thread that is already parked.
func (s *ParkingSemaphore) ParkedWaitForIn(ps *ParkedScope, timeout time.Duration) bool {
	ps.check()
	return s.sem.WaitFor(timeout)
}
