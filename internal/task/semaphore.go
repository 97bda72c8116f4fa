package task

import "time"

// Semaphore is a counting semaphore. Unlike the single-waiter variant it
// grew out of, any number of tasks may wait on it at the same time: each Post
// releases exactly one Wait.
type Semaphore struct {
	// The current count. Never negative.
	futex Futex

	// Number of tasks sleeping on futex.
	waiters Uint32
}

// NewSemaphore returns a semaphore with the given initial count.
func NewSemaphore(count uint32) *Semaphore {
	s := &Semaphore{}
	s.futex.Store(count)
	return s
}

// Post (unlock) the semaphore, incrementing the value in the semaphore.
func (s *Semaphore) Post() {
	s.futex.Add(1)
	if s.waiters.Load() != 0 {
		s.futex.Wake()
	}
}

// Wait (lock) the semaphore, decrementing the value in the semaphore. It blocks
// while the value is zero.
func (s *Semaphore) Wait() {
	for !s.TryWait() {
		s.waiters.Add(1)
		s.futex.Wait(0)
		s.waiters.Add(^uint32(0))
	}
}

// TryWait decrements the semaphore if that can be done without blocking, and
// reports whether it did.
func (s *Semaphore) TryWait() bool {
	for {
		v := s.futex.Load()
		if v == 0 {
			return false
		}
		if s.futex.CompareAndSwap(v, v-1) {
			return true
		}
	}
}

// WaitFor is like Wait, but gives up after timeout. It reports whether the
// semaphore was decremented.
func (s *Semaphore) WaitFor(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for !s.TryWait() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		s.waiters.Add(1)
		s.futex.WaitUntil(0, uint64(remaining))
		s.waiters.Add(^uint32(0))
	}
	return true
}

// Value returns the current count. Only useful for diagnostics.
func (s *Semaphore) Value() uint32 {
	return s.futex.Load()
}
