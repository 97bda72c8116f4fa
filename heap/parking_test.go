package heap

import (
	"testing"
	"time"

	"github.com/ilikethese/v8/internal/task"
)

func TestParkedWaitAlwaysParks(t *testing.T) {
	_, lh := newHeap(t, Config{})
	sem := NewParkingSemaphore(1)
	sem.ParkedWait(lh)
	if n := lh.ParkCount(); n != 1 {
		t.Errorf("%d park transitions, want 1 even without contention", n)
	}
	if lh.IsParked() {
		t.Error("still parked after ParkedWait")
	}
}

func TestParkedWaitIn(t *testing.T) {
	_, lh := newHeap(t, Config{})
	sem := NewParkingSemaphore(2)
	ps := lh.Park()
	sem.ParkedWaitIn(ps)
	sem.ParkedWaitIn(ps)
	ps.Unpark()
	if n := lh.ParkCount(); n != 1 {
		t.Errorf("%d park transitions, want 1", n)
	}
	expectFatal(t, "closed ParkedScope", func() {
		sem.ParkedWaitIn(ps)
	})
}

func TestParkedWaitFor(t *testing.T) {
	_, lh := newHeap(t, Config{})
	sem := NewParkingSemaphore(0)
	if sem.ParkedWaitFor(lh, 10*time.Millisecond) {
		t.Fatal("ParkedWaitFor succeeded on an empty semaphore")
	}
	sem.Signal()
	if !sem.ParkedWaitFor(lh, time.Second) {
		t.Fatal("ParkedWaitFor timed out on a signalled semaphore")
	}
	if n := lh.ParkCount(); n != 2 {
		t.Errorf("%d park transitions, want 2", n)
	}
}

func TestParkedWaitReleasedBySignal(t *testing.T) {
	sp, lh := newHeap(t, Config{})
	sem := NewParkingSemaphore(0)
	const waiters = 3
	var tasks []*task.Task
	for i := 0; i < waiters; i++ {
		tasks = append(tasks, sp.Start(func(lh *LocalHeap) {
			sem.ParkedWait(lh)
		}))
	}
	for i := 0; i < waiters; i++ {
		sem.Signal()
	}
	ParkedJoinAll(lh, tasks)
}

// Joining threads that already finished still parks, once for the whole set.
func TestParkedJoinAllParksOnce(t *testing.T) {
	_, lh := newHeap(t, Config{})
	var tasks []*task.Task
	for i := 0; i < 3; i++ {
		tasks = append(tasks, task.Start(func(*task.Task) {}))
	}
	joinWithin(t, tasks...)

	before := lh.ParkCount()
	ParkedJoinAll(lh, tasks)
	if n := lh.ParkCount() - before; n != 1 {
		t.Errorf("%d park transitions for three joins, want 1", n)
	}
}

func TestParkedJoinAllEmpty(t *testing.T) {
	_, lh := newHeap(t, Config{})
	ParkedJoinAll[*task.Task](lh, nil)
	if n := lh.ParkCount(); n != 1 {
		t.Errorf("%d park transitions, want 1", n)
	}
}

// A thread joining another one does not hold up a stop.
func TestParkedJoinDuringStop(t *testing.T) {
	sp := NewSafepoint(Config{})
	release := make(chan struct{})
	worker := task.Start(func(*task.Task) { <-release })

	heaps := make(chan *LocalHeap)
	joiner := sp.Start(func(lh *LocalHeap) {
		heaps <- lh
		ParkedJoin(lh, worker)
	})
	lh := <-heaps
	waitFor(t, "joiner to park", lh.IsParked)

	s := stopWithin(t, sp)
	s.Resume()
	close(release)
	joinWithin(t, joiner)
}

func TestParkedJoinIn(t *testing.T) {
	_, lh := newHeap(t, Config{})
	a := task.Start(func(*task.Task) {})
	b := task.Start(func(*task.Task) {})
	lh.BlockWhileParked(func(ps *ParkedScope) {
		ParkedJoinIn(ps, a)
		ParkedJoinAllIn(ps, []*task.Task{b})
	})
	if !a.Done() || !b.Done() {
		t.Error("threads not done after joining them")
	}
}
