package heap

import (
	"strings"
	"testing"
	"time"

	"github.com/ilikethese/v8/internal/task"
)

// newHeap returns a coordinator with the test goroutine attached to it.
func newHeap(t *testing.T, cfg Config) (*Safepoint, *LocalHeap) {
	t.Helper()
	sp := NewSafepoint(cfg)
	lh := sp.Attach(task.Init())
	t.Cleanup(func() {
		if !lh.detached {
			lh.Detach()
		}
	})
	return sp, lh
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// stopWithin stops the world from a non-mutator goroutine and fails the test
// if that takes too long.
func stopWithin(t *testing.T, sp *Safepoint) *SafepointScope {
	t.Helper()
	done := make(chan *SafepointScope, 1)
	go func() {
		done <- sp.StopTheWorld(nil)
	}()
	select {
	case s := <-done:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not complete")
		return nil
	}
}

func joinWithin(t *testing.T, tasks ...*task.Task) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		for _, tk := range tasks {
			tk.Join()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("threads did not finish")
	}
}

func expectFatal(t *testing.T, substr string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("no panic, want %q", substr)
		}
		msg, _ := r.(string)
		if !strings.HasPrefix(msg, "heap: ") || !strings.Contains(msg, substr) {
			t.Fatalf("panic %v, want %q", r, substr)
		}
	}()
	fn()
}
