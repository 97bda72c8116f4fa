package heap

import (
	"testing"
)

func TestAttachIsActive(t *testing.T) {
	sp, lh := newHeap(t, Config{})
	if lh.IsParked() {
		t.Error("attached heap is parked")
	}
	if n := sp.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount() = %d, want 1", n)
	}
	if n := sp.NumHeaps(); n != 1 {
		t.Errorf("NumHeaps() = %d, want 1", n)
	}
	if lh.Coordinator() != sp {
		t.Error("Coordinator() is not the attaching safepoint")
	}
}

func TestBlockWhileParkedTransitions(t *testing.T) {
	sp, lh := newHeap(t, Config{})
	before := lh.ParkCount()
	called := false
	lh.BlockWhileParked(func(ps *ParkedScope) {
		called = true
		if !lh.IsParked() {
			t.Error("not parked inside BlockWhileParked")
		}
		if n := sp.ActiveCount(); n != 0 {
			t.Errorf("ActiveCount() = %d inside BlockWhileParked, want 0", n)
		}
		if ps.LocalHeap() != lh {
			t.Error("scope belongs to another heap")
		}
	})
	if !called {
		t.Fatal("callback not called")
	}
	if lh.IsParked() {
		t.Error("still parked after BlockWhileParked")
	}
	if n := lh.ParkCount() - before; n != 1 {
		t.Errorf("%d park transitions, want 1", n)
	}
	if n := sp.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount() = %d, want 1", n)
	}
}

func TestBlockWhileParkedPanic(t *testing.T) {
	sp, lh := newHeap(t, Config{})
	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("recovered %v, want boom", r)
			}
		}()
		lh.BlockWhileParked(func(*ParkedScope) {
			panic("boom")
		})
	}()
	if lh.IsParked() {
		t.Error("still parked after a panicking callback")
	}
	if n := lh.ParkCount(); n != 1 {
		t.Errorf("%d park transitions, want 1", n)
	}
	if n := sp.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount() = %d, want 1", n)
	}
}

func TestBlockWhileParkedReentry(t *testing.T) {
	_, lh := newHeap(t, Config{})
	expectFatal(t, "park of a parked thread", func() {
		lh.BlockWhileParked(func(*ParkedScope) {
			lh.BlockWhileParked(func(*ParkedScope) {})
		})
	})
	if lh.IsParked() {
		t.Error("outer BlockWhileParked did not unpark")
	}
}

func TestParkWhileGarbageCollectionDisallowed(t *testing.T) {
	_, lh := newHeap(t, Config{Checks: true})
	restore := lh.DisallowGarbageCollection()
	if lh.GarbageCollectionAllowed() {
		t.Error("GarbageCollectionAllowed() inside a disallowing region")
	}
	expectFatal(t, "garbage collection is disallowed", func() {
		lh.BlockWhileParked(func(*ParkedScope) {})
	})
	restore()
	if !lh.GarbageCollectionAllowed() {
		t.Error("GarbageCollectionAllowed() false after restore")
	}
	lh.BlockWhileParked(func(*ParkedScope) {})
}

func TestParkWhileGarbageCollectionDisallowedUnchecked(t *testing.T) {
	_, lh := newHeap(t, Config{})
	restore := lh.DisallowGarbageCollection()
	defer restore()
	// Without checks the violation goes unnoticed.
	lh.BlockWhileParked(func(*ParkedScope) {})
}

func TestUnparkedScope(t *testing.T) {
	_, lh := newHeap(t, Config{})
	lh.BlockWhileParked(func(ps *ParkedScope) {
		ps.Unparked(func() {
			if lh.IsParked() {
				t.Error("parked inside Unparked")
			}
			lh.Safepoint()
		})
		if !lh.IsParked() {
			t.Error("not parked again after Unparked")
		}
	})
	if n := lh.ParkCount(); n != 2 {
		t.Errorf("%d park transitions, want 2", n)
	}
}

func TestUnparkedLeavesGarbageCollectionDisallowed(t *testing.T) {
	_, lh := newHeap(t, Config{Checks: true})
	ps := lh.Park()
	var restore func()
	expectFatal(t, "garbage collection is disallowed", func() {
		ps.Unparked(func() {
			restore = lh.DisallowGarbageCollection()
		})
	})
	if lh.IsParked() {
		t.Error("parked again inside a disallowing region")
	}
	restore()
	lh.Safepoint()
}

func TestSafepointPollWhileParked(t *testing.T) {
	_, lh := newHeap(t, Config{})
	expectFatal(t, "safepoint poll on a parked thread", func() {
		lh.BlockWhileParked(func(*ParkedScope) {
			lh.Safepoint()
		})
	})
}

func TestClosedParkedScope(t *testing.T) {
	_, lh := newHeap(t, Config{})
	ps := lh.Park()
	ps.Unpark()
	expectFatal(t, "closed ParkedScope", ps.Unpark)
}

func TestDetach(t *testing.T) {
	sp, lh := newHeap(t, Config{})
	other := sp.Attach(lh.Task())
	if n := sp.NumHeaps(); n != 2 {
		t.Fatalf("NumHeaps() = %d, want 2", n)
	}
	other.Detach()
	if n := sp.NumHeaps(); n != 1 {
		t.Errorf("NumHeaps() = %d after Detach, want 1", n)
	}
	if n := sp.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount() = %d after Detach, want 1", n)
	}
	expectFatal(t, "detach of a detached heap", other.Detach)
	expectFatal(t, "park of a detached heap", func() {
		other.BlockWhileParked(func(*ParkedScope) {})
	})
}

func TestDetachUnknownHeap(t *testing.T) {
	sp, lh := newHeap(t, Config{})
	stray := &LocalHeap{sp: sp, task: lh.Task()}
	stray.state.Store(stateParked)
	expectFatal(t, "never attached", stray.Detach)
	if n := sp.NumHeaps(); n != 1 {
		t.Errorf("NumHeaps() = %d after a failed Detach, want 1", n)
	}
}
