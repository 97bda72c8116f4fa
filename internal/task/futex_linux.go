//go:build linux

package task

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWait        = 0
	futexWake        = 1
	futexPrivateFlag = 128
)

// Atomically check for cmp to still be equal to the futex value and if so, go
// to sleep. Return true if we were definitely awoken by a call to Wake or
// WakeAll, and false if we can't be sure of that.
func (f *Futex) Wait(cmp uint32) bool {
	futexSyscall(f.addr(), futexWait, cmp, nil)

	// A zero return from the system call could be a spurious wake-up caused by
	// unrelated code that used the same address before, so callers must always
	// re-check the futex value.
	return false
}

// Like Wait, but times out after the number of nanoseconds in timeout.
func (f *Futex) WaitUntil(cmp uint32, timeout uint64) {
	ts := unix.NsecToTimespec(int64(timeout))
	futexSyscall(f.addr(), futexWait, cmp, &ts)
}

// Wake a single waiter.
func (f *Futex) Wake() {
	futexSyscall(f.addr(), futexWake, 1, nil)
}

// Wake all waiters.
func (f *Futex) WakeAll() {
	const maxInt32 = 0x7fff_ffff
	futexSyscall(f.addr(), futexWake, maxInt32, nil)
}

func (f *Futex) addr() *uint32 {
	return (*uint32)(unsafe.Pointer(&f.Uint32))
}

// The result is ignored: EAGAIN (value changed), EINTR and ETIMEDOUT all mean
// the caller has to look at the futex value again.
func futexSyscall(addr *uint32, op int, val uint32, ts *unix.Timespec) {
	unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(op|futexPrivateFlag),
		uintptr(val),
		uintptr(unsafe.Pointer(ts)),
		0, 0)
}
