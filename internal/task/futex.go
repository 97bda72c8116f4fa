package task

// A futex is a way for userspace to wait with the pointer as the key, and for
// another thread to wake one or all waiting threads keyed on the same pointer.
//
// A futex does not change the underlying value, it only reads it before to prevent
// lost wake-ups.
//
// A Futex must not live on a goroutine stack: waiters and wakers key on its
// address, so it has to stay put. Embedding it in a struct that is shared
// between threads (and therefore heap allocated) is enough.
type Futex struct {
	Uint32
}
