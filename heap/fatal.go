package heap

// fatal reports a broken invariant of the parking protocol. These are bugs in
// the runtime using this package, not conditions a caller can handle, so
// they panic rather than return an error.
func fatal(msg string) {
	panic("heap: " + msg)
}
