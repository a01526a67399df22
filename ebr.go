// Package ebr implements an epoch-based reclamation engine: a concurrent
// memory reclamation mechanism that lets goroutines participating in a
// lock-free data structure defer destruction of unlinked objects until no
// concurrent reader can possibly still hold a reference.
//
// # Usage
//
//	ebr.EnterCritical()
//	node := loadProtectedPointer()
//	// ... read through node ...
//	ebr.ExitCritical()
//
//	ebr.Protected(func() int {
//	    node := loadProtectedPointer()
//	    return node.Value
//	})
//
//	ebr.Defer(func() { freeNode(unlinkedNode) })
//
// All four entry points are safe to call from any goroutine, are infallible
// from the caller's perspective, and never block for longer than a
// goroutine-identity lookup, a short section under the registry mutex that
// every participant shares, and a single atomic read-modify-write or a
// short per-participant mutex section.
//
// # What this package is not
//
// This is the reclamation core only. It does not provide hazard-pointer
// style per-pointer protection, quiescent-state detection beyond a
// participant's active counter, work-stealing or fairness guarantees for
// reclamation, a hard upper bound on reclamation latency, or recovery from a
// panicking deferred callback other than process termination.
package ebr

// EnterCritical marks the calling goroutine as entering a region where it
// may dereference pointers this engine is responsible for reclaiming.
// Critical sections nest: only the outermost EnterCritical call publishes
// the goroutine's observed epoch: inner calls are accounted for by the
// active counter alone.
//
// Every EnterCritical must be matched by exactly one ExitCritical; prefer
// Protected, which guarantees that pairing even across a panic.
func EnterCritical() {
	currentLocal().enterCritical(singleton())
}

// ExitCritical reverses one EnterCritical call. Calling it without a
// matching EnterCritical is a programmer error and aborts the process.
func ExitCritical() {
	currentLocal().exitCritical()
}

// Protected runs f inside a critical section, guaranteeing ExitCritical runs
// on every exit path — including a panic unwinding through f — and returns
// whatever f returns.
func Protected[T any](f func() T) T {
	l := currentLocal()
	l.enterCritical(singleton())
	defer l.exitCritical()
	return f()
}

// Defer schedules f to run once no goroutine that was active in a critical
// section at enqueue time, or the generation before it, can still be
// running: concretely, after at least two successful global epoch advances
// following this call. f may run on any goroutine — the guardian (during
// collection or its registry sweep) or a caller of Collect — and must not
// assume any goroutine-local
// state belonging to its enqueuer.
func Defer(f func()) {
	DeferValue(f, func(g func()) { g() })
}

// DeferValue is the generalized form of Defer: it schedules run(value) once
// reclamation is safe, packing value inline when it fits the engine's
// four-word payload and boxing it on the heap otherwise (see New).
// Most callers want the simpler Defer; DeferValue exists for callers who
// want to defer destruction of a value without allocating a closure to
// close over it.
func DeferValue[T any](value T, run func(T)) {
	g := singleton()
	currentLocal().deferCallback(g, New(value, run))
}

// Collect drives one pass of the collection protocol immediately, instead
// of waiting for the guardian's next tick. It's exposed for tests and for
// callers that want deterministic reclamation at a known point (e.g. before
// shutdown); ordinary use of this package never needs to call it, since the
// guardian already calls it every guardianInterval.
func Collect() {
	singleton().collect()
}

// GlobalStats returns a snapshot of the engine's current epoch, registered
// participant count, and per-bucket pending-callback depth. See Stats.
func GlobalStats() Stats {
	return singleton().Stats()
}
