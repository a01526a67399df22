package ebr

import (
	"github.com/joeycumines/go-ebr/internal/gid"
)

// currentLocal returns the local belonging to the calling goroutine,
// creating and registering one on first use — the Go-native equivalent of
// original_source's thread_local! { PARTICIPANT_HANDLE }, lazily
// initialized via UnsyncLazy::new.
//
// Go has no goroutine-exit hook, so unlike the reference implementation's
// pointer-registry variant (eager deregistration on thread exit), this entry
// is reclaimed lazily by the guardian's registry sweep (see guardian.go and
// SPEC_FULL.md §2) once the owning goroutine is gone.
func currentLocal() *local {
	g := singleton()

	id, ok := gid.Current()
	if !ok {
		// gid.Current only fails if runtime.Stack's header format has
		// changed shape; this engine has no correct degraded mode for a
		// participant the collector can never observe (any Deferred parked
		// there would never be reachable for reclamation, violating the
		// no-loss guarantee), so this is an abort, per the "(e) abort on
		// unrecoverable error" host capability spec.md §6 assumes.
		abort("cannot determine identity of calling goroutine")
	}

	return g.getOrCreateLocal(id)
}
