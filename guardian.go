package ebr

import (
	"sync"
	"time"

	"github.com/joeycumines/go-ebr/internal/gid"
)

// guardianInterval is the cadence at which the guardian drives collection
// and sweeps the registry for dead participants. It's a var rather than a
// compile-time constant purely as a test seam — in the style of
// catrate.timeNow/timeNewTicker — not a supported configuration knob;
// spec.md §6 rules out configuration beyond this cadence, and this package
// exposes no way to set it outside its own test files.
var guardianInterval = 100 * time.Millisecond

// goroutineIsAlive reports whether id still names a live goroutine, used by
// the registry sweep below to decide whether a local's only remaining owner
// is the registry itself — the Go-native stand-in for the reference
// implementation's Arc::strong_count(arc) > 1 check. Overridable by tests
// for determinism, the same way guardianInterval is.
var goroutineIsAlive = defaultGoroutineIsAlive

func defaultGoroutineIsAlive(id gid.ID) bool {
	return gid.IsAlive(id)
}

var (
	globalOnce sync.Once
	globalInst *Global
)

// singleton returns the process-wide Global, creating it and starting the
// guardian goroutine on first call. This is the Go-idiomatic equivalent of
// original_source's once_cell::sync::Lazy<Arc<Global>> — lazy, process-wide,
// initialized exactly once, with no teardown for the life of the process.
func singleton() *Global {
	globalOnce.Do(func() {
		g := newGlobal()
		globalInst = g
		go guardianLoop(g)
	})
	return globalInst
}

// guardianLoop is the guardian: it never returns, for the lifetime of the
// process. Each tick it drives one collection pass and then sweeps the
// registry for participants whose goroutine has exited, flushing and
// running any callbacks still parked in their queues before dropping them.
func guardianLoop(g *Global) {
	ticker := time.NewTicker(guardianInterval)
	defer ticker.Stop()

	for range ticker.C {
		runRecovered(g.collect)
		sweepDeadParticipants(g)
	}
}

// sweepDeadParticipants implements the registry-hygiene variant spec.md §4.3
// calls "lazy... the collector periodically sweeps entries whose only
// remaining owner is the registry." In Go, "only remaining owner is the
// registry" is approximated as "no goroutine with this identity is running
// anymore" — see gid.IsAlive.
//
// It must run after collect() has released Global.mu, for the same reason
// collect() itself defers running callbacks until after releasing it: a
// flushed callback may call Defer or otherwise touch the engine.
func sweepDeadParticipants(g *Global) {
	g.mu.Lock()
	var dead []gid.ID
	for id := range g.locals {
		if !goroutineIsAlive(id) {
			dead = append(dead, id)
		}
	}
	g.mu.Unlock()

	for _, id := range dead {
		l, ok := g.removeLocal(id)
		if !ok {
			continue
		}
		for _, d := range l.drainAll() {
			d := d
			runRecovered(d.Run)
		}
	}
}
