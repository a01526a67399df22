package ebr

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-ebr/internal/gid"
)

// Global is the process-wide reclamation state: the epoch counter and the
// registry of every live participant. There is exactly one Global per
// process, constructed on first use and never torn down — see singleton().
type Global struct {
	epoch atomic.Uint32

	// mu guards locals. Always acquired before any local's own mu, and
	// always released before any Deferred carried by a local is run — the
	// callbacks may themselves call Defer or otherwise touch the engine, and
	// running them while mu is held would deadlock against that reentry.
	mu     sync.Mutex
	locals map[gid.ID]*local
}

func newGlobal() *Global {
	return &Global{
		locals: make(map[gid.ID]*local),
	}
}

func (g *Global) loadEpoch() Epoch {
	return Epoch(g.epoch.Load())
}

// getOrCreateLocal returns the registry entry for key, creating and
// registering a fresh one if none exists yet.
func (g *Global) getOrCreateLocal(key gid.ID) *local {
	g.mu.Lock()
	l, ok := g.locals[key]
	if !ok {
		l = &local{}
		g.locals[key] = l
	}
	g.mu.Unlock()
	return l
}

// removeLocal drops the registry entry for key, if present, returning it.
func (g *Global) removeLocal(key gid.ID) (*local, bool) {
	g.mu.Lock()
	l, ok := g.locals[key]
	if ok {
		delete(g.locals, key)
	}
	g.mu.Unlock()
	return l, ok
}

// collect runs one pass of the collection protocol described in spec.md
// §4.3:
//
//  1. Snapshot the global epoch.
//  2. Scan every registered local: if any is active in a prior generation,
//     bail — nothing can be reclaimed yet.
//  3. Advance the epoch by one (mod 3), but only via a CAS from the exact
//     value scanned in step 2 — if that fails, some other collector (the
//     guardian, or a concurrent caller of the exported Collect) already
//     advanced past what this scan gated, so bail instead of reclaiming a
//     bucket the scan never actually cleared.
//  4. Take (and clear) the oldest bucket from every local's deferred queues,
//     and run those callbacks — after releasing the registry lock, so a
//     callback that calls back into the engine can't deadlock against it.
//
// collect is safe to call concurrently with itself: Collect() is exported
// and the guardian also calls it every tick, so two passes can race to scan
// the same start epoch. Only one of them may win the advance; CAS-from-start
// is what makes the scan and the advance atomic with each other despite
// that race, rather than reloading and retrying against whatever the epoch
// has since become (which would let a second, unscanned advance reclaim a
// bucket the first scan never gated).
func (g *Global) collect() {
	start := g.loadEpoch()

	g.mu.Lock()
	buckets := make([]*local, 0, len(g.locals))
	for _, l := range g.locals {
		if l.active.Load() > 0 && Epoch(l.epoch.Load()) != start {
			g.mu.Unlock()
			return
		}
		buckets = append(buckets, l)
	}
	g.mu.Unlock()

	next := start.next()
	if !g.epoch.CompareAndSwap(uint32(start), uint32(next)) {
		return
	}

	for _, l := range buckets {
		for _, d := range l.takeEpoch(next) {
			d := d
			runRecovered(d.Run)
		}
	}
}

