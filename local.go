package ebr

import (
	"sync"
	"sync/atomic"
)

// local is the per-participant state block. Exactly one exists per
// registered goroutine identity (see participant.go); it is owned by that
// goroutine for writes and read by the collector under Global.mu.
type local struct {
	// active counts nested critical-section entries. It only transitions
	// 0<->positive from the owning goroutine. >0 means "inside a critical
	// section."
	active atomic.Int64

	// epoch is published only on the active 0->1 transition, holding
	// whatever the global epoch was observed to be at that moment. The
	// collector only trusts it while active > 0.
	epoch atomic.Uint32

	// mu guards deferred. Contention is only with the collector, the
	// registry sweep and Global.Stats reading this local's queues, so
	// critical sections here are always short.
	mu       sync.Mutex
	deferred [epochCount][]Deferred
}

// enterCritical records one more nested critical-section entry, publishing
// the observed global epoch on the outermost entry only.
func (l *local) enterCritical(g *Global) {
	if l.active.Add(1) == 1 {
		l.epoch.Store(uint32(g.loadEpoch()))
	}
}

// exitCritical reverses one enterCritical call. Underflowing below zero
// indicates an exitCritical with no matching enterCritical and is always a
// caller bug, so it aborts rather than silently corrupting the active
// counter.
func (l *local) exitCritical() {
	if l.active.Add(-1) < 0 {
		abort("exitCritical called without a matching enterCritical")
	}
}

// deferCallback appends d to the queue for the epoch observed at enqueue time.
func (l *local) deferCallback(g *Global, d Deferred) {
	e := g.loadEpoch()
	l.mu.Lock()
	l.deferred[e] = append(l.deferred[e], d)
	l.mu.Unlock()
}

// takeEpoch removes and returns every Deferred parked in bucket e, leaving
// the bucket empty. Used both by the collector (taking the oldest bucket)
// and by teardown (taking all three).
func (l *local) takeEpoch(e Epoch) []Deferred {
	l.mu.Lock()
	taken := l.deferred[e]
	l.deferred[e] = nil
	l.mu.Unlock()
	return taken
}

// drainAll removes and returns every Deferred still parked in any bucket, in
// epoch order. Used when a participant's goroutine has gone away and its
// queues must be flushed rather than silently discarded.
func (l *local) drainAll() []Deferred {
	var all []Deferred
	for e := Epoch(0); e < epochCount; e++ {
		all = append(all, l.takeEpoch(e)...)
	}
	return all
}
