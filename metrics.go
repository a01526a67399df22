package ebr

// Stats is a point-in-time, read-only snapshot of the engine's internal
// state. It exists for lock-free containers built on this engine that want
// to report their own pending-reclamation depth; computing it adds no
// locking beyond what a regular collect() pass already does — see
// SPEC_FULL.md §4.8. It is deliberately not wired to any metrics client
// (no Prometheus, no StatsD): spec.md treats telemetry as out of scope for
// this engine's own feature set, not as a reason to withhold a read-only
// accessor from the containers built on top of it.
type Stats struct {
	Epoch        Epoch
	Participants int
	// Pending[e] is the number of Deferred callbacks currently parked in
	// bucket e, summed across every registered participant.
	Pending [epochCount]int
}

// Stats snapshots the engine's current epoch, participant count, and
// per-bucket pending-callback depth.
func (g *Global) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Stats{
		Epoch:        g.loadEpoch(),
		Participants: len(g.locals),
	}
	for _, l := range g.locals {
		l.mu.Lock()
		for e := Epoch(0); e < epochCount; e++ {
			s.Pending[e] += len(l.deferred[e])
		}
		l.mu.Unlock()
	}
	return s
}
