package ebr

// Epoch identifies a generation of critical sections. Valid values are 0, 1,
// and 2; arithmetic on it is always modular.
type Epoch uint8

// epochCount is the number of live generations the engine rotates through.
// Three is the minimum that lets the collector prove the oldest bucket is
// unreachable: a reader observes at most the current epoch or the one just
// vacated, so the third is always safe to reclaim.
const epochCount = 3

// next returns the epoch that follows e, wrapping modulo epochCount.
//
// The bucket indexed by next(e) is also the one safe to reclaim once the
// collector has advanced the global epoch from e to next(e): mod 3, +1 and
// -2 are the same residue, so next(e) names both "the generation we're
// moving into" and "the generation two behind the one we just left."
func (e Epoch) next() Epoch {
	return Epoch((uint8(e) + 1) % epochCount)
}
