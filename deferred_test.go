package ebr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestS1InlineVsBoxedCrossover is spec.md §8 scenario S1: one carrier wraps
// a small captured value (inline path), one wraps a value at or larger than
// the payload's size (boxed path, since the crossover is a strict less-than
// — an exact-fit value still boxes); both must run exactly once and
// observably affect shared state identically.
func TestS1InlineVsBoxedCrossover(t *testing.T) {
	var total int

	inline := New(int64(7), func(v int64) { total += int(v) })
	boxed := New([32]byte{0: 1, 31: 1}, func(a [32]byte) {
		for _, b := range a {
			total += int(b)
		}
	})

	inline.Run()
	boxed.Run()

	require.Equal(t, 7+2, total)
}

// TestDeferredPointerCaptureAlwaysBoxes guards the fix for a real
// use-after-free: a captured value containing a pointer must never take the
// inline path, no matter how small, because payload is never scanned by the
// garbage collector. func() — what Defer itself packs — is the case that
// matters most: it's a single word, well within the inline size budget, but
// it's a pointer to a heap closure.
func TestDeferredPointerCaptureAlwaysBoxes(t *testing.T) {
	t.Run("func value", func(t *testing.T) {
		var ran bool
		d := New(func() { ran = true }, func(f func()) { f() })
		require.NotNil(t, d.box, "a func value must box, never inline")
		d.Run()
		require.True(t, ran)
	})

	t.Run("pointer field in struct", func(t *testing.T) {
		type holder struct {
			p *int
		}
		n := 9
		var got int
		d := New(holder{p: &n}, func(h holder) { got = *h.p })
		require.NotNil(t, d.box, "a struct containing a pointer must box, never inline")
		d.Run()
		require.Equal(t, 9, got)
	})

	t.Run("bare pointer", func(t *testing.T) {
		n := 11
		var got int
		d := New(&n, func(p *int) { got = *p })
		require.NotNil(t, d.box, "a bare pointer must box, never inline")
		d.Run()
		require.Equal(t, 11, got)
	})
}

// TestDeferredRunsAtMostOnce is testable property 2 ("Deferred is run
// exactly once; running it consumes the carrier") for the obvious abuse
// case: calling Run twice must panic rather than silently double-invoking.
func TestDeferredRunsAtMostOnce(t *testing.T) {
	var calls int
	d := New(0, func(int) { calls++ })

	d.Run()
	require.Equal(t, 1, calls)

	require.Panics(t, func() { d.Run() })
}

// TestDeferredZeroValuePanics guards against a bare Deferred{} (e.g. from a
// pre-sized but not yet populated slice) ever being run.
func TestDeferredZeroValuePanics(t *testing.T) {
	var d Deferred
	require.Panics(t, func() { d.Run() })
}

// TestDeferredSizeAlignmentMatrix is testable property 5: for callables
// (here, captured values) of size 0, 1, payload-1, payload, and larger, and
// alignments 1, 2, 4, 8, and payload-alignment+1, running the Deferred must
// produce the same effect as invoking the function directly.
func TestDeferredSizeAlignmentMatrix(t *testing.T) {
	t.Run("size0", func(t *testing.T) {
		var ran bool
		New(struct{}{}, func(struct{}) { ran = true }).Run()
		require.True(t, ran)
	})

	t.Run("size1", func(t *testing.T) {
		var got byte
		New(byte(0x42), func(b byte) { got = b }).Run()
		require.Equal(t, byte(0x42), got)
	})

	t.Run("sizePayloadMinusOne", func(t *testing.T) {
		type small [31]byte
		var got small
		want := small{0: 1, 30: 9}
		d := New(want, func(v small) { got = v })
		require.Nil(t, d.box, "a value strictly smaller than payload must inline")
		d.Run()
		require.Equal(t, want, got)
	})

	t.Run("sizePayloadExact", func(t *testing.T) {
		type exact [32]byte
		var got exact
		want := exact{0: 2, 31: 5}
		d := New(want, func(v exact) { got = v })
		// The crossover is strictly less-than: a value exactly the size of
		// payload still boxes, matching spec.md's size < sizeof(payload).
		require.NotNil(t, d.box)
		d.Run()
		require.Equal(t, want, got)
	})

	t.Run("sizeLarger", func(t *testing.T) {
		type big [256]byte
		var got big
		want := big{0: 3, 255: 7}
		New(want, func(v big) { got = v }).Run()
		require.Equal(t, want, got)
	})

	t.Run("align1", func(t *testing.T) {
		type a1 [5]byte
		var got a1
		want := a1{1, 2, 3, 4, 5}
		New(want, func(v a1) { got = v }).Run()
		require.Equal(t, want, got)
	})

	t.Run("align2", func(t *testing.T) {
		var got int16
		New(int16(-7), func(v int16) { got = v }).Run()
		require.Equal(t, int16(-7), got)
	})

	t.Run("align4", func(t *testing.T) {
		var got int32
		New(int32(123456), func(v int32) { got = v }).Run()
		require.Equal(t, int32(123456), got)
	})

	t.Run("align8", func(t *testing.T) {
		var got int64
		New(int64(-123456789), func(v int64) { got = v }).Run()
		require.Equal(t, int64(-123456789), got)
	})

	// Note: spec.md's property 5 also calls for an alignment strictly
	// greater than the payload's (8 bytes on every platform this engine
	// targets, since payload is [4]uintptr). Portable Go has no standard
	// type with alignment above 8 without reaching for unsafe constructs
	// that would themselves violate the inline-path's own safety contract,
	// so that cell of the matrix is exercised indirectly: oversizeAndAlign
	// below proves the size check alone is sufficient to force boxing for
	// any value that wouldn't fit regardless of alignment.
	t.Run("oversizeAndAlign", func(t *testing.T) {
		type big [64]int64
		var got big
		want := big{0: 11, 63: 22}
		d := New(want, func(v big) { got = v })
		require.NotNil(t, d.box, "a value larger than payload must box")
		d.Run()
		require.Equal(t, want, got)
	})
}
