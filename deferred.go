package ebr

import (
	"reflect"
	"sync"
	"unsafe"
)

// payload is the fixed-size, fixed-alignment carrier a Deferred packs a
// captured value into when it fits. Four machine words is large enough for
// most small captures and small enough to keep per-epoch queues cache
// friendly; it's a tuning knob, not a correctness requirement.
//
// payload is an array of uintptr, not of any pointer type, so the garbage
// collector never scans it for pointers. That's fine for a value with no
// pointers in it, but fatal for one that does: a T containing a pointer
// (including func values, which are themselves a pointer to a heap closure)
// packed in here would have its only remaining reference sitting in memory
// the collector treats as opaque bits, making it eligible for collection
// between enqueue and Run. isPointerFree below is what keeps any such T off
// this path.
type payload [4]uintptr

// Deferred is a type-erased, run-once callback. It is produced by New and
// consumed by Run. A Deferred must not be copied after construction and must
// not be run more than once; both are enforced by the queues that own it
// (Local.deferred, Global.collect) rather than by the type itself.
type Deferred struct {
	// run reconstitutes whatever New packed into box/inline and invokes it.
	// It is nil for a zero-value Deferred and after Run has been called;
	// Run rejects both.
	run    func(*Deferred)
	box    unsafe.Pointer
	inline payload
}

// pointerFreeCache memoizes isPointerFree per concrete type. New runs on
// every Defer/DeferValue call — walking a reflect.Type's fields from scratch
// each time would make the inline fast path slower than just always boxing.
var pointerFreeCache sync.Map // map[reflect.Type]bool

// isPointerFree reports whether t's representation can contain no pointers
// the garbage collector would need to trace: only such types are safe to
// pack into payload, which the collector never scans. Pointers, slices,
// strings, maps, channels, funcs, interfaces, and anything built out of
// them (structs, arrays) are never pointer-free.
func isPointerFree(t reflect.Type) bool {
	if free, ok := pointerFreeCache.Load(t); ok {
		return free.(bool)
	}
	free := computePointerFree(t)
	pointerFreeCache.Store(t, free)
	return free
}

func computePointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.Slice, reflect.String:
		return false
	case reflect.Array:
		return t.Len() == 0 || computePointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !computePointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// New packages value and run into a Deferred. value takes the inline path —
// copied directly into the carrier, with no allocation — only if it both
// fits the carrier's payload (strictly smaller, and no more strictly
// aligned) and is pointer-free; otherwise value is boxed on the heap and a
// pointer to it is carried instead, so the collector can still see it. A
// pointer-containing T is never inlined regardless of size: packing a
// pointer into the unscanned payload would leave it as the only reference
// to whatever it points to, from the collector's perspective.
//
// value may be constructed on one goroutine and consumed by Run on another;
// run must not assume any goroutine-local state belonging to the caller of
// New.
func New[T any](value T, run func(T)) Deferred {
	var zero T
	fits := unsafe.Sizeof(zero) < unsafe.Sizeof(payload{}) &&
		unsafe.Alignof(zero) <= unsafe.Alignof(payload{}) &&
		isPointerFree(reflect.TypeFor[T]())

	if fits {
		var d Deferred
		*(*T)(unsafe.Pointer(&d.inline)) = value
		d.run = func(d *Deferred) {
			v := *(*T)(unsafe.Pointer(&d.inline))
			run(v)
		}
		return d
	}

	boxed := new(T)
	*boxed = value
	return Deferred{
		box: unsafe.Pointer(boxed),
		run: func(d *Deferred) {
			v := *(*T)(d.box)
			run(v)
		},
	}
}

// Run invokes the packaged callback exactly once. Calling Run on a
// zero-value Deferred, or calling it twice on the same Deferred, panics:
// both indicate a bug in the queue that owns it, since Local and Global
// guarantee a Deferred is taken out of its queue at most once.
func (d *Deferred) Run() {
	if d.run == nil {
		panic("ebr: Deferred run twice or zero value run")
	}
	run := d.run
	d.run = nil
	run(d)
	d.box = nil
}
