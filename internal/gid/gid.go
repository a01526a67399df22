// Package gid derives a process-local identity for the calling goroutine.
//
// Go has no thread-local storage and no goroutine-exit hook, so anything
// that needs "the state belonging to whoever is calling me right now" (as
// original_source's thread_local! PARTICIPANT_HANDLE does in Rust) has to
// fake it. This package does so the portable way: it parses the numeric
// goroutine ID out of the header line of a runtime.Stack dump for the
// current goroutine. It is slower than a linkname-based shortcut, but it
// needs no assembly and survives runtime internals changing shape across Go
// releases.
//
// ID has no meaning outside the current process and must never be persisted
// or compared across processes or Go versions.
package gid

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// ID identifies a goroutine within the current process, for as long as that
// goroutine is alive. IDs may be reused after a goroutine exits.
type ID int64

// stackPrefix is the fixed header every runtime.Stack dump starts with:
// "goroutine 123 [running]:\n...". Only the number between prefix and the
// next space is needed.
var stackPrefix = []byte("goroutine ")

// stackBufPool holds small scratch buffers for the header line. 64 bytes
// comfortably fits "goroutine <20 digits> [<state>]:\n" without needing the
// rest of the stack trace.
var stackBufPool = sync.Pool{New: func() any {
	b := make([]byte, 64)
	return &b
}}

// Current returns the identity of the calling goroutine. ok is false only if
// the runtime's stack dump format is not what this package expects — callers
// should treat that as "identity unavailable" rather than fatal, since the
// format is not a Go-language guarantee.
func Current() (id ID, ok bool) {
	buf := stackBufPool.Get().(*[]byte)
	defer stackBufPool.Put(buf)

	n := runtime.Stack(*buf, false)
	line := (*buf)[:n]

	line, ok = bytes.CutPrefix(line, stackPrefix)
	if !ok {
		return 0, false
	}

	end := bytes.IndexByte(line, ' ')
	if end < 0 {
		return 0, false
	}

	v, err := strconv.ParseInt(string(line[:end]), 10, 64)
	if err != nil {
		return 0, false
	}

	return ID(v), true
}

// allStackBufPool holds the larger scratch buffers IsAlive needs: a dump of
// every goroutine's header line, not just the caller's. It starts at 32KiB
// and grows (see IsAlive) the same way net/http and similar stdlib callers
// of runtime.Stack(buf, true) do when a fixed-size buffer is too small.
var allStackBufPool = sync.Pool{New: func() any {
	b := make([]byte, 32*1024)
	return &b
}}

// IsAlive reports whether id currently names a live goroutine, by checking
// for its header line in a full runtime.Stack(_, true) dump. It's the
// Go-native stand-in for Rust's Arc::strong_count(arc) > 1: "is anyone other
// than the registry itself still holding this participant alive."
//
// This is a relatively expensive, stop-the-world-adjacent operation (the
// runtime briefly pauses every goroutine to take the dump), so callers
// should use it for periodic registry hygiene, never on a hot path.
func IsAlive(id ID) bool {
	bufp := allStackBufPool.Get().(*[]byte)
	defer allStackBufPool.Put(bufp)

	buf := *bufp
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			buf = buf[:n]
			break
		}
		buf = make([]byte, len(buf)*2)
	}
	*bufp = buf

	needle := strconv.FormatInt(int64(id), 10)
	for _, line := range bytes.Split(buf, []byte("\n")) {
		rest, ok := bytes.CutPrefix(line, stackPrefix)
		if !ok {
			continue
		}
		end := bytes.IndexByte(rest, ' ')
		if end < 0 {
			continue
		}
		if string(rest[:end]) == needle {
			return true
		}
	}
	return false
}
