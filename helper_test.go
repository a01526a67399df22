package ebr

import "testing"

// stubAbort replaces abortHook for the duration of a test with a recording
// stub, so abort paths (exitCritical underflow, etc.) can be exercised
// without crashing the test binary. Restore the original hook via t.Cleanup
// or by calling the returned func directly.
func stubAbort(t *testing.T) (called *bool, restore func()) {
	t.Helper()
	prev := abortHook
	var hit bool
	abortHook = func(string) { hit = true }
	return &hit, func() { abortHook = prev }
}
