package runtime

import (
	"testing"
)

// newTestRuntime starts a runtime with the default configuration and
// closes it when the test ends.
func newTestRuntime(t testing.TB) *Runtime {
	t.Helper()
	r := New()
	if k := r.Start(Version1, SignedCodeModeLicense, "", nil); k != Success {
		t.Fatalf("Start = %v", k)
	}
	t.Cleanup(r.Close)
	return r
}

// text renders e in input form, or the error kind for error expressions.
func text(t testing.TB, r *Runtime, e Expr) string {
	t.Helper()
	if r.ErrorQ(e) {
		return r.ErrorType(e).String()
	}
	var s string
	if k := r.ToString(e, &s); k != Success {
		t.Fatalf("ToString = %v", k)
	}
	return s
}

// evalText evaluates src and renders the result.
func evalText(t testing.TB, r *Runtime, src string) string {
	t.Helper()
	return text(t, r, r.EvalString(src))
}

// collectMessages records the MessageName of every message raised.
func collectMessages(t testing.TB, r *Runtime) *[]string {
	t.Helper()
	var names []string
	_, k := r.AddMessageHandler(func(name, _, _ Expr, _ any) {
		var s string
		r.ToString(name, &s)
		names = append(names, s)
	}, nil)
	if k != Success {
		t.Fatalf("AddMessageHandler = %v", k)
	}
	return &names
}
