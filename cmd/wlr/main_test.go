package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/wlr/lib/runtime"
)

func TestComplete(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"1 + 2", true},
		{"f[1,", false},
		{"{1, {2}}", true},
		{`"abc`, false},
		{`"a]b"`, true},
		{`"a\"b"`, true},
		{"Table[i,\n {i, 3}]", true},
	}
	for _, tt := range tests {
		if got := complete(tt.src); got != tt.want {
			t.Errorf("complete(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()
	rt, err := startRuntime(nil, true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func TestREPL(t *testing.T) {
	rt := newRuntime(t)

	in := strings.NewReader("x = 3\nTable[x*i,\n {i, 3}]\n:stats\nexit\n")
	var out bytes.Buffer
	runREPL(rt, in, &out)

	got := out.String()
	for _, want := range []string{"Out[1]= 3", "Out[2]= {3, 6, 9}", "expressions"} {
		if !strings.Contains(got, want) {
			t.Errorf("REPL output missing %q:\n%s", want, got)
		}
	}
	if rt.PoolDepth() != 0 {
		t.Errorf("PoolDepth = %d, want 0", rt.PoolDepth())
	}
}

func TestPrintResult(t *testing.T) {
	rt := newRuntime(t)

	var out bytes.Buffer
	if !printResult(&out, rt, rt.EvalString("1 + 1"), "") {
		t.Error("printResult reported failure for 1 + 1")
	}
	if out.String() != "2\n" {
		t.Errorf("output = %q, want %q", out.String(), "2\n")
	}

	out.Reset()
	if printResult(&out, rt, rt.EvalString("1 +"), "") {
		t.Error("printResult reported success for a syntax error")
	}
}

func TestStartRuntimeContained(t *testing.T) {
	rt := newRuntime(t)
	if rt.Containment() != runtime.Contained {
		t.Errorf("containment = %v, want contained", rt.Containment())
	}
}

func TestWriteSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.sig")
	if err := writeSignature(path); err != nil {
		t.Fatalf("writeSignature: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != runtime.SignatureSize {
		t.Errorf("signature size = %d, want %d", len(data), runtime.SignatureSize)
	}
}
