package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

var roundTripSources = []string{
	`{1, -2.5, "text", x, f[y, 3/4]}`,
	`<|"a" -> 1, b -> {2, 3}|>`,
	`2 - 3*I`,
	`123456789012345678901234567890`,
	`1.5`,
	`Hold[1 + 1]`,
	`NumericArray[{{1, 2}, {3, 4}}, "Integer16"]`,
}

func TestSerializeRoundTrip(t *testing.T) {
	r := newTestRuntime(t)
	dir := t.TempDir()

	for i, src := range roundTripSources {
		e := r.EvalString(src)
		path := filepath.Join(dir, "expr.wlrx")
		if k := r.Serialize(path, e); k != Success {
			t.Errorf("%d: Serialize(%s) = %v", i, src, k)
			continue
		}
		back := r.Deserialize(path)
		if !r.SameQ(back, e) {
			t.Errorf("%d: round trip of %s = %s", i, text(t, r, e), text(t, r, back))
		}
	}
}

func TestSerializeRawString(t *testing.T) {
	r := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "raw.wlrx")

	e := r.E(r.Symbol("List"), r.RawString("a\xffb"), r.String("ok"))
	if k := r.Serialize(path, e); k != Success {
		t.Fatalf("Serialize = %v", k)
	}
	back := r.Deserialize(path)
	if !r.SameQ(back, e) {
		t.Errorf("round trip = %s, want %s", text(t, r, back), text(t, r, e))
	}
	var s string
	if r.StringData(r.Part(back, 1), &s); s != "a\xffb" {
		t.Errorf("StringData = %q, want %q", s, "a\xffb")
	}
}

func TestSerializePackedArray(t *testing.T) {
	r := newTestRuntime(t)
	path := filepath.Join(t.TempDir(), "packed.wlrx")

	data := make([]int64, 5000)
	for i := range data {
		data[i] = int64(i * i)
	}
	e := r.ExpressionFromIntegerArray(data, r.Symbol("List"))
	if k := r.Serialize(path, e); k != Success {
		t.Fatalf("Serialize = %v", k)
	}
	back := r.Deserialize(path)
	if r.ExpressionType(back) != TypePackedArray {
		t.Errorf("Deserialize type = %v, want PACKED_ARRAY", r.ExpressionType(back))
	}
	if !r.SameQ(back, e) {
		t.Error("packed array changed in the round trip")
	}
}

func TestSerializeErrors(t *testing.T) {
	r := newTestRuntime(t)
	dir := t.TempDir()

	if k := r.Serialize(filepath.Join(dir, "err.wlrx"), r.Error(OutOfBounds)); k != ErrorExpression {
		t.Errorf("Serialize(error) = %v, want ERROR_EXPRESSION", k)
	}

	junk := filepath.Join(dir, "junk.wlrx")
	if err := os.WriteFile(junk, []byte("this is not an expression"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := r.Deserialize(junk); r.ErrorType(got) != Malformed {
		t.Errorf("Deserialize(junk) = %v, want MALFORMED", r.ErrorType(got))
	}
	if got := r.Deserialize(filepath.Join(dir, "missing.wlrx")); r.ErrorType(got) != MiscellaneousError {
		t.Errorf("Deserialize(missing) = %v, want MISCELLANEOUS_ERROR", r.ErrorType(got))
	}
}

func TestExpressionJSON(t *testing.T) {
	r := newTestRuntime(t)

	var s string
	if k := r.ExportExpressionJSON(r.EvalString(`f[1, "a", x]`), &s); k != Success {
		t.Fatalf("ExportExpressionJSON = %v", k)
	}
	if s != `["f",1,"'a'","x"]` {
		t.Errorf("ExportExpressionJSON = %s", s)
	}

	for _, src := range roundTripSources[:4] {
		e := r.EvalString(src)
		var js string
		if k := r.ExportExpressionJSON(e, &js); k != Success {
			t.Errorf("ExportExpressionJSON(%s) = %v", src, k)
			continue
		}
		if back := r.ImportExpressionJSON(js); !r.SameQ(back, e) {
			t.Errorf("JSON round trip of %s via %s = %s", src, js, text(t, r, back))
		}
	}

	if got := r.ImportExpressionJSON(`[1,`); r.ErrorType(got) != Malformed {
		t.Errorf("ImportExpressionJSON(bad) = %v, want MALFORMED", r.ErrorType(got))
	}
}
