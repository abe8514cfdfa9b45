package runtime

import (
	"testing"

	"github.com/chazu/wlr/lib/numarray"
)

func TestPackedArrays(t *testing.T) {
	r := newTestRuntime(t)

	list := r.Symbol("List")
	ints := r.ExpressionFromIntegerArray([]int64{3, 1, 4}, list)
	if r.ExpressionType(ints) != TypePackedArray {
		t.Fatalf("integer array type = %v, want PACKED_ARRAY", r.ExpressionType(ints))
	}
	if got := text(t, r, ints); got != "{3, 1, 4}" {
		t.Errorf("packed integers = %s, want {3, 1, 4}", got)
	}
	if got := text(t, r, r.Part(ints, 2)); got != "1" {
		t.Errorf("Part(packed, 2) = %s, want 1", got)
	}

	var iv []int64
	if k := r.IntegerArrayData(ints, &iv); k != Success || len(iv) != 3 || iv[2] != 4 {
		t.Errorf("IntegerArrayData = %v (%v)", iv, k)
	}
	var fv []float64
	if k := r.RealArrayData(ints, &fv); k != Success || fv[0] != 3 {
		t.Errorf("RealArrayData(packed ints) = %v (%v)", fv, k)
	}

	reals := r.ExpressionFromRealArray([]float64{0.5, 2}, list)
	if got := text(t, r, reals); got != "{0.5, 2.}" {
		t.Errorf("packed reals = %s, want {0.5, 2.}", got)
	}
	if k := r.IntegerArrayData(reals, &iv); k != UnexpectedType {
		t.Errorf("IntegerArrayData(reals) = %v, want UNEXPECTED_TYPE", k)
	}

	f := r.ExpressionFromIntegerArray([]int64{1, 2}, r.Symbol("f"))
	if r.ExpressionType(f) != TypeNormal || text(t, r, f) != "f[1, 2]" {
		t.Errorf("non-list head = %v %s, want NORMAL f[1, 2]", r.ExpressionType(f), text(t, r, f))
	}
}

func TestArrayDataFromLists(t *testing.T) {
	r := newTestRuntime(t)

	var iv []int64
	if k := r.IntegerArrayData(r.EvalString("{1, 2, 3}"), &iv); k != Success || len(iv) != 3 {
		t.Errorf("IntegerArrayData(list) = %v (%v)", iv, k)
	}
	if k := r.IntegerArrayData(r.EvalString("{1, 2.5}"), &iv); k != UnexpectedType {
		t.Errorf("IntegerArrayData(mixed) = %v, want UNEXPECTED_TYPE", k)
	}
	var fv []float64
	if k := r.RealArrayData(r.EvalString("{1, 2.5}"), &fv); k != Success || fv[1] != 2.5 {
		t.Errorf("RealArrayData(mixed) = %v (%v)", fv, k)
	}
	if k := r.RealArrayData(r.String("x"), &fv); k != UnexpectedType {
		t.Errorf("RealArrayData(string) = %v, want UNEXPECTED_TYPE", k)
	}
}

func TestNormalize(t *testing.T) {
	r := newTestRuntime(t)

	packed := r.ExpressionFromIntegerArray([]int64{1, 2}, r.Symbol("List"))
	wrapped := r.E(r.Symbol("f"), packed, r.Association(r.String("k"), packed))
	got := r.Normalize(wrapped)

	if !r.SameQ(got, wrapped) {
		t.Error("Normalize result is not SameQ to its input")
	}
	arg := r.Part(got, 1)
	if r.ExpressionType(arg) != TypeNormal {
		t.Errorf("normalized argument type = %v, want NORMAL", r.ExpressionType(arg))
	}
	inner := r.GetValueFromKey(r.Part(got, 2), r.String("k"))
	if r.ExpressionType(inner) != TypeNormal {
		t.Errorf("normalized association value type = %v, want NORMAL", r.ExpressionType(inner))
	}
	if r.ExpressionType(packed) != TypePackedArray {
		t.Error("Normalize changed its input")
	}
}

func TestExpressionFromNumericArray(t *testing.T) {
	r := newTestRuntime(t)

	na, err := numarray.FromData([]int32{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}

	e := r.ExpressionFromNumericArray(na, NullExpr)
	if r.ExpressionType(e) != TypeNumericArray {
		t.Fatalf("null head type = %v, want NUMERIC_ARRAY", r.ExpressionType(e))
	}
	if got := text(t, r, e); got != `NumericArray[{1, 2, 3}, "Integer32"]` {
		t.Errorf("numeric array = %s", got)
	}

	var back *numarray.NumericArray
	if k := r.NumericArrayData(e, &back); k != Success {
		t.Fatalf("NumericArrayData = %v", k)
	}
	if back.Type() != numarray.Bit32 || back.FlattenedLength() != 3 {
		t.Errorf("NumericArrayData = %s x %d", back.Type(), back.FlattenedLength())
	}
	if k := r.NumericArrayData(r.Integer(1), &back); k != UnexpectedType {
		t.Errorf("NumericArrayData(integer) = %v, want UNEXPECTED_TYPE", k)
	}

	list := r.ExpressionFromNumericArray(na, r.Symbol("List"))
	if r.ExpressionType(list) != TypeNormal || text(t, r, list) != "{1, 2, 3}" {
		t.Errorf("List head = %v %s", r.ExpressionType(list), text(t, r, list))
	}

	reals, err := numarray.FromData([]float64{1.5, 2.5})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.ExpressionFromNumericArray(reals, r.Symbol("List")); r.ExpressionType(got) != TypePackedArray {
		t.Errorf("rank 1 Real64 with List head = %v, want PACKED_ARRAY", r.ExpressionType(got))
	}
	if got := r.ExpressionFromNumericArray(nil, NullExpr); r.ErrorType(got) != MiscellaneousError {
		t.Errorf("nil array = %v, want MISCELLANEOUS_ERROR", r.ErrorType(got))
	}
}

func TestNumericArrayBuiltin(t *testing.T) {
	r := newTestRuntime(t)

	tests := []struct {
		src  string
		want string
	}{
		{`NumericArray[{{1, 2}, {3, 4}}, "Integer32"]`, `NumericArray[{{1, 2}, {3, 4}}, "Integer32"]`},
		{`NumericArray[{1, 2}]`, `NumericArray[{1., 2.}, "Real64"]`},
		{`NumericArray[{1.6, 300}, "UnsignedInteger8"]`, `NumericArray[{2, 255}, "UnsignedInteger8"]`},
		{`Length[NumericArray[{{1, 2}, {3, 4}, {5, 6}}, "Integer8"]]`, "3"},
	}
	for _, tt := range tests {
		if got := evalText(t, r, tt.src); got != tt.want {
			t.Errorf("%s = %s, want %s", tt.src, got, tt.want)
		}
	}

	msgs := collectMessages(t, r)
	if got := evalText(t, r, `NumericArray[{1, {2}}]`); got != `NumericArray[{1, {2}}]` {
		t.Errorf("ragged NumericArray = %s, want it unevaluated", got)
	}
	if got := evalText(t, r, `NumericArray[{1}, "Bogus"]`); got != `NumericArray[{1}, "Bogus"]` {
		t.Errorf("bad type = %s, want it unevaluated", got)
	}
	if len(*msgs) != 2 || (*msgs)[0] != "NumericArray::nconvss" || (*msgs)[1] != "NumericArray::type" {
		t.Errorf("messages = %v, want [NumericArray::nconvss NumericArray::type]", *msgs)
	}
}

func TestNumericArrayLibraryFollowsRuntime(t *testing.T) {
	r := New()
	lib := r.NumericArrays()
	if _, code := lib.New(numarray.Real64, 1, []int{3}); code != numarray.RuntimeNotStarted {
		t.Errorf("New before Start = %v, want RuntimeNotStarted", code)
	}
	if k := r.Start(Version1, SignedCodeModeLicense, "", nil); k != Success {
		t.Fatalf("Start = %v", k)
	}
	defer r.Close()
	a, code := lib.New(numarray.Real64, 2, []int{2, 3})
	if code != numarray.NoError {
		t.Fatalf("New = %v", code)
	}
	if lib.FlattenedLength(a) != 6 || lib.Rank(a) != 2 {
		t.Errorf("array shape = rank %d length %d", lib.Rank(a), lib.FlattenedLength(a))
	}
}
