package numarray

import (
	"math"
	"testing"

	"github.com/x448/float16"
)

func TestNewAndAccessors(t *testing.T) {
	lib := NewLibrary(nil)

	a, code := lib.New(Real64, 2, []int{2, 3})
	if code != NoError {
		t.Fatalf("New = %v, want NoError", code)
	}
	if lib.Rank(a) != 2 {
		t.Errorf("Rank = %d, want 2", lib.Rank(a))
	}
	if lib.FlattenedLength(a) != 6 {
		t.Errorf("FlattenedLength = %d, want 6", lib.FlattenedLength(a))
	}
	if dims := lib.Dimensions(a); len(dims) != 2 || dims[0] != 2 || dims[1] != 3 {
		t.Errorf("Dimensions = %v, want [2 3]", dims)
	}
	if lib.Type(a) != Real64 {
		t.Errorf("Type = %v, want Real64", lib.Type(a))
	}
	if lib.ShareCount(a) != 1 {
		t.Errorf("ShareCount = %d, want 1", lib.ShareCount(a))
	}
	data, ok := lib.Data(a).([]float64)
	if !ok || len(data) != 6 {
		t.Fatalf("Data = %T len %d, want []float64 len 6", lib.Data(a), len(data))
	}
}

func TestNewRejectsBadShapes(t *testing.T) {
	lib := NewLibrary(nil)
	tests := []struct {
		name string
		typ  Type
		rank int
		dims []int
		want Code
	}{
		{"undef type", Undef, 1, []int{3}, TypeError},
		{"complex real16", ComplexReal16, 1, []int{3}, TypeError},
		{"zero rank", Bit8, 0, nil, RankError},
		{"rank mismatch", Bit8, 2, []int{3}, DimensionError},
		{"negative dim", Bit8, 1, []int{-1}, DimensionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, code := lib.New(tt.typ, tt.rank, tt.dims); code != tt.want {
				t.Errorf("New = %v, want %v", code, tt.want)
			}
		})
	}
}

func TestNotReady(t *testing.T) {
	lib := NewLibrary(func() bool { return false })
	if _, code := lib.New(Bit32, 1, []int{1}); code != RuntimeNotStarted {
		t.Errorf("New = %v, want RuntimeNotStarted", code)
	}
	if int(RuntimeNotStarted) != 1000 {
		t.Errorf("RuntimeNotStarted = %d, want 1000", int(RuntimeNotStarted))
	}
}

func TestShareCounting(t *testing.T) {
	lib := NewLibrary(nil)
	a, _ := lib.New(Bit32, 1, []int{4})
	a.Share()
	a.Share()
	if lib.ShareCount(a) != 3 {
		t.Fatalf("ShareCount = %d, want 3", lib.ShareCount(a))
	}

	lib.Free(a)
	if a.Freed() {
		t.Error("Free released a shared array")
	}

	lib.Disown(a)
	if lib.ShareCount(a) != 2 {
		t.Errorf("ShareCount after Disown = %d, want 2", lib.ShareCount(a))
	}
	lib.DisownAll(a)
	if lib.ShareCount(a) != 0 {
		t.Errorf("ShareCount after DisownAll = %d, want 0", lib.ShareCount(a))
	}

	lib.Free(a)
	if !a.Freed() {
		t.Error("Free did not release an unshared array")
	}
	if lib.Data(a) != nil {
		t.Error("Data of a freed array is not nil")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	lib := NewLibrary(nil)
	a, _ := lib.New(Bit64, 1, []int{3})
	copy(a.Data().([]int64), []int64{1, 2, 3})

	c, code := lib.Clone(a)
	if code != NoError {
		t.Fatalf("Clone = %v", code)
	}
	c.Data().([]int64)[0] = 99
	if a.Data().([]int64)[0] != 1 {
		t.Error("writing the clone changed the original")
	}
	if !a.Equal(a.Clone()) {
		t.Error("array not Equal to its clone")
	}
	if a.Equal(c) {
		t.Error("arrays with different elements compare Equal")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	a, _ := FromData([]float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(-2)})
	b, err := FromBytes(a.Type(), a.Dimensions(), a.RawBytes())
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if !a.Equal(b) {
		t.Error("round trip through RawBytes lost data")
	}
	if _, err := FromBytes(Bit32, []int{2}, []byte{1, 2, 3}); err == nil {
		t.Error("FromBytes accepted a short buffer")
	}
}

func TestConvertType(t *testing.T) {
	lib := NewLibrary(nil)

	reals, _ := FromData([]float64{1.0, 2.4, -3.6})
	tests := []struct {
		name   string
		method ConvertMethod
		want   []int8
		code   Code
	}{
		{"check fails on fraction", Check, nil, NumericalError},
		{"coerce truncates", Coerce, []int8{1, 2, -3}, NoError},
		{"round", Round, []int8{1, 2, -4}, NoError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := lib.ConvertType(reals, Bit8, tt.method, 0)
			if code != tt.code {
				t.Fatalf("ConvertType = %v, want %v", code, tt.code)
			}
			if tt.want == nil {
				return
			}
			got := out.Data().([]int8)
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("element %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestConvertCheckTolerance(t *testing.T) {
	a, _ := FromData([]float64{2.0000001})
	if _, code := Convert(a, Bit32, Check, 0); code != NumericalError {
		t.Errorf("Check without tolerance = %v, want NumericalError", code)
	}
	out, code := Convert(a, Bit32, Check, 1e-3)
	if code != NoError {
		t.Fatalf("Check with tolerance = %v", code)
	}
	if got := out.Data().([]int32)[0]; got != 2 {
		t.Errorf("element = %d, want 2", got)
	}
}

func TestConvertClipAndWrap(t *testing.T) {
	a, _ := FromData([]int32{300, -5})

	if _, code := Convert(a, UBit8, Check, 0); code != NumericalError {
		t.Errorf("Check out of range = %v, want NumericalError", code)
	}

	clipped, code := Convert(a, UBit8, ClipAndCheck, 0)
	if code != NoError {
		t.Fatalf("ClipAndCheck = %v", code)
	}
	if got := clipped.Data().([]uint8); got[0] != 255 || got[1] != 0 {
		t.Errorf("ClipAndCheck = %v, want [255 0]", got)
	}

	wrapped, code := Convert(a, UBit8, Coerce, 0)
	if code != NoError {
		t.Fatalf("Coerce = %v", code)
	}
	if got := wrapped.Data().([]uint8); got[0] != 44 || got[1] != 251 {
		t.Errorf("Coerce = %v, want [44 251]", got)
	}
}

func TestConvertScale(t *testing.T) {
	a, _ := FromData([]uint8{0, 255})
	out, code := Convert(a, Real32, Scale, 0)
	if code != NoError {
		t.Fatalf("Scale = %v", code)
	}
	if got := out.Data().([]float32); got[0] != 0 || got[1] != 1 {
		t.Errorf("Scale to real = %v, want [0 1]", got)
	}

	back, code := Convert(out, UBit8, Scale, 0)
	if code != NoError {
		t.Fatalf("Scale back = %v", code)
	}
	if got := back.Data().([]uint8); got[1] != 255 {
		t.Errorf("Scale back = %v, want [0 255]", got)
	}
}

func TestConvertRealRanges(t *testing.T) {
	a, _ := FromData([]float64{1e6})
	if _, code := Convert(a, Real16, Check, 0); code != NumericalError {
		t.Errorf("Real16 overflow = %v, want NumericalError", code)
	}
	out, code := Convert(a, Real16, ClipAndCheck, 0)
	if code != NoError {
		t.Fatalf("ClipAndCheck Real16 = %v", code)
	}
	if got := out.Data().([]float16.Float16)[0].Float32(); got != 65504 {
		t.Errorf("clipped Real16 = %v, want 65504", got)
	}

	z, _ := FromData([]complex128{complex(1, 0.5)})
	if _, code := Convert(z, Real64, Check, 0); code != NumericalError {
		t.Errorf("dropping imaginary part under Check = %v, want NumericalError", code)
	}
	re, code := Convert(z, Real64, Coerce, 0)
	if code != NoError || re.Data().([]float64)[0] != 1 {
		t.Errorf("Coerce complex to real = %v %v", re, code)
	}

	nan, _ := FromData([]float64{math.NaN()})
	if _, code := Convert(nan, Bit64, Coerce, 0); code != NumericalError {
		t.Errorf("NaN to integer = %v, want NumericalError", code)
	}
}

func TestParseType(t *testing.T) {
	for _, ty := range []Type{Bit8, UBit64, Real16, ComplexReal64} {
		got, ok := ParseType(ty.String())
		if !ok || got != ty {
			t.Errorf("ParseType(%q) = %v, %t", ty.String(), got, ok)
		}
	}
	if _, ok := ParseType("Undef"); ok {
		t.Error("ParseType accepted Undef")
	}
}
