package numarray

import (
	"math"

	"github.com/x448/float16"
)

// ConvertMethod selects how ConvertType treats values that do not fit the
// target type exactly. The values match numericarray_convert_method_t.
type ConvertMethod int

const (
	// Check fails unless every value converts without loss (within the
	// tolerance for reals).
	Check ConvertMethod = iota + 1
	ClipAndCheck
	// Coerce truncates reals toward zero and wraps integers.
	Coerce
	ClipAndCoerce
	// Round rounds reals to the nearest integer.
	Round
	ClipAndRound
	// Scale maps integers onto [-1, 1] or [0, 1] and back.
	Scale
	ClipAndScale
)

func (m ConvertMethod) valid() bool { return m >= Check && m <= ClipAndScale }

// clip methods clamp out-of-range values to the target range first.
func (m ConvertMethod) clip() bool { return m.valid() && (m-Check)%2 == 1 }

func (m ConvertMethod) base() ConvertMethod {
	if m.clip() {
		return m - 1
	}
	return m
}

type scalarKind int

const (
	signedKind scalarKind = iota
	unsignedKind
	floatKind
)

// scalar is one element read out of an array in its widest form.
type scalar struct {
	kind scalarKind
	i    int64
	u    uint64
	c    complex128
}

// Convert is ConvertType without the runtime check and without setting a
// share. Tolerance applies to Check (distance to the nearest integer) and
// to dropping imaginary parts.
func Convert(a *NumericArray, t Type, method ConvertMethod, tolerance float64) (*NumericArray, Code) {
	if !t.Supported() {
		return nil, TypeError
	}
	if !method.valid() {
		return nil, FunctionError
	}
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = 0
	}
	out := newArray(t, a.dims)
	n := a.FlattenedLength()
	for i := 0; i < n; i++ {
		s := a.at(i)
		if t.isInteger() {
			bits, code := toInteger(s, t, method, tolerance)
			if code != NoError {
				return nil, code
			}
			out.setBits(i, bits)
			continue
		}
		c, code := toFloat(s, a.typ, t, method, tolerance)
		if code != NoError {
			return nil, code
		}
		out.setComplex(i, c)
	}
	return out, NoError
}

func intBounds(t Type) (int64, uint64) {
	switch t {
	case Bit8:
		return math.MinInt8, math.MaxInt8
	case UBit8:
		return 0, math.MaxUint8
	case Bit16:
		return math.MinInt16, math.MaxInt16
	case UBit16:
		return 0, math.MaxUint16
	case Bit32:
		return math.MinInt32, math.MaxInt32
	case UBit32:
		return 0, math.MaxUint32
	case Bit64:
		return math.MinInt64, math.MaxInt64
	}
	return 0, math.MaxUint64
}

func floatBound(t Type) float64 {
	switch t {
	case Real16:
		return 65504
	case Real32, ComplexReal32:
		return math.MaxFloat32
	}
	return math.MaxFloat64
}

func toInteger(s scalar, t Type, m ConvertMethod, tol float64) (uint64, Code) {
	lo, hi := intBounds(t)
	base, clip := m.base(), m.clip()

	switch s.kind {
	case signedKind:
		v := s.i
		if v >= lo && (v < 0 || uint64(v) <= hi) {
			return uint64(v), NoError
		}
		switch {
		case clip && v < lo:
			return uint64(lo), NoError
		case clip:
			return hi, NoError
		case base == Coerce:
			return uint64(v), NoError
		}
		return 0, NumericalError
	case unsignedKind:
		if s.u <= hi {
			return s.u, NoError
		}
		if clip {
			return hi, NoError
		}
		if base == Coerce {
			return s.u, NoError
		}
		return 0, NumericalError
	}

	re, im := real(s.c), imag(s.c)
	if math.IsNaN(re) || math.IsNaN(im) {
		return 0, NumericalError
	}
	if im != 0 && base != Coerce && math.Abs(im) > tol {
		return 0, NumericalError
	}

	var v float64
	switch base {
	case Check:
		v = math.Round(re)
		if math.Abs(re-v) > tol {
			return 0, NumericalError
		}
	case Coerce:
		v = math.Trunc(re)
	case Round:
		v = math.Round(re)
	case Scale:
		low := 0.0
		if t.isSigned() {
			low = -1
		}
		if re < low || re > 1 {
			if !clip {
				return 0, NumericalError
			}
			re = math.Max(low, math.Min(1, re))
		}
		if re < 0 {
			v = math.Round(re * -float64(lo))
		} else {
			v = math.Round(re * float64(hi))
		}
	}

	if v < float64(lo) || v > float64(hi) {
		if !clip {
			return 0, NumericalError
		}
		if v < float64(lo) {
			return uint64(lo), NoError
		}
		return hi, NoError
	}
	if t.isSigned() {
		if v >= 9.223372036854775807e18 {
			return math.MaxInt64, NoError
		}
		return uint64(int64(v)), NoError
	}
	if v >= 1.8446744073709552e19 {
		return math.MaxUint64, NoError
	}
	return uint64(v), NoError
}

func toFloat(s scalar, from, t Type, m ConvertMethod, tol float64) (complex128, Code) {
	base, clip := m.base(), m.clip()

	var c complex128
	switch s.kind {
	case signedKind:
		c = complex(float64(s.i), 0)
	case unsignedKind:
		c = complex(float64(s.u), 0)
	default:
		c = s.c
	}
	if base == Scale && s.kind != floatKind {
		_, hi := intBounds(from)
		c /= complex(float64(hi), 0)
	}

	if !t.isComplex() && imag(c) != 0 {
		if base != Coerce && math.Abs(imag(c)) > tol {
			return 0, NumericalError
		}
		c = complex(real(c), 0)
	}

	bound := floatBound(t)
	fit := func(p float64) (float64, Code) {
		if math.IsNaN(p) || math.IsInf(p, 0) || math.Abs(p) <= bound {
			return p, NoError
		}
		if !clip {
			return 0, NumericalError
		}
		return math.Copysign(bound, p), NoError
	}
	re, code := fit(real(c))
	if code != NoError {
		return 0, code
	}
	im, code := fit(imag(c))
	if code != NoError {
		return 0, code
	}
	return complex(re, im), NoError
}

func (a *NumericArray) at(i int) scalar {
	switch d := a.data.(type) {
	case []int8:
		return scalar{kind: signedKind, i: int64(d[i])}
	case []uint8:
		return scalar{kind: unsignedKind, u: uint64(d[i])}
	case []int16:
		return scalar{kind: signedKind, i: int64(d[i])}
	case []uint16:
		return scalar{kind: unsignedKind, u: uint64(d[i])}
	case []int32:
		return scalar{kind: signedKind, i: int64(d[i])}
	case []uint32:
		return scalar{kind: unsignedKind, u: uint64(d[i])}
	case []int64:
		return scalar{kind: signedKind, i: d[i]}
	case []uint64:
		return scalar{kind: unsignedKind, u: d[i]}
	case []float16.Float16:
		return scalar{kind: floatKind, c: complex(float64(d[i].Float32()), 0)}
	case []float32:
		return scalar{kind: floatKind, c: complex(float64(d[i]), 0)}
	case []float64:
		return scalar{kind: floatKind, c: complex(d[i], 0)}
	case []complex64:
		return scalar{kind: floatKind, c: complex128(d[i])}
	case []complex128:
		return scalar{kind: floatKind, c: d[i]}
	}
	return scalar{}
}

// setBits stores an integer, truncating to the element width.
func (a *NumericArray) setBits(i int, bits uint64) {
	switch d := a.data.(type) {
	case []int8:
		d[i] = int8(bits)
	case []uint8:
		d[i] = uint8(bits)
	case []int16:
		d[i] = int16(bits)
	case []uint16:
		d[i] = uint16(bits)
	case []int32:
		d[i] = int32(bits)
	case []uint32:
		d[i] = uint32(bits)
	case []int64:
		d[i] = int64(bits)
	case []uint64:
		d[i] = bits
	}
}

func (a *NumericArray) setComplex(i int, c complex128) {
	switch d := a.data.(type) {
	case []float16.Float16:
		d[i] = float16.Fromfloat32(float32(real(c)))
	case []float32:
		d[i] = float32(real(c))
	case []float64:
		d[i] = real(c)
	case []complex64:
		d[i] = complex64(c)
	case []complex128:
		d[i] = c
	}
}
