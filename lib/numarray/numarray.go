// Package numarray implements reference-counted numeric arrays: dense,
// row-major, typed buffers with a rank and dimensions. Arrays live outside
// the expression pools; ownership is tracked with a share count so an array
// can be handed to a host that manages its memory itself.
package numarray

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/x448/float16"
)

// Type is the element type of a numeric array. The values match the
// LibraryLink numericarray_data_t enumeration.
type Type int

const (
	Undef Type = iota
	Bit8
	UBit8
	Bit16
	UBit16
	Bit32
	UBit32
	Bit64
	UBit64
	Real32
	Real64
	ComplexReal32
	ComplexReal64
	Real16
	ComplexReal16
)

var typeNames = [...]string{
	"Undef", "Integer8", "UnsignedInteger8", "Integer16", "UnsignedInteger16",
	"Integer32", "UnsignedInteger32", "Integer64", "UnsignedInteger64",
	"Real32", "Real64", "ComplexReal32", "ComplexReal64", "Real16",
	"ComplexReal16",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps the Wolfram type name (e.g. "Integer32") back to a Type.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name && Type(i) != Undef {
			return Type(i), true
		}
	}
	return Undef, false
}

// Supported reports whether arrays of this type can be created.
func (t Type) Supported() bool {
	return t > Undef && t < ComplexReal16
}

// Size is the element width in bytes.
func (t Type) Size() int {
	switch t {
	case Bit8, UBit8:
		return 1
	case Bit16, UBit16, Real16:
		return 2
	case Bit32, UBit32, Real32, ComplexReal16:
		return 4
	case Bit64, UBit64, Real64, ComplexReal32:
		return 8
	case ComplexReal64:
		return 16
	}
	return 0
}

func (t Type) isInteger() bool { return t >= Bit8 && t <= UBit64 }
func (t Type) isSigned() bool  { return t == Bit8 || t == Bit16 || t == Bit32 || t == Bit64 }
func (t Type) isComplex() bool { return t == ComplexReal32 || t == ComplexReal64 }

// Code is a LibraryLink error code.
type Code int

const (
	NoError        Code = 0
	TypeError      Code = 1
	RankError      Code = 2
	DimensionError Code = 3
	NumericalError Code = 4
	MemoryError    Code = 5
	FunctionError  Code = 6
	VersionError   Code = 7

	// RuntimeNotStarted is returned when the owning runtime is not running.
	RuntimeNotStarted Code = 1000
)

func (c Code) Error() string {
	switch c {
	case NoError:
		return "no error"
	case TypeError:
		return "type error"
	case RankError:
		return "rank error"
	case DimensionError:
		return "dimension error"
	case NumericalError:
		return "numerical error"
	case MemoryError:
		return "memory error"
	case FunctionError:
		return "function error"
	case VersionError:
		return "version error"
	case RuntimeNotStarted:
		return "runtime not started"
	}
	return fmt.Sprintf("error code %d", int(c))
}

// NumericArray is a dense typed array. Its data slice is one of []int8,
// []uint8, []int16, []uint16, []int32, []uint32, []int64, []uint64,
// []float16.Float16, []float32, []float64, []complex64 or []complex128.
type NumericArray struct {
	typ    Type
	dims   []int
	data   any
	shares atomic.Int64
	freed  atomic.Bool
}

func newArray(t Type, dims []int) *NumericArray {
	n := 1
	for _, d := range dims {
		n *= d
	}
	a := &NumericArray{typ: t, dims: append([]int(nil), dims...)}
	switch t {
	case Bit8:
		a.data = make([]int8, n)
	case UBit8:
		a.data = make([]uint8, n)
	case Bit16:
		a.data = make([]int16, n)
	case UBit16:
		a.data = make([]uint16, n)
	case Bit32:
		a.data = make([]int32, n)
	case UBit32:
		a.data = make([]uint32, n)
	case Bit64:
		a.data = make([]int64, n)
	case UBit64:
		a.data = make([]uint64, n)
	case Real16:
		a.data = make([]float16.Float16, n)
	case Real32:
		a.data = make([]float32, n)
	case Real64:
		a.data = make([]float64, n)
	case ComplexReal32:
		a.data = make([]complex64, n)
	case ComplexReal64:
		a.data = make([]complex128, n)
	}
	return a
}

// FromData wraps a typed slice as a rank-1 array without copying. The
// slice type decides the element type.
func FromData(data any) (*NumericArray, error) {
	t := typeOf(data)
	if t == Undef {
		return nil, fmt.Errorf("numarray: unsupported data %T", data)
	}
	return &NumericArray{typ: t, dims: []int{lengthOf(data)}, data: data}, nil
}

// FromBytes rebuilds an array from its little-endian encoding.
func FromBytes(t Type, dims []int, raw []byte) (*NumericArray, error) {
	if !t.Supported() {
		return nil, fmt.Errorf("numarray: unsupported type %s", t)
	}
	if err := checkDims(len(dims), dims); err != NoError {
		return nil, fmt.Errorf("numarray: %w", err)
	}
	a := newArray(t, dims)
	if want := a.FlattenedLength() * t.Size(); len(raw) != want {
		return nil, fmt.Errorf("numarray: %d bytes for %s%v, want %d", len(raw), t, dims, want)
	}
	if _, err := binary.Decode(raw, binary.LittleEndian, a.data); err != nil {
		return nil, fmt.Errorf("numarray: decode: %w", err)
	}
	return a, nil
}

// Reshape returns a view of a with different dimensions but the same data.
func (a *NumericArray) Reshape(dims []int) (*NumericArray, Code) {
	if code := checkDims(len(dims), dims); code != NoError {
		return nil, code
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	if n != a.FlattenedLength() {
		return nil, DimensionError
	}
	return &NumericArray{typ: a.typ, dims: append([]int(nil), dims...), data: a.data}, NoError
}

func (a *NumericArray) Type() Type { return a.typ }

func (a *NumericArray) Rank() int { return len(a.dims) }

// Dimensions returns a copy of the dimension list.
func (a *NumericArray) Dimensions() []int { return append([]int(nil), a.dims...) }

func (a *NumericArray) FlattenedLength() int { return lengthOf(a.data) }

// Data returns the backing slice. Writes through it are visible to every
// holder of the array.
func (a *NumericArray) Data() any { return a.data }

// ByteSize is the size of the element buffer.
func (a *NumericArray) ByteSize() int64 {
	return int64(a.FlattenedLength() * a.typ.Size())
}

// RawBytes is the little-endian encoding of the elements.
func (a *NumericArray) RawBytes() []byte {
	buf, err := binary.Append(make([]byte, 0, a.ByteSize()), binary.LittleEndian, a.data)
	if err != nil {
		return nil
	}
	return buf
}

// Equal reports same type, same dimensions and bitwise equal elements.
func (a *NumericArray) Equal(b *NumericArray) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.typ != b.typ || len(a.dims) != len(b.dims) {
		return false
	}
	for i := range a.dims {
		if a.dims[i] != b.dims[i] {
			return false
		}
	}
	return string(a.RawBytes()) == string(b.RawBytes())
}

// ShareCount is the number of outstanding shares.
func (a *NumericArray) ShareCount() int { return int(a.shares.Load()) }

// Share records one more holder of the array.
func (a *NumericArray) Share() { a.shares.Add(1) }

// Freed reports whether Free has released the array.
func (a *NumericArray) Freed() bool { return a.freed.Load() }

// Clone copies elements into a fresh unshared array.
func (a *NumericArray) Clone() *NumericArray {
	c := newArray(a.typ, a.dims)
	switch src := a.data.(type) {
	case []int8:
		copy(c.data.([]int8), src)
	case []uint8:
		copy(c.data.([]uint8), src)
	case []int16:
		copy(c.data.([]int16), src)
	case []uint16:
		copy(c.data.([]uint16), src)
	case []int32:
		copy(c.data.([]int32), src)
	case []uint32:
		copy(c.data.([]uint32), src)
	case []int64:
		copy(c.data.([]int64), src)
	case []uint64:
		copy(c.data.([]uint64), src)
	case []float16.Float16:
		copy(c.data.([]float16.Float16), src)
	case []float32:
		copy(c.data.([]float32), src)
	case []float64:
		copy(c.data.([]float64), src)
	case []complex64:
		copy(c.data.([]complex64), src)
	case []complex128:
		copy(c.data.([]complex128), src)
	}
	return c
}

func typeOf(data any) Type {
	switch data.(type) {
	case []int8:
		return Bit8
	case []uint8:
		return UBit8
	case []int16:
		return Bit16
	case []uint16:
		return UBit16
	case []int32:
		return Bit32
	case []uint32:
		return UBit32
	case []int64:
		return Bit64
	case []uint64:
		return UBit64
	case []float16.Float16:
		return Real16
	case []float32:
		return Real32
	case []float64:
		return Real64
	case []complex64:
		return ComplexReal32
	case []complex128:
		return ComplexReal64
	}
	return Undef
}

func lengthOf(data any) int {
	switch d := data.(type) {
	case []int8:
		return len(d)
	case []uint8:
		return len(d)
	case []int16:
		return len(d)
	case []uint16:
		return len(d)
	case []int32:
		return len(d)
	case []uint32:
		return len(d)
	case []int64:
		return len(d)
	case []uint64:
		return len(d)
	case []float16.Float16:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []complex64:
		return len(d)
	case []complex128:
		return len(d)
	}
	return 0
}

// checkDims validates a rank/dimension pair.
func checkDims(rank int, dims []int) Code {
	if rank <= 0 {
		return RankError
	}
	if len(dims) != rank {
		return DimensionError
	}
	for _, d := range dims {
		if d < 0 {
			return DimensionError
		}
	}
	return NoError
}
