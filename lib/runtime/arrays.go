package runtime

import (
	"math/big"

	"github.com/x448/float16"

	"github.com/chazu/wlr/lib/numarray"
)

// ExpressionFromIntegerArray builds head[v1, v2, ...]. With head List the
// result is a packed array.
func (r *Runtime) ExpressionFromIntegerArray(data []int64, head Expr) Expr {
	h, fail, ok := r.operand(head)
	if !ok {
		return fail
	}
	if h.isSymbol(listSymbolName) {
		return r.alloc(packedIntNode(append([]int64(nil), data...)))
	}
	args := make([]*node, len(data))
	for i, v := range data {
		args[i] = intNode(v)
	}
	return r.alloc(normalNode(h, args))
}

// ExpressionFromRealArray is ExpressionFromIntegerArray for reals.
func (r *Runtime) ExpressionFromRealArray(data []float64, head Expr) Expr {
	h, fail, ok := r.operand(head)
	if !ok {
		return fail
	}
	if h.isSymbol(listSymbolName) {
		return r.alloc(packedRealNode(append([]float64(nil), data...)))
	}
	args := make([]*node, len(data))
	for i, v := range data {
		args[i] = realNode(v)
	}
	return r.alloc(normalNode(h, args))
}

// IntegerArrayData copies the elements of a packed integer array or of a
// List of machine integers.
func (r *Runtime) IntegerArrayData(e Expr, result *[]int64) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	switch {
	case n.typ == TypePackedArray && n.packed.ints != nil:
		*result = append([]int64(nil), n.packed.ints...)
		return Success
	case n.hasHead(listSymbolName):
		out := make([]int64, len(n.args))
		for i, a := range n.args {
			if a.typ != TypeNumber || a.num != MachineInteger {
				return UnexpectedType
			}
			out[i] = a.i
		}
		*result = out
		return Success
	}
	return UnexpectedType
}

// RealArrayData copies the elements of a packed array or of a List of
// machine numbers, converting integers to reals.
func (r *Runtime) RealArrayData(e Expr, result *[]float64) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	switch {
	case n.typ == TypePackedArray && n.packed.reals != nil:
		*result = append([]float64(nil), n.packed.reals...)
		return Success
	case n.typ == TypePackedArray:
		out := make([]float64, len(n.packed.ints))
		for i, v := range n.packed.ints {
			out[i] = float64(v)
		}
		*result = out
		return Success
	case n.hasHead(listSymbolName):
		out := make([]float64, len(n.args))
		for i, a := range n.args {
			switch {
			case a.typ == TypeNumber && a.num == MachineReal:
				out[i] = a.f
			case a.typ == TypeNumber && a.num == MachineInteger:
				out[i] = float64(a.i)
			default:
				return UnexpectedType
			}
		}
		*result = out
		return Success
	}
	return UnexpectedType
}

// Normalize unpacks every packed array inside e into List normal form. The
// result is SameQ to e.
func (r *Runtime) Normalize(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	return r.alloc(normalizeNode(n, r.heads.List))
}

func normalizeNode(n *node, list *node) *node {
	switch n.typ {
	case TypePackedArray:
		return n.unpacked(list)
	case TypeNormal:
		head := normalizeNode(n.head, list)
		changed := head != n.head
		args := make([]*node, len(n.args))
		for i, a := range n.args {
			args[i] = normalizeNode(a, list)
			changed = changed || args[i] != a
		}
		if !changed {
			return n
		}
		return normalNode(head, args)
	case TypeAssociation:
		a := newAssocData(n.assoc.length())
		changed := false
		for i, k := range n.assoc.keys {
			v := normalizeNode(n.assoc.vals[i], list)
			changed = changed || v != n.assoc.vals[i]
			a.put(k, v)
		}
		if !changed {
			return n
		}
		return assocNode(a)
	}
	return n
}

// ExpressionFromNumericArray copies na into an expression. A null head or
// NumericArray gives a NUMERIC_ARRAY expression; any other head gives nested
// head[...] expressions, packed when the head is List and na is a rank 1
// machine-number array.
func (r *Runtime) ExpressionFromNumericArray(na *numarray.NumericArray, head Expr) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if na == nil || na.Freed() {
		return r.Error(MiscellaneousError)
	}
	if head == NullExpr {
		return r.alloc(numericArrayNode(na.Clone()))
	}
	h, fail, ok := r.operand(head)
	if !ok {
		return fail
	}
	if h.isSymbol(r.heads.NumericArray.str) {
		return r.alloc(numericArrayNode(na.Clone()))
	}
	return r.alloc(expandNumericArray(na, h))
}

// NumericArrayData returns the array behind a NUMERIC_ARRAY expression and
// records a share for the caller, who should Disown it when done.
func (r *Runtime) NumericArrayData(e Expr, result **numarray.NumericArray) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	if n.typ != TypeNumericArray {
		return UnexpectedType
	}
	n.narr.Share()
	*result = n.narr
	return Success
}

func expandNumericArray(na *numarray.NumericArray, head *node) *node {
	dims := na.Dimensions()
	if len(dims) == 1 && head.isSymbol(listSymbolName) {
		switch d := na.Data().(type) {
		case []float64:
			return packedRealNode(append([]float64(nil), d...))
		case []int64:
			return packedIntNode(append([]int64(nil), d...))
		}
	}
	elems := numericElements(na)
	var build func(level, offset int) (*node, int)
	build = func(level, offset int) (*node, int) {
		args := make([]*node, dims[level])
		for i := range args {
			if level == len(dims)-1 {
				args[i] = elems[offset]
				offset++
				continue
			}
			args[i], offset = build(level+1, offset)
		}
		return normalNode(head, args), offset
	}
	out, _ := build(0, 0)
	return out
}

// numericElements boxes every element of na in row-major order.
func numericElements(na *numarray.NumericArray) []*node {
	var out []*node
	switch d := na.Data().(type) {
	case []int8:
		for _, v := range d {
			out = append(out, intNode(int64(v)))
		}
	case []uint8:
		for _, v := range d {
			out = append(out, intNode(int64(v)))
		}
	case []int16:
		for _, v := range d {
			out = append(out, intNode(int64(v)))
		}
	case []uint16:
		for _, v := range d {
			out = append(out, intNode(int64(v)))
		}
	case []int32:
		for _, v := range d {
			out = append(out, intNode(int64(v)))
		}
	case []uint32:
		for _, v := range d {
			out = append(out, intNode(int64(v)))
		}
	case []int64:
		for _, v := range d {
			out = append(out, intNode(v))
		}
	case []uint64:
		for _, v := range d {
			out = append(out, bigIntNode(new(big.Int).SetUint64(v)))
		}
	case []float16.Float16:
		for _, v := range d {
			out = append(out, realNode(float64(v.Float32())))
		}
	case []float32:
		for _, v := range d {
			out = append(out, realNode(float64(v)))
		}
	case []float64:
		for _, v := range d {
			out = append(out, realNode(v))
		}
	case []complex64:
		for _, v := range d {
			out = append(out, complexNode(realNode(float64(real(v))), realNode(float64(imag(v)))))
		}
	case []complex128:
		for _, v := range d {
			out = append(out, complexNode(realNode(real(v)), realNode(imag(v))))
		}
	}
	return out
}
