// Package runtime is an embeddable expression runtime. A host starts a
// Runtime, builds expressions through it, allocates them inside nested
// pools, evaluates them and releases the pools to free everything that was
// not detached. All operations report failure through error expressions or
// ErrorKind values rather than panics.
package runtime

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"

	"github.com/chazu/wlr/lib/numarray"
)

// ExprType is the type tag of an expression. It never changes after the
// expression is constructed.
type ExprType int

const (
	TypeNumber ExprType = iota
	TypeString
	TypeSymbol
	TypeNormal
	TypeError
	TypePackedArray
	TypeNumericArray
	TypeBooleanFunction
	TypeGraph
	TypeAssociation
	TypeDispatch
	TypeRegion
	TypeOther
)

var exprTypeNames = [...]string{
	"NUMBER", "STRING", "SYMBOL", "NORMAL", "ERROR", "PACKED_ARRAY",
	"NUMERIC_ARRAY", "BOOLEAN_FUNCTION", "GRAPH", "ASSOCIATION", "DISPATCH",
	"REGION", "OTHER",
}

func (t ExprType) String() string {
	if t >= 0 && int(t) < len(exprTypeNames) {
		return exprTypeNames[t]
	}
	return "OTHER"
}

// NumberType sub-tags expressions whose ExprType is TypeNumber.
type NumberType int

const (
	MachineInteger NumberType = iota
	BigInteger
	MachineReal
	BigReal
	ComplexNumber
	RationalNumber
	Overflow
	Underflow
	NotANumber
)

var numberTypeNames = [...]string{
	"MACHINE_INTEGER", "BIG_INTEGER", "MACHINE_REAL", "BIG_REAL", "COMPLEX",
	"RATIONAL", "OVERFLOW", "UNDERFLOW", "NOT_A_NUMBER",
}

func (t NumberType) String() string {
	if t >= 0 && int(t) < len(numberTypeNames) {
		return numberTypeNames[t]
	}
	return "NOT_A_NUMBER"
}

// node is the immutable payload behind a handle. Nodes are shared freely
// between handles, so nothing may mutate one after construction apart from
// the lazily cached hash.
type node struct {
	typ ExprType
	num NumberType

	i   int64        // MachineInteger
	f   float64      // MachineReal, Overflow, Underflow, NotANumber
	big *big.Int     // BigInteger
	dec *apd.Decimal // BigReal
	str string       // string contents or full symbol name

	// Normal expressions use head+args. Complex numbers keep [re, im] and
	// rationals [numerator, denominator] in args with a nil head.
	head *node
	args []*node

	assoc  *assocData
	packed *packedArray
	narr   *numarray.NumericArray
	err    ErrorKind

	hashed bool
	hash   uint64
}

// packedArray is a rank-1 machine-number vector stored unboxed.
type packedArray struct {
	ints  []int64
	reals []float64
}

func (p *packedArray) length() int {
	if p.ints != nil {
		return len(p.ints)
	}
	return len(p.reals)
}

// element boxes the i'th (0-based) entry.
func (p *packedArray) element(i int) *node {
	if p.ints != nil {
		return intNode(p.ints[i])
	}
	return realNode(p.reals[i])
}

// assocData keeps keys in insertion order with a hash index for lookup.
type assocData struct {
	keys  []*node
	vals  []*node
	index map[uint64][]int
}

func newAssocData(n int) *assocData {
	return &assocData{
		keys:  make([]*node, 0, n),
		vals:  make([]*node, 0, n),
		index: make(map[uint64][]int, n),
	}
}

// put inserts or overwrites. An existing key keeps its position.
func (a *assocData) put(k, v *node) {
	h := nodeHash(k)
	for _, pos := range a.index[h] {
		if sameNode(a.keys[pos], k) {
			a.vals[pos] = v
			return
		}
	}
	a.index[h] = append(a.index[h], len(a.keys))
	a.keys = append(a.keys, k)
	a.vals = append(a.vals, v)
}

func (a *assocData) get(k *node) (*node, bool) {
	for _, pos := range a.index[nodeHash(k)] {
		if sameNode(a.keys[pos], k) {
			return a.vals[pos], true
		}
	}
	return nil, false
}

func (a *assocData) length() int {
	return len(a.keys)
}

// ---------------------------------------------------------------------------
// Node constructors
// ---------------------------------------------------------------------------

func intNode(v int64) *node {
	return &node{typ: TypeNumber, num: MachineInteger, i: v}
}

// bigIntNode normalizes back to a machine integer when the value fits.
func bigIntNode(v *big.Int) *node {
	if v.IsInt64() {
		return intNode(v.Int64())
	}
	return &node{typ: TypeNumber, num: BigInteger, big: v}
}

func realNode(v float64) *node {
	switch {
	case v != v:
		return &node{typ: TypeNumber, num: NotANumber, f: v}
	case v > maxMachineReal || v < -maxMachineReal:
		return &node{typ: TypeNumber, num: Overflow, f: v}
	}
	return &node{typ: TypeNumber, num: MachineReal, f: v}
}

const maxMachineReal = 1.7976931348623157e308

func bigRealNode(d *apd.Decimal) *node {
	return &node{typ: TypeNumber, num: BigReal, dec: d}
}

func complexNode(re, im *node) *node {
	return &node{typ: TypeNumber, num: ComplexNumber, args: []*node{re, im}}
}

// ratNode reduces r and collapses integral values to integers.
func ratNode(r *big.Rat) *node {
	if r.IsInt() {
		return bigIntNode(new(big.Int).Set(r.Num()))
	}
	return &node{
		typ:  TypeNumber,
		num:  RationalNumber,
		args: []*node{bigIntNode(new(big.Int).Set(r.Num())), bigIntNode(new(big.Int).Set(r.Denom()))},
	}
}

func stringNode(s string) *node {
	return &node{typ: TypeString, str: s}
}

func symbolNode(fullName string) *node {
	return &node{typ: TypeSymbol, str: fullName}
}

func normalNode(head *node, args []*node) *node {
	return &node{typ: TypeNormal, head: head, args: args}
}

func errorNode(k ErrorKind) *node {
	return &node{typ: TypeError, err: k}
}

func packedIntNode(v []int64) *node {
	return &node{typ: TypePackedArray, packed: &packedArray{ints: v}}
}

func packedRealNode(v []float64) *node {
	return &node{typ: TypePackedArray, packed: &packedArray{reals: v}}
}

func assocNode(a *assocData) *node {
	return &node{typ: TypeAssociation, assoc: a}
}

func numericArrayNode(na *numarray.NumericArray) *node {
	return &node{typ: TypeNumericArray, narr: na}
}

// ---------------------------------------------------------------------------
// Node predicates
// ---------------------------------------------------------------------------

func (n *node) isSymbol(fullName string) bool {
	return n != nil && n.typ == TypeSymbol && n.str == fullName
}

// hasHead reports whether n is a normal expression with the given head symbol.
func (n *node) hasHead(fullName string) bool {
	return n != nil && n.typ == TypeNormal && n.head.isSymbol(fullName)
}

func (n *node) isInteger() bool {
	return n.typ == TypeNumber && (n.num == MachineInteger || n.num == BigInteger)
}

// isExact reports integer or rational numbers.
func (n *node) isExact() bool {
	return n.isInteger() || (n.typ == TypeNumber && n.num == RationalNumber)
}

func (n *node) isZero() bool {
	switch {
	case n.typ != TypeNumber:
		return false
	case n.num == MachineInteger:
		return n.i == 0
	case n.num == BigInteger:
		return n.big.Sign() == 0
	}
	return false
}

// bigInt returns the integer value of an integer node.
func (n *node) bigInt() *big.Int {
	if n.num == BigInteger {
		return n.big
	}
	return big.NewInt(n.i)
}

// length is the number of parts visible through Part.
func (n *node) length() int {
	switch n.typ {
	case TypeNormal:
		return len(n.args)
	case TypeAssociation:
		return n.assoc.length()
	case TypePackedArray:
		return n.packed.length()
	}
	return 0
}

// partAt returns the 1-based i'th part with 0 meaning the head.
// Negative indices count from the end.
func (n *node) partAt(i int, heads *symbolHeads) (*node, bool) {
	l := n.length()
	if i < 0 {
		i = l + i + 1
		if i <= 0 {
			return nil, false
		}
	}
	if i == 0 {
		return n.headNode(heads), true
	}
	if i > l {
		return nil, false
	}
	switch n.typ {
	case TypeNormal:
		return n.args[i-1], true
	case TypeAssociation:
		return n.assoc.vals[i-1], true
	case TypePackedArray:
		return n.packed.element(i - 1), true
	}
	return nil, false
}

// headNode returns the head a normal expression carries, or the symbol that
// names an atom's type.
func (n *node) headNode(h *symbolHeads) *node {
	switch n.typ {
	case TypeNormal:
		return n.head
	case TypeString:
		return h.String
	case TypeSymbol:
		return h.Symbol
	case TypePackedArray:
		return h.List
	case TypeAssociation:
		return h.Association
	case TypeNumericArray:
		return h.NumericArray
	case TypeNumber:
		switch n.num {
		case MachineInteger, BigInteger:
			return h.Integer
		case ComplexNumber:
			return h.Complex
		case RationalNumber:
			return h.Rational
		}
		return h.Real
	}
	return h.Null
}

// unpacked converts a packed array to a List normal form. Other nodes are
// returned unchanged.
func (n *node) unpacked(list *node) *node {
	if n.typ != TypePackedArray {
		return n
	}
	l := n.packed.length()
	args := make([]*node, l)
	for i := 0; i < l; i++ {
		args[i] = n.packed.element(i)
	}
	return normalNode(list, args)
}

// approxSize is a rough byte count used for MemoryInUse accounting.
func (n *node) approxSize() int64 {
	const base = 96
	switch n.typ {
	case TypeString, TypeSymbol:
		return base + int64(len(n.str))
	case TypeNormal:
		return base + int64(8*len(n.args))
	case TypePackedArray:
		return base + int64(8*n.packed.length())
	case TypeAssociation:
		return base + int64(24*n.assoc.length())
	case TypeNumericArray:
		return base + n.narr.ByteSize()
	}
	if n.num == BigInteger {
		return base + int64(len(n.big.Bits())*8)
	}
	return base
}
