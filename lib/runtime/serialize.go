package runtime

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"

	"github.com/cockroachdb/apd/v3"

	"github.com/chazu/wlr/lib/numarray"
	"github.com/chazu/wlr/lib/wire"
)

// Serialize writes e to path in the binary expression format.
func (r *Runtime) Serialize(path string, e Expr) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	data, err := wire.Encode(toWire(n))
	if err != nil {
		log.Errorf("serializing: %s", err)
		return MiscellaneousError
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Errorf("writing %s: %s", path, err)
		return MiscellaneousError
	}
	return Success
}

// Deserialize reads an expression written by Serialize. A file that is not
// in the expression format, or is damaged, yields Malformed.
func (r *Runtime) Deserialize(path string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("reading %s: %s", path, err)
		return r.Error(MiscellaneousError)
	}
	w, err := wire.Decode(data)
	if err != nil {
		log.Warningf("decoding %s: %s", path, err)
		return r.Error(Malformed)
	}
	n, err := r.fromWire(w)
	if err != nil {
		log.Warningf("decoding %s: %s", path, err)
		return r.Error(Malformed)
	}
	return r.alloc(n)
}

// ExportExpressionJSON renders e as ExpressionJSON.
func (r *Runtime) ExportExpressionJSON(e Expr, result *string) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	data, err := wire.ToJSON(toWire(n))
	if err != nil {
		log.Errorf("exporting JSON: %s", err)
		return MiscellaneousError
	}
	*result = string(data)
	return Success
}

// ImportExpressionJSON parses ExpressionJSON text.
func (r *Runtime) ImportExpressionJSON(text string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	w, err := wire.FromJSON([]byte(text))
	if err != nil {
		log.Debugf("importing JSON: %s", err)
		return r.Error(Malformed)
	}
	n, err := r.fromWire(w)
	if err != nil {
		log.Debugf("importing JSON: %s", err)
		return r.Error(Malformed)
	}
	return r.alloc(n)
}

func toWire(n *node) *wire.Node {
	switch n.typ {
	case TypeString:
		return wire.TextNode(wire.KindString, n.str)
	case TypeSymbol:
		return wire.TextNode(wire.KindSymbol, n.str)
	case TypeNormal:
		return &wire.Node{Kind: wire.KindNormal, Head: toWire(n.head), Args: toWireList(n.args)}
	case TypeAssociation:
		kv := make([]*wire.Node, 0, 2*n.assoc.length())
		for i, k := range n.assoc.keys {
			kv = append(kv, toWire(k), toWire(n.assoc.vals[i]))
		}
		return &wire.Node{Kind: wire.KindAssociation, Args: kv}
	case TypePackedArray:
		if n.packed.ints != nil {
			return &wire.Node{Kind: wire.KindPackedInts, Ints: n.packed.ints}
		}
		bits := make([]uint64, len(n.packed.reals))
		for i, f := range n.packed.reals {
			bits[i] = math.Float64bits(f)
		}
		return &wire.Node{Kind: wire.KindPackedReals, Reals: bits}
	case TypeNumericArray:
		return &wire.Node{
			Kind: wire.KindNumericArray,
			Int:  int64(n.narr.Type()),
			Dims: n.narr.Dimensions(),
			Raw:  n.narr.RawBytes(),
		}
	}
	switch n.num {
	case MachineInteger:
		return &wire.Node{Kind: wire.KindInteger, Int: n.i}
	case BigInteger:
		return &wire.Node{Kind: wire.KindBigInteger, Text: n.big.String()}
	case BigReal:
		return &wire.Node{Kind: wire.KindBigReal, Text: n.dec.String()}
	case ComplexNumber:
		return &wire.Node{Kind: wire.KindComplex, Args: toWireList(n.args)}
	case RationalNumber:
		return &wire.Node{Kind: wire.KindRational, Args: toWireList(n.args)}
	}
	return &wire.Node{Kind: wire.KindReal, Bits: math.Float64bits(n.f)}
}

func toWireList(ns []*node) []*wire.Node {
	out := make([]*wire.Node, len(ns))
	for i, n := range ns {
		out[i] = toWire(n)
	}
	return out
}

var errBadWire = errors.New("invalid expression data")

func (r *Runtime) fromWire(w *wire.Node) (*node, error) {
	switch w.Kind {
	case wire.KindInteger:
		return intNode(w.Int), nil
	case wire.KindBigInteger:
		v, ok := new(big.Int).SetString(w.Text, 10)
		if !ok {
			return nil, fmt.Errorf("%w: integer %q", errBadWire, w.Text)
		}
		return bigIntNode(v), nil
	case wire.KindReal:
		return realNode(math.Float64frombits(w.Bits)), nil
	case wire.KindBigReal:
		if d, _, err := apd.NewFromString(w.Text); err == nil {
			return bigRealNode(d), nil
		}
		if n, ok := parseNumber(w.Text); ok && n.num == BigReal {
			return n, nil
		}
		return nil, fmt.Errorf("%w: real %q", errBadWire, w.Text)
	case wire.KindString:
		return stringNode(w.Str()), nil
	case wire.KindSymbol:
		full := resolveName(w.Str())
		if !validFullName(full) {
			return nil, fmt.Errorf("%w: symbol %q", errBadWire, w.Str())
		}
		return r.symbols.intern(full), nil
	case wire.KindPackedInts:
		return packedIntNode(append([]int64{}, w.Ints...)), nil
	case wire.KindPackedReals:
		reals := make([]float64, len(w.Reals))
		for i, bits := range w.Reals {
			reals[i] = math.Float64frombits(bits)
		}
		return packedRealNode(reals), nil
	case wire.KindNumericArray:
		na, err := numarray.FromBytes(numarray.Type(w.Int), w.Dims, w.Raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errBadWire, err)
		}
		na.Share()
		return numericArrayNode(na), nil
	}

	args := make([]*node, len(w.Args))
	for i, a := range w.Args {
		n, err := r.fromWire(a)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}
	switch w.Kind {
	case wire.KindNormal:
		if w.Head == nil {
			return nil, fmt.Errorf("%w: missing head", errBadWire)
		}
		head, err := r.fromWire(w.Head)
		if err != nil {
			return nil, err
		}
		return normalNode(head, args), nil
	case wire.KindAssociation:
		if len(args)%2 != 0 {
			return nil, fmt.Errorf("%w: odd association", errBadWire)
		}
		a := newAssocData(len(args) / 2)
		for i := 0; i < len(args); i += 2 {
			a.put(args[i], args[i+1])
		}
		return assocNode(a), nil
	case wire.KindComplex:
		if len(args) != 2 || !isRealNumber(args[0]) || !isRealNumber(args[1]) {
			return nil, fmt.Errorf("%w: complex", errBadWire)
		}
		return complexNode(args[0], args[1]), nil
	case wire.KindRational:
		if len(args) != 2 || !args[0].isInteger() || !args[1].isInteger() || args[1].isZero() {
			return nil, fmt.Errorf("%w: rational", errBadWire)
		}
		return ratNode(new(big.Rat).SetFrac(args[0].bigInt(), args[1].bigInt())), nil
	}
	return nil, fmt.Errorf("%w: kind %s", errBadWire, w.Kind)
}
