package runtime

import (
	"math"
	"math/big"
	"math/cmplx"

	"github.com/cockroachdb/apd/v3"
)

// Number arithmetic for the evaluator. Exact numbers stay exact, anything
// touching a machine real becomes a machine real, and arbitrary-precision
// reals carry the smaller precision of their operands.

const defaultBigPrecision = 32

func isRealNumber(n *node) bool {
	return n.typ == TypeNumber && n.num != ComplexNumber
}

func isInexact(n *node) bool {
	switch n.num {
	case MachineReal, Overflow, Underflow, NotANumber:
		return true
	}
	return false
}

func ratOf(n *node) *big.Rat {
	if n.num == RationalNumber {
		return new(big.Rat).SetFrac(n.args[0].bigInt(), n.args[1].bigInt())
	}
	return new(big.Rat).SetInt(n.bigInt())
}

// floatOf converts any real number to float64, overflowing to infinity.
func floatOf(n *node) float64 {
	switch n.num {
	case MachineReal, Overflow, NotANumber, Underflow:
		return n.f
	case MachineInteger:
		return float64(n.i)
	case BigInteger:
		f, _ := new(big.Float).SetInt(n.big).Float64()
		return f
	case RationalNumber:
		f, _ := ratOf(n).Float64()
		return f
	case BigReal:
		f, _ := n.dec.Float64()
		return f
	}
	return math.NaN()
}

func bigPrecision(n *node) uint32 {
	if n.num == BigReal {
		if d := n.dec.NumDigits(); d > 0 {
			return uint32(d)
		}
	}
	return 0
}

// decimalOf converts an exact or big real number to a decimal.
func decimalOf(n *node, ctx *apd.Context) *apd.Decimal {
	switch n.num {
	case BigReal:
		return n.dec
	case RationalNumber:
		num, _, _ := apd.NewFromString(n.args[0].bigInt().String())
		den, _, _ := apd.NewFromString(n.args[1].bigInt().String())
		d := new(apd.Decimal)
		ctx.Quo(d, num, den)
		return d
	}
	d, _, _ := apd.NewFromString(n.bigInt().String())
	return d
}

func bigContext(a, b *node) *apd.Context {
	p := bigPrecision(a)
	if q := bigPrecision(b); p == 0 || (q != 0 && q < p) {
		p = q
	}
	if p == 0 {
		p = defaultBigPrecision
	}
	return apd.BaseContext.WithPrecision(p)
}

func complexParts(n *node) (*node, *node) {
	if n.num == ComplexNumber {
		return n.args[0], n.args[1]
	}
	return n, intNode(0)
}

func makeComplex(re, im *node) *node {
	if im.isZero() {
		return re
	}
	return complexNode(re, im)
}

func complexOf(n *node) complex128 {
	re, im := complexParts(n)
	return complex(floatOf(re), floatOf(im))
}

func fromComplex128(c complex128) *node {
	if imag(c) == 0 {
		return complexNode(realNode(real(c)), realNode(0))
	}
	return complexNode(realNode(real(c)), realNode(imag(c)))
}

func addNumbers(a, b *node) *node {
	if a.num == ComplexNumber || b.num == ComplexNumber {
		ar, ai := complexParts(a)
		br, bi := complexParts(b)
		return makeComplex(addNumbers(ar, br), addNumbers(ai, bi))
	}
	switch {
	case isInexact(a) || isInexact(b):
		return realNode(floatOf(a) + floatOf(b))
	case a.num == BigReal || b.num == BigReal:
		ctx := bigContext(a, b)
		d := new(apd.Decimal)
		ctx.Add(d, decimalOf(a, ctx), decimalOf(b, ctx))
		return bigRealNode(d)
	case a.num == MachineInteger && b.num == MachineInteger:
		s := a.i + b.i
		if (s > a.i) == (b.i > 0) {
			return intNode(s)
		}
	}
	return ratNode(new(big.Rat).Add(ratOf(a), ratOf(b)))
}

func mulNumbers(a, b *node) *node {
	if a.num == ComplexNumber || b.num == ComplexNumber {
		ar, ai := complexParts(a)
		br, bi := complexParts(b)
		re := addNumbers(mulNumbers(ar, br), negateNumber(mulNumbers(ai, bi)))
		im := addNumbers(mulNumbers(ar, bi), mulNumbers(ai, br))
		return makeComplex(re, im)
	}
	switch {
	case isInexact(a) || isInexact(b):
		return realNode(floatOf(a) * floatOf(b))
	case a.num == BigReal || b.num == BigReal:
		ctx := bigContext(a, b)
		d := new(apd.Decimal)
		ctx.Mul(d, decimalOf(a, ctx), decimalOf(b, ctx))
		return bigRealNode(d)
	}
	return ratNode(new(big.Rat).Mul(ratOf(a), ratOf(b)))
}

// isZeroNumber is true for exact and inexact zeros.
func isZeroNumber(n *node) bool {
	switch n.num {
	case MachineReal:
		return n.f == 0
	case BigReal:
		return n.dec.IsZero()
	case ComplexNumber:
		return isZeroNumber(n.args[0]) && isZeroNumber(n.args[1])
	}
	return n.isZero()
}

// reciprocal returns 1/n; ok is false for zero.
func reciprocal(n *node) (*node, bool) {
	if isZeroNumber(n) {
		return nil, false
	}
	switch {
	case n.num == ComplexNumber:
		re, im := n.args[0], n.args[1]
		norm := addNumbers(mulNumbers(re, re), mulNumbers(im, im))
		inv, ok := reciprocal(norm)
		if !ok {
			return nil, false
		}
		return makeComplex(mulNumbers(re, inv), mulNumbers(negateNumber(im), inv)), true
	case isInexact(n):
		return realNode(1 / n.f), true
	case n.num == BigReal:
		ctx := apd.BaseContext.WithPrecision(bigPrecision(n))
		d := new(apd.Decimal)
		ctx.Quo(d, apd.New(1, 0), n.dec)
		return bigRealNode(d), true
	}
	return ratNode(new(big.Rat).Inv(ratOf(n))), true
}

// maxExactPowerBits bounds the size of an exact integer power.
const maxExactPowerBits = 1 << 24

// exactPowerOverflows reports whether a^b, for an exact a and a machine
// integer b, would need more than maxExactPowerBits bits.
func exactPowerOverflows(a, b *node) bool {
	if !b.isInteger() || b.num != MachineInteger || isInexact(a) || a.num == BigReal {
		return false
	}
	e := b.i
	if e < 0 {
		if e == math.MinInt64 {
			return true
		}
		e = -e
	}
	bits := 0
	if a.num == ComplexNumber {
		for _, p := range a.args {
			bits += exactBits(p)
		}
	} else {
		bits = exactBits(a)
	}
	return bits > 0 && e > maxExactPowerBits/int64(bits)
}

// exactBits is a lower bound on log2 of the larger part of an exact real.
func exactBits(n *node) int {
	if isInexact(n) || n.num == BigReal {
		return 0
	}
	r := ratOf(n)
	return max(r.Num().BitLen(), r.Denom().BitLen()) - 1
}

// powerNumbers evaluates a^b for numbers. ok is false when the result is
// not a number: a zero base with a negative exponent, or an exact base with
// a non-integer exact exponent, which stays symbolic.
func powerNumbers(a, b *node) (*node, bool) {
	if b.isInteger() {
		if b.num == BigInteger {
			return nil, false
		}
		e := b.i
		base := a
		if e < 0 {
			inv, ok := reciprocal(a)
			if !ok {
				return nil, false
			}
			base, e = inv, -e
		}
		if isRealNumber(base) && !isInexact(base) && base.num != BigReal {
			r := ratOf(base)
			num := new(big.Int).Exp(r.Num(), big.NewInt(e), nil)
			den := new(big.Int).Exp(r.Denom(), big.NewInt(e), nil)
			return ratNode(new(big.Rat).SetFrac(num, den)), true
		}
		result := intNode(1)
		for e > 0 {
			if e&1 == 1 {
				result = mulNumbers(result, base)
			}
			base = mulNumbers(base, base)
			e >>= 1
		}
		return result, true
	}

	if b.isExact() && a.isExact() {
		return nil, false
	}
	if isZeroNumber(a) && isRealNumber(b) && floatOf(b) < 0 {
		return nil, false
	}
	if a.num == BigReal && isRealNumber(b) && !isInexact(b) && !a.dec.Negative {
		ctx := bigContext(a, b)
		d := new(apd.Decimal)
		if _, err := ctx.Pow(d, a.dec, decimalOf(b, ctx)); err == nil {
			return bigRealNode(d), true
		}
	}
	if isRealNumber(a) && isRealNumber(b) {
		x, y := floatOf(a), floatOf(b)
		if x >= 0 || y == math.Trunc(y) {
			return realNode(math.Pow(x, y)), true
		}
	}
	return fromComplex128(cmplx.Pow(complexOf(a), complexOf(b))), true
}

// compareNumbers orders two real numbers. ok is false for complex numbers
// and NaN.
func compareNumbers(a, b *node) (int, bool) {
	if !isRealNumber(a) || !isRealNumber(b) || a.num == NotANumber || b.num == NotANumber {
		return 0, false
	}
	switch {
	case isInexact(a) || isInexact(b):
		x, y := floatOf(a), floatOf(b)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case a.num == BigReal || b.num == BigReal:
		ctx := bigContext(a, b)
		return decimalOf(a, ctx).Cmp(decimalOf(b, ctx)), true
	}
	return ratOf(a).Cmp(ratOf(b)), true
}

// numbersEqual is numeric equality, so 1 == 1.0 and complex numbers
// compare by parts.
func numbersEqual(a, b *node) (bool, bool) {
	if a.num == ComplexNumber || b.num == ComplexNumber {
		ar, ai := complexParts(a)
		br, bi := complexParts(b)
		re, ok1 := compareNumbers(ar, br)
		im, ok2 := compareNumbers(ai, bi)
		return ok1 && ok2 && re == 0 && im == 0, ok1 && ok2
	}
	c, ok := compareNumbers(a, b)
	return c == 0, ok
}
