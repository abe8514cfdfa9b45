package runtime

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// machineDigits is the number of significant decimal digits above which a
// real literal without an explicit precision becomes arbitrary precision.
const machineDigits = 17

// Integer creates a machine integer.
func (r *Runtime) Integer(v int64) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	return r.alloc(intNode(v))
}

// Real creates a machine real. NaN becomes a NotANumber number and
// infinities become Overflow numbers.
func (r *Runtime) Real(v float64) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	return r.alloc(realNode(v))
}

// Complex combines two non-complex numbers. An exact zero imaginary part
// yields the real part.
func (r *Runtime) Complex(realPart, imaginaryPart Expr) Expr {
	ns, fail, ok := r.operands(realPart, imaginaryPart)
	if !ok {
		return fail
	}
	re, im := ns[0], ns[1]
	if re.typ != TypeNumber || im.typ != TypeNumber || re.num == ComplexNumber || im.num == ComplexNumber {
		return r.Error(UnexpectedType)
	}
	if im.isZero() {
		return r.alloc(re)
	}
	return r.alloc(complexNode(re, im))
}

// RealPart returns the real part of a number.
func (r *Runtime) RealPart(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	if n.typ != TypeNumber {
		return r.Error(UnexpectedType)
	}
	if n.num == ComplexNumber {
		return r.alloc(n.args[0])
	}
	return r.alloc(n)
}

// ImaginaryPart returns the imaginary part of a number; zero for reals.
func (r *Runtime) ImaginaryPart(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	if n.typ != TypeNumber {
		return r.Error(UnexpectedType)
	}
	if n.num == ComplexNumber {
		return r.alloc(n.args[1])
	}
	return r.alloc(intNode(0))
}

// Rational builds a reduced fraction from two integers.
func (r *Runtime) Rational(numerator, denominator Expr) Expr {
	ns, fail, ok := r.operands(numerator, denominator)
	if !ok {
		return fail
	}
	if !ns[0].isInteger() || !ns[1].isInteger() {
		return r.Error(UnexpectedType)
	}
	if ns[1].isZero() {
		return r.Error(MiscellaneousError)
	}
	return r.alloc(ratNode(new(big.Rat).SetFrac(ns[0].bigInt(), ns[1].bigInt())))
}

// Numerator returns the numerator of a rational, or an integer itself.
func (r *Runtime) Numerator(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	switch {
	case n.typ == TypeNumber && n.num == RationalNumber:
		return r.alloc(n.args[0])
	case n.isInteger():
		return r.alloc(n)
	}
	return r.Error(UnexpectedType)
}

// Denominator returns the denominator of a rational, or 1 for an integer.
func (r *Runtime) Denominator(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	switch {
	case n.typ == TypeNumber && n.num == RationalNumber:
		return r.alloc(n.args[1])
	case n.isInteger():
		return r.alloc(intNode(1))
	}
	return r.Error(UnexpectedType)
}

// NumberFromString parses a number in input syntax. Anything that is not a
// complete number literal is Malformed.
func (r *Runtime) NumberFromString(s string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	n, ok := parseNumber(strings.TrimSpace(s))
	if !ok {
		return r.Error(Malformed)
	}
	return r.alloc(n)
}

// StringFromNumber renders a number in input syntax.
func (r *Runtime) StringFromNumber(e Expr, result *string) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	if n.typ != TypeNumber {
		return UnexpectedType
	}
	*result = r.inputForm(n)
	return Success
}

// NumberQ reports whether e is a number.
func (r *Runtime) NumberQ(e Expr) bool {
	s, ok := r.lookup(e)
	return ok && s.n.typ == TypeNumber
}

// NumberType returns the sub-tag of a number expression. Callers must check
// NumberQ first; anything else reports NotANumber.
func (r *Runtime) NumberType(e Expr) NumberType {
	s, ok := r.lookup(e)
	if !ok || s.n.typ != TypeNumber {
		return NotANumber
	}
	return s.n.num
}

// IntegerConvert narrows any real number to a machine integer, rounding to
// the nearest integer. result is only written on Success.
func (r *Runtime) IntegerConvert(e Expr, result *int64) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	if n.typ != TypeNumber {
		return UnexpectedType
	}
	v, k := toMachineInteger(n)
	if k != Success {
		return k
	}
	*result = v
	return Success
}

// RealConvert narrows any real number to a machine real. result is only
// written on Success.
func (r *Runtime) RealConvert(e Expr, result *float64) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	if n.typ != TypeNumber {
		return UnexpectedType
	}
	v, k := toMachineReal(n)
	if k != Success {
		return k
	}
	*result = v
	return Success
}

// IntegerData reads a machine integer without conversion.
func (r *Runtime) IntegerData(e Expr, result *int64) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	if n.typ != TypeNumber || n.num != MachineInteger {
		return UnexpectedType
	}
	*result = n.i
	return Success
}

// RealData reads a machine real without conversion.
func (r *Runtime) RealData(e Expr, result *float64) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	if n.typ != TypeNumber || n.num != MachineReal {
		return UnexpectedType
	}
	*result = n.f
	return Success
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func toMachineInteger(n *node) (int64, ErrorKind) {
	switch n.num {
	case MachineInteger:
		return n.i, Success
	case BigInteger, Overflow, NotANumber:
		return 0, OutOfBounds
	case Underflow:
		return 0, Success
	case ComplexNumber:
		return 0, UnexpectedType
	}
	f, k := toMachineReal(n)
	if k != Success {
		return 0, k
	}
	f = math.RoundToEven(f)
	if f >= 9.223372036854775807e18 || f < -9.223372036854775808e18 {
		return 0, OutOfBounds
	}
	return int64(f), Success
}

func toMachineReal(n *node) (float64, ErrorKind) {
	switch n.num {
	case MachineInteger:
		return float64(n.i), Success
	case BigInteger:
		f, _ := new(big.Float).SetInt(n.big).Float64()
		if math.IsInf(f, 0) {
			return 0, OutOfBounds
		}
		return f, Success
	case MachineReal:
		return n.f, Success
	case BigReal:
		f, err := n.dec.Float64()
		if err != nil || math.IsInf(f, 0) {
			return 0, OutOfBounds
		}
		return f, Success
	case RationalNumber:
		f, _ := new(big.Rat).SetFrac(n.args[0].bigInt(), n.args[1].bigInt()).Float64()
		return f, Success
	case Underflow:
		return 0, Success
	case ComplexNumber:
		return 0, UnexpectedType
	}
	return 0, OutOfBounds
}

// ---------------------------------------------------------------------------
// Number literals
// ---------------------------------------------------------------------------

// parseNumber accepts [-]digits[.digits][`[precision]][*^[-]exponent] and
// [-]integer/integer. It reports false unless all of s is consumed.
func parseNumber(s string) (*node, bool) {
	if s == "" {
		return nil, false
	}
	if i := strings.IndexByte(s, '/'); i > 0 {
		num, ok1 := new(big.Int).SetString(strings.TrimSpace(s[:i]), 10)
		den, ok2 := new(big.Int).SetString(strings.TrimSpace(s[i+1:]), 10)
		if !ok1 || !ok2 || den.Sign() == 0 || strings.HasPrefix(strings.TrimSpace(s[i+1:]), "+") {
			return nil, false
		}
		return ratNode(new(big.Rat).SetFrac(num, den)), true
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	mantissa, rest := scanMantissa(s)
	if mantissa == "" || mantissa == "." {
		return nil, false
	}
	isReal := strings.Contains(mantissa, ".")

	precision := ""
	hasTick := false
	if strings.HasPrefix(rest, "`") {
		hasTick = true
		isReal = true
		rest = strings.TrimPrefix(rest[1:], "`")
		i := 0
		for i < len(rest) && (isDigit(rest[i]) || rest[i] == '.') {
			i++
		}
		precision, rest = rest[:i], rest[i:]
	}

	exponent := int64(0)
	if strings.HasPrefix(rest, "*^") {
		rest = rest[2:]
		i := 0
		if i < len(rest) && (rest[i] == '-' || rest[i] == '+') {
			i++
		}
		for i < len(rest) && isDigit(rest[i]) {
			i++
		}
		exp, err := strconv.ParseInt(rest[:i], 10, 32)
		if err != nil {
			return nil, false
		}
		if exp > apd.MaxExponent || exp < apd.MinExponent {
			return nil, false
		}
		exponent, rest = exp, rest[i:]
	}
	if rest != "" {
		return nil, false
	}

	sign := ""
	if neg {
		sign = "-"
	}

	if !isReal {
		v, ok := new(big.Int).SetString(sign+mantissa, 10)
		if !ok {
			return nil, false
		}
		if exponent == 0 {
			return bigIntNode(v), true
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(absInt64(exponent)), nil)
		if exponent > 0 {
			return bigIntNode(v.Mul(v, scale)), true
		}
		return ratNode(new(big.Rat).SetFrac(v, scale)), true
	}

	literal := sign + mantissa + "E" + strconv.FormatInt(exponent, 10)
	if precision != "" || (!hasTick && significantDigits(mantissa) > machineDigits) {
		d, _, err := apd.NewFromString(literal)
		if err != nil {
			return nil, false
		}
		if precision != "" {
			p, err := strconv.ParseFloat(precision, 64)
			if err != nil || p <= 0 {
				return nil, false
			}
			ctx := apd.BaseContext.WithPrecision(uint32(math.Ceil(p)))
			if _, err := ctx.Round(d, d); err != nil {
				return nil, false
			}
		}
		return bigRealNode(d), true
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err == nil && (f != 0 || significantDigits(mantissa) == 0) {
		return realNode(f), true
	}
	if err != nil && !math.IsInf(f, 0) {
		return nil, false
	}
	// Beyond machine range in either direction.
	d, _, err := apd.NewFromString(literal)
	if err != nil {
		return nil, false
	}
	return bigRealNode(d), true
}

// scanMantissa splits off the leading digits with at most one '.'.
func scanMantissa(s string) (string, string) {
	i := 0
	dot := false
	for i < len(s) {
		c := s[i]
		if isDigit(c) {
			i++
			continue
		}
		if c == '.' && !dot {
			dot = true
			i++
			continue
		}
		break
	}
	return s[:i], s[i:]
}

func significantDigits(mantissa string) int {
	digits := strings.TrimLeft(strings.Replace(mantissa, ".", "", 1), "0")
	return len(digits)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
