package runtime

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/chazu/wlr/lib/numarray"
)

// Operator precedences used by the formatter and the parser.
const (
	precCompound   = 10
	precSet        = 40
	precRule       = 120
	precOr         = 215
	precAnd        = 220
	precNot        = 230
	precCompare    = 290
	precPlus       = 310
	precTimes      = 400
	precMinus      = 480
	precPower      = 590
	precMessage    = 750
	precAtom       = 1000
	precComplexSum = precPlus
)

type infixOp struct {
	text string
	prec int
}

var infixOps = map[string]infixOp{
	systemContext + "CompoundExpression": {"; ", precCompound},
	systemContext + "Set":                {" = ", precSet},
	systemContext + "SetDelayed":         {" := ", precSet},
	systemContext + "Rule":               {" -> ", precRule},
	systemContext + "RuleDelayed":        {" :> ", precRule},
	systemContext + "Or":                 {" || ", precOr},
	systemContext + "And":                {" && ", precAnd},
	systemContext + "Equal":              {" == ", precCompare},
	systemContext + "Unequal":            {" != ", precCompare},
	systemContext + "Less":               {" < ", precCompare},
	systemContext + "Greater":            {" > ", precCompare},
	systemContext + "LessEqual":          {" <= ", precCompare},
	systemContext + "GreaterEqual":       {" >= ", precCompare},
	systemContext + "SameQ":              {" === ", precCompare},
	systemContext + "UnsameQ":            {" =!= ", precCompare},
	systemContext + "Plus":               {" + ", precPlus},
	systemContext + "Times":              {"*", precTimes},
	systemContext + "Power":              {"^", precPower},
}

// ToString renders e in input syntax.
func (r *Runtime) ToString(e Expr, result *string) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	*result = formatNode(n)
	return Success
}

func (r *Runtime) inputForm(n *node) string {
	return formatNode(n)
}

func formatNode(n *node) string {
	var b strings.Builder
	writeExpr(&b, n, 0)
	return b.String()
}

func writeExpr(b *strings.Builder, n *node, minPrec int) {
	if precedence(n) < minPrec {
		b.WriteByte('(')
		writeNode(b, n)
		b.WriteByte(')')
		return
	}
	writeNode(b, n)
}

func precedence(n *node) int {
	switch n.typ {
	case TypeNumber:
		switch n.num {
		case RationalNumber:
			return precTimes
		case ComplexNumber:
			if n.args[0].isZero() {
				return precTimes
			}
			return precComplexSum
		}
		if negativeNumber(n) {
			return precMinus
		}
	case TypeNormal:
		if n.head.typ != TypeSymbol {
			return precAtom
		}
		if op, ok := infixOps[n.head.str]; ok && infixArity(n) {
			return op.prec
		}
		switch {
		case n.hasHead(systemContext+"Not") && len(n.args) == 1:
			return precNot
		case n.hasHead(systemContext+"MessageName") && len(n.args) == 2:
			return precMessage
		}
	}
	return precAtom
}

// infixArity reports whether a normal expression has enough arguments to
// print with its operator.
func infixArity(n *node) bool {
	switch n.head.str {
	case systemContext + "Rule", systemContext + "RuleDelayed", systemContext + "Power",
		systemContext + "Set", systemContext + "SetDelayed":
		return len(n.args) == 2
	case systemContext + "CompoundExpression":
		return len(n.args) >= 2
	}
	return len(n.args) >= 2
}

func negativeNumber(n *node) bool {
	switch n.num {
	case MachineInteger:
		return n.i < 0
	case BigInteger:
		return n.big.Sign() < 0
	case MachineReal, Overflow:
		return n.f < 0 || (n.f == 0 && math.Signbit(n.f))
	case BigReal:
		return n.dec.Negative
	case RationalNumber:
		return negativeNumber(n.args[0])
	}
	return false
}

func writeNode(b *strings.Builder, n *node) {
	switch n.typ {
	case TypeNumber:
		writeNumber(b, n)
	case TypeString:
		writeQuoted(b, n.str)
	case TypeSymbol:
		b.WriteString(shortName(n.str))
	case TypeNormal:
		writeNormal(b, n)
	case TypePackedArray:
		b.WriteByte('{')
		for i := 0; i < n.packed.length(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, n.packed.element(i), 0)
		}
		b.WriteByte('}')
	case TypeAssociation:
		b.WriteString("<|")
		for i, k := range n.assoc.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeExpr(b, k, precRule+1)
			b.WriteString(" -> ")
			writeExpr(b, n.assoc.vals[i], precRule)
		}
		b.WriteString("|>")
	case TypeNumericArray:
		writeNumericArray(b, n.narr)
	case TypeError:
		b.WriteString(`Failure["`)
		b.WriteString(n.err.String())
		b.WriteString(`", <||>]`)
	default:
		b.WriteString("$Failed")
	}
}

func writeNormal(b *strings.Builder, n *node) {
	if n.head.typ == TypeSymbol {
		name := n.head.str
		switch {
		case name == listSymbolName:
			b.WriteByte('{')
			writeArgs(b, n.args)
			b.WriteByte('}')
			return
		case name == systemContext+"Plus" && len(n.args) >= 2:
			writePlus(b, n.args)
			return
		case name == systemContext+"Times" && len(n.args) >= 2:
			writeTimes(b, n.args)
			return
		case name == systemContext+"Not" && len(n.args) == 1:
			b.WriteByte('!')
			writeExpr(b, n.args[0], precNot+1)
			return
		case name == systemContext+"MessageName" && len(n.args) == 2 && n.args[1].typ == TypeString:
			writeExpr(b, n.args[0], precMessage+1)
			b.WriteString("::")
			b.WriteString(n.args[1].str)
			return
		case name == systemContext+"CompoundExpression" && len(n.args) >= 2:
			for i, a := range n.args {
				if i == len(n.args)-1 && a.isSymbol(systemContext+"Null") {
					b.WriteByte(';')
					return
				}
				if i > 0 {
					b.WriteString("; ")
				}
				writeExpr(b, a, precCompound+1)
			}
			return
		}
		if op, ok := infixOps[name]; ok && infixArity(n) {
			last := len(n.args) - 1
			for i, a := range n.args {
				if i > 0 {
					b.WriteString(op.text)
				}
				// Power, Rule and Set group to the right.
				rightAssoc := op.prec == precPower || op.prec == precRule || op.prec == precSet
				switch {
				case rightAssoc && i == last:
					writeExpr(b, a, op.prec)
				default:
					writeExpr(b, a, op.prec+1)
				}
			}
			return
		}
	}
	writeExpr(b, n.head, precAtom)
	b.WriteByte('[')
	writeArgs(b, n.args)
	b.WriteByte(']')
}

func writeArgs(b *strings.Builder, args []*node) {
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		writeExpr(b, a, 0)
	}
}

func writePlus(b *strings.Builder, terms []*node) {
	for i, t := range terms {
		if i == 0 {
			writeExpr(b, t, precPlus+1)
			continue
		}
		if neg, ok := negatedTerm(t); ok {
			b.WriteString(" - ")
			writeExpr(b, neg, precPlus+1)
			continue
		}
		b.WriteString(" + ")
		writeExpr(b, t, precPlus+1)
	}
}

// negatedTerm returns -t when t prints naturally with a leading minus.
func negatedTerm(t *node) (*node, bool) {
	if t.typ == TypeNumber && t.num != ComplexNumber && negativeNumber(t) {
		return negateNumber(t), true
	}
	if t.hasHead(systemContext+"Times") && len(t.args) >= 2 && t.args[0].typ == TypeNumber && t.args[0].num == MachineInteger && t.args[0].i == -1 {
		if len(t.args) == 2 {
			return t.args[1], true
		}
		return normalNode(t.head, t.args[1:]), true
	}
	return nil, false
}

func writeTimes(b *strings.Builder, factors []*node) {
	if f := factors[0]; f.typ == TypeNumber && f.num == MachineInteger && f.i == -1 {
		b.WriteByte('-')
		factors = factors[1:]
		if len(factors) == 1 {
			writeExpr(b, factors[0], precMinus+1)
			return
		}
	}
	for i, f := range factors {
		if i > 0 {
			b.WriteByte('*')
		}
		writeExpr(b, f, precTimes+1)
	}
}

func writeNumber(b *strings.Builder, n *node) {
	switch n.num {
	case MachineInteger:
		b.WriteString(strconv.FormatInt(n.i, 10))
	case BigInteger:
		b.WriteString(n.big.String())
	case MachineReal:
		b.WriteString(formatReal(n.f))
	case BigReal:
		b.WriteString(formatBigReal(n))
	case RationalNumber:
		writeNumber(b, n.args[0])
		b.WriteByte('/')
		writeNumber(b, n.args[1])
	case ComplexNumber:
		writeComplex(b, n.args[0], n.args[1])
	case Overflow:
		b.WriteString("Overflow[]")
	case Underflow:
		b.WriteString("Underflow[]")
	default:
		b.WriteString("Indeterminate")
	}
}

func writeComplex(b *strings.Builder, re, im *node) {
	imagPart := func(v *node) {
		switch {
		case v.num == MachineInteger && v.i == 1:
			b.WriteString("I")
		case v.num == MachineInteger && v.i == -1:
			b.WriteString("-I")
		default:
			writeExpr(b, v, precTimes+1)
			b.WriteString("*I")
		}
	}
	if re.isZero() {
		imagPart(im)
		return
	}
	writeNumber(b, re)
	if negativeNumber(im) {
		b.WriteString(" - ")
		imagPart(negateNumber(im))
		return
	}
	b.WriteString(" + ")
	imagPart(im)
}

// formatReal prints a machine real the way input syntax expects: always
// with a decimal point, and with *^ for exponents.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	mant, exp, hasExp := strings.Cut(s, "e")
	if !strings.Contains(mant, ".") {
		mant += "."
	}
	if !hasExp {
		return mant
	}
	e, _ := strconv.Atoi(exp)
	return mant + "*^" + strconv.Itoa(e)
}

// formatBigReal prints mantissa`precision*^exponent.
func formatBigReal(n *node) string {
	d := n.dec
	s := d.String()
	mant, exp, hasExp := strings.Cut(s, "E")
	if !strings.Contains(mant, ".") {
		mant += "."
	}
	prec := d.NumDigits()
	if prec < 1 {
		prec = 1
	}
	out := mant + "`" + strconv.FormatInt(prec, 10)
	if hasExp {
		e, _ := strconv.Atoi(exp)
		if e != 0 {
			out += "*^" + strconv.Itoa(e)
		}
	}
	return out
}

func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')
}

func writeNumericArray(b *strings.Builder, na *numarray.NumericArray) {
	b.WriteString("NumericArray[")
	writeNode(b, expandNumericArray(na, symbolNode(listSymbolName)))
	b.WriteString(`, "`)
	b.WriteString(na.Type().String())
	b.WriteString(`"]`)
}

// negateNumber returns -n for a real number.
func negateNumber(n *node) *node {
	switch n.num {
	case MachineInteger:
		if n.i == math.MinInt64 {
			return bigIntNode(new(big.Int).Neg(big.NewInt(n.i)))
		}
		return intNode(-n.i)
	case BigInteger:
		return bigIntNode(new(big.Int).Neg(n.big))
	case MachineReal, Overflow, Underflow, NotANumber:
		return realNode(-n.f)
	case RationalNumber:
		return &node{typ: TypeNumber, num: RationalNumber, args: []*node{negateNumber(n.args[0]), n.args[1]}}
	case BigReal:
		return bigRealNode(new(apd.Decimal).Neg(n.dec))
	case ComplexNumber:
		return complexNode(negateNumber(n.args[0]), negateNumber(n.args[1]))
	}
	return n
}
