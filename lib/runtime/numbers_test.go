package runtime

import (
	"math"
	"testing"
)

func TestIntegerAndReal(t *testing.T) {
	r := newTestRuntime(t)

	var i int64
	if k := r.IntegerData(r.Integer(-12), &i); k != Success || i != -12 {
		t.Errorf("IntegerData = %d (%v), want -12", i, k)
	}
	var f float64
	if k := r.RealData(r.Real(2.5), &f); k != Success || f != 2.5 {
		t.Errorf("RealData = %v (%v), want 2.5", f, k)
	}
	if k := r.RealData(r.Integer(1), &f); k != UnexpectedType {
		t.Errorf("RealData(integer) = %v, want UNEXPECTED_TYPE", k)
	}

	if got := r.NumberType(r.Real(math.NaN())); got != NotANumber {
		t.Errorf("NumberType(NaN) = %v, want NOT_A_NUMBER", got)
	}
	if got := r.NumberType(r.Real(math.Inf(1))); got != Overflow {
		t.Errorf("NumberType(+Inf) = %v, want OVERFLOW", got)
	}
	if r.NumberQ(r.String("1")) {
		t.Error("NumberQ(string) = true")
	}
}

func TestComplex(t *testing.T) {
	r := newTestRuntime(t)

	c := r.Complex(r.Integer(1), r.Integer(-2))
	if r.NumberType(c) != ComplexNumber {
		t.Fatalf("NumberType = %v, want COMPLEX", r.NumberType(c))
	}
	if got := text(t, r, c); got != "1 - 2*I" {
		t.Errorf("Complex[1, -2] = %s, want 1 - 2*I", got)
	}
	if got := text(t, r, r.RealPart(c)); got != "1" {
		t.Errorf("RealPart = %s, want 1", got)
	}
	if got := text(t, r, r.ImaginaryPart(c)); got != "-2" {
		t.Errorf("ImaginaryPart = %s, want -2", got)
	}
	if got := r.Complex(r.Real(3), r.Integer(0)); r.NumberType(got) != MachineReal {
		t.Errorf("Complex with exact zero imaginary part = %v, want MACHINE_REAL", r.NumberType(got))
	}
	if got := r.Complex(c, r.Integer(1)); r.ErrorType(got) != UnexpectedType {
		t.Errorf("Complex of complex = %v, want UNEXPECTED_TYPE", r.ErrorType(got))
	}
}

func TestRational(t *testing.T) {
	r := newTestRuntime(t)

	q := r.Rational(r.Integer(6), r.Integer(-4))
	if got := text(t, r, q); got != "-3/2" {
		t.Errorf("Rational[6, -4] = %s, want -3/2", got)
	}
	if got := text(t, r, r.Numerator(q)); got != "-3" {
		t.Errorf("Numerator = %s, want -3", got)
	}
	if got := text(t, r, r.Denominator(q)); got != "2" {
		t.Errorf("Denominator = %s, want 2", got)
	}
	if got := r.Rational(r.Integer(4), r.Integer(2)); r.NumberType(got) != MachineInteger {
		t.Errorf("Rational[4, 2] = %v, want MACHINE_INTEGER", r.NumberType(got))
	}
	if got := r.Rational(r.Integer(1), r.Integer(0)); r.ErrorType(got) != MiscellaneousError {
		t.Errorf("Rational[1, 0] = %v, want MISCELLANEOUS_ERROR", r.ErrorType(got))
	}
	if got := r.Rational(r.Real(1), r.Integer(2)); r.ErrorType(got) != UnexpectedType {
		t.Errorf("Rational[1., 2] = %v, want UNEXPECTED_TYPE", r.ErrorType(got))
	}
}

func TestNumberFromString(t *testing.T) {
	r := newTestRuntime(t)

	tests := []struct {
		src  string
		typ  NumberType
		want string
	}{
		{"42", MachineInteger, "42"},
		{"-7", MachineInteger, "-7"},
		{"123456789012345678901234567890", BigInteger, "123456789012345678901234567890"},
		{"2.5", MachineReal, "2.5"},
		{"3.", MachineReal, "3."},
		{"1.5*^3", MachineReal, "1500."},
		{"2*^3", MachineInteger, "2000"},
		{"3/4", RationalNumber, "3/4"},
		{"1.5`20", BigReal, "1.50000000000000000000`21"},
		{"3.14159265358979323846264", BigReal, ""},
		{"1.5*^-400", BigReal, ""},
		{"-2.5*^400", BigReal, ""},
		{"0.0*^-400", MachineReal, ""},
	}
	for _, tt := range tests {
		e := r.NumberFromString(tt.src)
		if r.ErrorQ(e) {
			t.Errorf("NumberFromString(%q) = %v", tt.src, r.ErrorType(e))
			continue
		}
		if got := r.NumberType(e); got != tt.typ {
			t.Errorf("NumberFromString(%q) type = %v, want %v", tt.src, got, tt.typ)
		}
		if tt.want == "" || tt.typ == BigReal {
			continue
		}
		var s string
		if k := r.StringFromNumber(e, &s); k != Success || s != tt.want {
			t.Errorf("StringFromNumber(%q) = %q (%v), want %q", tt.src, s, k, tt.want)
		}
	}

	for _, bad := range []string{"", "abc", "1.2.3", "1/0", "12x", "--1", "1*^2000000000", "1.5*^-2000000000"} {
		if got := r.NumberFromString(bad); r.ErrorType(got) != Malformed {
			t.Errorf("NumberFromString(%q) = %v, want MALFORMED", bad, r.ErrorType(got))
		}
	}
	if k := r.StringFromNumber(r.String("1"), new(string)); k != UnexpectedType {
		t.Errorf("StringFromNumber(string) = %v, want UNEXPECTED_TYPE", k)
	}
}

func TestPowerOverflow(t *testing.T) {
	r := newTestRuntime(t)
	msgs := collectMessages(t, r)

	if got := r.NumberType(r.EvalString("2^2000000000")); got != Overflow {
		t.Errorf("2^2000000000 type = %v, want Overflow", got)
	}
	if got := r.NumberType(r.EvalString("Power[1/3, -2000000000]")); got != Overflow {
		t.Errorf("(1/3)^-2000000000 type = %v, want Overflow", got)
	}
	if len(*msgs) != 2 || (*msgs)[0] != "Power::ovfl" {
		t.Errorf("messages = %v, want two Power::ovfl", *msgs)
	}
	if got := evalText(t, r, "1^2000000000"); got != "1" {
		t.Errorf("1^2000000000 = %s, want 1", got)
	}
	if got := evalText(t, r, "2^100"); got != "1267650600228229401496703205376" {
		t.Errorf("2^100 = %s", got)
	}
}

func TestIntegerConvert(t *testing.T) {
	r := newTestRuntime(t)

	tests := []struct {
		in   Expr
		want int64
		kind ErrorKind
	}{
		{r.Integer(5), 5, Success},
		{r.Real(2.5), 2, Success},
		{r.Real(3.5), 4, Success},
		{r.Real(-2.6), -3, Success},
		{r.Rational(r.Integer(7), r.Integer(2)), 4, Success},
		{r.NumberFromString("123456789012345678901234567890"), 0, OutOfBounds},
		{r.Real(1e300), 0, OutOfBounds},
		{r.Complex(r.Integer(1), r.Integer(1)), 0, UnexpectedType},
		{r.String("5"), 0, UnexpectedType},
	}
	for i, tt := range tests {
		got := int64(-99)
		k := r.IntegerConvert(tt.in, &got)
		if k != tt.kind {
			t.Errorf("case %d: IntegerConvert kind = %v, want %v", i, k, tt.kind)
			continue
		}
		if k == Success && got != tt.want {
			t.Errorf("case %d: IntegerConvert = %d, want %d", i, got, tt.want)
		}
		if k != Success && got != -99 {
			t.Errorf("case %d: IntegerConvert wrote %d on failure", i, got)
		}
	}
}

func TestRealConvert(t *testing.T) {
	r := newTestRuntime(t)

	var f float64
	if k := r.RealConvert(r.Rational(r.Integer(1), r.Integer(4)), &f); k != Success || f != 0.25 {
		t.Errorf("RealConvert(1/4) = %v (%v), want 0.25", f, k)
	}
	if k := r.RealConvert(r.NumberFromString("1.5`30"), &f); k != Success || f != 1.5 {
		t.Errorf("RealConvert(1.5`30) = %v (%v), want 1.5", f, k)
	}
	f = -1
	if k := r.RealConvert(r.EvalString("10^400"), &f); k != OutOfBounds || f != -1 {
		t.Errorf("RealConvert(10^400) = %v (%v), want OUT_OF_BOUNDS and no write", f, k)
	}
}

func TestBigRealArithmetic(t *testing.T) {
	r := newTestRuntime(t)

	got := r.EvalString("1.5`30 + 1")
	if r.NumberType(got) != BigReal {
		t.Fatalf("1.5`30 + 1 type = %v, want BIG_REAL", r.NumberType(got))
	}
	var f float64
	if k := r.RealConvert(got, &f); k != Success || f != 2.5 {
		t.Errorf("1.5`30 + 1 = %v (%v), want 2.5", f, k)
	}
	// Mixing with a machine real gives a machine real.
	if got := r.EvalString("1.5`30 * 2."); r.NumberType(got) != MachineReal {
		t.Errorf("1.5`30 * 2. type = %v, want MACHINE_REAL", r.NumberType(got))
	}
}
