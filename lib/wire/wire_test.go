package wire

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func sym(name string) *Node { return &Node{Kind: KindSymbol, Text: name} }

func sample() *Node {
	return &Node{
		Kind: KindNormal,
		Head: sym("System`List"),
		Args: []*Node{
			{Kind: KindInteger, Int: -7},
			{Kind: KindReal, Bits: math.Float64bits(math.Copysign(0, -1))},
			{Kind: KindString, Text: "héllo"},
			{Kind: KindRational, Args: []*Node{{Kind: KindInteger, Int: 1}, {Kind: KindInteger, Int: 3}}},
			{Kind: KindAssociation, Args: []*Node{{Kind: KindString, Text: "a"}, {Kind: KindInteger, Int: 1}}},
			{Kind: KindPackedInts, Ints: []int64{1, 2, 3}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := Encode(sample())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(data), Magic) {
		t.Fatalf("missing magic: %q", data[:4])
	}
	if Compressed(data) {
		t.Error("small payload should not be compressed")
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindNormal || got.Head.Text != "System`List" {
		t.Fatalf("head = %+v, want System`List", got.Head)
	}
	if len(got.Args) != 6 {
		t.Fatalf("len(Args) = %d, want 6", len(got.Args))
	}
	if got.Args[0].Int != -7 {
		t.Errorf("integer = %d, want -7", got.Args[0].Int)
	}
	if f := math.Float64frombits(got.Args[1].Bits); f != 0 || !math.Signbit(f) {
		t.Errorf("negative zero did not survive: %v", f)
	}
	if got.Args[2].Text != "héllo" {
		t.Errorf("string = %q, want %q", got.Args[2].Text, "héllo")
	}
	if got.Args[5].Ints[2] != 3 {
		t.Errorf("packed = %v, want [1 2 3]", got.Args[5].Ints)
	}
}

func TestInvalidUTF8RoundTrip(t *testing.T) {
	in := TextNode(KindString, "a\xffb")
	if in.Raw == nil {
		t.Fatal("invalid UTF-8 should travel as bytes")
	}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Str() != "a\xffb" {
		t.Errorf("Str() = %q, want %q", got.Str(), "a\xffb")
	}
	if n := TextNode(KindString, "ok"); n.Raw != nil || n.Str() != "ok" {
		t.Errorf("TextNode(ok) = %+v", n)
	}
}

func TestEncodeIsCanonical(t *testing.T) {
	a, err := Encode(sample())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode(sample())
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("encoding the same tree twice produced different bytes")
	}
}

func TestLargePayloadIsCompressed(t *testing.T) {
	ints := make([]int64, 10000)
	for i := range ints {
		ints[i] = int64(i % 7)
	}
	data, err := Encode(&Node{Kind: KindPackedInts, Ints: ints})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !Compressed(data) {
		t.Fatal("large payload was not compressed")
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Ints) != len(ints) || got.Ints[9999] != ints[9999] {
		t.Error("packed integers changed in the round trip")
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	good, err := Encode(sample())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Decode([]byte("nope")); !errors.Is(err, ErrBadMagic) {
		t.Errorf("short input: err = %v, want ErrBadMagic", err)
	}

	badVersion := append([]byte(nil), good...)
	badVersion[4] = 99
	if _, err := Decode(badVersion); !errors.Is(err, ErrBadVersion) {
		t.Errorf("version: err = %v, want ErrBadVersion", err)
	}

	truncated := good[:len(good)-3]
	if _, err := Decode(truncated); !errors.Is(err, ErrCorrupt) {
		t.Errorf("truncated: err = %v, want ErrCorrupt", err)
	}
}

func TestUnmarshalValidatesStructure(t *testing.T) {
	data, err := MarshalNode(&Node{Kind: KindComplex, Args: []*Node{{Kind: KindInteger, Int: 1}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalNode(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("one-part complex: err = %v, want ErrCorrupt", err)
	}

	data, err = MarshalNode(&Node{Kind: 77})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalNode(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("unknown kind: err = %v, want ErrCorrupt", err)
	}
}

func TestToJSON(t *testing.T) {
	n := &Node{
		Kind: KindNormal,
		Head: sym("System`Plus"),
		Args: []*Node{
			{Kind: KindInteger, Int: 1},
			{Kind: KindReal, Bits: math.Float64bits(2)},
			sym("Global`x"),
			{Kind: KindString, Text: "s"},
		},
	}
	data, err := ToJSON(n)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	want := `["Plus",1,2.0,"x","'s'"]`
	if string(data) != want {
		t.Errorf("ToJSON = %s, want %s", data, want)
	}
}

func TestFromJSON(t *testing.T) {
	n, err := FromJSON([]byte(`["List", 1, 2.5, "'str'", "sym", ["Complex", 0, 1], ["Association", ["Rule", "'k'", 3]], 123456789012345678901234567890]`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if n.Kind != KindNormal || n.Head.Text != "List" {
		t.Fatalf("head = %+v", n.Head)
	}
	kinds := []Kind{KindInteger, KindReal, KindString, KindSymbol, KindComplex, KindAssociation, KindBigInteger}
	if len(n.Args) != len(kinds) {
		t.Fatalf("len(Args) = %d, want %d", len(n.Args), len(kinds))
	}
	for i, k := range kinds {
		if n.Args[i].Kind != k {
			t.Errorf("arg %d kind = %s, want %s", i, n.Args[i].Kind, k)
		}
	}
	if n.Args[1].Bits != math.Float64bits(2.5) {
		t.Errorf("real = %v, want 2.5", math.Float64frombits(n.Args[1].Bits))
	}
	if n.Args[6].Text != "123456789012345678901234567890" {
		t.Errorf("big integer text = %q", n.Args[6].Text)
	}
}

func TestJSONSpecialReals(t *testing.T) {
	for _, f := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		data, err := ToJSON(&Node{Kind: KindReal, Bits: math.Float64bits(f)})
		if err != nil {
			t.Fatalf("ToJSON(%v): %v", f, err)
		}
		n, err := FromJSON(data)
		if err != nil {
			t.Fatalf("FromJSON(%s): %v", data, err)
		}
		g := math.Float64frombits(n.Bits)
		if n.Kind != KindReal || (g != f && !(math.IsNaN(f) && math.IsNaN(g))) {
			t.Errorf("%v came back as %+v", f, n)
		}
	}
}

func TestFromJSONErrors(t *testing.T) {
	for _, src := range []string{`[]`, `{"a": 1}`, `[1,`, `1 2`} {
		if _, err := FromJSON([]byte(src)); err == nil {
			t.Errorf("FromJSON(%s) succeeded, want error", src)
		}
	}
}
