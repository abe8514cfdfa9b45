package wire

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ExpressionJSON maps expressions onto plain JSON: numbers are numbers,
// strings are quoted with single quotes inside the JSON string, symbols
// are bare JSON strings and normal expressions are arrays whose first
// element is the head. Numbers JSON cannot carry exactly are written as
// Real["text"], and numeric arrays as NumericArray[type, {dims}, "base64"].

// ToJSON renders n as ExpressionJSON.
func ToJSON(n *Node) ([]byte, error) {
	v, err := toJSONValue(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func quoted(s string) string { return "'" + s + "'" }

func displaySymbol(name string) string {
	for _, ctx := range []string{"System`", "Global`"} {
		if rest, ok := strings.CutPrefix(name, ctx); ok && !strings.Contains(rest, "`") {
			return rest
		}
	}
	return name
}

func jsonReal(f float64) any {
	switch {
	case math.IsNaN(f):
		return []any{"Real", quoted("NaN")}
	case math.IsInf(f, 1):
		return []any{"Real", quoted("Infinity")}
	case math.IsInf(f, -1):
		return []any{"Real", quoted("-Infinity")}
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

func toJSONValue(n *Node) (any, error) {
	switch n.Kind {
	case KindInteger:
		return json.Number(strconv.FormatInt(n.Int, 10)), nil
	case KindBigInteger:
		return json.Number(n.Text), nil
	case KindReal:
		return jsonReal(math.Float64frombits(n.Bits)), nil
	case KindBigReal:
		return []any{"Real", quoted(n.Text)}, nil
	case KindString:
		return quoted(n.Str()), nil
	case KindSymbol:
		return displaySymbol(n.Str()), nil
	case KindPackedInts:
		out := []any{"List"}
		for _, v := range n.Ints {
			out = append(out, json.Number(strconv.FormatInt(v, 10)))
		}
		return out, nil
	case KindPackedReals:
		out := []any{"List"}
		for _, bits := range n.Reals {
			out = append(out, jsonReal(math.Float64frombits(bits)))
		}
		return out, nil
	case KindNumericArray:
		dims := []any{"List"}
		for _, d := range n.Dims {
			dims = append(dims, d)
		}
		return []any{"NumericArray", n.Int, dims, quoted(base64.StdEncoding.EncodeToString(n.Raw))}, nil
	case KindAssociation:
		out := []any{"Association"}
		for i := 0; i+1 < len(n.Args); i += 2 {
			k, err := toJSONValue(n.Args[i])
			if err != nil {
				return nil, err
			}
			v, err := toJSONValue(n.Args[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, []any{"Rule", k, v})
		}
		return out, nil
	}

	var out []any
	switch n.Kind {
	case KindComplex:
		out = []any{"Complex"}
	case KindRational:
		out = []any{"Rational"}
	case KindNormal:
		head, err := toJSONValue(n.Head)
		if err != nil {
			return nil, err
		}
		out = []any{head}
	default:
		return nil, fmt.Errorf("wire: cannot express %s as JSON", n.Kind)
	}
	for _, a := range n.Args {
		v, err := toJSONValue(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FromJSON parses ExpressionJSON.
func FromJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("wire: json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("wire: json: trailing data")
	}
	return fromJSONValue(v)
}

func fromJSONValue(v any) (*Node, error) {
	switch v := v.(type) {
	case json.Number:
		return numberNode(string(v))
	case string:
		if len(v) >= 2 && strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
			return &Node{Kind: KindString, Text: v[1 : len(v)-1]}, nil
		}
		if v == "" {
			return nil, fmt.Errorf("wire: json: empty symbol name")
		}
		return &Node{Kind: KindSymbol, Text: v}, nil
	case bool:
		if v {
			return &Node{Kind: KindSymbol, Text: "True"}, nil
		}
		return &Node{Kind: KindSymbol, Text: "False"}, nil
	case nil:
		return &Node{Kind: KindSymbol, Text: "Null"}, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("wire: json: empty array has no head")
		}
		head, err := fromJSONValue(v[0])
		if err != nil {
			return nil, err
		}
		args := make([]*Node, len(v)-1)
		for i, a := range v[1:] {
			if args[i], err = fromJSONValue(a); err != nil {
				return nil, err
			}
		}
		return special(head, args), nil
	}
	return nil, fmt.Errorf("wire: json: unexpected %T", v)
}

func numberNode(s string) (*Node, error) {
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("wire: json: bad number %q", s)
		}
		return &Node{Kind: KindReal, Bits: math.Float64bits(f)}, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &Node{Kind: KindInteger, Int: i}, nil
	}
	if _, ok := new(big.Int).SetString(s, 10); !ok {
		return nil, fmt.Errorf("wire: json: bad number %q", s)
	}
	return &Node{Kind: KindBigInteger, Text: s}, nil
}

func isNumberKind(n *Node) bool {
	switch n.Kind {
	case KindInteger, KindBigInteger, KindReal, KindBigReal, KindRational:
		return true
	}
	return false
}

func isIntegerKind(n *Node) bool {
	return n.Kind == KindInteger || n.Kind == KindBigInteger
}

// special recognizes the array forms that stand for atoms.
func special(head *Node, args []*Node) *Node {
	normal := &Node{Kind: KindNormal, Head: head, Args: args}
	if head.Kind != KindSymbol {
		return normal
	}
	switch displaySymbol(head.Text) {
	case "Real":
		if len(args) != 1 || args[0].Kind != KindString {
			return normal
		}
		switch text := args[0].Text; text {
		case "NaN":
			return &Node{Kind: KindReal, Bits: math.Float64bits(math.NaN())}
		case "Infinity":
			return &Node{Kind: KindReal, Bits: math.Float64bits(math.Inf(1))}
		case "-Infinity":
			return &Node{Kind: KindReal, Bits: math.Float64bits(math.Inf(-1))}
		default:
			return &Node{Kind: KindBigReal, Text: text}
		}
	case "Complex":
		if len(args) == 2 && isNumberKind(args[0]) && isNumberKind(args[1]) {
			return &Node{Kind: KindComplex, Args: args}
		}
	case "Rational":
		if len(args) == 2 && isIntegerKind(args[0]) && isIntegerKind(args[1]) {
			return &Node{Kind: KindRational, Args: args}
		}
	case "Association":
		kv := make([]*Node, 0, 2*len(args))
		for _, a := range args {
			if a.Kind != KindNormal || a.Head.Kind != KindSymbol || displaySymbol(a.Head.Text) != "Rule" || len(a.Args) != 2 {
				return normal
			}
			kv = append(kv, a.Args...)
		}
		return &Node{Kind: KindAssociation, Args: kv}
	case "NumericArray":
		if len(args) != 3 || args[0].Kind != KindInteger || args[2].Kind != KindString {
			return normal
		}
		if args[1].Kind != KindNormal || args[1].Head.Kind != KindSymbol || displaySymbol(args[1].Head.Text) != "List" {
			return normal
		}
		dims := make([]int, len(args[1].Args))
		for i, d := range args[1].Args {
			if d.Kind != KindInteger {
				return normal
			}
			dims[i] = int(d.Int)
		}
		raw, err := base64.StdEncoding.DecodeString(args[2].Text)
		if err != nil {
			return normal
		}
		return &Node{Kind: KindNumericArray, Int: args[0].Int, Dims: dims, Raw: raw}
	}
	return normal
}
