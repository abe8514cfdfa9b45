package runtime

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("syntax error")

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
	// nl is set when a newline separates this token from the previous one.
	nl bool
}

// punctuators, longest first so the lexer can match greedily.
var punctuators = []string{
	"=!=", "===",
	"[[", "<|", "|>", "->", ":>", ":=", "==", "!=", "<=", ">=", "&&", "||", "::",
	"[", "]", "{", "}", "(", ")", ",", ";", "=", "<", ">", "!", "+", "-", "*", "/", "^",
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

func lex(src string) ([]token, error) {
	lx := &lexer{src: src}
	nl := false
	for {
		skippedNL, err := lx.skipSpace()
		if err != nil {
			return nil, err
		}
		nl = nl || skippedNL
		if lx.pos >= len(lx.src) {
			lx.toks = append(lx.toks, token{kind: tokEOF, pos: lx.pos, nl: nl})
			return lx.toks, nil
		}
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tok.nl = nl
		nl = false
		lx.toks = append(lx.toks, tok)
	}
}

// skipSpace skips whitespace and (* nested *) comments.
func (lx *lexer) skipSpace() (bool, error) {
	nl := false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			nl = true
			lx.pos++
		case c == ' ' || c == '\t' || c == '\r':
			lx.pos++
		case strings.HasPrefix(lx.src[lx.pos:], "(*"):
			depth := 0
			start := lx.pos
			for {
				if lx.pos >= len(lx.src) {
					return nl, fmt.Errorf("%w: unterminated comment at %d", ErrSyntax, start)
				}
				if strings.HasPrefix(lx.src[lx.pos:], "(*") {
					depth++
					lx.pos += 2
					continue
				}
				if strings.HasPrefix(lx.src[lx.pos:], "*)") {
					depth--
					lx.pos += 2
					if depth == 0 {
						break
					}
					continue
				}
				lx.pos++
			}
		default:
			return nl, nil
		}
	}
	return nl, nil
}

func (lx *lexer) next() (token, error) {
	start := lx.pos
	c := lx.src[lx.pos]
	switch {
	case isDigit(c) || (c == '.' && lx.pos+1 < len(lx.src) && isDigit(lx.src[lx.pos+1])):
		return lx.number(), nil
	case c == '"':
		return lx.str()
	}
	r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
	if r == '$' || r == '`' || unicode.IsLetter(r) {
		lx.pos += size
		for lx.pos < len(lx.src) {
			r, size = utf8.DecodeRuneInString(lx.src[lx.pos:])
			if r != '$' && r != '`' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				break
			}
			lx.pos += size
		}
		return token{kind: tokIdent, text: lx.src[start:lx.pos], pos: start}, nil
	}
	for _, p := range punctuators {
		if strings.HasPrefix(lx.src[lx.pos:], p) {
			lx.pos += len(p)
			return token{kind: tokPunct, text: p, pos: start}, nil
		}
	}
	return token{}, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, r, start)
}

// number scans digits, a fraction, an optional `precision and an optional
// *^exponent. Validation happens in parseNumber.
func (lx *lexer) number() token {
	start := lx.pos
	for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '.') {
		// 1..2 is not a number
		if lx.src[lx.pos] == '.' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '.' {
			break
		}
		lx.pos++
	}
	if lx.pos < len(lx.src) && lx.src[lx.pos] == '`' {
		lx.pos++
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '`' {
			lx.pos++
		}
		for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '.') {
			lx.pos++
		}
	}
	if strings.HasPrefix(lx.src[lx.pos:], "*^") {
		p := lx.pos + 2
		if p < len(lx.src) && (lx.src[p] == '-' || lx.src[p] == '+') {
			p++
		}
		if p < len(lx.src) && isDigit(lx.src[p]) {
			for p < len(lx.src) && isDigit(lx.src[p]) {
				p++
			}
			lx.pos = p
		}
	}
	return token{kind: tokNumber, text: lx.src[start:lx.pos], pos: start}
}

func (lx *lexer) str() (token, error) {
	start := lx.pos
	lx.pos++
	var b strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch c {
		case '"':
			lx.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		case '\\':
			if lx.pos+1 >= len(lx.src) {
				return token{}, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
			}
			switch e := lx.src[lx.pos+1]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\\':
				b.WriteByte(e)
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
			lx.pos += 2
		default:
			b.WriteByte(c)
			lx.pos++
		}
	}
	return token{}, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
}

// parser is a precedence-climbing parser over the token slice. depth counts
// open brackets; at depth 0 a newline ends an expression that is already
// complete.
type parser struct {
	toks  []token
	i     int
	depth int
	syms  *SymbolTable
	heads *symbolHeads
}

// parseProgram parses every top-level expression in src.
func parseProgram(src string, syms *SymbolTable, heads *symbolHeads) ([]*node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, syms: syms, heads: heads}
	var out []*node
	for p.peek().kind != tokEOF {
		n, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		t := p.peek()
		if t.kind != tokEOF && !t.nl {
			return nil, p.errorf(t, "unexpected %q", t.text)
		}
	}
	return out, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return fmt.Errorf("%w at %d: %s", ErrSyntax, t.pos, fmt.Sprintf(format, args...))
}

func (p *parser) expect(text string) error {
	t := p.advance()
	if t.kind != tokPunct || t.text != text {
		if t.kind == tokEOF {
			return p.errorf(t, "expected %q, found end of input", text)
		}
		return p.errorf(t, "expected %q, found %q", text, t.text)
	}
	return nil
}

func (p *parser) sym(base string) *node {
	return p.syms.intern(systemContext + base)
}

func (p *parser) call(head string, args ...*node) *node {
	return normalNode(p.sym(head), args)
}

// stop reports whether a top-level newline ends the current expression.
func (p *parser) stop(t token) bool {
	return t.kind == tokEOF || (t.nl && p.depth == 0)
}

var compareHeads = map[string]string{
	"==": "Equal", "!=": "Unequal", "<": "Less", ">": "Greater",
	"<=": "LessEqual", ">=": "GreaterEqual", "===": "SameQ", "=!=": "UnsameQ",
}

// infixPrec returns the binding power of an infix token, or -1.
func infixPrec(t token) int {
	if t.kind != tokPunct {
		if t.kind == tokEOF {
			return -1
		}
		return precTimes // juxtaposition multiplies
	}
	switch t.text {
	case ";":
		return precCompound
	case "=", ":=":
		return precSet
	case "->", ":>":
		return precRule
	case "||":
		return precOr
	case "&&":
		return precAnd
	case "+", "-":
		return precPlus
	case "*", "/":
		return precTimes
	case "^":
		return precPower
	case "(", "{", "<|":
		return precTimes
	}
	if _, ok := compareHeads[t.text]; ok {
		return precCompare
	}
	return -1
}

func (p *parser) expr(minPrec int) (*node, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if p.stop(t) {
			return left, nil
		}
		prec := infixPrec(t)
		if prec < 0 || prec < minPrec {
			return left, nil
		}
		left, err = p.infix(left, t, prec)
		if err != nil {
			return nil, err
		}
	}
}

func (p *parser) infix(left *node, t token, prec int) (*node, error) {
	juxtaposed := t.kind != tokPunct || t.text == "(" || t.text == "{" || t.text == "<|"
	if juxtaposed {
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		return p.flatCall("Times", left, right), nil
	}
	p.advance()

	switch t.text {
	case ";":
		args := []*node{left}
		if left.hasHead(systemContext + "CompoundExpression") {
			args = append([]*node(nil), left.args...)
		}
		next := p.peek()
		if p.stop(next) || (next.kind == tokPunct && (next.text == ")" || next.text == "]" || next.text == "}" || next.text == "," || next.text == ";")) {
			return p.call("CompoundExpression", append(args, p.heads.Null)...), nil
		}
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		return p.call("CompoundExpression", append(args, right)...), nil
	case "=", ":=", "->", ":>", "^":
		right, err := p.expr(prec) // right associative
		if err != nil {
			return nil, err
		}
		head := map[string]string{"=": "Set", ":=": "SetDelayed", "->": "Rule", ":>": "RuleDelayed", "^": "Power"}[t.text]
		return p.call(head, left, right), nil
	case "||", "&&":
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		head := "Or"
		if t.text == "&&" {
			head = "And"
		}
		return p.flatCall(head, left, right), nil
	case "+", "-":
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			right = p.negate(right)
		}
		return p.flatCall("Plus", left, right), nil
	case "*", "/":
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		if t.text == "/" {
			right = p.call("Power", right, intNode(-1))
		}
		return p.flatCall("Times", left, right), nil
	}

	head := compareHeads[t.text]
	right, err := p.expr(prec + 1)
	if err != nil {
		return nil, err
	}
	return p.flatCall(head, left, right), nil
}

// flatCall builds head[left, right], splicing left when it already has the
// same head so chains like a + b + c stay flat.
func (p *parser) flatCall(head string, left, right *node) *node {
	full := systemContext + head
	if left.hasHead(full) {
		args := make([]*node, 0, len(left.args)+1)
		args = append(args, left.args...)
		return normalNode(left.head, append(args, right))
	}
	return p.call(head, left, right)
}

func (p *parser) negate(n *node) *node {
	if n.typ == TypeNumber {
		return negateNumber(n)
	}
	return p.call("Times", intNode(-1), n)
}

func (p *parser) prefix() (*node, error) {
	t := p.advance()
	switch t.kind {
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of input")
	case tokNumber:
		n, ok := parseNumber(t.text)
		if !ok {
			return nil, p.errorf(t, "bad number %q", t.text)
		}
		return p.postfix(n)
	case tokString:
		return p.postfix(stringNode(t.text))
	case tokIdent:
		full := resolveName(t.text)
		if !validFullName(full) {
			return nil, p.errorf(t, "bad symbol name %q", t.text)
		}
		return p.postfix(p.syms.intern(full))
	}

	switch t.text {
	case "-":
		operand, err := p.expr(precMinus)
		if err != nil {
			return nil, err
		}
		return p.negate(operand), nil
	case "+":
		return p.expr(precMinus)
	case "!":
		operand, err := p.expr(precNot + 1)
		if err != nil {
			return nil, err
		}
		return p.call("Not", operand), nil
	case "(":
		p.depth++
		inner, err := p.expr(0)
		p.depth--
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return p.postfix(inner)
	case "{":
		args, err := p.sequence("}")
		if err != nil {
			return nil, err
		}
		return p.postfix(normalNode(p.heads.List, args))
	case "<|":
		args, err := p.sequence("|>")
		if err != nil {
			return nil, err
		}
		return p.postfix(normalNode(p.heads.Association, args))
	}
	return nil, p.errorf(t, "unexpected %q", t.text)
}

// postfix handles calls f[...], parts x[[...]] and message names s::tag.
func (p *parser) postfix(n *node) (*node, error) {
	for {
		t := p.peek()
		if t.kind != tokPunct || (t.nl && p.depth == 0) {
			return n, nil
		}
		switch t.text {
		case "[":
			p.advance()
			args, err := p.sequence("]")
			if err != nil {
				return nil, err
			}
			n = normalNode(n, args)
		case "[[":
			p.advance()
			args, err := p.sequence("]")
			if err != nil {
				return nil, err
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			n = p.call("Part", append([]*node{n}, args...)...)
		case "::":
			p.advance()
			tag := p.advance()
			if tag.kind != tokIdent && tag.kind != tokString {
				return nil, p.errorf(tag, "expected message tag")
			}
			n = p.call("MessageName", n, stringNode(tag.text))
		default:
			return n, nil
		}
	}
}

// sequence parses comma separated expressions up to the closing token.
func (p *parser) sequence(closing string) ([]*node, error) {
	p.depth++
	defer func() { p.depth-- }()

	var args []*node
	if t := p.peek(); t.kind == tokPunct && t.text == closing {
		p.advance()
		return args, nil
	}
	for {
		n, err := p.expr(precCompound)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
		t := p.advance()
		if t.kind == tokPunct && t.text == closing {
			return args, nil
		}
		if t.kind != tokPunct || t.text != "," {
			if t.kind == tokEOF {
				return nil, p.errorf(t, "expected %q, found end of input", closing)
			}
			return nil, p.errorf(t, "expected \",\" or %q, found %q", closing, t.text)
		}
	}
}
