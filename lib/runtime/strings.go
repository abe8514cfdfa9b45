package runtime

import (
	"strings"
	"unicode/utf8"
)

// String creates a string expression. s must be valid UTF-8.
func (r *Runtime) String(s string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if !utf8.ValidString(s) {
		return r.Error(Malformed)
	}
	return r.alloc(stringNode(s))
}

// StringFromData creates a string expression from UTF-8 bytes.
func (r *Runtime) StringFromData(data []byte) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if !utf8.Valid(data) {
		return r.Error(Malformed)
	}
	return r.alloc(stringNode(string(data)))
}

// RawString creates a string expression without validating its encoding.
func (r *Runtime) RawString(s string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	return r.alloc(stringNode(s))
}

// RawStringFromData is RawString for a byte slice.
func (r *Runtime) RawStringFromData(data []byte) Expr {
	return r.RawString(string(data))
}

// StringData reads the contents of a string expression.
func (r *Runtime) StringData(e Expr, result *string) ErrorKind {
	n, k := r.statusOperand(e)
	if k != Success {
		return k
	}
	if n.typ != TypeString {
		return UnexpectedType
	}
	*result = n.str
	return Success
}

// Symbol creates a symbol. A name without a context resolves to System`
// for built-in names and Global` otherwise.
func (r *Runtime) Symbol(name string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	full := resolveName(name)
	if !validFullName(full) {
		return r.Error(Malformed)
	}
	return r.alloc(r.symbols.intern(full))
}

// GlobalSymbol creates Global`base.
func (r *Runtime) GlobalSymbol(base string) Expr {
	return r.ContextSymbol(globalContext, base)
}

// SystemSymbol creates System`base.
func (r *Runtime) SystemSymbol(base string) Expr {
	return r.ContextSymbol(systemContext, base)
}

// ContextSymbol creates context`base. The trailing backtick on the context
// is optional.
func (r *Runtime) ContextSymbol(context, base string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if !strings.HasSuffix(context, "`") {
		context += "`"
	}
	full := context + base
	if !validBaseName(base) || !validFullName(full) {
		return r.Error(Malformed)
	}
	return r.alloc(r.symbols.intern(full))
}

// SymbolName returns the base name of a symbol as a string expression.
func (r *Runtime) SymbolName(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	if n.typ != TypeSymbol {
		return r.Error(UnexpectedType)
	}
	_, base := splitName(n.str)
	return r.alloc(stringNode(base))
}

// SymbolContext returns the context of a symbol, including its trailing
// backtick, as a string expression.
func (r *Runtime) SymbolContext(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	if n.typ != TypeSymbol {
		return r.Error(UnexpectedType)
	}
	ctx, _ := splitName(n.str)
	return r.alloc(stringNode(ctx))
}
