package runtime

// Error returns the error expression for kind. Error expressions are
// pinned when the runtime is created, so this never allocates and is
// usable even when the runtime is not started.
func (r *Runtime) Error(kind ErrorKind) Expr {
	if !kind.Valid() {
		kind = MiscellaneousError
	}
	return r.errExprs[kind]
}

// ErrorQ reports whether e is an error expression.
func (r *Runtime) ErrorQ(e Expr) bool {
	s, ok := r.lookup(e)
	return ok && s.n.typ == TypeError
}

// ErrorType returns the kind of an error expression. Callers must check
// ErrorQ first; for anything else the result is MiscellaneousError.
func (r *Runtime) ErrorType(e Expr) ErrorKind {
	s, ok := r.lookup(e)
	if !ok || s.n.typ != TypeError {
		return MiscellaneousError
	}
	return s.n.err
}

func (r *Runtime) pinErrors() {
	for k := 0; k < numErrorKinds; k++ {
		idx := r.newSlot(errorNode(ErrorKind(k)))
		r.slots[idx].pinned = true
		r.errExprs[k] = makeExpr(idx, r.slots[idx].gen)
	}
}

// operand resolves an input handle for an expression-returning operation.
// On failure the returned Expr is what the operation should return: the
// input itself when it is an error expression, otherwise the error for the
// failure kind.
func (r *Runtime) operand(e Expr) (*node, Expr, bool) {
	n, k := r.resolve(e)
	if k != Success {
		return nil, r.Error(k), false
	}
	if n.typ == TypeError {
		return nil, r.Error(n.err), false
	}
	return n, NullExpr, true
}

// operands resolves several inputs; the first failure wins.
func (r *Runtime) operands(es ...Expr) ([]*node, Expr, bool) {
	ns := make([]*node, len(es))
	for i, e := range es {
		n, fail, ok := r.operand(e)
		if !ok {
			return nil, fail, false
		}
		ns[i] = n
	}
	return ns, NullExpr, true
}

// statusOperand resolves an input for an ErrorKind-returning operation. An
// error expression input maps to ErrorExpression.
func (r *Runtime) statusOperand(e Expr) (*node, ErrorKind) {
	n, k := r.resolve(e)
	if k != Success {
		return nil, k
	}
	if n.typ == TypeError {
		return nil, ErrorExpression
	}
	return n, Success
}

// ExpressionType returns the type tag of e, or TypeOther for a stale handle.
func (r *Runtime) ExpressionType(e Expr) ExprType {
	s, ok := r.lookup(e)
	if !ok {
		return TypeOther
	}
	return s.n.typ
}
