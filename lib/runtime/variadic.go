package runtime

// VariadicE builds head[children...]. count must equal len(children); it
// is kept explicit so callers assembling argument lists by hand get a
// Malformed error instead of a silently truncated expression.
func (r *Runtime) VariadicE(head Expr, count int, children []Expr) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if count < 0 || count != len(children) {
		return r.Error(Malformed)
	}
	h, fail, ok := r.operand(head)
	if !ok {
		return fail
	}
	args, fail, ok := r.operands(children...)
	if !ok {
		return fail
	}
	return r.alloc(normalNode(h, args))
}

// VariadicList builds List[children...].
func (r *Runtime) VariadicList(count int, children []Expr) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if count < 0 || count != len(children) {
		return r.Error(Malformed)
	}
	args, fail, ok := r.operands(children...)
	if !ok {
		return fail
	}
	return r.alloc(normalNode(r.heads.List, args))
}

// VariadicAssociation builds <|k1 -> v1, k2 -> v2, ...|> from a flattened
// key, value, key, value sequence holding pairCount pairs.
func (r *Runtime) VariadicAssociation(pairCount int, keyValues []Expr) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if pairCount < 0 || 2*pairCount != len(keyValues) {
		return r.Error(Malformed)
	}
	ns, fail, ok := r.operands(keyValues...)
	if !ok {
		return fail
	}
	a := newAssocData(pairCount)
	for i := 0; i < len(ns); i += 2 {
		a.put(ns[i], ns[i+1])
	}
	return r.alloc(assocNode(a))
}

// E is VariadicE with the count taken from the argument list.
func (r *Runtime) E(head Expr, children ...Expr) Expr {
	return r.VariadicE(head, len(children), children)
}

// List is VariadicList with the count taken from the argument list.
func (r *Runtime) List(children ...Expr) Expr {
	return r.VariadicList(len(children), children)
}

// Association is VariadicAssociation for alternating keys and values. An
// odd number of arguments is Malformed.
func (r *Runtime) Association(keyValues ...Expr) Expr {
	if len(keyValues)%2 != 0 {
		if !r.started {
			return r.Error(RuntimeNotStarted)
		}
		return r.Error(Malformed)
	}
	return r.VariadicAssociation(len(keyValues)/2, keyValues)
}
