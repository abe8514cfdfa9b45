package runtime

// Rule creates lhs -> rhs.
func (r *Runtime) Rule(lhs, rhs Expr) Expr {
	ns, fail, ok := r.operands(lhs, rhs)
	if !ok {
		return fail
	}
	return r.alloc(normalNode(r.heads.Rule, []*node{ns[0], ns[1]}))
}

func (r *Runtime) peek(e Expr) *node {
	if !r.started {
		return nil
	}
	s, ok := r.lookup(e)
	if !ok {
		return nil
	}
	return s.n
}

// RuleQ reports whether e is a Rule or RuleDelayed with two arguments.
func (r *Runtime) RuleQ(e Expr) bool {
	n := r.peek(e)
	return n != nil && isRule(n, r.heads)
}

func isRule(n *node, h *symbolHeads) bool {
	return n.typ == TypeNormal && len(n.args) == 2 && (n.head.isSymbol(h.Rule.str) || n.head.isSymbol(h.RuleDelayed.str))
}

// ListQ reports whether e is a List, packed or not.
func (r *Runtime) ListQ(e Expr) bool {
	n := r.peek(e)
	return n != nil && (n.typ == TypePackedArray || n.hasHead(listSymbolName))
}

// AssociationQ reports whether e is an association.
func (r *Runtime) AssociationQ(e Expr) bool {
	n := r.peek(e)
	return n != nil && n.typ == TypeAssociation
}

// TrueQ reports whether e is the symbol True.
func (r *Runtime) TrueQ(e Expr) bool {
	n := r.peek(e)
	return n != nil && n.isSymbol(r.heads.True.str)
}

// SameQ is structural identity. Stale handles are never the same as
// anything.
func (r *Runtime) SameQ(a, b Expr) bool {
	x, y := r.peek(a), r.peek(b)
	if x == nil || y == nil {
		return false
	}
	return sameNode(x, y)
}

// Length is the number of parts of e; atoms have length 0.
func (r *Runtime) Length(e Expr) int {
	n := r.peek(e)
	if n == nil {
		return 0
	}
	return n.length()
}

// Part returns the i'th part of e: 0 is the head and negative indices count
// from the end.
func (r *Runtime) Part(e Expr, i int) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	p, ok := n.partAt(i, r.heads)
	if !ok {
		return r.Error(OutOfBounds)
	}
	return r.alloc(p)
}

func (r *Runtime) First(e Expr) Expr { return r.Part(e, 1) }

func (r *Runtime) Last(e Expr) Expr { return r.Part(e, -1) }

// Rest drops the first part. Atoms are UnexpectedType and empty
// expressions OutOfBounds.
func (r *Runtime) Rest(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	rest, k := restNode(n)
	if k != Success {
		return r.Error(k)
	}
	return r.alloc(rest)
}

func restNode(n *node) (*node, ErrorKind) {
	switch n.typ {
	case TypeNormal, TypePackedArray, TypeAssociation:
	default:
		return nil, UnexpectedType
	}
	if n.length() == 0 {
		return nil, OutOfBounds
	}
	switch n.typ {
	case TypePackedArray:
		if n.packed.ints != nil {
			return packedIntNode(n.packed.ints[1:]), Success
		}
		return packedRealNode(n.packed.reals[1:]), Success
	case TypeAssociation:
		a := newAssocData(n.assoc.length() - 1)
		for i := 1; i < n.assoc.length(); i++ {
			a.put(n.assoc.keys[i], n.assoc.vals[i])
		}
		return assocNode(a), Success
	}
	return normalNode(n.head, n.args[1:]), Success
}

// Head returns the head of a normal expression or the type symbol of an
// atom.
func (r *Runtime) Head(e Expr) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	return r.alloc(n.headNode(r.heads))
}

// ReplacePart returns a copy of e with part i replaced. Index 0 replaces
// the head.
func (r *Runtime) ReplacePart(e Expr, i int, part Expr) Expr {
	ns, fail, ok := r.operands(e, part)
	if !ok {
		return fail
	}
	out, k := replacePart(ns[0], i, ns[1], r.heads)
	if k != Success {
		return r.Error(k)
	}
	return r.alloc(out)
}

func replacePart(n *node, i int, part *node, h *symbolHeads) (*node, ErrorKind) {
	switch n.typ {
	case TypeNormal, TypePackedArray, TypeAssociation:
	default:
		return nil, UnexpectedType
	}
	l := n.length()
	if i < 0 {
		i = l + i + 1
		if i <= 0 {
			return nil, OutOfBounds
		}
	}
	if i > l || (i == 0 && n.typ == TypeAssociation) {
		return nil, OutOfBounds
	}

	if n.typ == TypeAssociation {
		a := newAssocData(l)
		for j := range n.assoc.keys {
			v := n.assoc.vals[j]
			if j == i-1 {
				v = part
			}
			a.put(n.assoc.keys[j], v)
		}
		return assocNode(a), Success
	}

	n = n.unpacked(h.List)
	if i == 0 {
		return normalNode(part, n.args), Success
	}
	args := make([]*node, l)
	copy(args, n.args)
	args[i-1] = part
	return normalNode(n.head, args), Success
}

// ---------------------------------------------------------------------------
// Associations
// ---------------------------------------------------------------------------

// GetValueFromKey looks key up in an association. A missing key yields
// Missing["KeyAbsent", key].
func (r *Runtime) GetValueFromKey(assoc, key Expr) Expr {
	ns, fail, ok := r.operands(assoc, key)
	if !ok {
		return fail
	}
	if ns[0].typ != TypeAssociation {
		return r.Error(UnexpectedType)
	}
	return r.alloc(lookupKey(ns[0], ns[1], r.heads))
}

func lookupKey(assoc, key *node, h *symbolHeads) *node {
	if v, ok := assoc.assoc.get(key); ok {
		return v
	}
	return missingKey(key, h)
}

func missingKey(key *node, h *symbolHeads) *node {
	return normalNode(h.Missing, []*node{stringNode("KeyAbsent"), key})
}

// GetKeys returns the keys of an association as a List in insertion order.
func (r *Runtime) GetKeys(assoc Expr) Expr {
	n, fail, ok := r.operand(assoc)
	if !ok {
		return fail
	}
	if n.typ != TypeAssociation {
		return r.Error(UnexpectedType)
	}
	return r.alloc(normalNode(r.heads.List, append([]*node(nil), n.assoc.keys...)))
}

// GetValues returns the values of an association as a List.
func (r *Runtime) GetValues(assoc Expr) Expr {
	n, fail, ok := r.operand(assoc)
	if !ok {
		return fail
	}
	if n.typ != TypeAssociation {
		return r.Error(UnexpectedType)
	}
	return r.alloc(normalNode(r.heads.List, append([]*node(nil), n.assoc.vals...)))
}

// buildAssociation turns rules into an association.
// Later duplicates overwrite earlier values but keep the first position.
func buildAssociation(rules []*node, h *symbolHeads) (*node, bool) {
	a := newAssocData(len(rules))
	for _, rule := range rules {
		if !isRule(rule, h) {
			return nil, false
		}
		a.put(rule.args[0], rule.args[1])
	}
	return assocNode(a), true
}
