package runtime

type bagState int

const (
	bagOpen bagState = iota
	bagFinalized
	bagReleased
)

// ExpressionBag is an append-only accumulator that is turned into a single
// normal expression exactly once. Expressions added to a bag leave their
// pool; the bag owns them until it is finalized or released.
type ExpressionBag struct {
	rt    *Runtime
	state bagState
	items []uint32
}

// ExpressionBag creates an empty bag, or returns nil when the runtime is
// not started.
func (r *Runtime) ExpressionBag() *ExpressionBag {
	if !r.started {
		return nil
	}
	b := &ExpressionBag{rt: r}
	r.bags[b] = struct{}{}
	return b
}

func (r *Runtime) openBag(b *ExpressionBag) bool {
	return b != nil && b.rt == r && b.state == bagOpen
}

// AddExpression moves e into the bag. Adding a handle that is already in a
// bag, or adding to a finalized or released bag, fails with
// MiscellaneousError.
func (r *Runtime) AddExpression(b *ExpressionBag, e Expr) ErrorKind {
	if !r.started {
		return RuntimeNotStarted
	}
	if !r.openBag(b) {
		return MiscellaneousError
	}
	s, ok := r.lookup(e)
	if !ok {
		return MiscellaneousError
	}
	if s.pinned {
		return ErrorExpression
	}
	if s.bag != nil {
		return MiscellaneousError
	}
	idx, _ := e.slotIndex()
	r.disown(idx)
	s.bag = b
	b.items = append(b.items, idx)
	return Success
}

// ExpressionBagLength is the number of expressions added so far.
func (r *Runtime) ExpressionBagLength(b *ExpressionBag) int {
	if !r.started || !r.openBag(b) {
		return 0
	}
	return len(b.items)
}

// ExpressionBagToExpression consumes the bag and returns head[items...].
// The added handles stay valid and now belong to the current pool.
func (r *Runtime) ExpressionBagToExpression(b *ExpressionBag, head Expr) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	if !r.openBag(b) {
		return r.Error(MiscellaneousError)
	}
	h, fail, ok := r.operand(head)
	if !ok {
		return fail
	}

	args := make([]*node, 0, len(b.items))
	for _, idx := range b.items {
		s := &r.slots[idx]
		if !s.live || s.bag != b {
			continue
		}
		args = append(args, s.n)
		s.bag = nil
		r.own(r.current, idx)
	}
	b.state = bagFinalized
	b.items = nil
	delete(r.bags, b)
	return r.alloc(normalNode(h, args))
}

// ReleaseExpressionBag frees the bag and everything in it. It is safe on a
// bag at any fill level and a no-op on a bag that is already consumed.
func (r *Runtime) ReleaseExpressionBag(b *ExpressionBag) {
	if !r.started || !r.openBag(b) {
		return
	}
	for _, idx := range b.items {
		if s := &r.slots[idx]; s.live && s.bag == b {
			r.freeSlot(idx)
		}
	}
	b.state = bagReleased
	b.items = nil
	delete(r.bags, b)
}
