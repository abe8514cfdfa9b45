package runtime

import (
	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
)

var poolLog = commonlog.GetLogger("wlr.pool")

// Expr is a handle to a runtime-owned expression. The low 32 bits index the
// arena slot (plus one, so the zero Expr is never valid) and the high 32
// bits carry the slot generation at allocation time. A handle whose
// generation no longer matches its slot has been released.
type Expr uint64

// NullExpr is the zero handle; it never refers to an expression.
const NullExpr Expr = 0

func makeExpr(idx, gen uint32) Expr {
	return Expr(uint64(gen)<<32 | uint64(idx+1))
}

func (e Expr) slotIndex() (uint32, bool) {
	low := uint32(e)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (e Expr) generation() uint32 {
	return uint32(uint64(e) >> 32)
}

// slot is one arena entry.
type slot struct {
	gen    uint32
	live   bool
	pinned bool // error expressions; never freed
	n      *node
	owner  *pool          // nil when detached or bag-held
	at     int            // position in owner.owned
	bag    *ExpressionBag // set while the handle is held by a bag
	size   int64
}

// pool is one level of the LIFO pool stack. owned lists exactly the slots
// whose owner is the pool.
type pool struct {
	id     uint64
	parent *pool
	owned  []uint32
	depth  int
}

// ---------------------------------------------------------------------------
// Arena
// ---------------------------------------------------------------------------

// alloc attributes a new handle for n to the current pool.
func (r *Runtime) alloc(n *node) Expr {
	idx := r.newSlot(n)
	r.own(r.current, idx)
	return makeExpr(idx, r.slots[idx].gen)
}

func (r *Runtime) own(p *pool, idx uint32) {
	s := &r.slots[idx]
	s.owner = p
	s.at = len(p.owned)
	p.owned = append(p.owned, idx)
}

// disown removes idx from its pool's ownership list.
func (r *Runtime) disown(idx uint32) {
	s := &r.slots[idx]
	p := s.owner
	if p == nil {
		return
	}
	last := len(p.owned) - 1
	moved := p.owned[last]
	p.owned[s.at] = moved
	r.slots[moved].at = s.at
	p.owned = p.owned[:last]
	s.owner = nil
	s.at = 0
}

// allocDetached creates a handle that belongs to no pool.
func (r *Runtime) allocDetached(n *node) Expr {
	idx := r.newSlot(n)
	return makeExpr(idx, r.slots[idx].gen)
}

func (r *Runtime) newSlot(n *node) uint32 {
	var idx uint32
	if l := len(r.free); l > 0 {
		idx = r.free[l-1]
		r.free = r.free[:l-1]
	} else {
		r.slots = append(r.slots, slot{})
		idx = uint32(len(r.slots) - 1)
	}
	s := &r.slots[idx]
	s.live = true
	s.n = n
	s.size = n.approxSize()
	r.memory += s.size
	return idx
}

func (r *Runtime) freeSlot(idx uint32) {
	s := &r.slots[idx]
	if !s.live || s.pinned {
		return
	}
	r.disown(idx)
	r.memory -= s.size
	s.gen++
	s.live = false
	s.n = nil
	s.bag = nil
	s.size = 0
	r.free = append(r.free, idx)
}

// lookup returns the slot for a live handle.
func (r *Runtime) lookup(e Expr) (*slot, bool) {
	idx, ok := e.slotIndex()
	if !ok || int(idx) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[idx]
	if !s.live || s.gen != e.generation() {
		return nil, false
	}
	return s, true
}

// resolve maps a handle to its node, reporting the failure kind otherwise.
func (r *Runtime) resolve(e Expr) (*node, ErrorKind) {
	if !r.started {
		return nil, RuntimeNotStarted
	}
	s, ok := r.lookup(e)
	if !ok {
		return nil, MiscellaneousError
	}
	return s.n, Success
}

// Valid reports whether e still refers to a live expression.
func (r *Runtime) Valid(e Expr) bool {
	_, ok := r.lookup(e)
	return ok
}

// ---------------------------------------------------------------------------
// Pool stack
// ---------------------------------------------------------------------------

func (r *Runtime) initPools() {
	r.root = &pool{id: 0}
	r.current = r.root
	r.nextPoolID = 1
}

// PoolDepth is the number of pools above the root.
func (r *Runtime) PoolDepth() int {
	if r.current == nil {
		return 0
	}
	return r.current.depth
}

// CreateExpressionPool pushes a new pool; subsequent allocations belong to
// it until it is released.
func (r *Runtime) CreateExpressionPool() {
	if !r.started {
		return
	}
	p := &pool{
		id:     r.nextPoolID,
		parent: r.current,
		depth:  r.current.depth + 1,
	}
	r.nextPoolID++
	r.current = p
}

// ReleaseExpressionPool frees every expression the innermost pool still
// owns and makes its parent current. The root pool cannot be released.
func (r *Runtime) ReleaseExpressionPool() {
	if !r.started {
		return
	}
	if r.current == r.root {
		poolLog.Warning("refusing to release the root pool")
		return
	}
	if r.evalFloor >= 0 && r.current.depth <= r.evalFloor {
		poolLog.Warningf("refusing to release pool %d during evaluation", r.current.id)
		return
	}
	r.releasePool(r.current)
}

func (r *Runtime) releasePool(p *pool) {
	owned := p.owned
	p.owned = nil
	for _, idx := range owned {
		r.slots[idx].owner = nil
		r.freeSlot(idx)
	}
	r.current = p.parent
	if poolLog.AllowLevel(commonlog.Debug) {
		poolLog.Debugf("released pool %d: %d expressions, %s in use", p.id, len(owned), humanize.Bytes(uint64(r.memory)))
	}
}

// ReleaseAll releases every pool above the root. Detached expressions and
// root-owned expressions survive. During evaluation it stops at the pool
// the evaluation started in.
func (r *Runtime) ReleaseAll() {
	if !r.started {
		return
	}
	for r.current != r.root {
		if r.evalFloor >= 0 && r.current.depth <= r.evalFloor {
			poolLog.Warningf("refusing to release pool %d during evaluation", r.current.id)
			return
		}
		r.releasePool(r.current)
	}
}

// DetachExpression removes e from its pool so releasing the pool leaves it
// alive. The caller must eventually call ReleaseExpression.
func (r *Runtime) DetachExpression(e Expr) {
	if !r.started {
		return
	}
	s, ok := r.lookup(e)
	if !ok || s.pinned || s.bag != nil {
		return
	}
	idx, _ := e.slotIndex()
	r.disown(idx)
}

// ReleaseExpression frees a single expression immediately.
func (r *Runtime) ReleaseExpression(e Expr) {
	if !r.started {
		return
	}
	s, ok := r.lookup(e)
	if !ok || s.pinned {
		return
	}
	if s.bag != nil {
		poolLog.Warning("expression is held by a bag; release the bag instead")
		return
	}
	idx, _ := e.slotIndex()
	r.freeSlot(idx)
}

// MoveExpressionToParentPool hands e to the parent of its current pool.
// Root-owned and detached expressions are left alone.
func (r *Runtime) MoveExpressionToParentPool(e Expr) {
	if !r.started {
		return
	}
	s, ok := r.lookup(e)
	if !ok || s.owner == nil || s.owner.parent == nil {
		return
	}
	idx, _ := e.slotIndex()
	parent := s.owner.parent
	r.disown(idx)
	r.own(parent, idx)
}

// Clone returns a new handle in the current pool. Nodes are immutable so
// the clone shares structure with e.
func (r *Runtime) Clone(e Expr) Expr {
	n, k := r.resolve(e)
	if k != Success {
		return r.Error(k)
	}
	if n.typ == TypeError {
		return e
	}
	return r.alloc(n)
}

// MemoryInUse approximates the bytes held by live handles.
func (r *Runtime) MemoryInUse() int64 {
	return r.memory
}

// wrap allocates a handle for n in the current pool, mapping error nodes to
// the pinned error handles.
func (r *Runtime) wrap(n *node) Expr {
	if n.typ == TypeError {
		return r.Error(n.err)
	}
	return r.alloc(n)
}
