package runtime

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// maxRecursion bounds nested evaluation so a self-referential definition
// fails with a message instead of exhausting the stack.
const maxRecursion = 1024

// abortSignal unwinds an aborted evaluation back to evalEntry.
type abortSignal struct{}

// holdMode says which arguments a builtin receives unevaluated.
type holdMode int

const (
	holdNone holdMode = iota
	holdFirst
	holdRest
	holdAll
)

func (m holdMode) holds(i int) bool {
	switch m {
	case holdAll:
		return true
	case holdFirst:
		return i == 0
	case holdRest:
		return i > 0
	}
	return false
}

// builtin is an evaluator primitive. fn returns nil to leave the call
// unevaluated.
type builtin struct {
	fn   func(r *Runtime, args []*node) *node
	hold holdMode
}

// builtins maps full symbol names to primitives. It is filled by init in
// builtins.go.
var builtins map[string]builtin

// registerBuiltins interns every builtin name so symbol listings include
// them from the start.
func registerBuiltins(r *Runtime) {
	for name := range builtins {
		r.symbols.intern(name)
	}
}

// Eval evaluates e and returns the result in the current pool.
func (r *Runtime) Eval(e Expr) Expr {
	return r.evaluate(context.Background(), e, false)
}

// EvalData evaluates e without delivering printed output to stdout
// handlers. Messages are still delivered.
func (r *Runtime) EvalData(e Expr) Expr {
	return r.evaluate(context.Background(), e, true)
}

// EvalContext evaluates e, treating cancellation of ctx like Abort.
func (r *Runtime) EvalContext(ctx context.Context, e Expr) Expr {
	return r.evaluate(ctx, e, false)
}

func (r *Runtime) evaluate(ctx context.Context, e Expr, quiet bool) Expr {
	n, fail, ok := r.operand(e)
	if !ok {
		return fail
	}
	return r.wrap(r.evalEntry(ctx, n, quiet, false))
}

// EvalString parses src and evaluates it. Several top-level expressions
// are evaluated in order and the last result is returned. Unparseable
// input yields Malformed and a Syntax::sntxf message.
func (r *Runtime) EvalString(src string) Expr {
	return r.EvalStringContext(context.Background(), src)
}

// EvalStringContext is EvalString with cancellation of ctx treated like
// Abort.
func (r *Runtime) EvalStringContext(ctx context.Context, src string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	prog, err := r.parse(src)
	if err != nil {
		return r.Error(Malformed)
	}
	return r.wrap(r.evalEntry(ctx, prog, false, true))
}

// ParseExpression parses src without evaluating it. Several top-level
// expressions become one CompoundExpression.
func (r *Runtime) ParseExpression(src string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	prog, err := r.parse(src)
	if err != nil {
		return r.Error(Malformed)
	}
	return r.alloc(prog)
}

// Get reads a source file and evaluates it like EvalString. Host calls are
// never subject to containment.
func (r *Runtime) Get(path string) Expr {
	if !r.started {
		return r.Error(RuntimeNotStarted)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("reading %s: %s", path, err)
		return r.Error(MiscellaneousError)
	}
	prog, err := r.parse(string(data))
	if err != nil {
		return r.Error(Malformed)
	}
	return r.wrap(r.evalEntry(context.Background(), prog, false, true))
}

func (r *Runtime) parse(src string) (*node, error) {
	nodes, err := parseProgram(src, r.symbols, r.heads)
	if err != nil {
		log.Debugf("parse: %s", err)
		r.message("Syntax", "sntxf", stringNode(src), stringNode(err.Error()))
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return r.heads.Null, nil
	case 1:
		return nodes[0], nil
	}
	return normalNode(r.heads.CompoundExpression, nodes), nil
}

// Abort requests that the running evaluation stop at its next checkpoint.
// It is safe to call from any goroutine. The request stays in force, so
// later evaluations also return $Aborted, until ClearAbort.
func (r *Runtime) Abort() {
	r.abort.Store(true)
}

// ClearAbort withdraws an abort request.
func (r *Runtime) ClearAbort() {
	r.abort.Store(false)
}

// AbortRequested reports whether an abort is pending.
func (r *Runtime) AbortRequested() bool {
	return r.abort.Load()
}

// evalEntry is the outermost evaluation frame. Nested calls, which happen
// when an external function evaluates, reuse the outer frame's settings.
func (r *Runtime) evalEntry(ctx context.Context, n *node, quiet, textual bool) (result *node) {
	if r.evalFloor >= 0 {
		return r.eval(n)
	}
	r.evalFloor = r.current.depth
	r.evalDepth, r.steps = 0, 0
	r.quiet, r.textual, r.ctx = quiet, textual, ctx
	defer func() {
		r.evalFloor = -1
		r.quiet, r.textual, r.ctx = false, false, nil
		if v := recover(); v != nil {
			if _, ok := v.(abortSignal); !ok {
				panic(v)
			}
			log.Debug("evaluation aborted")
			result = r.heads.Aborted
		}
	}()
	return r.eval(n)
}

// checkpoint is called at every evaluation step and loop iteration.
func (r *Runtime) checkpoint() {
	r.steps++
	if r.abort.Load() {
		panic(abortSignal{})
	}
	if r.ctx != nil && r.steps&63 == 1 && r.ctx.Err() != nil {
		panic(abortSignal{})
	}
}

// interrupted is the unthrottled check used while sleeping.
func (r *Runtime) interrupted() bool {
	return r.abort.Load() || (r.ctx != nil && r.ctx.Err() != nil)
}

func (r *Runtime) eval(n *node) *node {
	r.checkpoint()
	switch n.typ {
	case TypeSymbol, TypeNormal:
	default:
		return n
	}
	r.evalDepth++
	defer func() { r.evalDepth-- }()
	if r.evalDepth > maxRecursion {
		r.message("$RecursionLimit", "reclim", intNode(maxRecursion))
		return r.heads.Failed
	}
	if n.typ == TypeSymbol {
		return r.evalSymbol(n)
	}
	return r.evalNormal(n)
}

func (r *Runtime) evalSymbol(n *node) *node {
	if n.str == systemContext+"I" {
		return complexNode(intNode(0), intNode(1))
	}
	v, ok := r.space.value(n.str)
	if !ok || sameNode(v, n) {
		return n
	}
	return r.eval(v)
}

func (r *Runtime) evalNormal(n *node) *node {
	head := r.eval(n.head)
	if head.typ == TypeError {
		return head
	}
	name := ""
	if head.typ == TypeSymbol {
		name = head.str
	}
	b, isBuiltin := builtins[name]

	args := make([]*node, 0, len(n.args))
	for i, a := range n.args {
		if isBuiltin && b.hold.holds(i) {
			args = append(args, a)
			continue
		}
		a = r.eval(a)
		if a.typ == TypeError {
			return a
		}
		if a.hasHead(systemContext + "Sequence") {
			args = append(args, a.args...)
			continue
		}
		args = append(args, a)
	}

	if isBuiltin {
		if out := b.fn(r, args); out != nil {
			return out
		}
	} else if name != "" {
		if fn, ok := r.space.external(name); ok {
			return r.callExternal(name, fn, args)
		}
	}
	return normalNode(head, args)
}

// callExternal runs a host function. Its arguments are allocated in the
// current pool and are released with it.
func (r *Runtime) callExternal(name string, fn ExternalFunction, args []*node) *node {
	if k := r.checkSigned(name, r.textual); k != Success {
		log.Warningf("refusing to call %s: %s", shortName(name), k)
		return errorNode(k)
	}
	handles := make([]Expr, len(args))
	for i, a := range args {
		handles[i] = r.alloc(a)
	}
	out := fn(r, handles)
	s, ok := r.lookup(out)
	if !ok {
		log.Errorf("%s returned a released expression", shortName(name))
		return errorNode(MiscellaneousError)
	}
	return s.n
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

var defaultMessages = map[string]string{
	"General::ovfl":           "Overflow occurred in computation.",
	"General::argx":           "`1` called with `2` arguments; 1 argument is expected.",
	"General::argr":           "`1` called with 1 argument; `2` arguments are expected.",
	"General::noopen":         "Cannot open `1`.",
	"General::iterb":          "Iterator `1` does not have appropriate bounds.",
	"General::itraw":          "Raw object `1` cannot be used as an iterator.",
	"General::string":         "String expected at position `1` in `2`.",
	"General::normal":         "Nonatomic expression expected at position `1` in `2`.",
	"Part::partw":             "Part `1` of `2` does not exist.",
	"Part::pkspec1":           "The expression `1` cannot be used as a part specification.",
	"First::nofirst":          "`1` has zero length and no first element.",
	"Last::nolast":            "`1` has zero length and no last element.",
	"Rest::norest":            "Cannot take Rest of expression `1` with length zero.",
	"Power::infy":             "Infinite expression `1` encountered.",
	"Set::setraw":             "Cannot assign to raw object `1`.",
	"Set::wrsym":              "Symbol `1` is Protected.",
	"Association::invrl":      "The argument `1` is not a valid Association or a list of rules.",
	"NumericArray::type":      "`1` is not a valid numeric array type.",
	"NumericArray::nconvss":   "The argument `1` cannot be converted to a NumericArray of type `2`.",
	"Syntax::sntxf":           "\"`1`\" cannot be parsed: `2`.",
	"$RecursionLimit::reclim": "Recursion depth of `1` exceeded.",
}

// messageTemplate finds the text for symbol::tag, falling back to
// General::tag.
func (r *Runtime) messageTemplate(symbol, tag string) string {
	key := shortName(symbol) + "::" + tag
	if text, ok := r.space.message(key); ok {
		return text
	}
	if text, ok := defaultMessages[key]; ok {
		return text
	}
	if text, ok := r.space.message("General::" + tag); ok {
		return text
	}
	if text, ok := defaultMessages["General::"+tag]; ok {
		return text
	}
	return "-- Message text not found --"
}

// message raises symbol::tag with args substituted for `1`, `2`, ...
func (r *Runtime) message(symbol, tag string, args ...*node) {
	sym := r.symbols.intern(resolveName(symbol))
	r.emitMessageName(normalNode(r.heads.MessageName, []*node{sym, stringNode(tag)}), args)
}

func (r *Runtime) emitMessageName(name *node, args []*node) {
	symbol, tag := name.args[0].str, name.args[1].str
	text := r.messageTemplate(symbol, tag)
	for i, a := range args {
		s := formatNode(a)
		if a.typ == TypeString {
			s = a.str
		}
		text = strings.ReplaceAll(text, "`"+strconv.Itoa(i+1)+"`", s)
	}
	held := normalNode(r.heads.Hold, []*node{
		normalNode(r.heads.Message, append([]*node{name}, args...)),
	})
	log.Debugf("message %s::%s: %s", shortName(symbol), tag, text)
	r.emitMessage(name, held, stringNode(text))
}

// isMessageName reports a well-formed symbol::"tag".
func isMessageName(n *node) bool {
	return n.hasHead(systemContext+"MessageName") && len(n.args) == 2 &&
		n.args[0].typ == TypeSymbol && n.args[1].typ == TypeString
}

func messageKey(n *node) string {
	return fmt.Sprintf("%s::%s", shortName(n.args[0].str), n.args[1].str)
}
