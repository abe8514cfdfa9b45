package runtime

import (
	"math"
	"os"
	"strings"
	"time"

	"github.com/chazu/wlr/lib/numarray"
)

func init() {
	builtins = map[string]builtin{}
	def := func(name string, hold holdMode, fn func(r *Runtime, args []*node) *node) {
		builtins[systemContext+name] = builtin{fn: fn, hold: hold}
	}

	def("Plus", holdNone, builtinPlus)
	def("Times", holdNone, builtinTimes)
	def("Power", holdNone, builtinPower)
	def("Subtract", holdNone, builtinSubtract)
	def("Minus", holdNone, builtinMinus)
	def("Divide", holdNone, builtinDivide)

	def("Equal", holdNone, builtinEqual)
	def("Unequal", holdNone, builtinUnequal)
	def("Less", holdNone, comparison(func(c int) bool { return c < 0 }))
	def("Greater", holdNone, comparison(func(c int) bool { return c > 0 }))
	def("LessEqual", holdNone, comparison(func(c int) bool { return c <= 0 }))
	def("GreaterEqual", holdNone, comparison(func(c int) bool { return c >= 0 }))
	def("SameQ", holdNone, builtinSameQ)
	def("UnsameQ", holdNone, builtinUnsameQ)
	def("Not", holdNone, builtinNot)
	def("And", holdAll, logical(false))
	def("Or", holdAll, logical(true))
	def("If", holdRest, builtinIf)

	def("CompoundExpression", holdAll, builtinCompound)
	def("Set", holdFirst, builtinSet)
	def("SetDelayed", holdAll, builtinSetDelayed)
	def("Hold", holdAll, func(*Runtime, []*node) *node { return nil })

	def("Print", holdNone, builtinPrint)
	def("Message", holdFirst, builtinMessage)

	def("Do", holdAll, builtinDo)
	def("Table", holdAll, builtinTable)

	def("Length", holdNone, builtinLength)
	def("Part", holdNone, builtinPart)
	def("First", holdNone, builtinFirst)
	def("Last", holdNone, builtinLast)
	def("Rest", holdNone, builtinRest)
	def("Head", holdNone, builtinHead)

	def("Association", holdNone, builtinAssociation)
	def("Lookup", holdNone, builtinLookup)
	def("Keys", holdNone, builtinKeys)
	def("Values", holdNone, builtinValues)

	def("ToString", holdNone, builtinToString)
	def("StringJoin", holdNone, builtinStringJoin)
	def("NumericArray", holdNone, builtinNumericArray)

	def("Abort", holdNone, builtinAbort)
	def("Pause", holdNone, builtinPause)
	def("Get", holdNone, builtinGet)
	def("ReadString", holdNone, builtinReadString)
	def("Environment", holdNone, builtinEnvironment)
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

// flatten splices nested calls to the same head, so Plus[a, Plus[b, c]]
// becomes Plus[a, b, c].
func flatten(head string, args []*node) []*node {
	var out []*node
	for _, a := range args {
		if a.hasHead(head) {
			out = append(out, a.args...)
			continue
		}
		out = append(out, a)
	}
	return out
}

func builtinPlus(r *Runtime, args []*node) *node {
	var sum *node
	var rest []*node
	for _, a := range flatten(systemContext+"Plus", args) {
		if a.typ != TypeNumber {
			rest = append(rest, a)
			continue
		}
		if sum == nil {
			sum = a
		} else {
			sum = addNumbers(sum, a)
		}
	}
	switch {
	case len(rest) == 0 && sum == nil:
		return intNode(0)
	case len(rest) == 0:
		return sum
	case sum != nil && !sum.isZero():
		rest = append([]*node{sum}, rest...)
	}
	if len(rest) == 1 {
		return rest[0]
	}
	return normalNode(r.heads.Plus, rest)
}

func builtinTimes(r *Runtime, args []*node) *node {
	var product *node
	var rest []*node
	for _, a := range flatten(systemContext+"Times", args) {
		if a.typ != TypeNumber {
			rest = append(rest, a)
			continue
		}
		if product == nil {
			product = a
		} else {
			product = mulNumbers(product, a)
		}
	}
	switch {
	case len(rest) == 0 && product == nil:
		return intNode(1)
	case len(rest) == 0:
		return product
	case product != nil && product.isZero():
		return product
	case product != nil && !(product.num == MachineInteger && product.i == 1):
		rest = append([]*node{product}, rest...)
	}
	if len(rest) == 1 {
		return rest[0]
	}
	return normalNode(r.heads.Times, rest)
}

func builtinPower(r *Runtime, args []*node) *node {
	if len(args) != 2 {
		return nil
	}
	base, exp := args[0], args[1]
	if base.typ == TypeNumber && exp.typ == TypeNumber {
		if exactPowerOverflows(base, exp) {
			r.message("Power", "ovfl")
			return realNode(math.Inf(1))
		}
		if out, ok := powerNumbers(base, exp); ok {
			return out
		}
		if isZeroNumber(base) && isRealNumber(exp) && floatOf(exp) < 0 {
			r.message("Power", "infy", normalNode(r.heads.Power, args))
			return r.symbols.intern(systemContext + "ComplexInfinity")
		}
		return nil
	}
	if exp.isZero() {
		return intNode(1)
	}
	if exp.num == MachineInteger && exp.typ == TypeNumber && exp.i == 1 {
		return base
	}
	return nil
}

func builtinSubtract(r *Runtime, args []*node) *node {
	if len(args) != 2 {
		r.message("Subtract", "argr", r.symbols.intern(systemContext+"Subtract"), intNode(2))
		return nil
	}
	negated := builtinTimes(r, []*node{intNode(-1), args[1]})
	return builtinPlus(r, []*node{args[0], negated})
}

func builtinMinus(r *Runtime, args []*node) *node {
	if len(args) != 1 {
		r.message("Minus", "argx", r.symbols.intern(systemContext+"Minus"), intNode(int64(len(args))))
		return nil
	}
	return builtinTimes(r, []*node{intNode(-1), args[0]})
}

func builtinDivide(r *Runtime, args []*node) *node {
	if len(args) != 2 {
		r.message("Divide", "argr", r.symbols.intern(systemContext+"Divide"), intNode(2))
		return nil
	}
	inv := builtinPower(r, []*node{args[1], intNode(-1)})
	if inv == nil {
		inv = normalNode(r.heads.Power, []*node{args[1], intNode(-1)})
	}
	return builtinTimes(r, []*node{args[0], inv})
}

// ---------------------------------------------------------------------------
// Comparison and logic
// ---------------------------------------------------------------------------

// equalPair decides a == b. ok is false when the answer is unknown, as for
// two different symbols.
func equalPair(a, b *node) (bool, bool) {
	switch {
	case a.typ == TypeNumber && b.typ == TypeNumber:
		return numbersEqual(a, b)
	case sameNode(a, b):
		return true, true
	case a.typ == TypeString && b.typ == TypeString:
		return false, true
	case a.typ == TypeNumber && b.typ == TypeString, a.typ == TypeString && b.typ == TypeNumber:
		return false, true
	}
	return false, false
}

func builtinEqual(r *Runtime, args []*node) *node {
	for i := 1; i < len(args); i++ {
		eq, ok := equalPair(args[i-1], args[i])
		if !ok {
			return nil
		}
		if !eq {
			return r.heads.False
		}
	}
	return r.heads.True
}

func builtinUnequal(r *Runtime, args []*node) *node {
	for i := 0; i < len(args); i++ {
		for j := i + 1; j < len(args); j++ {
			eq, ok := equalPair(args[i], args[j])
			if !ok {
				return nil
			}
			if eq {
				return r.heads.False
			}
		}
	}
	return r.heads.True
}

func comparison(accept func(int) bool) func(*Runtime, []*node) *node {
	return func(r *Runtime, args []*node) *node {
		for i := 1; i < len(args); i++ {
			if args[i-1].typ != TypeNumber || args[i].typ != TypeNumber {
				return nil
			}
			c, ok := compareNumbers(args[i-1], args[i])
			if !ok {
				return nil
			}
			if !accept(c) {
				return r.heads.False
			}
		}
		return r.heads.True
	}
}

func builtinSameQ(r *Runtime, args []*node) *node {
	for i := 1; i < len(args); i++ {
		if !sameNode(args[i-1], args[i]) {
			return r.heads.False
		}
	}
	return r.heads.True
}

func builtinUnsameQ(r *Runtime, args []*node) *node {
	for i := 0; i < len(args); i++ {
		for j := i + 1; j < len(args); j++ {
			if sameNode(args[i], args[j]) {
				return r.heads.False
			}
		}
	}
	return r.heads.True
}

func builtinNot(r *Runtime, args []*node) *node {
	if len(args) != 1 {
		return nil
	}
	switch {
	case args[0].isSymbol(r.heads.True.str):
		return r.heads.False
	case args[0].isSymbol(r.heads.False.str):
		return r.heads.True
	}
	return nil
}

// logical builds And (shortCircuit false) and Or (shortCircuit true).
// Arguments are evaluated left to right and evaluation stops at the first
// argument equal to shortCircuit. Undecided arguments are kept.
func logical(shortCircuit bool) func(*Runtime, []*node) *node {
	return func(r *Runtime, args []*node) *node {
		stop := r.heads.boolean(shortCircuit)
		skip := r.heads.boolean(!shortCircuit)
		var rest []*node
		for _, a := range args {
			v := r.eval(a)
			if v.typ == TypeError {
				return v
			}
			switch {
			case v.isSymbol(stop.str):
				return stop
			case v.isSymbol(skip.str):
			default:
				rest = append(rest, v)
			}
		}
		switch len(rest) {
		case 0:
			return skip
		case 1:
			return rest[0]
		}
		head := "And"
		if shortCircuit {
			head = "Or"
		}
		return normalNode(r.symbols.intern(systemContext+head), rest)
	}
}

func builtinIf(r *Runtime, args []*node) *node {
	if len(args) < 2 || len(args) > 4 {
		return nil
	}
	branch := -1
	switch {
	case args[0].isSymbol(r.heads.True.str):
		branch = 1
	case args[0].isSymbol(r.heads.False.str):
		branch = 2
	case len(args) == 4:
		branch = 3
	}
	if branch < 0 {
		return nil
	}
	if branch >= len(args) {
		return r.heads.Null
	}
	return r.eval(args[branch])
}

// ---------------------------------------------------------------------------
// Sequencing and assignment
// ---------------------------------------------------------------------------

func builtinCompound(r *Runtime, args []*node) *node {
	result := r.heads.Null
	for _, a := range args {
		result = r.eval(a)
		if result.typ == TypeError {
			return result
		}
	}
	return result
}

// assignable checks the left side of Set and SetDelayed. System symbols are
// protected.
func (r *Runtime) assignable(lhs *node, op string) bool {
	if lhs.typ != TypeSymbol {
		r.message(op, "setraw", lhs)
		return false
	}
	if ctx, _ := splitName(lhs.str); ctx == systemContext {
		r.message(op, "wrsym", lhs)
		return false
	}
	return true
}

func builtinSet(r *Runtime, args []*node) *node {
	if len(args) != 2 {
		return nil
	}
	lhs, rhs := args[0], args[1]
	if isMessageName(lhs) {
		if rhs.typ != TypeString {
			return r.heads.Failed
		}
		r.space.setMessage(messageKey(lhs), rhs.str)
		return rhs
	}
	if !r.assignable(lhs, "Set") {
		return r.heads.Failed
	}
	r.space.setValue(lhs.str, rhs)
	return rhs
}

// builtinSetDelayed stores the right side unevaluated; it is evaluated on
// every use of the symbol.
func builtinSetDelayed(r *Runtime, args []*node) *node {
	if len(args) != 2 {
		return nil
	}
	if !r.assignable(args[0], "Set") {
		return r.heads.Failed
	}
	r.space.setValue(args[0].str, args[1])
	return r.heads.Null
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

// displayText renders strings without quotes and everything else in input
// form.
func displayText(n *node) string {
	if n.typ == TypeString {
		return n.str
	}
	return formatNode(n)
}

func builtinPrint(r *Runtime, args []*node) *node {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(displayText(a))
	}
	b.WriteByte('\n')
	r.emitStdout(b.String())
	return r.heads.Null
}

func builtinMessage(r *Runtime, args []*node) *node {
	if len(args) == 0 || !isMessageName(args[0]) {
		return nil
	}
	r.emitMessageName(args[0], args[1:])
	return r.heads.Null
}

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// iterator is one parsed iteration specification.
type iterator struct {
	variable *node   // nil for the bare count form
	values   []*node // explicit values for {i, {a, b, c}}
	start    *node
	stop     *node
	step     *node
}

func (r *Runtime) parseIterator(owner string, spec *node) (*iterator, bool) {
	if !spec.hasHead(listSymbolName) {
		count := r.eval(spec)
		if count.typ != TypeNumber || !isRealNumber(count) {
			r.message(owner, "iterb", spec)
			return nil, false
		}
		return &iterator{start: intNode(1), stop: count, step: intNode(1)}, true
	}
	if len(spec.args) < 2 || len(spec.args) > 4 || spec.args[0].typ != TypeSymbol {
		r.message(owner, "itraw", spec)
		return nil, false
	}
	it := &iterator{variable: spec.args[0], start: intNode(1), step: intNode(1)}
	bounds := make([]*node, len(spec.args)-1)
	for i, a := range spec.args[1:] {
		bounds[i] = r.eval(a)
	}
	if len(bounds) == 1 {
		if b := bounds[0].unpacked(r.heads.List); b.hasHead(listSymbolName) {
			it.values = b.args
			return it, true
		}
	}
	switch len(bounds) {
	case 1:
		it.stop = bounds[0]
	case 2:
		it.start, it.stop = bounds[0], bounds[1]
	case 3:
		it.start, it.stop, it.step = bounds[0], bounds[1], bounds[2]
	}
	for _, b := range []*node{it.start, it.stop, it.step} {
		if !isRealNumber(b) {
			r.message(owner, "iterb", spec)
			return nil, false
		}
	}
	if isZeroNumber(it.step) {
		r.message(owner, "iterb", spec)
		return nil, false
	}
	return it, true
}

// each binds the iteration variable to every value in turn and calls fn.
// The variable's previous definition is restored afterwards.
func (r *Runtime) each(it *iterator, fn func() bool) {
	if it.variable != nil {
		saved, had := r.space.value(it.variable.str)
		defer func() {
			if had {
				r.space.setValue(it.variable.str, saved)
			} else {
				r.space.unsetValue(it.variable.str)
			}
		}()
	}
	bind := func(v *node) bool {
		r.checkpoint()
		if it.variable != nil {
			r.space.setValue(it.variable.str, v)
		}
		return fn()
	}
	if it.values != nil {
		for _, v := range it.values {
			if !bind(v) {
				return
			}
		}
		return
	}
	descending := floatOf(it.step) < 0
	for v := it.start; ; v = addNumbers(v, it.step) {
		c, _ := compareNumbers(v, it.stop)
		if (!descending && c > 0) || (descending && c < 0) {
			return
		}
		if !bind(v) {
			return
		}
	}
}

func builtinDo(r *Runtime, args []*node) *node {
	if len(args) < 2 {
		return nil
	}
	return r.loop("Do", args[0], args[1:], false)
}

func builtinTable(r *Runtime, args []*node) *node {
	if len(args) < 2 {
		return nil
	}
	return r.loop("Table", args[0], args[1:], true)
}

// loop evaluates body over nested iterators, outermost first. With collect
// set it builds one list level per iterator, otherwise it returns Null. A
// bad iterator leaves the call unevaluated; an error result stops the loop
// and becomes the result.
func (r *Runtime) loop(owner string, body *node, specs []*node, collect bool) *node {
	it, ok := r.parseIterator(owner, specs[0])
	if !ok {
		return nil
	}
	var items []*node
	var failure *node
	r.each(it, func() bool {
		var v *node
		if len(specs) == 1 {
			v = r.eval(body)
		} else if v = r.loop(owner, body, specs[1:], collect); v == nil {
			v = r.heads.Failed
		}
		if v.typ == TypeError {
			failure = v
			return false
		}
		if collect {
			items = append(items, v)
		}
		return true
	})
	switch {
	case failure != nil:
		return failure
	case !collect:
		return r.heads.Null
	}
	return normalNode(r.heads.List, items)
}

// ---------------------------------------------------------------------------
// Structure
// ---------------------------------------------------------------------------

func builtinLength(r *Runtime, args []*node) *node {
	if len(args) != 1 {
		r.message("Length", "argx", r.symbols.intern(systemContext+"Length"), intNode(int64(len(args))))
		return nil
	}
	if n := args[0]; n.typ == TypeNumericArray && n.narr.Rank() > 0 {
		return intNode(int64(n.narr.Dimensions()[0]))
	}
	return intNode(int64(args[0].length()))
}

func builtinPart(r *Runtime, args []*node) *node {
	if len(args) < 2 {
		return nil
	}
	n := args[0]
	for _, spec := range args[1:] {
		if n.typ == TypeAssociation && spec.typ != TypeNumber {
			v, ok := n.assoc.get(spec)
			if !ok {
				r.message("Part", "partw", spec, n)
				return nil
			}
			n = v
			continue
		}
		if spec.typ != TypeNumber || spec.num != MachineInteger {
			r.message("Part", "pkspec1", spec)
			return nil
		}
		next, ok := n.partAt(int(spec.i), r.heads)
		if !ok {
			r.message("Part", "partw", spec, n)
			return nil
		}
		n = next
	}
	return n
}

func builtinFirst(r *Runtime, args []*node) *node {
	if len(args) != 1 {
		return nil
	}
	v, ok := args[0].partAt(1, r.heads)
	if !ok || args[0].length() == 0 {
		r.message("First", "nofirst", args[0])
		return nil
	}
	return v
}

func builtinLast(r *Runtime, args []*node) *node {
	if len(args) != 1 {
		return nil
	}
	v, ok := args[0].partAt(-1, r.heads)
	if !ok || args[0].length() == 0 {
		r.message("Last", "nolast", args[0])
		return nil
	}
	return v
}

func builtinRest(r *Runtime, args []*node) *node {
	if len(args) != 1 {
		return nil
	}
	rest, k := restNode(args[0])
	switch k {
	case Success:
		return rest
	case OutOfBounds:
		r.message("Rest", "norest", args[0])
	default:
		r.message("Rest", "normal", intNode(1), normalNode(r.symbols.intern(systemContext+"Rest"), args))
	}
	return nil
}

func builtinHead(r *Runtime, args []*node) *node {
	if len(args) != 1 {
		return nil
	}
	return args[0].headNode(r.heads)
}

// ruleList collects rules from rule and list-of-rule arguments.
func (r *Runtime) ruleList(args []*node) ([]*node, bool) {
	var rules []*node
	for _, a := range args {
		switch {
		case isRule(a, r.heads):
			rules = append(rules, a)
		case a.hasHead(listSymbolName):
			inner, ok := r.ruleList(a.args)
			if !ok {
				return nil, false
			}
			rules = append(rules, inner...)
		case a.typ == TypeAssociation:
			for i, k := range a.assoc.keys {
				rules = append(rules, normalNode(r.heads.Rule, []*node{k, a.assoc.vals[i]}))
			}
		default:
			return nil, false
		}
	}
	return rules, true
}

func builtinAssociation(r *Runtime, args []*node) *node {
	rules, ok := r.ruleList(args)
	if !ok {
		r.message("Association", "invrl", normalNode(r.heads.List, args))
		return nil
	}
	assoc, _ := buildAssociation(rules, r.heads)
	return assoc
}

func builtinLookup(r *Runtime, args []*node) *node {
	if len(args) < 2 || len(args) > 3 {
		return nil
	}
	src := args[0]
	if src.typ != TypeAssociation {
		rules, ok := r.ruleList([]*node{src})
		if !ok {
			return nil
		}
		src, _ = buildAssociation(rules, r.heads)
	}
	if v, ok := src.assoc.get(args[1]); ok {
		return v
	}
	if len(args) == 3 {
		return args[2]
	}
	return missingKey(args[1], r.heads)
}

func builtinKeys(r *Runtime, args []*node) *node {
	if len(args) != 1 || args[0].typ != TypeAssociation {
		return nil
	}
	return normalNode(r.heads.List, append([]*node(nil), args[0].assoc.keys...))
}

func builtinValues(r *Runtime, args []*node) *node {
	if len(args) != 1 || args[0].typ != TypeAssociation {
		return nil
	}
	return normalNode(r.heads.List, append([]*node(nil), args[0].assoc.vals...))
}

// ---------------------------------------------------------------------------
// Strings and arrays
// ---------------------------------------------------------------------------

func builtinToString(r *Runtime, args []*node) *node {
	switch {
	case len(args) == 1:
	case len(args) == 2 && args[1].isSymbol(r.heads.OutputForm.str):
	case len(args) == 2 && args[1].isSymbol(r.heads.InputForm.str):
		return stringNode(formatNode(args[0]))
	default:
		return nil
	}
	return stringNode(displayText(args[0]))
}

func builtinStringJoin(r *Runtime, args []*node) *node {
	var b strings.Builder
	var join func([]*node) bool
	join = func(parts []*node) bool {
		for i, p := range parts {
			switch {
			case p.typ == TypeString:
				b.WriteString(p.str)
			case p.hasHead(listSymbolName):
				if !join(p.args) {
					return false
				}
			default:
				r.message("StringJoin", "string", intNode(int64(i+1)), normalNode(r.symbols.intern(systemContext+"StringJoin"), args))
				return false
			}
		}
		return true
	}
	if !join(args) {
		return nil
	}
	return stringNode(b.String())
}

// builtinNumericArray packs a rectangular list of real numbers into a
// numeric array of the named type (Real64 when omitted).
func builtinNumericArray(r *Runtime, args []*node) *node {
	if len(args) < 1 || len(args) > 2 {
		return nil
	}
	if args[0].typ == TypeNumericArray && len(args) == 1 {
		return args[0]
	}
	typ := numarray.Real64
	if len(args) == 2 {
		var ok bool
		if args[1].typ == TypeString {
			typ, ok = numarray.ParseType(args[1].str)
		}
		if !ok || !typ.Supported() {
			r.message("NumericArray", "type", args[1])
			return nil
		}
	}
	var dims []int
	var flat []float64
	leaf := -1
	if !collectReals(args[0], 0, &dims, &leaf, &flat) {
		r.message("NumericArray", "nconvss", args[0], stringNode(typ.String()))
		return nil
	}
	src, err := numarray.FromData(flat)
	if err != nil {
		return nil
	}
	src, code := src.Reshape(dims)
	if code != numarray.NoError {
		return nil
	}
	out, code := numarray.Convert(src, typ, numarray.ClipAndRound, 0)
	if code != numarray.NoError {
		r.message("NumericArray", "nconvss", args[0], stringNode(typ.String()))
		return nil
	}
	out.Share()
	return numericArrayNode(out)
}

// collectReals flattens a rectangular nested list, recording dimensions on
// the way down. leaf is the level every number must sit at.
func collectReals(n *node, level int, dims *[]int, leaf *int, flat *[]float64) bool {
	if n.typ == TypePackedArray {
		n = n.unpacked(nil)
	} else if !n.hasHead(listSymbolName) {
		if level == 0 || !isRealNumber(n) {
			return false
		}
		if *leaf < 0 {
			*leaf = level
		}
		*flat = append(*flat, floatOf(n))
		return level == *leaf
	}
	if *leaf >= 0 && level >= *leaf {
		return false
	}
	if level == len(*dims) {
		*dims = append(*dims, len(n.args))
	} else if level > len(*dims) || (*dims)[level] != len(n.args) {
		return false
	}
	for _, a := range n.args {
		if !collectReals(a, level+1, dims, leaf, flat) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Control and host access
// ---------------------------------------------------------------------------

func builtinAbort(*Runtime, []*node) *node {
	panic(abortSignal{})
}

const pauseSlice = 10 * time.Millisecond

func builtinPause(r *Runtime, args []*node) *node {
	if len(args) != 1 || !isRealNumber(args[0]) || floatOf(args[0]) < 0 {
		return nil
	}
	deadline := time.Now().Add(time.Duration(floatOf(args[0]) * float64(time.Second)))
	for {
		if r.interrupted() {
			panic(abortSignal{})
		}
		left := time.Until(deadline)
		if left <= 0 {
			return r.heads.Null
		}
		time.Sleep(min(left, pauseSlice))
	}
}

// contained reports whether host access is refused for this evaluation.
func (r *Runtime) contained(name string) bool {
	if r.config.Containment == Contained {
		log.Warningf("%s refused: runtime is contained", name)
		return true
	}
	return false
}

func builtinGet(r *Runtime, args []*node) *node {
	if len(args) != 1 || args[0].typ != TypeString {
		return nil
	}
	if r.contained("Get") {
		return errorNode(UnsafeExpression)
	}
	data, err := os.ReadFile(args[0].str)
	if err != nil {
		r.message("Get", "noopen", args[0])
		return r.heads.Failed
	}
	prog, err := r.parse(string(data))
	if err != nil {
		return r.heads.Failed
	}
	saved := r.textual
	r.textual = true
	defer func() { r.textual = saved }()
	return r.eval(prog)
}

func builtinReadString(r *Runtime, args []*node) *node {
	if len(args) != 1 || args[0].typ != TypeString {
		return nil
	}
	if r.contained("ReadString") {
		return errorNode(UnsafeExpression)
	}
	data, err := os.ReadFile(args[0].str)
	if err != nil {
		r.message("ReadString", "noopen", args[0])
		return r.heads.Failed
	}
	return stringNode(string(data))
}

func builtinEnvironment(r *Runtime, args []*node) *node {
	if len(args) != 1 || args[0].typ != TypeString {
		return nil
	}
	if r.contained("Environment") {
		return errorNode(UnsafeExpression)
	}
	v, ok := os.LookupEnv(args[0].str)
	if !ok {
		return r.heads.Failed
	}
	return stringNode(v)
}
