package runtime

import (
	"strings"
	"sync"
	"unicode"
)

const (
	systemContext = "System`"
	globalContext = "Global`"
)

// systemNames are the base names that resolve into System` when a bare
// symbol is constructed or parsed.
var systemNames = map[string]bool{}

func init() {
	for _, name := range []string{
		"List", "Rule", "RuleDelayed", "Association", "Missing", "True", "False",
		"Null", "Hold", "HoldComplete", "Integer", "Real", "Complex", "Rational",
		"String", "Symbol", "NumericArray", "MessageName", "Message", "Plus",
		"Times", "Power", "Equal", "Unequal", "Less", "Greater", "LessEqual",
		"GreaterEqual", "Not", "And", "Or", "SameQ", "If", "CompoundExpression",
		"Set", "Print", "Do", "Table", "Length", "Part", "First", "Last", "Rest",
		"Lookup", "ToString", "StringJoin", "Abort", "Pause", "Get",
		"ReadString", "Environment", "InputForm", "OutputForm", "General",
		"Failure", "Indeterminate", "ComplexInfinity", "Overflow", "Underflow",
		"I", "Keys", "Values", "Head", "$Aborted", "$Failed",
		"$RecursionLimit", "Sequence", "Subtract", "Minus", "Divide", "UnsameQ",
		"SetDelayed", "Syntax", "All",
	} {
		systemNames[name] = true
	}
}

// SymbolTable interns symbol nodes by full name so equal symbols share a
// node. Symbols are immutable.
type SymbolTable struct {
	mu     sync.RWMutex
	byName map[string]*node
	order  []string
}

// NewSymbolTable creates a new empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]*node),
		order:  make([]string, 0, 256),
	}
}

// intern returns the shared node for a full symbol name, creating it if
// needed.
func (st *SymbolTable) intern(fullName string) *node {
	st.mu.RLock()
	if n, ok := st.byName[fullName]; ok {
		st.mu.RUnlock()
		return n
	}
	st.mu.RUnlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	// Double-check after acquiring write lock
	if n, ok := st.byName[fullName]; ok {
		return n
	}
	n := symbolNode(fullName)
	st.byName[fullName] = n
	st.order = append(st.order, fullName)
	return n
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.order)
}

// All returns all full symbol names in interning order.
func (st *SymbolTable) All() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make([]string, len(st.order))
	copy(result, st.order)
	return result
}

// resolveName turns a possibly bare symbol name into a full name.
func resolveName(name string) string {
	switch {
	case strings.HasPrefix(name, "`"):
		return globalContext + name[1:]
	case strings.Contains(name, "`"):
		return name
	case systemNames[name]:
		return systemContext + name
	}
	return globalContext + name
}

// splitName separates a full symbol name into context and base name.
func splitName(fullName string) (context, base string) {
	i := strings.LastIndexByte(fullName, '`')
	if i < 0 {
		return "", fullName
	}
	return fullName[:i+1], fullName[i+1:]
}

// shortName drops System` and Global` for display.
func shortName(fullName string) string {
	ctx, base := splitName(fullName)
	if ctx == systemContext || ctx == globalContext {
		return base
	}
	return fullName
}

// validBaseName reports whether s is a legal symbol base name.
func validBaseName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '$' || unicode.IsLetter(r):
		case unicode.IsDigit(r) && i > 0:
		default:
			return false
		}
	}
	return true
}

// validFullName checks every context segment and the base name.
func validFullName(fullName string) bool {
	ctx, base := splitName(fullName)
	if !validBaseName(base) {
		return false
	}
	if ctx == "" {
		return true
	}
	for _, seg := range strings.Split(strings.TrimSuffix(ctx, "`"), "`") {
		if !validBaseName(seg) {
			return false
		}
	}
	return true
}

// symbolHeads caches the symbol nodes the runtime builds expressions with.
type symbolHeads struct {
	List, Rule, RuleDelayed, Association, Missing *node
	True, False, Null, Hold                       *node
	Integer, Real, Complex, Rational, String      *node
	Symbol, NumericArray, MessageName, Message    *node
	Plus, Times, Power, Aborted, Failed, Failure  *node
	CompoundExpression, Sequence, InputForm       *node
	OutputForm, General                           *node
}

func newSymbolHeads(st *SymbolTable) *symbolHeads {
	s := func(base string) *node { return st.intern(systemContext + base) }
	return &symbolHeads{
		List:               s("List"),
		Rule:               s("Rule"),
		RuleDelayed:        s("RuleDelayed"),
		Association:        s("Association"),
		Missing:            s("Missing"),
		True:               s("True"),
		False:              s("False"),
		Null:               s("Null"),
		Hold:               s("Hold"),
		Integer:            s("Integer"),
		Real:               s("Real"),
		Complex:            s("Complex"),
		Rational:           s("Rational"),
		String:             s("String"),
		Symbol:             s("Symbol"),
		NumericArray:       s("NumericArray"),
		MessageName:        s("MessageName"),
		Message:            s("Message"),
		Plus:               s("Plus"),
		Times:              s("Times"),
		Power:              s("Power"),
		Aborted:            s("$Aborted"),
		Failed:             s("$Failed"),
		Failure:            s("Failure"),
		CompoundExpression: s("CompoundExpression"),
		Sequence:           s("Sequence"),
		InputForm:          s("InputForm"),
		OutputForm:         s("OutputForm"),
		General:            s("General"),
	}
}

func (h *symbolHeads) boolean(b bool) *node {
	if b {
		return h.True
	}
	return h.False
}
