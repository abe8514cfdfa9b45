package runtime

import (
	"sort"
	"sync"
)

// ExternalFunction is a host-defined function. It receives its evaluated
// arguments as handles in the current pool and returns a result handle.
// Returning an error expression makes the call evaluate to that error.
type ExternalFunction func(rt *Runtime, args []Expr) Expr

// SymbolSpace holds symbol definitions: values assigned with Set and
// external functions installed by the host.
type SymbolSpace struct {
	values    map[string]*node
	messages  map[string]string
	externals map[string]ExternalFunction
	valueMu   sync.RWMutex
	externMu  sync.RWMutex
}

// NewSymbolSpace creates a new empty symbol space
func NewSymbolSpace() *SymbolSpace {
	return &SymbolSpace{
		values:    make(map[string]*node),
		messages:  make(map[string]string),
		externals: make(map[string]ExternalFunction),
	}
}

func (ss *SymbolSpace) setValue(fullName string, v *node) {
	ss.valueMu.Lock()
	defer ss.valueMu.Unlock()
	ss.values[fullName] = v
}

func (ss *SymbolSpace) value(fullName string) (*node, bool) {
	ss.valueMu.RLock()
	defer ss.valueMu.RUnlock()
	v, ok := ss.values[fullName]
	return v, ok
}

func (ss *SymbolSpace) unsetValue(fullName string) {
	ss.valueMu.Lock()
	defer ss.valueMu.Unlock()
	delete(ss.values, fullName)
}

// clearValues drops every assignment and message template. External functions survive so a
// host can restart the runtime without defining them again.
func (ss *SymbolSpace) clearValues() {
	ss.valueMu.Lock()
	defer ss.valueMu.Unlock()
	ss.values = make(map[string]*node)
	ss.messages = make(map[string]string)
}

// setMessage stores a message template under "symbol::tag".
func (ss *SymbolSpace) setMessage(key, text string) {
	ss.valueMu.Lock()
	defer ss.valueMu.Unlock()
	ss.messages[key] = text
}

func (ss *SymbolSpace) message(key string) (string, bool) {
	ss.valueMu.RLock()
	defer ss.valueMu.RUnlock()
	text, ok := ss.messages[key]
	return text, ok
}

func (ss *SymbolSpace) defineExternal(fullName string, fn ExternalFunction) {
	ss.externMu.Lock()
	defer ss.externMu.Unlock()
	if fn == nil {
		delete(ss.externals, fullName)
		return
	}
	ss.externals[fullName] = fn
}

func (ss *SymbolSpace) external(fullName string) (ExternalFunction, bool) {
	ss.externMu.RLock()
	defer ss.externMu.RUnlock()
	fn, ok := ss.externals[fullName]
	return fn, ok
}

// AssignedNames returns the sorted names of symbols that have a value.
func (ss *SymbolSpace) AssignedNames() []string {
	ss.valueMu.RLock()
	defer ss.valueMu.RUnlock()

	names := make([]string, 0, len(ss.values))
	for name := range ss.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExternalNames returns the sorted names of host-defined functions.
func (ss *SymbolSpace) ExternalNames() []string {
	ss.externMu.RLock()
	defer ss.externMu.RUnlock()

	names := make([]string, 0, len(ss.externals))
	for name := range ss.externals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValueCount returns the number of assigned symbols
func (ss *SymbolSpace) ValueCount() int {
	ss.valueMu.RLock()
	defer ss.valueMu.RUnlock()
	return len(ss.values)
}

// DefineFunction installs fn as the definition of name. Passing nil removes
// the definition. In signed code mode calls to fn are gated by the
// signatures registered for name.
func (r *Runtime) DefineFunction(name string, fn ExternalFunction) ErrorKind {
	full := resolveName(name)
	if !validFullName(full) {
		return Malformed
	}
	if _, builtin := builtins[full]; builtin {
		return MiscellaneousError
	}
	r.space.defineExternal(full, fn)
	r.symbols.intern(full)
	return Success
}

// Symbols exposes the runtime's definitions.
func (r *Runtime) Symbols() *SymbolSpace {
	return r.space
}
