package runtime

import (
	"fmt"
	"io"
	"os"
)

// HandlerID identifies a registered handler for removal.
type HandlerID uint64

// StdoutHandler receives text the evaluator prints.
type StdoutHandler func(text string, contextData any)

// MessageHandler receives a message event: the MessageName expression,
// the held Message expression and the formatted message text as a string
// expression. The handles belong to the pool current during evaluation.
type MessageHandler func(messageName, heldMessage, messageText Expr, contextData any)

type stdoutEntry struct {
	id   HandlerID
	fn   StdoutHandler
	data any
}

type messageEntry struct {
	id   HandlerID
	fn   MessageHandler
	data any
}

// handlerRegistry keeps handlers in registration order, which is also
// invocation order.
type handlerRegistry struct {
	nextID  HandlerID
	stdout  []stdoutEntry
	message []messageEntry
}

func (h *handlerRegistry) clear() {
	h.stdout = nil
	h.message = nil
}

// AddStdoutHandler registers fn for printed output.
func (r *Runtime) AddStdoutHandler(fn StdoutHandler, contextData any) (HandlerID, ErrorKind) {
	if !r.started {
		return 0, RuntimeNotStarted
	}
	if fn == nil {
		return 0, MiscellaneousError
	}
	r.handlers.nextID++
	id := r.handlers.nextID
	r.handlers.stdout = append(r.handlers.stdout, stdoutEntry{id: id, fn: fn, data: contextData})
	return id, Success
}

// AddMessageHandler registers fn for messages.
func (r *Runtime) AddMessageHandler(fn MessageHandler, contextData any) (HandlerID, ErrorKind) {
	if !r.started {
		return 0, RuntimeNotStarted
	}
	if fn == nil {
		return 0, MiscellaneousError
	}
	r.handlers.nextID++
	id := r.handlers.nextID
	r.handlers.message = append(r.handlers.message, messageEntry{id: id, fn: fn, data: contextData})
	return id, Success
}

// RemoveStdoutHandler unregisters a stdout handler. Unknown ids are ignored.
func (r *Runtime) RemoveStdoutHandler(id HandlerID) {
	for i, e := range r.handlers.stdout {
		if e.id == id {
			r.handlers.stdout = append(r.handlers.stdout[:i:i], r.handlers.stdout[i+1:]...)
			return
		}
	}
}

// RemoveMessageHandler unregisters a message handler. Unknown ids are
// ignored.
func (r *Runtime) RemoveMessageHandler(id HandlerID) {
	for i, e := range r.handlers.message {
		if e.id == id {
			r.handlers.message = append(r.handlers.message[:i:i], r.handlers.message[i+1:]...)
			return
		}
	}
}

// DefaultStdoutHandler writes text to contextData when it is an io.Writer
// and to standard output otherwise.
func DefaultStdoutHandler(text string, contextData any) {
	w, ok := contextData.(io.Writer)
	if !ok {
		w = os.Stdout
	}
	io.WriteString(w, text)
}

// DefaultMessageHandler writes "name: text" to contextData when it is an
// io.Writer and to standard output otherwise. Register it as
// rt.DefaultMessageHandler.
func (r *Runtime) DefaultMessageHandler(messageName, heldMessage, messageText Expr, contextData any) {
	w, ok := contextData.(io.Writer)
	if !ok {
		w = os.Stdout
	}
	name, text := "", ""
	if n := r.peek(messageName); n != nil {
		name = r.inputForm(n)
	}
	if n := r.peek(messageText); n != nil {
		if n.typ == TypeString {
			text = n.str
		} else {
			text = r.inputForm(n)
		}
	}
	fmt.Fprintf(w, "%s: %s\n", name, text)
}

// emitStdout hands printed text to every stdout handler. A snapshot is
// taken so handlers may add or remove handlers.
func (r *Runtime) emitStdout(text string) {
	if r.quiet {
		return
	}
	for _, e := range append([]stdoutEntry(nil), r.handlers.stdout...) {
		e.fn(text, e.data)
	}
}

// emitMessage raises a message event. The handles passed to handlers live
// in the current pool.
func (r *Runtime) emitMessage(name, held, text *node) {
	if len(r.handlers.message) == 0 {
		return
	}
	nameExpr := r.alloc(name)
	heldExpr := r.alloc(held)
	textExpr := r.alloc(text)
	for _, e := range append([]messageEntry(nil), r.handlers.message...) {
		e.fn(nameExpr, heldExpr, textExpr, e.data)
	}
}
