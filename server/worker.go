package server

import (
	"fmt"

	"github.com/chazu/wlr/lib/runtime"
)

// request represents a unit of work to be executed on the runtime goroutine.
type request struct {
	fn   func(*runtime.Runtime) any
	done chan result
}

// result holds the return value from a runtime operation.
type result struct {
	value any
	err   error
}

// Worker serializes all runtime access through a single goroutine.
// The runtime is single-threaded; every handler must go through the
// worker to avoid data races. Abort is the one exception.
type Worker struct {
	rt       *runtime.Runtime
	requests chan request
	quit     chan struct{}
	stopped  chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(rt *runtime.Runtime) *Worker {
	w := &Worker{
		rt:       rt,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer close(w.stopped)
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the runtime, recovering from panics.
func (w *Worker) execute(fn func(*runtime.Runtime) any) (res result) {
	defer func() {
		if v := recover(); v != nil {
			log.Errorf("worker panic: %v", v)
			res.err = fmt.Errorf("%v", v)
		}
	}()
	res.value = fn(w.rt)
	return res
}

// Do submits fn for execution on the runtime goroutine and blocks until it
// completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*runtime.Runtime) any) (any, error) {
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case w.requests <- req:
	case <-w.stopped:
		return nil, errStopped
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-w.stopped:
		return nil, errStopped
	}
}

// Abort interrupts the evaluation in progress, if any. It does not wait
// for the worker.
func (w *Worker) Abort() {
	w.rt.Abort()
}

// Stop shuts down the worker goroutine after the current job.
func (w *Worker) Stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.stopped
}
