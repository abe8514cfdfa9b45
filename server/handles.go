package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/chazu/wlr/lib/runtime"
)

// handle is a server-side reference to a detached expression.
type handle struct {
	id       string
	expr     runtime.Expr
	typ      string
	display  string
	created  time.Time
	lastUsed time.Time
}

// HandleStore maps opaque string IDs to detached expressions. Expressions
// stay alive until the handle is released or swept, at which point they
// are released on the worker goroutine.
type HandleStore struct {
	mu      deadlock.Mutex
	handles map[string]*handle
	worker  *Worker
	now     func() time.Time
}

// NewHandleStore creates a new handle store.
func NewHandleStore(worker *Worker) *HandleStore {
	return &HandleStore{
		handles: make(map[string]*handle),
		worker:  worker,
		now:     time.Now,
	}
}

// Create registers a detached expression and returns an opaque handle ID.
func (s *HandleStore) Create(e runtime.Expr, typ, display string) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.handles[id] = &handle{
		id:       id,
		expr:     e,
		typ:      typ,
		display:  display,
		created:  now,
		lastUsed: now,
	}
	return id
}

// Lookup retrieves the handle for id and marks it used.
func (s *HandleStore) Lookup(id string) (*handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if !ok {
		return nil, false
	}
	h.lastUsed = s.now()
	return h, true
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Release removes a handle and frees its expression. It reports whether
// the handle existed.
func (s *HandleStore) Release(id string) bool {
	s.mu.Lock()
	h, ok := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()

	if ok {
		s.free([]*handle{h})
	}
	return ok
}

// ReleaseAll drops every handle.
func (s *HandleStore) ReleaseAll() {
	s.mu.Lock()
	all := make([]*handle, 0, len(s.handles))
	for id, h := range s.handles {
		all = append(all, h)
		delete(s.handles, id)
	}
	s.mu.Unlock()

	s.free(all)
}

// Sweep removes handles that haven't been accessed within the TTL.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-ttl)
	var expired []*handle
	for id, h := range s.handles {
		if h.lastUsed.Before(cutoff) {
			expired = append(expired, h)
			delete(s.handles, id)
		}
	}
	s.mu.Unlock()

	if len(expired) > 0 {
		log.Debugf("sweeping %d expired handles", len(expired))
		s.free(expired)
	}
	return len(expired)
}

// free releases expressions on the worker. Errors mean the worker has
// stopped, in which case the runtime is going away anyway.
func (s *HandleStore) free(hs []*handle) {
	_, err := s.worker.Do(func(rt *runtime.Runtime) any {
		for _, h := range hs {
			rt.ReleaseExpression(h.expr)
		}
		return nil
	})
	if err != nil {
		log.Debugf("releasing handles: %s", err)
	}
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
