// Package server exposes a runtime over Connect, gRPC and gRPC-Web on a
// single HTTP port.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/wlr/lib/runtime"
)

var log = commonlog.GetLogger("wlr.server")

var errStopped = errors.New("worker stopped")

// Server wraps a started runtime.
type Server struct {
	worker  *Worker
	handles *HandleStore
	mux     *http.ServeMux

	stopSweeper func()
}

// Option configures a Server.
type Option func(*config)

type config struct {
	handleTTL     time.Duration
	sweepInterval time.Duration
}

// WithHandleTTL sets how long an unused handle survives.
func WithHandleTTL(ttl time.Duration) Option {
	return func(c *config) { c.handleTTL = ttl }
}

// WithSweepInterval sets how often expired handles are collected.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// New creates a Server for rt. From here on the server's worker owns rt;
// callers must not use it directly until Stop returns.
func New(rt *runtime.Runtime, opts ...Option) *Server {
	cfg := &config{
		handleTTL:     10 * time.Minute,
		sweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewWorker(rt)
	handles := NewHandleStore(worker)

	s := &Server{
		worker:  worker,
		handles: handles,
		mux:     http.NewServeMux(),
	}

	evalSvc := NewEvalService(worker, handles)
	handleSvc := NewHandleService(worker, handles)

	s.mux.Handle(EvalStringProcedure, connect.NewUnaryHandler(EvalStringProcedure, evalSvc.EvalString))
	s.mux.Handle(AbortProcedure, connect.NewUnaryHandler(AbortProcedure, evalSvc.Abort))
	s.mux.Handle(InspectProcedure, connect.NewUnaryHandler(InspectProcedure, handleSvc.Inspect))
	s.mux.Handle(ReleaseProcedure, connect.NewUnaryHandler(ReleaseProcedure, handleSvc.Release))

	s.stopSweeper = handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	// gRPC clients need HTTP/2 without TLS.
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)
	srv := &http.Server{
		Handler:           s.mux,
		Protocols:         &protocols,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Noticef("listening on %s", ln.Addr())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		// Unblock a long evaluation so in-flight requests can finish.
		s.worker.Abort()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stop releases every handle and shuts down the worker. The runtime is
// usable by the caller again afterwards.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	s.handles.ReleaseAll()
	s.worker.Stop()
}
