package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/wlr/lib/runtime"
)

// ---------------------------------------------------------------------------
// Test infrastructure
// ---------------------------------------------------------------------------

type testEnv struct {
	RT      *runtime.Runtime
	Server  *Server
	HTTP    *httptest.Server
	Eval    *connect.Client[wrapperspb.StringValue, structpb.Struct]
	Abort   *connect.Client[emptypb.Empty, emptypb.Empty]
	Inspect *connect.Client[wrapperspb.StringValue, structpb.Struct]
	Release *connect.Client[wrapperspb.StringValue, emptypb.Empty]
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	rt := runtime.New()
	if k := rt.Start(runtime.Version1, runtime.SignedCodeModeLicense, "", nil); k != runtime.Success {
		t.Fatalf("Start = %v", k)
	}
	s := New(rt, opts...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
		rt.Close()
	})

	c := ts.Client()
	return &testEnv{
		RT:      rt,
		Server:  s,
		HTTP:    ts,
		Eval:    connect.NewClient[wrapperspb.StringValue, structpb.Struct](c, ts.URL+EvalStringProcedure),
		Abort:   connect.NewClient[emptypb.Empty, emptypb.Empty](c, ts.URL+AbortProcedure),
		Inspect: connect.NewClient[wrapperspb.StringValue, structpb.Struct](c, ts.URL+InspectProcedure),
		Release: connect.NewClient[wrapperspb.StringValue, emptypb.Empty](c, ts.URL+ReleaseProcedure),
	}
}

func (e *testEnv) eval(t *testing.T, src string) map[string]any {
	t.Helper()
	resp, err := e.Eval.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(src)))
	if err != nil {
		t.Fatalf("EvalString(%q) returned error: %v", src, err)
	}
	return resp.Msg.AsMap()
}

// ---------------------------------------------------------------------------
// EvalString
// ---------------------------------------------------------------------------

func TestEvalString_Arithmetic(t *testing.T) {
	env := newTestEnv(t)

	got := env.eval(t, "1 + 2*3")
	if got["result"] != "7" {
		t.Errorf("result = %v, want 7", got["result"])
	}
	if got["type"] != "NUMBER" {
		t.Errorf("type = %v, want NUMBER", got["type"])
	}
	if got["json"] != "7" {
		t.Errorf("json = %v, want 7", got["json"])
	}
	if id, _ := got["handle"].(string); id == "" {
		t.Error("EvalString should return a handle")
	}
}

func TestEvalString_CapturesStdout(t *testing.T) {
	env := newTestEnv(t)

	got := env.eval(t, `Print["hello"]; 5`)
	if got["stdout"] != "hello\n" {
		t.Errorf("stdout = %q, want %q", got["stdout"], "hello\n")
	}
	if got["result"] != "5" {
		t.Errorf("result = %v, want 5", got["result"])
	}
}

func TestEvalString_CapturesMessages(t *testing.T) {
	env := newTestEnv(t)

	got := env.eval(t, "Part[{1, 2}, 5]")
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v, want one", got["messages"])
	}
	if line, _ := msgs[0].(string); !strings.Contains(line, "partw") {
		t.Errorf("message = %q, want Part::partw", line)
	}
}

func TestEvalString_SyntaxError(t *testing.T) {
	env := newTestEnv(t)

	got := env.eval(t, "1 +")
	if got["error"] != runtime.Malformed.String() {
		t.Errorf("error = %v, want %v", got["error"], runtime.Malformed)
	}
	if _, ok := got["handle"]; ok {
		t.Error("error results should not get a handle")
	}
	if env.Server.handles.Len() != 0 {
		t.Errorf("handles = %d, want 0", env.Server.handles.Len())
	}
}

func TestEvalString_EmptySource(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Eval.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String("  ")))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", connect.CodeOf(err))
	}
}

func TestEvalString_StatePersists(t *testing.T) {
	env := newTestEnv(t)

	env.eval(t, "x = 20")
	got := env.eval(t, "x + 1")
	if got["result"] != "21" {
		t.Errorf("result = %v, want 21", got["result"])
	}
}

// ---------------------------------------------------------------------------
// Abort
// ---------------------------------------------------------------------------

func TestAbort_InterruptsEvaluation(t *testing.T) {
	env := newTestEnv(t)

	done := make(chan map[string]any, 1)
	go func() {
		resp, err := env.Eval.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String("Pause[30]")))
		if err != nil {
			done <- nil
			return
		}
		done <- resp.Msg.AsMap()
	}()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case got := <-done:
			if got == nil {
				t.Fatal("EvalString failed")
			}
			if res, _ := got["result"].(string); !strings.Contains(res, "Aborted") {
				t.Errorf("result = %q, want $Aborted", res)
			}
			return
		case <-deadline:
			t.Fatal("evaluation was not aborted")
		case <-time.After(20 * time.Millisecond):
			if _, err := env.Abort.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{})); err != nil {
				t.Fatalf("Abort returned error: %v", err)
			}
		}
	}
}

func TestAbort_IdleDoesNotAffectNextEvaluation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.Abort.CallUnary(context.Background(), connect.NewRequest(&emptypb.Empty{})); err != nil {
		t.Fatalf("Abort returned error: %v", err)
	}
	got := env.eval(t, "2 + 2")
	if got["result"] != "4" {
		t.Errorf("result = %v, want 4", got["result"])
	}
}

// ---------------------------------------------------------------------------
// Handles
// ---------------------------------------------------------------------------

func TestInspect(t *testing.T) {
	env := newTestEnv(t)

	id := env.eval(t, "{1, 2, 3}")["handle"].(string)
	resp, err := env.Inspect.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(id)))
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	got := resp.Msg.AsMap()
	if got["result"] != "{1, 2, 3}" {
		t.Errorf("result = %v, want {1, 2, 3}", got["result"])
	}
	if got["length"] != float64(3) {
		t.Errorf("length = %v, want 3", got["length"])
	}
	if got["head"] != "List" {
		t.Errorf("head = %v, want List", got["head"])
	}
	if got["handle"] != id {
		t.Errorf("handle = %v, want %s", got["handle"], id)
	}
}

func TestInspect_UnknownHandle(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Inspect.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String("nope")))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", connect.CodeOf(err))
	}
}

func TestRelease(t *testing.T) {
	env := newTestEnv(t)

	id := env.eval(t, `"kept"`)["handle"].(string)
	if _, err := env.Release.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(id))); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	_, err := env.Release.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(id)))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("second Release code = %v, want NotFound", connect.CodeOf(err))
	}
	_, err = env.Inspect.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(id)))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("Inspect after Release code = %v, want NotFound", connect.CodeOf(err))
	}
}

func TestHandleStore_Sweep(t *testing.T) {
	env := newTestEnv(t)
	store := env.Server.handles

	now := time.Now()
	store.now = func() time.Time { return now }

	id := env.eval(t, "{1, 2}")["handle"].(string)
	now = now.Add(time.Hour)
	fresh := env.eval(t, "{3}")["handle"].(string)

	if n := store.Sweep(30 * time.Minute); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, ok := store.Lookup(id); ok {
		t.Error("expired handle survived the sweep")
	}
	if _, ok := store.Lookup(fresh); !ok {
		t.Error("fresh handle was swept")
	}
}

func TestDetachedResultsSurviveLaterRequests(t *testing.T) {
	env := newTestEnv(t)

	id := env.eval(t, "Table[i^2, {i, 4}]")["handle"].(string)
	for i := 0; i < 5; i++ {
		env.eval(t, "Range")
	}
	resp, err := env.Inspect.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String(id)))
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if got := resp.Msg.AsMap()["result"]; got != "{1, 4, 9, 16}" {
		t.Errorf("result = %v, want {1, 4, 9, 16}", got)
	}
}

// ---------------------------------------------------------------------------
// Serve
// ---------------------------------------------------------------------------

func TestServe_ShutsDownOnCancel(t *testing.T) {
	rt := runtime.New()
	if k := rt.Start(runtime.Version1, runtime.SignedCodeModeLicense, "", nil); k != runtime.Success {
		t.Fatalf("Start = %v", k)
	}
	defer rt.Close()
	s := New(rt)
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestWorker_RecoversPanics(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Server.worker.Do(func(*runtime.Runtime) any { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want boom", err)
	}
	if got := env.eval(t, "1"); got["result"] != "1" {
		t.Errorf("worker unusable after panic: %v", got)
	}
}
