package server

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/wlr/lib/runtime"
)

const (
	EvalStringProcedure = "/wlr.v1.EvaluationService/EvalString"
	AbortProcedure      = "/wlr.v1.EvaluationService/Abort"
)

// EvalService implements the EvaluationService Connect handler.
type EvalService struct {
	worker  *Worker
	handles *HandleStore
}

// NewEvalService creates an EvalService.
func NewEvalService(worker *Worker, handles *HandleStore) *EvalService {
	return &EvalService{worker: worker, handles: handles}
}

// EvalString parses and evaluates the request text. The result is
// detached and kept in the handle store unless it is an error expression.
// Cancelling the request aborts the evaluation.
func (s *EvalService) EvalString(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	source := req.Msg.GetValue()
	if strings.TrimSpace(source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	res, err := s.worker.Do(func(rt *runtime.Runtime) any {
		return s.evaluate(ctx, rt, source)
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	msg, err := structpb.NewStruct(res.(map[string]any))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Abort interrupts the running evaluation. It does not queue behind it.
func (s *EvalService) Abort(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	log.Info("abort requested")
	s.worker.Abort()
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// evaluate runs source and collects its output. Must be called on the
// worker goroutine.
func (s *EvalService) evaluate(ctx context.Context, rt *runtime.Runtime, source string) map[string]any {
	// An abort sent while idle must not cancel this request.
	rt.ClearAbort()

	var stdout strings.Builder
	messages := []any{}
	outID, _ := rt.AddStdoutHandler(func(text string, _ any) {
		stdout.WriteString(text)
	}, nil)
	defer rt.RemoveStdoutHandler(outID)
	msgID, _ := rt.AddMessageHandler(func(name, _, text runtime.Expr, _ any) {
		messages = append(messages, messageLine(rt, name, text))
	}, nil)
	defer rt.RemoveMessageHandler(msgID)

	rt.CreateExpressionPool()
	defer rt.ReleaseExpressionPool()

	e := rt.EvalStringContext(ctx, source)
	fields := describe(rt, e)
	if !rt.ErrorQ(e) {
		rt.DetachExpression(e)
		fields["handle"] = s.handles.Create(e, fields["type"].(string), fields["result"].(string))
	}
	fields["stdout"] = stdout.String()
	fields["messages"] = messages
	return fields
}

// describe renders e for a response. Must be called on the worker
// goroutine.
func describe(rt *runtime.Runtime, e runtime.Expr) map[string]any {
	fields := map[string]any{
		"type": rt.ExpressionType(e).String(),
	}
	if rt.ErrorQ(e) {
		kind := rt.ErrorType(e).String()
		fields["result"] = kind
		fields["error"] = kind
		return fields
	}

	var text string
	if k := rt.ToString(e, &text); k != runtime.Success {
		text = k.String()
	}
	fields["result"] = text

	var js string
	if rt.ExportExpressionJSON(e, &js) == runtime.Success {
		fields["json"] = js
	}
	return fields
}

func messageLine(rt *runtime.Runtime, name, text runtime.Expr) string {
	var n, t string
	rt.ToString(name, &n)
	if rt.StringData(text, &t) != runtime.Success {
		rt.ToString(text, &t)
	}
	return n + ": " + t
}
