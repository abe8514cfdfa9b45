package server

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/wlr/lib/runtime"
)

const (
	InspectProcedure = "/wlr.v1.HandleService/Inspect"
	ReleaseProcedure = "/wlr.v1.HandleService/Release"
)

// HandleService implements the HandleService Connect handler.
type HandleService struct {
	worker  *Worker
	handles *HandleStore
}

// NewHandleService creates a HandleService.
func NewHandleService(worker *Worker, handles *HandleStore) *HandleService {
	return &HandleService{worker: worker, handles: handles}
}

// Inspect describes the expression behind a handle.
func (s *HandleService) Inspect(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	id := req.Msg.GetValue()
	h, ok := s.handles.Lookup(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q not found", id))
	}

	res, err := s.worker.Do(func(rt *runtime.Runtime) any {
		if !rt.Valid(h.expr) {
			return nil
		}
		rt.CreateExpressionPool()
		defer rt.ReleaseExpressionPool()

		fields := describe(rt, h.expr)
		fields["length"] = rt.Length(h.expr)
		var head string
		if rt.ToString(rt.Head(h.expr), &head) == runtime.Success {
			fields["head"] = head
		}
		return fields
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if res == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q is no longer valid", id))
	}

	fields := res.(map[string]any)
	fields["handle"] = h.id
	fields["created"] = h.created.UTC().Format(time.RFC3339)
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Release frees the expression behind a handle.
func (s *HandleService) Release(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	id := req.Msg.GetValue()
	if !s.handles.Release(id) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q not found", id))
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}
