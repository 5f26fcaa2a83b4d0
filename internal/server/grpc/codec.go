package grpc

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// handlerFunc serves one method on a decoded Struct request.
type handlerFunc func(ctx context.Context, s *GRPCServer, caller *models.Caller, in *structpb.Struct) (any, error)

// bind adapts a typed handler: the request Struct is decoded into Req via its
// JSON form.
func bind[Req any, Resp any](fn func(ctx context.Context, s *GRPCServer, caller *models.Caller, req *Req) (Resp, error)) handlerFunc {
	return func(ctx context.Context, s *GRPCServer, caller *models.Caller, in *structpb.Struct) (any, error) {
		req := new(Req)
		if err := decode(in, req); err != nil {
			return nil, err
		}
		return fn(ctx, s, caller, req)
	}
}

func decode(in *structpb.Struct, out any) error {
	if in == nil || len(in.GetFields()) == 0 {
		return nil
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return common.Errorf(common.ErrorBadRequest, "malformed request: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return common.Errorf(common.ErrorBadRequest, "malformed request: %v", err)
	}
	return nil
}

// encode converts a response value, which must marshal to a JSON object, into
// a Struct.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.Errorf(common.ErrorInternal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, common.Errorf(common.ErrorInternal, "encode response: %v", err)
	}
	return out, nil
}

func (s *GRPCServer) methodHandler(name string, h handlerFunc) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + name
	return func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}

		call := func(ctx context.Context, req any) (any, error) {
			out, err := h(ctx, s, CallerFromContext(ctx), req.(*structpb.Struct))
			if err != nil {
				return nil, err
			}
			return encode(out)
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: s, FullMethod: fullMethod}, call)
	}
}

func (s *GRPCServer) serviceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "hpcdrive/v1/drive.proto",
	}
	for _, name := range MethodNames() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    s.methodHandler(name, methods[name]),
		})
	}
	return desc
}
