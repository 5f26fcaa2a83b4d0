package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/hpcdrive/internal/common"
	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const callerKey ctxKey = "caller"

const healthPrefix = "/grpc.health.v1.Health/"

func withCaller(ctx context.Context, c *models.Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the caller stored by the auth interceptor.
func CallerFromContext(ctx context.Context) *models.Caller {
	c, _ := ctx.Value(callerKey).(*models.Caller)
	return c
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(common.AuthorizationHeaderName)
	if len(values) == 0 {
		return ""
	}
	v := strings.TrimSpace(values[0])
	if len(v) < len(common.BearerPrefix) || !strings.EqualFold(v[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(common.BearerPrefix):])
}

// authInterceptor authenticates every drive call. Health checks pass through.
func (s *GRPCServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, healthPrefix) {
		return handler(ctx, req)
	}

	token := bearerToken(ctx)
	if token == "" {
		return nil, common.Errorf(common.ErrorUnauthorized, "missing bearer token")
	}

	caller, err := s.svc.Identity.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	ctx = logging.ContextWith(ctx, "method", info.FullMethod, "user_id", caller.User.ID)
	return handler(withCaller(ctx, caller), req)
}

// errorInterceptor turns service errors into status errors.
func (s *GRPCServer) errorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	if _, ok := status.FromError(err); ok {
		return nil, err
	}

	code := codeOf(err)
	if code == codes.Internal {
		s.logger.Error(ctx, "request failed", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	s.logger.Info(ctx, "request rejected", "method", info.FullMethod, "code", code.String(), "error", err)
	return nil, status.Error(code, err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}

	switch common.Category(err) {
	case common.ErrorNotFound:
		return codes.NotFound
	case common.ErrorConflict:
		return codes.AlreadyExists
	case common.ErrorForbidden:
		return codes.PermissionDenied
	case common.ErrorUnauthorized:
		return codes.Unauthenticated
	case common.ErrorBadRequest:
		return codes.InvalidArgument
	case common.ErrorServiceUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
