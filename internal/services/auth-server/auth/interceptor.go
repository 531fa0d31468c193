package auth

import (
	"context"
	"errors"

	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey int

const identityKey ctxKey = 1

func IdentityFromCtx(ctx context.Context) (domainauth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domainauth.Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

var publicFullMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

func UnaryAuthInterceptor(g Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		if publicFullMethods[info.FullMethod] {
			return next(ctx, req)
		}
		ctx, err := authorize(ctx, g)
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func StreamAuthInterceptor(g Authenticator) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		if publicFullMethods[info.FullMethod] {
			return next(srv, ss)
		}
		ctx, err := authorize(ss.Context(), g)
		if err != nil {
			return err
		}
		return next(srv, &identityStream{ServerStream: ss, ctx: ctx})
	}
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

func authorize(ctx context.Context, g Authenticator) (context.Context, error) {
	token := bearer(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	id, err := g.Authenticate(ctx, token)
	if errors.Is(err, domainauth.ErrUnauthorized) {
		return nil, status.Error(codes.Unauthenticated, domainauth.UnauthorizedReason(err))
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "authentication failed")
	}
	return WithIdentity(ctx, id), nil
}

func bearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return BearerToken(vals[0])
}
