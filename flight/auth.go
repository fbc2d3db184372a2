package flight

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ErrUnauthorized indicates authentication failed.
// Return this from Authenticator.Authenticate() for invalid tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator validates bearer tokens.
// Implementations MUST be goroutine-safe.
type Authenticator interface {
	// Authenticate returns the identity behind token,
	// or an error (typically ErrUnauthorized) to reject the request.
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

type bearerAuthenticator struct {
	validate func(token string) (string, error)
}

// BearerAuth creates an Authenticator from a validation function.
//
// Example:
//
//	auth := flight.BearerAuth(func(token string) (string, error) {
//	    if token != secret {
//	        return "", flight.ErrUnauthorized
//	    }
//	    return "worker", nil
//	})
func BearerAuth(validate func(token string) (identity string, err error)) Authenticator {
	return &bearerAuthenticator{validate: validate}
}

func (b *bearerAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	return b.validate(token)
}

type identityKey struct{}

// IdentityFromContext returns the authenticated identity, or "" without authentication.
func IdentityFromContext(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

// StreamServerInterceptor creates a gRPC stream interceptor for authentication.
// Validates bearer tokens and propagates identity via context.
func StreamServerInterceptor(authenticator Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()

		token, err := bearerToken(ctx)
		if err != nil {
			return status.Error(codes.Unauthenticated, err.Error())
		}
		identity, err := authenticator.Authenticate(ctx, token)
		if err != nil {
			return status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(srv, &wrappedServerStream{
			ServerStream: ss,
			ctx:          context.WithValue(ctx, identityKey{}, identity),
		})
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapper's custom context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

func bearerToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("missing metadata")
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", errors.New("missing authorization header")
	}
	token, ok := strings.CutPrefix(values[0], "Bearer ")
	if !ok || token == "" {
		return "", errors.New("authorization header must be a bearer token")
	}
	return token, nil
}
