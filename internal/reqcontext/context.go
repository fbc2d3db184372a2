// Package reqcontext carries the exchange request id through gRPC handler contexts.
package reqcontext

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"
)

// RequestIDHeader is the gRPC metadata key for the request id, used both
// by clients that pick their own id and by the server's response header.
const RequestIDHeader = "o2-request-id"

type requestKey struct{}

// WithRequestID returns a new context with the request id stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestKey{}, id)
}

// RequestIDFromContext retrieves the request id if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestKey{}).(string)
	return id, ok
}

// ExtractRequestID returns the request id sent in incoming metadata, or "".
func ExtractRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	ids := md.Get(RequestIDHeader)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

// Ensure stores the client's request id in ctx, or a new random one when
// the client sent none.
func Ensure(ctx context.Context) (context.Context, string) {
	id := ExtractRequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	return WithRequestID(ctx, id), id
}
