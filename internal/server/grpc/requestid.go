package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/metadata"
)

type ctxKey string

const requestIDKey ctxKey = "nk.requestID"

// requestIDHeader is the metadata key shared with the HTTP X-Request-ID header.
const requestIDHeader = "x-request-id"

// WithRequestID stores the request id in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx fetches the request id from context.
func RequestIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

// incomingRequestID takes the caller's id from metadata or mints a new one.
func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDHeader); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return ""
	}
	return id.String()
}
