package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type traceIdKey string

// TraceIDKey is the context key under which the per-request trace id is stored.
const TraceIDKey traceIdKey = "traceId"

// WithTraceID returns a context carrying the given trace id.
func WithTraceID(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceId)
}

// GetTraceIdOfRequest fetches the trace id set by the logging middleware.
// Returns "unknown" if the middleware did not run for this request.
func GetTraceIdOfRequest(c *gin.Context) string {
	traceId, ok := c.Request.Context().Value(TraceIDKey).(string)
	if !ok {
		return "unknown"
	}
	return traceId
}
