package middleware

import (
	"context"
	"net/http"

	"github.com/segmentio/ksuid"
)

// TraceHeader carries the request trace id in both directions
const TraceHeader = "X-Trace-ID"

type traceKey struct{}

// maxTraceLen bounds client-supplied trace ids
const maxTraceLen = 64

// Trace tags each request with a trace id, reusing a sane client-supplied
// one, and echoes it in the response.
func Trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TraceHeader)
		if id == "" || len(id) > maxTraceLen {
			id = ksuid.New().String()
		}

		w.Header().Set(TraceHeader, id)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), id)))
	})
}

// WithTraceID returns a context carrying id
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the request trace id, or "" outside a traced request
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
