package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/movienight/internal/api/apierr"
	"github.com/mcoot/movienight/internal/middleware"
)

// MaxRequestBody caps API request bodies. The largest legitimate body is a
// movie proposal.
const MaxRequestBody = 64 << 10

// Common returns the middleware applied to every API route, outermost first
func Common(logger *slog.Logger) []mux.MiddlewareFunc {
	return []mux.MiddlewareFunc{
		middleware.Trace,
		middleware.Recovery(logger, apiPanicHandler),
		middleware.Logging(logger),
		Metrics,
		middleware.SecurityHeaders,
		middleware.MaxBodySize(MaxRequestBody, http.HandlerFunc(bodyTooLarge)),
	}
}

func bodyTooLarge(w http.ResponseWriter, _ *http.Request) {
	apierr.WriteError(w, apierr.NewBodyTooLargeError(fmt.Sprintf("request body exceeds %d bytes", MaxRequestBody)))
}

func apiPanicHandler(w http.ResponseWriter, _ *http.Request, _ any) {
	apierr.WriteError(w, apierr.NewInternalError())
}
