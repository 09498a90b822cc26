package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/WholesaleGo/pkg/logger"
)

// RequestLogger puts a per-request logger in the context for handlers and
// services to fetch with logger.FromContext. Ids already in the context
// (correlation, trace) and the request line are bound to it, so they appear
// even on calls made without a context. Mount it after RequestLogging and
// Tracing; Auth later adds the caller.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.WithContext(ctx, base).With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, l)))
		})
	}
}
