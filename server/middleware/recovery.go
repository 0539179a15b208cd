package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/teilomillet/koreksi/errors"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 internal_error response for the
// current request. It runs inside the router, so the request id and the
// signed-in user are known and logged with the stack.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := GetRequestID(r.Context())
				fields := []zap.Field{
					zap.Any("panic", rec),
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				}
				if u, ok := UserFromContext(r.Context()); ok {
					fields = append(fields, zap.String("user_id", u.ID))
				}
				logger.Error("Handler panicked", fields...)

				errors.WriteError(w, errors.NewInternalError(requestID, fmt.Errorf("panic: %v", rec)))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
