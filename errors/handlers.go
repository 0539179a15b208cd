package errors

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler wraps an http.Handler and turns panics into internal errors.
// The server installs it outside the router, so it only sees panics that
// escape the router's own recovery. http.ErrAbortHandler is re-raised.
// A nil logger means DefaultLogger.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = DefaultLogger
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					stack := debug.Stack()
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.ByteString("stacktrace", stack),
						zap.String("request_id", requestID),
					)

					WriteError(w, NewInternalError(requestID, nil))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context. A nil logger means DefaultLogger.
func LogError(logger *zap.Logger, err error, requestID string) {
	if logger == nil {
		logger = DefaultLogger
	}
	var ke *KoreksiError
	if As(err, &ke) {
		fields := []zap.Field{
			zap.String("error_type", string(ke.Type)),
			zap.String("message", ke.Message),
			zap.Int("code", ke.Code),
			zap.String("request_id", requestID),
			zap.Any("details", ke.Details),
		}
		if ke.err != nil {
			fields = append(fields, zap.NamedError("cause", ke.err))
		}
		logger.Error("request error", fields...)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
