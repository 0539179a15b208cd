package middleware

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	userKey      contextKey = "user"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"
