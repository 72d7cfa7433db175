package contexthelpers

type contextKey string

const (
	IsAuthenticatedContextKey     = contextKey("isAuthenticated")
	AuthenticatedUserIDContextKey = contextKey("authenticatedUserID")
	AnonKeyContextKey             = contextKey("anonKey")
	TraceIDContextKey             = contextKey("traceID")
)
