package contexthelpers

import (
	"context"
)

func IsAuthenticated(ctx context.Context) bool {
	isAuthenticated, ok := ctx.Value(IsAuthenticatedContextKey).(bool)
	if !ok {
		return false
	}

	return isAuthenticated
}

// AuthenticatedUserID returns the signed-in user's id or 0.
func AuthenticatedUserID(ctx context.Context) int {
	userID, ok := ctx.Value(AuthenticatedUserIDContextKey).(int)
	if !ok {
		return 0
	}

	return userID
}

// AnonKey returns the anonymous scoping key assigned to the visitor's cookie session.
func AnonKey(ctx context.Context) string {
	anonKey, ok := ctx.Value(AnonKeyContextKey).(string)
	if !ok {
		return ""
	}

	return anonKey
}

func TraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDContextKey).(string)
	if !ok {
		return ""
	}
	return traceID
}
