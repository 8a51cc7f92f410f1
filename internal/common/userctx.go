package common

import "context"

// AdminContext identifies an authenticated administrator on a request
type AdminContext struct {
	Subject string
}

type contextKey int

const (
	adminContextKey contextKey = iota
	correlationIDKey
)

// WithAdmin stores the authenticated admin in the request context.
func WithAdmin(ctx context.Context, ac *AdminContext) context.Context {
	return context.WithValue(ctx, adminContextKey, ac)
}

// AdminFromContext retrieves the AdminContext from context, or nil if absent.
func AdminFromContext(ctx context.Context) *AdminContext {
	ac, _ := ctx.Value(adminContextKey).(*AdminContext)
	return ac
}

// IsAdmin reports whether the request carries a valid admin token
func IsAdmin(ctx context.Context) bool {
	return AdminFromContext(ctx) != nil
}

// WithCorrelationID stores the request correlation id
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the request correlation id, or "" when absent
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
