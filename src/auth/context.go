package auth

import (
	"context"
)

type contextKey string

const CallerKey contextKey = "caller"

// WithCaller tags ctx with the authenticated caller, used for audit log fields.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

func GetCallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(CallerKey).(string)
	return caller, ok && caller != ""
}
