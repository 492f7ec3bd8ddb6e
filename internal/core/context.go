package core

import "context"

type contextKey string

const ctxKeyTrigger contextKey = "refresh_trigger"

// Refresh triggers recorded in logs.
const (
	TriggerStartup   = "startup"
	TriggerScheduler = "scheduler"
	TriggerAPI       = "api"
	TriggerCLI       = "cli"
)

// ContextWithTrigger records what started a refresh.
func ContextWithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, trigger)
}

// TriggerFromContext returns the refresh trigger, or "unknown".
func TriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTrigger).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
