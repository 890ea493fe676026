// Package audit records security-relevant events as structured log lines.
// Every admin action, login, and faction mutation goes through LogEvent so
// the trail carries the acting principal and request id.
package audit

import (
	"context"
	"errors"
	"strings"

	"turfwar.org/internal/auth"
	"turfwar.org/internal/obs"
)

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID stores the request id for later audit lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent emits one audit line. The acting user and request id are taken
// from ctx; fields carry event-specific detail.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}
	entry := map[string]any{
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if uid, ok := auth.UserIDFromContext(ctx); ok {
		entry["user_id"] = uid
	}
	if name, ok := auth.UsernameFromContext(ctx); ok {
		entry["username"] = name
	}
	if len(fields) > 0 {
		entry["fields"] = fields
	}
	obs.Emit(entry)
	return nil
}
