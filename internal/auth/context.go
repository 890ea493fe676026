package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	userIDKey   ctxKey = "auth_user_id"
	usernameKey ctxKey = "auth_username"
	tokenIDKey  ctxKey = "auth_token_id"
)

// ContextWithUser stores the authenticated user identity in the context.
func ContextWithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
	if username = strings.TrimSpace(username); username != "" {
		ctx = context.WithValue(ctx, usernameKey, username)
	}
	return ctx
}

// UserIDFromContext extracts the authenticated user ID from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// UsernameFromContext extracts the authenticated username from the context.
func UsernameFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(usernameKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// ContextWithTokenID stores the session token ID (jti) for later revocation.
func ContextWithTokenID(ctx context.Context, tokenID string) context.Context {
	if tokenID == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenIDKey, tokenID)
}

// TokenIDFromContext returns the session token ID if it was attached.
func TokenIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(tokenIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
