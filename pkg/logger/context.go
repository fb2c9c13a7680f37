package logger

import (
	"context"
	"log/slog"
)

type (
	sessionKey struct{}
	userKey    struct{}
)

// WithSession stores the engine session id in ctx so every record logged with it carries "session_id".
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// WithUser stores the purchase identity in ctx so every record logged with it carries "user_id".
func WithUser(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

// SessionExtractor adds "session_id" from ctx.
func SessionExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(sessionKey{}).(string); ok && id != "" {
		return slog.String("session_id", id), true
	}
	return slog.Attr{}, false
}

// UserExtractor adds "user_id" from ctx.
func UserExtractor(ctx context.Context) (slog.Attr, bool) {
	if id, ok := ctx.Value(userKey{}).(string); ok && id != "" {
		return slog.String("user_id", id), true
	}
	return slog.Attr{}, false
}
