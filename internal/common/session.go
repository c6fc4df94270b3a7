package common

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

type ctxKey string

const (
	sessionIDKey ctxKey = "session/id"
	deviceIDKey  ctxKey = "session/device"
)

const (
	// HeaderSessionID carries the storefront cart session.
	HeaderSessionID = "X-Session-ID"
	// HeaderDeviceID carries the POS terminal identifier.
	HeaderDeviceID = "X-Device-ID"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// WithSessionID stores the cart session identifier on the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID extracts the cart session identifier from the context if present.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

// WithDeviceID stores the POS device identifier on the context.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey, id)
}

// DeviceID extracts the POS device identifier from the context if present.
func DeviceID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceIDKey).(string)
	return id, ok && id != ""
}

// RequireSession rejects requests without a well-formed X-Session-ID header.
func RequireSession(next http.Handler) http.Handler {
	return requireHeader(HeaderSessionID, WithSessionID, next)
}

// RequireDevice rejects requests without a well-formed X-Device-ID header.
func RequireDevice(next http.Handler) http.Handler {
	return requireHeader(HeaderDeviceID, WithDeviceID, next)
}

func requireHeader(name string, with func(context.Context, string) context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(name))
		if !idPattern.MatchString(id) {
			JSONError(w, http.StatusBadRequest, "MISSING_SESSION", name+" header is required", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(with(r.Context(), id)))
	})
}
