// Package session carries the caller's identity and request ID through
// request contexts. The user ID is an opaque positive integer supplied by
// whatever sits in front of the API; this package does not authenticate.
package session

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// UserHeader carries the numeric user ID.
	UserHeader = "X-User-ID"
	// RequestIDHeader carries a request ID, generated when absent.
	RequestIDHeader = "X-Request-ID"
)

// ErrNoUser indicates a request without a valid user ID.
var ErrNoUser = errors.New("no user id")

type contextKey string

const (
	userKey      contextKey = "user_id"
	requestIDKey contextKey = "request_id"
)

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserID returns the user ID in ctx, or 0 if none is set.
func UserID(ctx context.Context) int64 {
	id, _ := ctx.Value(userKey).(int64)
	return id
}

// ParseUserID reads a user ID from a header value. Non-positive and
// non-numeric values are rejected.
func ParseUserID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrNoUser
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNoUser
	}
	return id, nil
}

// RequestID returns the request ID in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Middleware resolves the user and request IDs for every request. Requests
// without a valid user ID pass through with no user; handlers that need one
// reject them.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		if id, err := ParseUserID(r.Header.Get(UserHeader)); err == nil {
			ctx = WithUser(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
