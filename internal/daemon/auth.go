package daemon

import (
	"context"
	"crypto/hmac"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scribe/internal/api"
)

type contextKey string

const userIDKey contextKey = "auth-user-id"

// authMiddleware validates signed request headers. When no shared secret is
// configured, authentication is disabled and requests pass through without a
// user identity.
func authMiddleware(secret string, toleranceSeconds int, next http.HandlerFunc) http.HandlerFunc {
	if secret == "" {
		return next
	}
	tolerance := time.Duration(toleranceSeconds) * time.Second
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(api.HeaderUserID))
		timestamp := strings.TrimSpace(r.Header.Get(api.HeaderTimestamp))
		nonce := strings.TrimSpace(r.Header.Get(api.HeaderNonce))
		sign := strings.TrimSpace(r.Header.Get(api.HeaderSign))
		if userID == "" || timestamp == "" || nonce == "" || sign == "" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		issued, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		skew := time.Since(time.Unix(issued, 0))
		if skew < -tolerance || skew > tolerance {
			http.Error(w, `{"error":"request expired"}`, http.StatusUnauthorized)
			return
		}

		if !hmac.Equal([]byte(api.Sign(secret, userID, timestamp, nonce)), []byte(sign)) {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

// userIDFrom returns the authenticated user id, or empty when auth is off.
func userIDFrom(r *http.Request) string {
	if value, ok := r.Context().Value(userIDKey).(string); ok {
		return value
	}
	return ""
}
