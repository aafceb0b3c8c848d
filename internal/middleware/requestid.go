package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKeyType string

const RequestIDKey requestIDKeyType = "request_id"

// maxInboundIDLength caps caller-supplied correlation IDs so they stay
// log-safe.
const maxInboundIDLength = 64

/* RequestIDMiddleware tags every request with a correlation ID. A short
 * caller-supplied X-Request-Id is honored so gateway log lines can be joined
 * with the calling agent's own; anything else gets a fresh UUID. The ID is
 * echoed back on the response. */
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" || len(id) > maxInboundIDLength {
				id = uuid.New().String()
			}

			w.Header().Set("X-Request-Id", id)

			ctx := context.WithValue(r.Context(), RequestIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

/* GetRequestID returns the correlation ID, or "" outside the middleware */
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
