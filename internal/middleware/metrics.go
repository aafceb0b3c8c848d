package middleware

import (
	"net/http"
	"time"

	"github.com/agentgate/agentgate/internal/metrics"
	"github.com/gorilla/mux"
)

// MetricsMiddleware records request counts and latency per route template
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(recorder, r)

			endpoint := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if template, err := route.GetPathTemplate(); err == nil {
					endpoint = template
				}
			}
			metrics.RecordHTTPRequest(r.Method, endpoint, recorder.statusCode, time.Since(start).Seconds())
		})
	}
}
