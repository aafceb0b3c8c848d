package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name     string
		inbound  string
		wantEcho bool
	}{
		{"generates when absent", "", false},
		{"honors caller ID", "trace-42", true},
		{"replaces overlong ID", strings.Repeat("x", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.inbound != "" {
				req.Header.Set("X-Request-Id", tt.inbound)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-Id")
			if got == "" {
				t.Fatal("response carries no request ID")
			}
			if got != seen {
				t.Errorf("header ID %q != context ID %q", got, seen)
			}
			if tt.wantEcho && got != tt.inbound {
				t.Errorf("ID = %q, want inbound %q", got, tt.inbound)
			}
			if !tt.wantEcho && got == tt.inbound {
				t.Errorf("inbound ID %q was not replaced", tt.inbound)
			}
		})
	}
}

func TestGetRequestID_OutsideMiddleware(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest("GET", "/", nil).Context()); id != "" {
		t.Errorf("id = %q, want empty", id)
	}
}
