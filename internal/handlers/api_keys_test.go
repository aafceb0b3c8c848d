package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/agentgate/agentgate/internal/auth"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
)

func newAPIKeyRouter(t *testing.T) (*mux.Router, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	h := NewAPIKeyHandlers(auth.NewAPIKeyManager(st), st)

	router := mux.NewRouter()
	router.HandleFunc("/api/api-keys", h.GenerateAPIKey).Methods("POST")
	router.HandleFunc("/api/api-keys", h.ListAPIKeys).Methods("GET")
	router.HandleFunc("/api/api-keys/{id}", h.UpdateAPIKey).Methods("PATCH")
	router.HandleFunc("/api/api-keys/{id}", h.RevokeAPIKey).Methods("DELETE")
	return router, st
}

func TestGenerateAPIKey(t *testing.T) {
	router, st := newAPIKeyRouter(t)

	rec := doJSON(t, router, "POST", "/api/api-keys", `{
		"name": "ci bot",
		"scopes": ["request:read", "request:create"],
		"rateLimit": 100
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID        string   `json:"id"`
		Key       string   `json:"key"`
		KeyPrefix string   `json:"keyPrefix"`
		Scopes    []string `json:"scopes"`
		RateLimit *int     `json:"rateLimit"`
	}
	decodeJSON(t, rec, &resp)
	if !strings.HasPrefix(resp.Key, auth.KeySecretPrefix) {
		t.Errorf("key = %q, want %q prefix", resp.Key, auth.KeySecretPrefix)
	}
	if resp.KeyPrefix != auth.GetKeyPrefix(resp.Key) {
		t.Errorf("keyPrefix = %q", resp.KeyPrefix)
	}
	if resp.RateLimit == nil || *resp.RateLimit != 100 {
		t.Errorf("rateLimit = %v, want 100", resp.RateLimit)
	}

	// Stored record holds a hash, never the secret
	stored, err := st.GetAPIKey(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("GetAPIKey() error = %v", err)
	}
	if stored.KeyHash == "" || stored.KeyHash == resp.Key {
		t.Error("expected a hash distinct from the secret")
	}
}

func TestGenerateAPIKey_Validation(t *testing.T) {
	router, _ := newAPIKeyRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"scopes": ["request:read"]}`},
		{"missing scopes", `{"name": "ci bot"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, "POST", "/api/api-keys", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListAPIKeys_OmitsHashes(t *testing.T) {
	router, _ := newAPIKeyRouter(t)

	doJSON(t, router, "POST", "/api/api-keys", `{"name": "k1", "scopes": ["request:read"]}`)

	rec := doJSON(t, router, "GET", "/api/api-keys", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "keyHash") {
		t.Error("listing leaked key hashes")
	}
}

func TestUpdateAndRevokeAPIKey(t *testing.T) {
	router, st := newAPIKeyRouter(t)

	rec := doJSON(t, router, "POST", "/api/api-keys", `{"name": "k1", "scopes": ["request:read"]}`)
	var created struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &created)

	rec = doJSON(t, router, "PATCH", "/api/api-keys/"+created.ID, `{"name": "renamed", "rateLimit": 10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated db.APIKey
	decodeJSON(t, rec, &updated)
	if updated.Name != "renamed" {
		t.Errorf("name = %q", updated.Name)
	}
	if updated.RateLimit == nil || *updated.RateLimit != 10 {
		t.Errorf("rateLimit = %v", updated.RateLimit)
	}
	// Untouched fields survive the patch
	if len(updated.Scopes) != 1 || updated.Scopes[0] != "request:read" {
		t.Errorf("scopes = %v", updated.Scopes)
	}

	rec = doJSON(t, router, "DELETE", "/api/api-keys/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d", rec.Code)
	}

	stored, _ := st.GetAPIKey(context.Background(), created.ID)
	if stored.RevokedAt == nil {
		t.Error("expected revokedAt to be set")
	}

	// Revoking twice is a 404: the row is already revoked
	rec = doJSON(t, router, "DELETE", "/api/api-keys/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second revoke status = %d, want 404", rec.Code)
	}
}
