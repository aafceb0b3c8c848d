package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agentgate/agentgate/internal/auth"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
	"github.com/gorilla/mux"
)

// APIKeyHandlers handles API key management endpoints
type APIKeyHandlers struct {
	keyManager *auth.APIKeyManager
	store      store.KeyStore
}

// NewAPIKeyHandlers creates new API key handlers
func NewAPIKeyHandlers(keyManager *auth.APIKeyManager, st store.KeyStore) *APIKeyHandlers {
	return &APIKeyHandlers{keyManager: keyManager, store: st}
}

// GenerateAPIKey generates a new API key. The full secret appears only in
// this response.
func (h *APIKeyHandlers) GenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string     `json:"name"`
		Scopes    []string   `json:"scopes"`
		RateLimit *int       `json:"rateLimit"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Scopes) == 0 {
		WriteError(w, http.StatusBadRequest, "at least one scope is required")
		return
	}

	secret, apiKey, err := h.keyManager.GenerateAPIKey(r.Context(), req.Name, req.Scopes, req.RateLimit, req.ExpiresAt)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"id":        apiKey.ID,
		"key":       secret,
		"keyPrefix": apiKey.KeyPrefix,
		"name":      apiKey.Name,
		"scopes":    apiKey.Scopes,
		"rateLimit": apiKey.RateLimit,
		"expiresAt": apiKey.ExpiresAt,
		"createdAt": apiKey.CreatedAt,
	}, http.StatusCreated)
}

// ListAPIKeys lists all API keys without their hashes
func (h *APIKeyHandlers) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if keys == nil {
		keys = []db.APIKey{}
	}
	WriteSuccess(w, map[string]interface{}{"keys": keys}, http.StatusOK)
}

// UpdateAPIKey patches a key's mutable fields
func (h *APIKeyHandlers) UpdateAPIKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	key, err := h.store.GetAPIKey(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	var req struct {
		Name      *string    `json:"name"`
		Scopes    []string   `json:"scopes"`
		RateLimit *int       `json:"rateLimit"`
		ExpiresAt *time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.Scopes != nil {
		key.Scopes = req.Scopes
	}
	if req.RateLimit != nil {
		key.RateLimit = req.RateLimit
	}
	if req.ExpiresAt != nil {
		key.ExpiresAt = req.ExpiresAt
	}

	if err := h.store.UpdateAPIKey(r.Context(), key); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteSuccess(w, key, http.StatusOK)
}

// RevokeAPIKey soft-revokes a key. The record stays for audit purposes.
func (h *APIKeyHandlers) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.RevokeAPIKey(r.Context(), id, time.Now().UTC()); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
