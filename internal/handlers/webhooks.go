package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
	"github.com/agentgate/agentgate/internal/validation"
	"github.com/agentgate/agentgate/internal/webhook"
	"github.com/gorilla/mux"
)

// WebhookHandlers handles webhook subscription management
type WebhookHandlers struct {
	store      store.WebhookStore
	dispatcher *webhook.Dispatcher
}

// NewWebhookHandlers creates new webhook handlers
func NewWebhookHandlers(st store.WebhookStore, dispatcher *webhook.Dispatcher) *WebhookHandlers {
	return &WebhookHandlers{store: st, dispatcher: dispatcher}
}

// CreateWebhook registers a webhook subscription
func (h *WebhookHandlers) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL    string   `json:"url"`
		Secret string   `json:"secret"`
		Events []string `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validation.ValidateURLRequired(req.URL, "url"); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Secret == "" {
		WriteError(w, http.StatusBadRequest, "secret is required")
		return
	}
	if len(req.Events) == 0 {
		WriteError(w, http.StatusBadRequest, "at least one event is required")
		return
	}

	hook := &db.Webhook{
		URL:     req.URL,
		Secret:  req.Secret,
		Events:  req.Events,
		Enabled: true,
	}
	if err := h.store.CreateWebhook(r.Context(), hook); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, hook, http.StatusCreated)
}

// ListWebhooks lists all webhooks
func (h *WebhookHandlers) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.store.ListWebhooks(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if hooks == nil {
		hooks = []db.Webhook{}
	}
	WriteSuccess(w, map[string]interface{}{"webhooks": hooks}, http.StatusOK)
}

// GetWebhook gets a webhook by ID
func (h *WebhookHandlers) GetWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := h.store.GetWebhook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteSuccess(w, hook, http.StatusOK)
}

// UpdateWebhook patches a webhook's mutable fields
func (h *WebhookHandlers) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := h.store.GetWebhook(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteAppError(w, err)
		return
	}

	var req struct {
		URL     *string  `json:"url"`
		Secret  *string  `json:"secret"`
		Events  []string `json:"events"`
		Enabled *bool    `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.URL != nil {
		if err := validation.ValidateURLRequired(*req.URL, "url"); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		hook.URL = *req.URL
	}
	if req.Secret != nil && *req.Secret != "" {
		hook.Secret = *req.Secret
	}
	if req.Events != nil {
		hook.Events = req.Events
	}
	if req.Enabled != nil {
		hook.Enabled = *req.Enabled
	}

	if err := h.store.UpdateWebhook(r.Context(), hook); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteSuccess(w, hook, http.StatusOK)
}

// DisableWebhook disables a webhook, keeping its delivery history
func (h *WebhookHandlers) DisableWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DisableWebhook(r.Context(), mux.Vars(r)["id"]); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestWebhook sends a synthetic event to one webhook and reports the
// delivery outcome
func (h *WebhookHandlers) TestWebhook(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	hook, err := h.store.GetWebhook(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	payload := map[string]interface{}{
		"event":  "webhook.test",
		"sentAt": time.Now().UTC(),
	}
	h.dispatcher.Deliver(r.Context(), hook, "webhook.test", payload)

	deliveries, err := h.store.ListDeliveries(r.Context(), hook.ID, 1)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	var latest interface{}
	if len(deliveries) > 0 {
		latest = deliveries[0]
	}
	WriteSuccess(w, map[string]interface{}{"delivery": latest}, http.StatusOK)
}

// ListDeliveries lists recent delivery records for a webhook
func (h *WebhookHandlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	if _, err := h.store.GetWebhook(r.Context(), id); err != nil {
		WriteAppError(w, err)
		return
	}

	deliveries, err := h.store.ListDeliveries(r.Context(), id, limit)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if deliveries == nil {
		deliveries = []db.WebhookDelivery{}
	}
	WriteSuccess(w, map[string]interface{}{"deliveries": deliveries}, http.StatusOK)
}
