package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/agentgate/agentgate/internal/auth"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/lifecycle"
	"github.com/agentgate/agentgate/internal/token"
	"github.com/gorilla/mux"
)

// RequestHandlers handles approval request endpoints
type RequestHandlers struct {
	coordinator *lifecycle.Coordinator
	tokens      *token.Manager
	baseURL     string
}

// NewRequestHandlers creates new request handlers
func NewRequestHandlers(coordinator *lifecycle.Coordinator, tokens *token.Manager, baseURL string) *RequestHandlers {
	return &RequestHandlers{
		coordinator: coordinator,
		tokens:      tokens,
		baseURL:     baseURL,
	}
}

// CreateRequest creates a new approval request
func (h *RequestHandlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action    string                 `json:"action"`
		Params    map[string]interface{} `json:"params"`
		Context   map[string]interface{} `json:"context"`
		Urgency   string                 `json:"urgency"`
		ExpiresAt *time.Time             `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := h.coordinator.Create(r.Context(), lifecycle.CreateInput{
		Action:    req.Action,
		Params:    req.Params,
		Context:   req.Context,
		Urgency:   req.Urgency,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, created, http.StatusCreated)
}

// GetRequest gets an approval request by ID and records the read in the
// request's audit trail
func (h *RequestHandlers) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	actor := db.ActorSystem
	if principal, ok := auth.GetPrincipal(r.Context()); ok {
		actor = principal.DisplayName
	}

	req, err := h.coordinator.View(r.Context(), id, actor)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, req, http.StatusOK)
}

// ListRequests lists approval requests with optional filters
func (h *RequestHandlers) ListRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := db.RequestListFilter{
		Status: query.Get("status"),
		Action: query.Get("action"),
	}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := query.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	requests, err := h.coordinator.List(r.Context(), filter)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if requests == nil {
		requests = []db.ApprovalRequest{}
	}

	WriteSuccess(w, map[string]interface{}{
		"requests": requests,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	}, http.StatusOK)
}

// DecideRequest applies an authenticated decision
func (h *RequestHandlers) DecideRequest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Decision string  `json:"decision"`
		Reason   *string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	principal, ok := auth.GetPrincipal(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "missing credentials")
		return
	}

	req, err := h.coordinator.Decide(r.Context(), id, body.Decision, principal.DisplayName, body.Reason)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, req, http.StatusOK)
}

// GetAuditTrail returns the audit entries for a request
func (h *RequestHandlers) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entries, err := h.coordinator.Trail(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if entries == nil {
		entries = []db.AuditLogEntry{}
	}

	WriteSuccess(w, map[string]interface{}{"entries": entries}, http.StatusOK)
}

// IssueTokens issues a one-click approve/deny link pair for a pending
// request. The secrets appear only in this response.
func (h *RequestHandlers) IssueTokens(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	pair, err := h.tokens.IssuePair(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"requestId":  pair.RequestID,
		"approveUrl": fmt.Sprintf("%s/api/decide/%s", h.baseURL, pair.ApproveSecret),
		"denyUrl":    fmt.Sprintf("%s/api/decide/%s", h.baseURL, pair.DenySecret),
		"expiresAt":  pair.ExpiresAt,
	}, http.StatusCreated)
}
