package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/policy"
	"github.com/agentgate/agentgate/internal/store"
	"github.com/gorilla/mux"
)

// PolicyHandlers handles policy CRUD and YAML import/export
type PolicyHandlers struct {
	store store.PolicyStore
}

// NewPolicyHandlers creates new policy handlers
func NewPolicyHandlers(st store.PolicyStore) *PolicyHandlers {
	return &PolicyHandlers{store: st}
}

type policyBody struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Rules       []db.PolicyRule `json:"rules"`
	Priority    int             `json:"priority"`
	Enabled     *bool           `json:"enabled"`
}

// CreatePolicy creates a new policy
func (h *PolicyHandlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var body policyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Name == "" {
		WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := policy.ValidateRules(body.Rules); err != nil {
		WriteAppError(w, err)
		return
	}

	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}
	p := &db.Policy{
		Name:        body.Name,
		Description: body.Description,
		Rules:       body.Rules,
		Priority:    body.Priority,
		Enabled:     enabled,
	}
	if err := h.store.CreatePolicy(r.Context(), p); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, p, http.StatusCreated)
}

// ListPolicies lists all policies in evaluation order
func (h *PolicyHandlers) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.store.ListPolicies(r.Context(), false)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if policies == nil {
		policies = []db.Policy{}
	}
	WriteSuccess(w, map[string]interface{}{"policies": policies}, http.StatusOK)
}

// GetPolicy gets a policy by ID
func (h *PolicyHandlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetPolicy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteSuccess(w, p, http.StatusOK)
}

// UpdatePolicy replaces a policy's fields
func (h *PolicyHandlers) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	existing, err := h.store.GetPolicy(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	var body policyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Name == "" {
		WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := policy.ValidateRules(body.Rules); err != nil {
		WriteAppError(w, err)
		return
	}

	existing.Name = body.Name
	existing.Description = body.Description
	existing.Rules = body.Rules
	existing.Priority = body.Priority
	if body.Enabled != nil {
		existing.Enabled = *body.Enabled
	}
	if err := h.store.UpdatePolicy(r.Context(), existing); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, existing, http.StatusOK)
}

// DeletePolicy deletes a policy
func (h *PolicyHandlers) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeletePolicy(r.Context(), mux.Vars(r)["id"]); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportPolicies replaces the full policy set with a YAML document. The
// swap is all-or-nothing; a rejected document leaves the existing set
// untouched.
func (h *PolicyHandlers) ImportPolicies(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	policies, err := policy.ParseDocument(data)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	for i := range policies {
		policies[i].ID = ""
	}
	if err := h.store.ReplacePolicies(r.Context(), policies); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteSuccess(w, map[string]interface{}{"policies": policies}, http.StatusCreated)
}

// ExportPolicies renders every policy as a YAML document
func (h *PolicyHandlers) ExportPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.store.ListPolicies(r.Context(), false)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	data, err := policy.MarshalDocument(policies)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
