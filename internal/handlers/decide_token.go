package handlers

import (
	"fmt"
	"net/http"

	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/lifecycle"
	"github.com/agentgate/agentgate/internal/token"
	"github.com/gorilla/mux"
)

// DecideTokenHandler serves the public one-click decision links. The token
// secret in the URL is the credential; no other authentication applies.
type DecideTokenHandler struct {
	tokens      *token.Manager
	coordinator *lifecycle.Coordinator
}

// NewDecideTokenHandler creates the public decision handler
func NewDecideTokenHandler(tokens *token.Manager, coordinator *lifecycle.Coordinator) *DecideTokenHandler {
	return &DecideTokenHandler{tokens: tokens, coordinator: coordinator}
}

// Redeem consumes a decision token and renders the outcome as HTML
func (h *DecideTokenHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	secret := mux.Vars(r)["token"]

	result, err := h.tokens.Redeem(r.Context(), secret, h.coordinator.DecideFunc)
	if err != nil {
		writeDecisionPage(w, http.StatusInternalServerError, "Something went wrong",
			"The decision could not be processed. Please try again.")
		return
	}

	switch result.Outcome {
	case token.OutcomeInvalid:
		writeDecisionPage(w, http.StatusNotFound, "Invalid link",
			"This decision link is not recognized.")
	case token.OutcomeAlreadyUsed:
		writeDecisionPage(w, http.StatusGone, "Link already used",
			"A decision was already made using this link or its counterpart.")
	case token.OutcomeExpired:
		writeDecisionPage(w, http.StatusGone, "Link expired",
			"This decision link has expired.")
	case token.OutcomeAlreadyDecided:
		writeDecisionPage(w, http.StatusConflict, "Already decided",
			"This request was already decided through another channel.")
	case token.OutcomeSuccess:
		verb := "denied"
		if result.Action == db.TokenActionApprove {
			verb = "approved"
		}
		writeDecisionPage(w, http.StatusOK, "Decision recorded",
			fmt.Sprintf("The request has been %s.", verb))
	default:
		writeDecisionPage(w, http.StatusInternalServerError, "Something went wrong",
			"The decision could not be processed. Please try again.")
	}
}

func writeDecisionPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body style="font-family: sans-serif; max-width: 40em; margin: 4em auto;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>
`, title, title, message)
}
