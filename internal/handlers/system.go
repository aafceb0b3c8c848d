package handlers

import (
	"net/http"

	"github.com/agentgate/agentgate/internal/logging"
	"github.com/agentgate/agentgate/internal/metrics"
)

// SystemHandlers exposes a host/process snapshot for operators
type SystemHandlers struct {
	logger *logging.Logger
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(logger *logging.Logger) *SystemHandlers {
	return &SystemHandlers{logger: logger}
}

// GetSystemSnapshot returns current host and process metrics
func (h *SystemHandlers) GetSystemSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := metrics.CollectSystemSnapshot(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect system snapshot", err, nil)
		WriteError(w, http.StatusInternalServerError, "failed to collect system snapshot")
		return
	}
	WriteSuccess(w, snapshot, http.StatusOK)
}
